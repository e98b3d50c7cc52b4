// Package linkedin drives the people-search, connection-request, and
// message-reply flows through the browser session. All selectors live here;
// everything above works with candidates, messages, and counts.
package linkedin

import (
	"errors"
	"time"

	"github.com/prosparity/linkedin-bot/internal/chatbot"
	"github.com/prosparity/linkedin-bot/internal/chatlog"
	"github.com/prosparity/linkedin-bot/internal/pacer"
	"github.com/prosparity/linkedin-bot/internal/session"
	"github.com/prosparity/linkedin-bot/internal/storage"
	"go.uber.org/zap"
)

// ErrNoResults means the search result container never appeared. Fatal to
// the search pass only.
var ErrNoResults = errors.New("no search results")

const (
	baseURL      = "https://www.linkedin.com"
	searchURL    = baseURL + "/search/results/people/?keywords="
	messagingURL = baseURL + "/messaging/"

	selResultsContainer = "ul.reusable-search__entity-result-list"
	selResultName       = "span.entity-result__title-text"
	selConnectButton    = `button[aria-label^="Invite"]`
	selAddNoteButton    = `button[aria-label="Add a note"]`
	selNoteTextarea     = `textarea[name="message"]`
	selSendInvite       = `button[aria-label^="Send"]`

	selLocationsFilter = "button#searchFilter_geoUrn"
	selLocationInput   = `input[placeholder="Add a location"]`
	selLocationOption  = `div[role="option"]`
	selApplyFilter     = `button[aria-label^="Apply current filter"]`

	selConversationLink = "a.msg-conversation-listitem__link"
	selMessageBody      = ".msg-s-event-listitem__body"
	selSenderName       = ".msg-s-message-group__name"
	selMessageBox       = ".msg-form__contenteditable"
)

// Options tune pacing, quotas, and UI step bounds for a run.
type Options struct {
	MaxConnectionsPerDay int
	MaxMessagesPerDay    int
	MaxConversations     int
	MinActionDelay       time.Duration
	MaxActionDelay       time.Duration
	StepTimeout          time.Duration
	MaxRetries           int
}

func (o *Options) setDefaults() {
	if o.MaxConversations <= 0 {
		// Bounded per pass to stay inconspicuous, as with quotas.
		o.MaxConversations = 3
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = session.DefaultStepTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
}

// Client runs outreach and reply passes over one authenticated session.
type Client struct {
	sess    *session.Controller
	pacer   *pacer.Pacer
	bot     *chatbot.Bot
	store   storage.Storage
	logbook *chatlog.Logbook
	logger  *zap.Logger
	opts    Options
}

func NewClient(sess *session.Controller, p *pacer.Pacer, bot *chatbot.Bot, store storage.Storage, logbook *chatlog.Logbook, logger *zap.Logger, opts Options) *Client {
	opts.setDefaults()
	return &Client{
		sess:    sess,
		pacer:   p,
		bot:     bot,
		store:   store,
		logbook: logbook,
		logger:  logger,
		opts:    opts,
	}
}

// recordFailure writes a local, swallowed failure to the error log.
func (c *Client) recordFailure(event, subject string, err error) {
	detail := err.Error()
	if subject != "" {
		detail = subject + ": " + detail
	}
	if logErr := c.logbook.Error(event, detail); logErr != nil {
		c.logger.Error("failed to record error event", zap.Error(logErr))
	}
}
