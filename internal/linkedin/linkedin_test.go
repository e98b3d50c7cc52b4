package linkedin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prosparity/linkedin-bot/internal/browser"
	"github.com/prosparity/linkedin-bot/internal/chatbot"
	"github.com/prosparity/linkedin-bot/internal/chatlog"
	"github.com/prosparity/linkedin-bot/internal/models"
	"github.com/prosparity/linkedin-bot/internal/pacer"
	"github.com/prosparity/linkedin-bot/internal/session"
	"github.com/prosparity/linkedin-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeElement struct {
	text     string
	attrs    map[string]string
	clickErr error
	inputErr error
	clicks   int
	inputs   []string
	enters   int
}

func (e *fakeElement) Click() error {
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

func (e *fakeElement) Input(text string) error {
	if e.inputErr != nil {
		return e.inputErr
	}
	e.inputs = append(e.inputs, text)
	return nil
}

func (e *fakeElement) PressEnter() error { e.enters++; return nil }

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(name string) (string, error) {
	if val, ok := e.attrs[name]; ok {
		return val, nil
	}
	return "", browser.ErrNotFound
}

func (e *fakeElement) Visible() bool { return true }

type fakeDriver struct {
	singles   map[string]*fakeElement
	lists     map[string][]*fakeElement
	visible   map[string]bool
	navigated []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		singles: map[string]*fakeElement{},
		lists:   map[string][]*fakeElement{},
		visible: map[string]bool{},
	}
}

func (d *fakeDriver) Navigate(url string, timeout time.Duration) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) Locate(selector string, timeout time.Duration) (browser.Element, error) {
	if el, ok := d.singles[selector]; ok {
		return el, nil
	}
	if els, ok := d.lists[selector]; ok && len(els) > 0 {
		return els[0], nil
	}
	return nil, browser.ErrNotFound
}

func (d *fakeDriver) LocateAll(selector string, timeout time.Duration) ([]browser.Element, error) {
	els, ok := d.lists[selector]
	if !ok || len(els) == 0 {
		return nil, browser.ErrNotFound
	}
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

func (d *fakeDriver) Visible(selector string, timeout time.Duration) bool {
	return d.visible[selector]
}

func (d *fakeDriver) Close() error { return nil }

type staticResponder struct{}

func (staticResponder) Respond(ctx context.Context, text string) (string, float64, error) {
	return "", 0, nil
}

type noopCapturer struct{}

func (noopCapturer) Capture(ctx context.Context, name string) (*models.Lead, error) {
	return &models.Lead{}, nil
}

type clientFixture struct {
	client *Client
	drv    *fakeDriver
	store  *storage.MemoryStorage
	pacer  *pacer.Pacer
}

func newTestClient(t *testing.T, opts Options) *clientFixture {
	t.Helper()

	drv := newFakeDriver()
	drv.singles["#username"] = &fakeElement{}
	drv.singles["#password"] = &fakeElement{}
	drv.visible[".global-nav__me"] = true

	sess := session.New(drv, zap.NewNop())
	require.NoError(t, sess.Login(session.Credentials{Email: "a@b.com", Password: "secret"}))

	dir := t.TempDir()
	logbook, err := chatlog.Open(filepath.Join(dir, "chat.jsonl"), filepath.Join(dir, "errors.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { logbook.Close() })

	store := storage.NewMemoryStorage()
	p := pacer.New(zap.NewNop())
	bot := chatbot.New(staticResponder{}, noopCapturer{}, store, logbook, zap.NewNop())

	opts.StepTimeout = time.Millisecond
	return &clientFixture{
		client: NewClient(sess, p, bot, store, logbook, zap.NewNop(), opts),
		drv:    drv,
		store:  store,
		pacer:  p,
	}
}

func connectButtons(n int) []*fakeElement {
	els := make([]*fakeElement, n)
	for i := range els {
		els[i] = &fakeElement{}
	}
	return els
}

func TestSearchRequiresAuthentication(t *testing.T) {
	fx := newTestClient(t, Options{})
	sess := session.New(newFakeDriver(), zap.NewNop())
	fx.client.sess = sess

	err := fx.client.Search(context.Background(), []string{"cto"}, "")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestSearchNoResults(t *testing.T) {
	fx := newTestClient(t, Options{})

	err := fx.client.Search(context.Background(), []string{"cto", "fintech"}, "")
	assert.ErrorIs(t, err, ErrNoResults)
	require.Len(t, fx.drv.navigated, 2) // login page, then search
	assert.Equal(t, searchURL+"cto+fintech", fx.drv.navigated[1])
}

func TestSearchLocationFilterIsBestEffort(t *testing.T) {
	fx := newTestClient(t, Options{})
	fx.drv.lists[selResultsContainer] = []*fakeElement{{}}

	// No filter UI present at all: the search still succeeds.
	err := fx.client.Search(context.Background(), []string{"founder"}, "Berlin")
	assert.NoError(t, err)
}

func TestSendConnectionRequestsQuotaCapsBatch(t *testing.T) {
	fx := newTestClient(t, Options{MaxConnectionsPerDay: 3})
	fx.drv.lists[selConnectButton] = connectButtons(5)
	confirm := &fakeElement{}
	fx.drv.singles[selSendInvite] = confirm

	sent, err := fx.client.SendConnectionRequests(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 3, confirm.clicks)
	assert.Equal(t, 0, fx.pacer.Remaining(pacer.ActionConnection, 3))
}

func TestSendConnectionRequestsMaxRequestsCapsBatch(t *testing.T) {
	fx := newTestClient(t, Options{MaxConnectionsPerDay: 25})
	fx.drv.lists[selConnectButton] = connectButtons(5)
	fx.drv.singles[selSendInvite] = &fakeElement{}

	sent, err := fx.client.SendConnectionRequests(context.Background(), 2, "")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestSendConnectionRequestsSpentQuota(t *testing.T) {
	fx := newTestClient(t, Options{MaxConnectionsPerDay: 1})
	fx.drv.lists[selConnectButton] = connectButtons(2)
	fx.drv.singles[selSendInvite] = &fakeElement{}

	sent, err := fx.client.SendConnectionRequests(context.Background(), 0, "")
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	sent, err = fx.client.SendConnectionRequests(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Zero(t, sent, "a second pass in the same window sends nothing")
}

func TestSendConnectionRequestsSkipsFailedCandidate(t *testing.T) {
	fx := newTestClient(t, Options{MaxConnectionsPerDay: 10})
	buttons := connectButtons(3)
	buttons[1].clickErr = browser.ErrNotInteractable
	fx.drv.lists[selConnectButton] = buttons
	confirm := &fakeElement{}
	fx.drv.singles[selSendInvite] = confirm

	sent, err := fx.client.SendConnectionRequests(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, 2, sent, "one skipped candidate never aborts the batch")
	assert.Equal(t, 2, confirm.clicks)
}

func TestSendConnectionRequestsNoteAttached(t *testing.T) {
	fx := newTestClient(t, Options{MaxConnectionsPerDay: 10})
	fx.drv.lists[selConnectButton] = connectButtons(1)
	fx.drv.singles[selSendInvite] = &fakeElement{}
	fx.drv.singles[selAddNoteButton] = &fakeElement{}
	textarea := &fakeElement{}
	fx.drv.singles[selNoteTextarea] = textarea

	sent, err := fx.client.SendConnectionRequests(context.Background(), 0, "Hi, let's connect!")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Hi, let's connect!"}, textarea.inputs)
}

func TestSendConnectionRequestsNoteFallsBackToPlain(t *testing.T) {
	fx := newTestClient(t, Options{MaxConnectionsPerDay: 10})
	fx.drv.lists[selConnectButton] = connectButtons(1)
	confirm := &fakeElement{}
	fx.drv.singles[selSendInvite] = confirm
	// No add-note button in the dialog.

	sent, err := fx.client.SendConnectionRequests(context.Background(), 0, "Hi there")
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "invite still goes out without the note")
	assert.Equal(t, 1, confirm.clicks)
}

func TestReplyToMessagesAnswersAndDeduplicates(t *testing.T) {
	fx := newTestClient(t, Options{MaxMessagesPerDay: 15})
	fx.drv.lists[selConversationLink] = []*fakeElement{
		{attrs: map[string]string{"href": "/messaging/thread/1"}},
	}
	fx.drv.lists[selMessageBody] = []*fakeElement{{text: "hi there"}}
	fx.drv.lists[selSenderName] = []*fakeElement{{text: "Jane Doe"}}
	box := &fakeElement{}
	fx.drv.singles[selMessageBox] = box

	answered, err := fx.client.ReplyToMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, answered)

	require.Len(t, box.inputs, 1)
	assert.Equal(t, "Hello! Welcome to Prosparity AI. How can I assist you today?", box.inputs[0])
	assert.Equal(t, 1, box.enters)
	assert.Contains(t, fx.drv.navigated, baseURL+"/messaging/thread/1")

	// Same last message on the next pass: nothing new to answer.
	answered, err = fx.client.ReplyToMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, answered)
	assert.Len(t, box.inputs, 1)
}

func TestReplyToMessagesHonorsConversationCap(t *testing.T) {
	fx := newTestClient(t, Options{MaxMessagesPerDay: 15, MaxConversations: 1})
	fx.drv.lists[selConversationLink] = []*fakeElement{
		{attrs: map[string]string{"href": "/messaging/thread/1"}},
		{attrs: map[string]string{"href": "/messaging/thread/2"}},
	}
	fx.drv.lists[selMessageBody] = []*fakeElement{{text: "hello"}}
	fx.drv.singles[selMessageBox] = &fakeElement{}

	answered, err := fx.client.ReplyToMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, answered)
	assert.NotContains(t, fx.drv.navigated, baseURL+"/messaging/thread/2")
}

func TestReplyToMessagesStopsAtQuota(t *testing.T) {
	fx := newTestClient(t, Options{MaxMessagesPerDay: 0})
	fx.drv.lists[selConversationLink] = []*fakeElement{
		{attrs: map[string]string{"href": "/messaging/thread/1"}},
	}
	fx.drv.lists[selMessageBody] = []*fakeElement{{text: "hello"}}
	box := &fakeElement{}
	fx.drv.singles[selMessageBox] = box

	answered, err := fx.client.ReplyToMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, answered)
	assert.Empty(t, box.inputs, "nothing is typed once the quota is spent")
}

func TestReplyToMessagesEmptyInbox(t *testing.T) {
	fx := newTestClient(t, Options{MaxMessagesPerDay: 15})

	answered, err := fx.client.ReplyToMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, answered)
}
