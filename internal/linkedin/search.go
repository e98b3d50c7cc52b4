package linkedin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prosparity/linkedin-bot/internal/browser"
	"github.com/prosparity/linkedin-bot/internal/models"
	"github.com/prosparity/linkedin-bot/internal/pacer"
	"github.com/prosparity/linkedin-bot/internal/session"
	"go.uber.org/zap"
)

// Search loads the people-search results for the given keywords. Location
// filtering is best-effort: the primary search already succeeded, so a
// failed filter step downgrades to a warning and the unfiltered results
// stand.
func (c *Client) Search(ctx context.Context, keywords []string, location string) error {
	if !c.sess.EnsureAuthenticated() {
		return session.ErrNotAuthenticated
	}
	if len(keywords) == 0 {
		return errors.New("search requires at least one keyword")
	}

	drv := c.sess.Driver()
	target := searchURL + url.QueryEscape(strings.Join(keywords, " "))
	if err := drv.Navigate(target, c.opts.StepTimeout); err != nil {
		return fmt.Errorf("open search results: %w", err)
	}

	if _, err := drv.Locate(selResultsContainer, c.opts.StepTimeout); err != nil {
		return fmt.Errorf("%w: %v", ErrNoResults, err)
	}

	if location != "" {
		if err := c.applyLocationFilter(location); err != nil {
			c.logger.Warn("location filter failed, results stand unfiltered",
				zap.String("location", location),
				zap.Error(err))
		}
	}
	return nil
}

// applyLocationFilter walks the filter UI. Any step failing aborts the
// whole sequence; the caller treats that as a soft condition.
func (c *Client) applyLocationFilter(location string) error {
	drv := c.sess.Driver()
	short := c.opts.StepTimeout / 2

	filter, err := drv.Locate(selLocationsFilter, short)
	if err != nil {
		return err
	}
	if err := filter.Click(); err != nil {
		return err
	}

	input, err := drv.Locate(selLocationInput, short)
	if err != nil {
		return err
	}
	if err := input.Input(location); err != nil {
		return err
	}

	option, err := drv.Locate(selLocationOption, short)
	if err != nil {
		return err
	}
	if err := option.Click(); err != nil {
		return err
	}

	apply, err := drv.Locate(selApplyFilter, short)
	if err != nil {
		return err
	}
	return apply.Click()
}

// SendConnectionRequests iterates the current result page in order and
// submits connection requests until the cap or the daily quota is reached.
// The effective cap is min(maxRequests, remaining quota); maxRequests <= 0
// means quota-bound only. Returns the number of requests that reached the
// sent outcome: per-candidate failures are logged and skipped, never
// aborting the batch.
func (c *Client) SendConnectionRequests(ctx context.Context, maxRequests int, note string) (int, error) {
	if !c.sess.EnsureAuthenticated() {
		return 0, session.ErrNotAuthenticated
	}

	drv := c.sess.Driver()
	limit := c.opts.MaxConnectionsPerDay
	budget := c.pacer.Remaining(pacer.ActionConnection, limit)
	if maxRequests > 0 && maxRequests < budget {
		budget = maxRequests
	}
	if budget == 0 {
		c.logger.Info("connection quota already spent for this window")
		return 0, nil
	}

	buttons, err := drv.LocateAll(selConnectButton, c.opts.StepTimeout)
	if err != nil {
		c.logger.Info("no connectable results on page", zap.Error(err))
		return 0, nil
	}
	names, _ := drv.LocateAll(selResultName, time.Second)

	sent := 0
	for i, button := range buttons {
		if sent >= budget {
			break
		}

		if err := c.pacer.TryReserve(ctx, pacer.ActionConnection, limit); err != nil {
			if errors.Is(err, pacer.ErrQuotaExceeded) {
				c.logger.Info("daily connection quota exhausted, stopping pass",
					zap.Int("sent", sent))
				break
			}
			return sent, err
		}

		candidate := models.Candidate{DisplayName: c.candidateName(names, i)}
		request := models.ConnectionRequest{Candidate: candidate, Note: note}

		if err := c.sess.PerformBounded("connect", c.opts.StepTimeout, c.opts.MaxRetries, func(time.Duration) error {
			return button.Click()
		}); err != nil {
			request.Outcome = models.OutcomeSkipped
			c.logger.Warn("skipping candidate, connect click failed",
				zap.String("candidate", candidate.DisplayName),
				zap.Error(err))
			c.recordFailure("connection request skipped", candidate.DisplayName, err)
			continue
		}

		// Notes are a soft enhancement: a failed note step falls back to
		// sending the invite without one.
		if note != "" {
			if err := c.attachNote(note); err != nil {
				c.logger.Warn("note attachment failed, sending without note",
					zap.String("candidate", candidate.DisplayName),
					zap.Error(err))
				request.Note = ""
			}
		}

		if err := c.sess.PerformBounded("send invite", c.opts.StepTimeout, c.opts.MaxRetries, func(timeout time.Duration) error {
			confirm, err := drv.Locate(selSendInvite, timeout)
			if err != nil {
				return err
			}
			return confirm.Click()
		}); err != nil {
			request.Outcome = models.OutcomeFailed
			c.logger.Warn("invite confirmation failed",
				zap.String("candidate", candidate.DisplayName),
				zap.Error(err))
			c.recordFailure("connection request failed", candidate.DisplayName, err)
			continue
		}

		request.Outcome = models.OutcomeSent
		sent++
		c.logger.Info("connection request sent",
			zap.String("candidate", candidate.DisplayName),
			zap.Bool("with_note", request.Note != ""))

		c.pacer.DelayBeforeNextAction(c.opts.MinActionDelay, c.opts.MaxActionDelay)
	}
	return sent, nil
}

func (c *Client) attachNote(note string) error {
	drv := c.sess.Driver()
	short := c.opts.StepTimeout / 2

	addNote, err := drv.Locate(selAddNoteButton, short)
	if err != nil {
		return err
	}
	if err := addNote.Click(); err != nil {
		return err
	}
	textarea, err := drv.Locate(selNoteTextarea, short)
	if err != nil {
		return err
	}
	return textarea.Input(note)
}

// candidateName reads the result card title for candidate i. Best effort:
// a missing or unreadable name never blocks the request.
func (c *Client) candidateName(names []browser.Element, i int) string {
	if i >= len(names) {
		return ""
	}
	text, err := names[i].Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
