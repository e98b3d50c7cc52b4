package linkedin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prosparity/linkedin-bot/internal/models"
	"github.com/prosparity/linkedin-bot/internal/pacer"
	"github.com/prosparity/linkedin-bot/internal/session"
	"go.uber.org/zap"
)

// ReplyToMessages opens the messaging inbox, walks the most recent
// conversations, and answers the last inbound message in each through the
// chatbot. Conversations already answered with the same last message are
// skipped, as are conversations where any UI step fails. Returns the number
// of replies actually delivered.
func (c *Client) ReplyToMessages(ctx context.Context) (int, error) {
	if !c.sess.EnsureAuthenticated() {
		return 0, session.ErrNotAuthenticated
	}

	drv := c.sess.Driver()
	if err := drv.Navigate(messagingURL, c.opts.StepTimeout); err != nil {
		return 0, fmt.Errorf("open messaging inbox: %w", err)
	}

	links, err := drv.LocateAll(selConversationLink, c.opts.StepTimeout)
	if err != nil {
		c.logger.Info("no conversations in inbox")
		return 0, nil
	}

	// Resolve hrefs up front: the link elements go stale once we navigate
	// into the first conversation.
	refs := make([]string, 0, c.opts.MaxConversations)
	for _, link := range links {
		if len(refs) >= c.opts.MaxConversations {
			break
		}
		href, err := link.Attribute("href")
		if err != nil || href == "" {
			continue
		}
		refs = append(refs, href)
	}

	answered := 0
	limit := c.opts.MaxMessagesPerDay
	for _, ref := range refs {
		convoURL := ref
		if strings.HasPrefix(convoURL, "/") {
			convoURL = baseURL + convoURL
		}
		if err := drv.Navigate(convoURL, c.opts.StepTimeout); err != nil {
			c.logger.Warn("skipping conversation, failed to open",
				zap.String("conversation", ref),
				zap.Error(err))
			c.recordFailure("conversation open failed", ref, err)
			continue
		}

		msg, ok := c.readLastMessage(ctx, ref)
		if !ok {
			continue
		}

		if err := c.pacer.TryReserve(ctx, pacer.ActionMessage, limit); err != nil {
			if errors.Is(err, pacer.ErrQuotaExceeded) {
				c.logger.Info("daily message quota exhausted, stopping pass",
					zap.Int("answered", answered))
				return answered, nil
			}
			return answered, err
		}

		response, intent := c.bot.Reply(ctx, msg)
		if err := c.deliver(response); err != nil {
			c.logger.Warn("failed to deliver reply",
				zap.String("conversation", ref),
				zap.Error(err))
			c.recordFailure("reply delivery failed", ref, err)
			continue
		}

		answered++
		c.logger.Info("replied to conversation",
			zap.String("conversation", ref),
			zap.String("intent", string(intent)))
		if err := c.store.MarkConversation(ctx, msg.ConversationID, fingerprint(msg.Text)); err != nil {
			c.logger.Warn("failed to mark conversation answered", zap.Error(err))
		}

		c.pacer.DelayBeforeNextAction(c.opts.MinActionDelay, c.opts.MaxActionDelay)
	}
	return answered, nil
}

// readLastMessage extracts the last inbound message of the open
// conversation. ok is false when there is nothing to answer: no messages,
// an unreadable body, or a message we already answered.
func (c *Client) readLastMessage(ctx context.Context, ref string) (models.InboundMessage, bool) {
	drv := c.sess.Driver()

	bodies, err := drv.LocateAll(selMessageBody, c.opts.StepTimeout)
	if err != nil || len(bodies) == 0 {
		return models.InboundMessage{}, false
	}
	text, err := bodies[len(bodies)-1].Text()
	if err != nil {
		c.logger.Warn("failed to read last message", zap.String("conversation", ref), zap.Error(err))
		return models.InboundMessage{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.InboundMessage{}, false
	}

	seen, err := c.store.SeenConversation(ctx, ref, fingerprint(text))
	if err != nil {
		c.logger.Warn("failed to check conversation state", zap.Error(err))
	} else if seen {
		c.logger.Debug("conversation already answered", zap.String("conversation", ref))
		return models.InboundMessage{}, false
	}

	return models.InboundMessage{
		ConversationID: ref,
		Text:           text,
		SenderName:     c.senderName(),
		ReceivedAt:     time.Now(),
	}, true
}

// senderName reads the name attached to the latest message group. Best
// effort only; an empty name falls back to a placeholder downstream.
func (c *Client) senderName() string {
	names, err := c.sess.Driver().LocateAll(selSenderName, time.Second)
	if err != nil || len(names) == 0 {
		return ""
	}
	name, err := names[len(names)-1].Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

// deliver types the response into the message box and sends it.
func (c *Client) deliver(response string) error {
	drv := c.sess.Driver()
	return c.sess.PerformBounded("send message", c.opts.StepTimeout, c.opts.MaxRetries, func(timeout time.Duration) error {
		box, err := drv.Locate(selMessageBox, timeout)
		if err != nil {
			return err
		}
		if err := box.Click(); err != nil {
			return err
		}
		if err := box.Input(response); err != nil {
			return err
		}
		return box.PressEnter()
	})
}

// fingerprint identifies a message body without storing its text twice.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
