package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prosparity/linkedin-bot/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage persists conversational state: exchanged interactions, captured
// leads, the quota window, and which conversations were already answered.
type Storage interface {
	SaveInteraction(ctx context.Context, interaction *models.Interaction) error
	RecentInteractions(ctx context.Context, limit int) ([]*models.Interaction, error)

	SaveLead(ctx context.Context, lead *models.Lead) error
	UpdateLeadStatus(ctx context.Context, id string, status models.LeadStatus) error

	// ActionWindow returns the persisted quota counters and the time the
	// current rolling window ends. A zero resetAt means no window is open.
	ActionWindow(ctx context.Context) (counts map[string]int, resetAt time.Time, err error)
	SaveActionWindow(ctx context.Context, counts map[string]int, resetAt time.Time) error

	// SeenConversation reports whether the conversation was already answered
	// with the same last inbound message (identified by fingerprint).
	SeenConversation(ctx context.Context, conversationID, fingerprint string) (bool, error)
	MarkConversation(ctx context.Context, conversationID, fingerprint string) error

	Close() error
}
