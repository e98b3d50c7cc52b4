// Package crm submits captured leads to an external CRM endpoint. Delivery
// is best-effort: a failed or unreachable CRM never fails the conversation
// that produced the lead.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prosparity/linkedin-bot/internal/chatlog"
	"github.com/prosparity/linkedin-bot/internal/models"
	"github.com/prosparity/linkedin-bot/internal/storage"
	"go.uber.org/zap"
)

// ErrTransport marks a network-level failure reaching the CRM. The lead
// stays pending; the surrounding conversation is unaffected.
var ErrTransport = errors.New("crm transport failure")

const leadSource = "LinkedIn Chatbot"

type leadPayload struct {
	FirstName   string `json:"FirstName"`
	LastName    string `json:"LastName"`
	Email       string `json:"Email"`
	LeadSource  string `json:"LeadSource"`
	Description string `json:"Description"`
}

// Client posts qualified leads to the CRM and records the outcome.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	store    storage.Storage
	logbook  *chatlog.Logbook
	logger   *zap.Logger
}

func NewClient(endpoint, token string, store storage.Storage, logbook *chatlog.Logbook, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: 15 * time.Second},
		store:    store,
		logbook:  logbook,
		logger:   logger,
	}
}

// Capture creates a Lead for name and submits it. The email is synthesized
// from the display name: no real address is known at capture time, so the
// value is deliberately non-deliverable (.invalid TLD).
func (c *Client) Capture(ctx context.Context, name string) (*models.Lead, error) {
	lead := &models.Lead{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      placeholderEmail(name),
		Source:     leadSource,
		CapturedAt: time.Now(),
		CRMStatus:  models.LeadPending,
	}
	if err := c.store.SaveLead(ctx, lead); err != nil {
		c.logger.Error("failed to save lead", zap.Error(err), zap.String("lead_id", lead.ID))
	}

	first, last := splitName(name)
	payload := leadPayload{
		FirstName:   first,
		LastName:    last,
		Email:       lead.Email,
		LeadSource:  leadSource,
		Description: fmt.Sprintf("Inbound lead captured via LinkedIn chatbot on %s", lead.CapturedAt.Format(time.RFC3339)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return lead, fmt.Errorf("marshal lead payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return lead, fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("crm request failed", zap.Error(err), zap.String("lead_id", lead.ID))
		if logErr := c.logbook.Error("CRM Integration Failed", err.Error()); logErr != nil {
			c.logger.Error("failed to record crm error", zap.Error(logErr))
		}
		return lead, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		lead.CRMStatus = models.LeadAccepted
		c.setStatus(ctx, lead)
		if err := c.logbook.System(fmt.Sprintf("CRM Integration Success: lead added: %s", name)); err != nil {
			c.logger.Error("failed to record crm success", zap.Error(err))
		}
		return lead, nil
	}

	// Any non-201 is a rejection; keep the raw body for diagnosis.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	lead.CRMStatus = models.LeadRejected
	c.setStatus(ctx, lead)
	c.logger.Warn("crm rejected lead",
		zap.Int("status", resp.StatusCode),
		zap.String("lead_id", lead.ID))
	if err := c.logbook.Error("CRM Integration Failed", string(raw)); err != nil {
		c.logger.Error("failed to record crm rejection", zap.Error(err))
	}
	return lead, nil
}

func (c *Client) setStatus(ctx context.Context, lead *models.Lead) {
	if err := c.store.UpdateLeadStatus(ctx, lead.ID, lead.CRMStatus); err != nil {
		c.logger.Error("failed to update lead status",
			zap.Error(err),
			zap.String("lead_id", lead.ID),
			zap.String("status", string(lead.CRMStatus)))
	}
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "LinkedIn", "User"
	}
	return parts[0], parts[len(parts)-1]
}

func placeholderEmail(name string) string {
	compact := strings.ToLower(strings.Join(strings.Fields(name), ""))
	if compact == "" {
		compact = "linkedinuser"
	}
	return compact + "@leads.invalid"
}
