package models

import "time"

// Intent is the closed set of conversational intents the bot understands.
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentGoodbye        Intent = "goodbye"
	IntentInterestLead   Intent = "interest_lead"
	IntentWebsiteRequest Intent = "website_request"
	IntentGeneral        Intent = "general"
	IntentFallback       Intent = "fallback"
	IntentSystemUpdate   Intent = "system_update"
)

// InboundMessage is a message received from a LinkedIn conversation.
type InboundMessage struct {
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	SenderName     string    `json:"sender_name,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Interaction records one exchanged message pair with its resolved intent.
type Interaction struct {
	ID          string    `json:"id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Intent      Intent    `json:"intent"`
	CreatedAt   time.Time `json:"created_at"`
}

// Candidate is a profile surfaced by a people search. Candidates live only
// for the duration of a search pass and are never persisted.
type Candidate struct {
	ProfileRef    string `json:"profile_ref"`
	DisplayName   string `json:"display_name"`
	SearchContext string `json:"search_context"`
}

// RequestOutcome is the terminal state of a connection request attempt.
type RequestOutcome string

const (
	OutcomeSent    RequestOutcome = "sent"
	OutcomeSkipped RequestOutcome = "skipped"
	OutcomeFailed  RequestOutcome = "failed"
)

// ConnectionRequest is one connect attempt against a candidate. Immutable
// once its outcome is recorded.
type ConnectionRequest struct {
	Candidate Candidate      `json:"candidate"`
	Note      string         `json:"note,omitempty"`
	Outcome   RequestOutcome `json:"outcome"`
}

// LeadStatus tracks the CRM delivery state of a captured lead.
type LeadStatus string

const (
	LeadPending  LeadStatus = "pending"
	LeadAccepted LeadStatus = "accepted"
	LeadRejected LeadStatus = "rejected"
)

// Lead is a sales-qualified contact captured from a conversation. The email
// is synthesized from the display name and is not a deliverable address.
type Lead struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Source     string     `json:"source"`
	CapturedAt time.Time  `json:"captured_at"`
	CRMStatus  LeadStatus `json:"crm_status"`
}
