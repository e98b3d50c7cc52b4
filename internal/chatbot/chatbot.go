// Package chatbot decides what the bot says. Fixed intents map to fixed
// templates; everything else is delegated to a statistical responder whose
// low-confidence answers are replaced by a fallback template.
package chatbot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prosparity/linkedin-bot/internal/chatlog"
	"github.com/prosparity/linkedin-bot/internal/classifier"
	"github.com/prosparity/linkedin-bot/internal/models"
	"github.com/prosparity/linkedin-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	greetingTemplate = "Hello! Welcome to Prosparity AI. How can I assist you today?"
	goodbyeTemplate  = "Goodbye! Feel free to visit us anytime at https://prosparityai.com."
	interestTemplate = "It sounds like you're interested in our offerings! " +
		"Please visit our website at https://prosparityai.com to learn more or schedule a consultation."
	websiteTemplate = "You can explore more about us directly at our official website: https://prosparityai.com"
	fallbackTemplate = "I'm not sure I fully understand your request. " +
		"Please visit https://prosparityai.com for detailed information."

	// Model answers below this confidence are discarded for the fallback
	// template. Policy constant, not derived.
	fallbackConfidenceThreshold = 0.6

	// placeholderSender stands in when the conversation exposes no sender
	// identity; it never blocks the response.
	placeholderSender = "LinkedIn User"
)

// Responder is the statistical fallback model: free-form text plus a
// confidence in [0, 1]. Implementations are swappable without touching
// classification or pacing.
type Responder interface {
	Respond(ctx context.Context, text string) (reply string, confidence float64, err error)
}

// LeadCapturer forwards a qualified lead to the CRM.
type LeadCapturer interface {
	Capture(ctx context.Context, name string) (*models.Lead, error)
}

// Bot is the response generator.
type Bot struct {
	responder Responder
	leads     LeadCapturer
	store     storage.Storage
	logbook   *chatlog.Logbook
	logger    *zap.Logger
}

func New(responder Responder, leads LeadCapturer, store storage.Storage, logbook *chatlog.Logbook, logger *zap.Logger) *Bot {
	return &Bot{
		responder: responder,
		leads:     leads,
		store:     store,
		logbook:   logbook,
		logger:    logger,
	}
}

// Reply resolves the response for one inbound message and returns it with
// the final intent (post-reclassification for low-confidence fallbacks).
// Every path writes exactly one interaction log entry before returning.
func (b *Bot) Reply(ctx context.Context, msg models.InboundMessage) (string, models.Intent) {
	intent := classifier.Classify(msg.Text)

	var response string
	switch intent {
	case models.IntentGreeting:
		response = greetingTemplate
	case models.IntentGoodbye:
		response = goodbyeTemplate
	case models.IntentWebsiteRequest:
		response = websiteTemplate
	case models.IntentInterestLead:
		response = interestTemplate
		b.captureLead(ctx, msg.SenderName)
	default:
		response, intent = b.respondGeneral(ctx, msg.Text)
	}

	b.record(ctx, msg.Text, response, intent)
	return response, intent
}

// respondGeneral delegates to the statistical responder. A responder error
// is treated like zero confidence: the fixed fallback answer goes out.
func (b *Bot) respondGeneral(ctx context.Context, text string) (string, models.Intent) {
	reply, confidence, err := b.responder.Respond(ctx, text)
	if err != nil {
		b.logger.Warn("fallback responder failed", zap.Error(err))
		return fallbackTemplate, models.IntentFallback
	}
	if confidence < fallbackConfidenceThreshold {
		b.logger.Debug("low-confidence model reply discarded",
			zap.Float64("confidence", confidence))
		return fallbackTemplate, models.IntentFallback
	}
	return reply, models.IntentGeneral
}

// captureLead pushes a lead to the CRM. Failures are already logged inside
// the bridge; they never alter the chat response.
func (b *Bot) captureLead(ctx context.Context, senderName string) {
	name := senderName
	if name == "" {
		name = placeholderSender
	}
	if _, err := b.leads.Capture(ctx, name); err != nil {
		b.logger.Warn("lead capture failed", zap.Error(err), zap.String("name", name))
	}
}

func (b *Bot) record(ctx context.Context, userMessage, botResponse string, intent models.Intent) {
	if err := b.logbook.Interaction(userMessage, botResponse, intent); err != nil {
		b.logger.Error("failed to write interaction log", zap.Error(err))
	}

	interaction := &models.Interaction{
		ID:          uuid.NewString(),
		UserMessage: userMessage,
		BotResponse: botResponse,
		Intent:      intent,
		CreatedAt:   time.Now(),
	}
	if err := b.store.SaveInteraction(ctx, interaction); err != nil {
		b.logger.Error("failed to save interaction",
			zap.Error(err),
			zap.String("interaction_id", interaction.ID))
	}
}
