// Package chatlog is the append-only record of exchanged messages and error
// events: one JSON object per line, never rewritten. From the bot's
// perspective it is a write-only sink; consumers stream the files line by
// line.
package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prosparity/linkedin-bot/internal/models"
)

type interactionEntry struct {
	Timestamp   string        `json:"timestamp"`
	UserMessage string        `json:"user_message"`
	BotResponse string        `json:"bot_response"`
	Intent      models.Intent `json:"intent"`
}

type errorEntry struct {
	Timestamp    string `json:"timestamp"`
	ErrorMessage string `json:"error_message"`
	Response     string `json:"response"`
}

// Logbook appends interaction and error entries to two JSONL files.
type Logbook struct {
	mu   sync.Mutex
	chat *os.File
	errs *os.File
	now  func() time.Time
}

// Open opens (or creates) the chat and error log files for appending.
func Open(chatPath, errorPath string) (*Logbook, error) {
	chat, err := os.OpenFile(chatPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	errs, err := os.OpenFile(errorPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		chat.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}
	return &Logbook{chat: chat, errs: errs, now: time.Now}, nil
}

// Interaction records one exchanged message pair with its final intent.
func (l *Logbook) Interaction(userMessage, botResponse string, intent models.Intent) error {
	return l.append(l.chat, interactionEntry{
		Timestamp:   l.now().Format(time.RFC3339),
		UserMessage: userMessage,
		BotResponse: botResponse,
		Intent:      intent,
	})
}

// Error records a failure event, optionally with the raw response body that
// caused it.
func (l *Logbook) Error(message, response string) error {
	return l.append(l.errs, errorEntry{
		Timestamp:    l.now().Format(time.RFC3339),
		ErrorMessage: message,
		Response:     response,
	})
}

// System records a bot-lifecycle event (retraining, pass summaries) as an
// interaction attributed to the system.
func (l *Logbook) System(message string) error {
	return l.Interaction("System", message, models.IntentSystemUpdate)
}

func (l *Logbook) append(f *os.File, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

func (l *Logbook) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cerr := l.chat.Close()
	if err := l.errs.Close(); err != nil {
		return err
	}
	return cerr
}
