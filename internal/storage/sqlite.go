package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/prosparity/linkedin-bot/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLiteStorage is the default backend: a single-file database at the
// configured path. Pass ":memory:" for an in-process database (tests).
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %v", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) SaveInteraction(ctx context.Context, interaction *models.Interaction) error {
	query := `
		INSERT INTO interactions (id, user_message, bot_response, intent, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		interaction.ID,
		interaction.UserMessage,
		interaction.BotResponse,
		string(interaction.Intent),
		interaction.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("error saving interaction: %v", err)
	}
	return nil
}

func (s *SQLiteStorage) RecentInteractions(ctx context.Context, limit int) ([]*models.Interaction, error) {
	query := `
		SELECT id, user_message, bot_response, intent, created_at
		FROM interactions
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying interactions: %v", err)
	}
	defer rows.Close()

	var interactions []*models.Interaction
	for rows.Next() {
		var (
			interaction models.Interaction
			intent      string
			createdAt   string
		)
		if err := rows.Scan(
			&interaction.ID,
			&interaction.UserMessage,
			&interaction.BotResponse,
			&intent,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning interaction: %v", err)
		}
		interaction.Intent = models.Intent(intent)
		interaction.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		interactions = append(interactions, &interaction)
	}
	return interactions, rows.Err()
}

func (s *SQLiteStorage) SaveLead(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (id, name, email, source, crm_status, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		lead.ID,
		lead.Name,
		lead.Email,
		lead.Source,
		string(lead.CRMStatus),
		lead.CapturedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("error saving lead: %v", err)
	}
	return nil
}

func (s *SQLiteStorage) UpdateLeadStatus(ctx context.Context, id string, status models.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("error updating lead status: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating lead status: %v", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) ActionWindow(ctx context.Context) (map[string]int, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, count, reset_at FROM action_window`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("error querying action window: %v", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	var resetAt time.Time
	for rows.Next() {
		var (
			kind    string
			count   int
			resetTS string
		)
		if err := rows.Scan(&kind, &count, &resetTS); err != nil {
			return nil, time.Time{}, fmt.Errorf("error scanning action window: %v", err)
		}
		counts[kind] = count
		if parsed, err := time.Parse(time.RFC3339Nano, resetTS); err == nil && parsed.After(resetAt) {
			resetAt = parsed
		}
	}
	return counts, resetAt, rows.Err()
}

func (s *SQLiteStorage) SaveActionWindow(ctx context.Context, counts map[string]int, resetAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error saving action window: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_window`); err != nil {
		return fmt.Errorf("error saving action window: %v", err)
	}
	for kind, count := range counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO action_window (kind, count, reset_at) VALUES (?, ?, ?)`,
			kind, count, resetAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("error saving action window: %v", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) SeenConversation(ctx context.Context, conversationID, fingerprint string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM conversations WHERE id = ?`, conversationID).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error querying conversation: %v", err)
	}
	return stored == fingerprint, nil
}

func (s *SQLiteStorage) MarkConversation(ctx context.Context, conversationID, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, fingerprint, replied_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET fingerprint = excluded.fingerprint, replied_at = excluded.replied_at`,
		conversationID, fingerprint, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("error marking conversation: %v", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
