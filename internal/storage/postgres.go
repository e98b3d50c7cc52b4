package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/prosparity/linkedin-bot/internal/models"
)

//go:embed schema_postgres.sql
var postgresSchema string

// PostgresStorage backs the bot with PostgreSQL, selected via DATABASE_URL.
type PostgresStorage struct {
	db *sql.DB
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewPostgresStorage(config PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) SaveInteraction(ctx context.Context, interaction *models.Interaction) error {
	query := `
		INSERT INTO interactions (id, user_message, bot_response, intent, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		interaction.ID,
		interaction.UserMessage,
		interaction.BotResponse,
		string(interaction.Intent),
		interaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving interaction: %v", err)
	}
	return nil
}

func (s *PostgresStorage) RecentInteractions(ctx context.Context, limit int) ([]*models.Interaction, error) {
	query := `
		SELECT id, user_message, bot_response, intent, created_at
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1`

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
		)
		if err := rows.Scan(
			&interaction.ID,
			&interaction.UserMessage,
			&interaction.BotResponse,
			&intent,
			&interaction.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning interaction: %v", err)
		}
		interaction.Intent = models.Intent(intent)
		interactions = append(interactions, &interaction)
	}
	return interactions, rows.Err()
}

func (s *PostgresStorage) SaveLead(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (id, name, email, source, crm_status, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		lead.ID,
		lead.Name,
		lead.Email,
		lead.Source,
		string(lead.CRMStatus),
		lead.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving lead: %v", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateLeadStatus(ctx context.Context, id string, status models.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_status = $1 WHERE id = $2`, string(status), id)
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

func (s *PostgresStorage) ActionWindow(ctx context.Context) (map[string]int, time.Time, error) {
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
			resetTS time.Time
		)
		if err := rows.Scan(&kind, &count, &resetTS); err != nil {
			return nil, time.Time{}, fmt.Errorf("error scanning action window: %v", err)
		}
		counts[kind] = count
		if resetTS.After(resetAt) {
			resetAt = resetTS
		}
	}
	return counts, resetAt, rows.Err()
}

func (s *PostgresStorage) SaveActionWindow(ctx context.Context, counts map[string]int, resetAt time.Time) error {
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
			`INSERT INTO action_window (kind, count, reset_at) VALUES ($1, $2, $3)`,
			kind, count, resetAt); err != nil {
			return fmt.Errorf("error saving action window: %v", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStorage) SeenConversation(ctx context.Context, conversationID, fingerprint string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM conversations WHERE id = $1`, conversationID).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error querying conversation: %v", err)
	}
	return stored == fingerprint, nil
}

func (s *PostgresStorage) MarkConversation(ctx context.Context, conversationID, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, fingerprint, replied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, replied_at = EXCLUDED.replied_at`,
		conversationID, fingerprint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error marking conversation: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
