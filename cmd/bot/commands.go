package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prosparity/linkedin-bot/internal/browser"
	"github.com/prosparity/linkedin-bot/internal/chatbot"
	"github.com/prosparity/linkedin-bot/internal/chatlog"
	"github.com/prosparity/linkedin-bot/internal/crm"
	"github.com/prosparity/linkedin-bot/internal/linkedin"
	"github.com/prosparity/linkedin-bot/internal/pacer"
	"github.com/prosparity/linkedin-bot/internal/session"
	"github.com/prosparity/linkedin-bot/internal/storage"
	"github.com/prosparity/linkedin-bot/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath  string
	maxRequests int
	inviteNote  string
)

var rootCmd = &cobra.Command{
	Use:           "bot",
	Short:         "LinkedIn outreach and messaging bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Search for target profiles and send connection requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), true, false)
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Answer recent inbound messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), false, true)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an outreach pass followed by a reply pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), true, true)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file (optional)")
	outreachCmd.Flags().IntVar(&maxRequests, "max", 0, "cap on connection requests this pass (0 = quota-bound)")
	outreachCmd.Flags().StringVar(&inviteNote, "note", "", "note to attach to connection requests")
	runCmd.Flags().IntVar(&maxRequests, "max", 0, "cap on connection requests this pass (0 = quota-bound)")
	runCmd.Flags().StringVar(&inviteNote, "note", "", "note to attach to connection requests")
	rootCmd.AddCommand(outreachCmd, replyCmd, runCmd)
}

// run wires the full stack and executes the requested passes. Per-candidate
// and per-message skips do not fail the run; a dead session does.
func run(ctx context.Context, outreach, reply bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	store, err := openStorage(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", zap.Error(err))
		return err
	}
	defer store.Close()

	logbook, err := chatlog.Open(cfg.Logging.ChatLog, cfg.Logging.ErrorLog)
	if err != nil {
		logger.Error("failed to open interaction log", zap.Error(err))
		return err
	}
	defer logbook.Close()

	leads := crm.NewClient(cfg.CRM.Endpoint, cfg.CRM.Token, store, logbook, logger)
	bot := chatbot.New(newResponder(cfg, logger), leads, store, logbook, logger)

	drv, err := browser.LaunchChrome(browser.Config{Headless: cfg.Browser.Headless}, logger)
	if err != nil {
		logger.Error("failed to launch browser", zap.Error(err))
		return err
	}

	sess := session.New(drv, logger)
	defer sess.Close()

	if err := sess.Login(session.Credentials{
		Email:    cfg.LinkedIn.Email,
		Password: cfg.LinkedIn.Password,
	}); err != nil {
		logger.Error("authentication failed", zap.Error(err))
		return err
	}

	p := pacer.NewWithStore(ctx, store, logger)
	client := linkedin.NewClient(sess, p, bot, store, logbook, logger, linkedin.Options{
		MaxConnectionsPerDay: cfg.Limits.MaxConnectionsPerDay,
		MaxMessagesPerDay:    cfg.Limits.MaxMessagesPerDay,
		MinActionDelay:       time.Duration(cfg.Limits.MinActionDelaySec) * time.Second,
		MaxActionDelay:       time.Duration(cfg.Limits.MaxActionDelaySec) * time.Second,
	})

	var sent, answered int
	if outreach {
		keywords := append(append([]string{}, cfg.Targets.Titles...), cfg.Targets.Industries...)
		location := ""
		if len(cfg.Targets.Locations) > 0 {
			location = cfg.Targets.Locations[0]
		}
		if err := client.Search(ctx, keywords, location); err != nil {
			// Fatal to the search pass only; the reply pass may still run.
			logger.Error("search pass failed", zap.Error(err))
		} else {
			sent, err = client.SendConnectionRequests(ctx, maxRequests, inviteNote)
			if err != nil {
				logger.Error("outreach pass aborted", zap.Error(err))
				return err
			}
		}
	}

	if reply {
		answered, err = client.ReplyToMessages(ctx)
		if err != nil {
			logger.Error("reply pass aborted", zap.Error(err))
			return err
		}
	}

	logger.Info("run complete",
		zap.Int("requests_sent", sent),
		zap.Int("messages_answered", answered))
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}
	return zapCfg.Build()
}

func openStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch {
	case cfg.Database.UseInMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case cfg.Database.UsePostgres:
		logger.Info("Using PostgreSQL storage")
		return storage.NewPostgresStorage(storage.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
		return storage.NewSQLiteStorage(cfg.Database.Path)
	}
}

func newResponder(cfg *config.Config, logger *zap.Logger) chatbot.Responder {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("no OpenAI key configured, general messages get the fallback template")
		return chatbot.StaticResponder{}
	}
	return chatbot.NewGPTResponder(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
}
