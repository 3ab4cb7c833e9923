package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/bookingbot/core/config"
	"github.com/m3rciful/bookingbot/core/conversation"
	coredatabase "github.com/m3rciful/bookingbot/core/database"
	"github.com/m3rciful/bookingbot/core/logger"
	"github.com/m3rciful/bookingbot/core/telegram/state"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB       *sqlx.DB
	Sessions state.Manager
}

// Run initializes the logger, connects to the database, applies migrations
// and creates the conversation session store.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return &Result{DB: db, Sessions: NewSessions(opts.Config.Conversation)}, nil
}

// NewSessions builds the in-memory session store. Expired sessions are
// counted per flow.
func NewSessions(cfg coreconfig.ConversationConfig) state.Manager {
	return state.NewMemoryManager(state.Options{
		IdleTimeout:     cfg.IdleTimeout(),
		CleanupInterval: cfg.CleanupInterval(),
		OnExpire: func(key state.Key, _ state.State) {
			conversation.SessionsExpired.WithLabelValues(key.Flow).Inc()
		},
	})
}
