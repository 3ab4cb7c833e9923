package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/app/booking"
	"github.com/m3rciful/bookingbot/app/download"
	"github.com/m3rciful/bookingbot/app/media"
	"github.com/m3rciful/bookingbot/core/bootstrap"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
	coretelegram "github.com/m3rciful/bookingbot/core/telegram"
	tghelpers "github.com/m3rciful/bookingbot/core/telegram/helpers"
	"github.com/m3rciful/bookingbot/core/telegram/middleware"
	"github.com/m3rciful/bookingbot/core/telegram/router"
	"github.com/m3rciful/bookingbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// App holds the infrastructure shared by the bot handlers.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	sessions state.Manager
	store    appointments.Store
	fetcher  media.Fetcher
	clock    func() time.Time

	router  *conversation.Router
	metrics *bootstrap.MetricsServer
}

// Bootstrap initializes logging, the database and the session store.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, Deps{
		DB:       res.DB,
		Sessions: res.Sessions,
		Store:    appointments.NewPostgresStore(res.DB),
		Fetcher: media.NewYtDlp(media.YtDlpOptions{
			Binary:    cfg.Download.YtdlpPath,
			Dir:       cfg.Download.Dir,
			MaxFileMB: cfg.Download.MaxFileMB,
			Timeout:   cfg.Download.Timeout(),
		}),
	}), nil
}

// Deps are the collaborators of App. DB may be nil in tests.
type Deps struct {
	DB       *sqlx.DB
	Sessions state.Manager
	Store    appointments.Store
	Fetcher  media.Fetcher
	Clock    func() time.Time
}

// New assembles an App from ready collaborators.
func New(cfg *Config, deps Deps) *App {
	if deps.Sessions == nil {
		deps.Sessions = bootstrap.NewSessions(cfg.Conversation)
	}
	return &App{
		cfg:      cfg,
		db:       deps.DB,
		sessions: deps.Sessions,
		store:    deps.Store,
		fetcher:  deps.Fetcher,
		clock:    deps.Clock,
	}
}

// Flows builds the conversations served by the bot.
func (a *App) Flows() ([]*conversation.Flow, error) {
	bookingFlow, err := booking.NewFlow(booking.Options{Store: a.store, Clock: a.clock})
	if err != nil {
		return nil, err
	}
	downloadFlow, err := download.NewFlow(download.Options{Fetcher: a.fetcher, MaxFileMB: a.cfg.Download.MaxFileMB})
	if err != nil {
		return nil, err
	}
	return []*conversation.Flow{bookingFlow, downloadFlow}, nil
}

// Registry publishes the flows and stateless commands.
func (a *App) Registry(flows []*conversation.Flow) *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.SetAdmin(middleware.AdminOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnReject: func(context.Context, conversation.Update) []conversation.Message {
			return []conversation.Message{conversation.Reply(msgAdminOnly)}
		},
	})

	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: msgStaleButton})
	})

	for _, f := range flows {
		reg.RegisterFlow(f)
	}
	booking.NewCommands(a.store).Register(reg)
	registerHelp(reg, a.cfg.Download.MaxFileMB)
	registerStats(reg, a.stats)
	return reg
}

// Router builds the conversation router on top of sender. /stats reports
// the router built last.
func (a *App) Router(sender conversation.Sender, reg *coretelegram.Registry, flows []*conversation.Flow) (*conversation.Router, error) {
	r, err := conversation.NewRouter(conversation.Options{
		Sessions: a.sessions,
		Sender:   sender,
		Commands: reg,
	}, flows...)
	if err != nil {
		return nil, err
	}
	a.router = r
	return r, nil
}

func (a *App) stats() map[string]int {
	if a.router == nil {
		return map[string]int{}
	}
	return a.router.Stats()
}

// TelegramRunOptions describes how the Telegram runtime serves the app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	flows, err := a.Flows()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}
	reg := a.Registry(flows)
	core := a.cfg.CoreConfig()

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		BuildRoutes: func(rt coretelegram.Runtime) ([]coretelegram.Route, error) {
			r, err := a.Router(coretelegram.NewTransport(rt.Bot, rt.Dispatcher), reg, flows)
			if err != nil {
				return nil, err
			}
			routes := router.TextRoutes(r, router.TextOptions{
				UnknownText: func(c tele.Context) error {
					return tghelpers.SendText(c, msgUnknown)
				},
			})
			routes = append(routes, router.CallbackRoute(r, reg))
			routes = append(routes, router.CommandRoutes(reg, r)...)
			return routes, nil
		},
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			srv, err := bootstrap.ServeMetrics(core.Metrics.Listen)
			if err != nil {
				return fmt.Errorf("app: metrics listener: %w", err)
			}
			a.metrics = srv
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			return a.Close(ctx)
		},
	}, nil
}

// Close releases the metrics listener and the database.
func (a *App) Close(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(stopCtx); err != nil {
		logger.Warn(ctx, "app", "metrics.shutdown_failed", slog.String("err", err.Error()))
	}
	a.metrics = nil
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
