// Package server wires and runs the sync server: it opens the database,
// applies migrations, constructs the services and starts the HTTP endpoint,
// shutting everything down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/stacknotes/syncserver/internal/logging"
	"github.com/stacknotes/syncserver/internal/server/config"
	"github.com/stacknotes/syncserver/internal/server/httpapi"
	"github.com/stacknotes/syncserver/internal/server/mail"
	"github.com/stacknotes/syncserver/internal/server/repositories/repomanager"
	"github.com/stacknotes/syncserver/internal/server/services"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var notifier mail.Notifier = mail.NopNotifier{}
	if cfg.SMTPHost != "" {
		notifier = mail.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	us := services.NewUserService(db, rm, notifier, logger, cfg)
	is := services.NewItemService(db, rm, logger, cfg)
	es := services.NewExtensionSettingsService(db, rm)

	httpServer := httpapi.NewServer(cfg.EndpointAddrHTTP, logger, us, is, es)

	return &App{config: cfg, logger: logger, db: db, httpServer: httpServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
