// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"healthkit-link/internal/config"
	"healthkit-link/internal/handler"
	"healthkit-link/internal/link"
	"healthkit-link/internal/protocol"
	"healthkit-link/internal/routes"
	"healthkit-link/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	transport  protocol.Transport
	controller *link.Controller
	eventBus   *handler.EventBus
}

// @title HealthKit Link API
// @version 1.0.0
// @description Connection lifecycle and telemetry relay for the BLE health kit.
// @description Link commands are served under /api/v1, live events on /ws/events.

// @contact.name HealthKit Link Team

// @host localhost:8084
// @BasePath /api/v1

// @schemes http
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeLink(); err != nil {
		return nil, fmt.Errorf("failed to initialize link: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeLink wires transport, controller and event bus
func (app *Application) initializeLink() error {
	linkCfg := app.config.Link

	transport, err := protocol.CreateTransport(protocol.TransportType(linkCfg.Transport), protocol.Options{
		Serial: protocol.SerialConfig{
			BaudRate: linkCfg.Serial.BaudRate,
			DataBits: linkCfg.Serial.DataBits,
			StopBits: linkCfg.Serial.StopBits,
			Parity:   linkCfg.Serial.Parity,
		},
		TCP: protocol.TCPConfig{
			ConnectTimeout: linkCfg.TCP.ConnectTimeout,
			KeepAlive:      linkCfg.TCP.KeepAlive,
		},
	}, app.logger)
	if err != nil {
		return err
	}

	app.transport = transport
	app.eventBus = handler.NewEventBus(app.logger)
	app.controller = link.NewController(transport, app.eventBus, app.logger)

	app.logger.Info("Link initialized",
		zap.String("transport", linkCfg.Transport),
		zap.String("device_id", linkCfg.DeviceID),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	router := routes.NewRouter(app.config, app.logger, app.controller, app.eventBus).SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
}

// Start runs the server until a shutdown signal arrives
func (app *Application) Start() error {
	go app.eventBus.Start()

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	if app.config.Link.AutoConnect {
		if err := app.controller.Connect(app.config.Link.DeviceID); err != nil {
			app.logger.Warn("Auto-connect rejected", zap.Error(err))
		}
	}

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	if err := app.controller.Disconnect(); err == nil {
		linkCtx, linkCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.controller.WaitIdle(linkCtx); err != nil {
			app.logger.Warn("Link did not report disconnect before shutdown",
				zap.Stringer("state", app.controller.State()),
			)
		}
		linkCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.eventBus.Close()

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
