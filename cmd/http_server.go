package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/admin-dashboard/internal/auth"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/internal/transport/rest"
	"github.com/frahmantamala/admin-dashboard/internal/transport/swagger"
	"github.com/frahmantamala/admin-dashboard/internal/user"
)

var openAPIPath string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg := mustLoadConfig()

	app, err := newApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := app.Logger

	if _, err := swagger.LoadDocument(context.Background(), openAPIPath); err != nil {
		lg.Warn("openapi document unavailable", "path", openAPIPath, "error", err)
	}

	var scheduler *session.Scheduler
	if cfg.Session.HousekeepingInServer {
		scheduler, err = newScheduler(app)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create session scheduler: %v\n", err)
			os.Exit(1)
		}
		scheduler.Start()
	}

	deps, err := routeDependencies(app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build routes: %v\n", err)
		app.Close()
		os.Exit(1)
	}
	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("Starting HTTP server", "address", addr, "env", cfg.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			app.Close()
			os.Exit(1)
		}
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	app.Close()
	lg.Info("Server stopped")
}

func routeDependencies(app *application) (rest.Dependencies, error) {
	cfg := app.Config
	cookie := auth.CookieConfig{
		Name:   cfg.Session.CookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.CookieSecure,
	}

	clientIP, err := transport.NewClientIPResolver(cfg.RateLimit.Proxies())
	if err != nil {
		return rest.Dependencies{}, err
	}
	authHandler := auth.NewHandler(app.Auth, cookie)
	authHandler.ClientIP = clientIP.IP

	health := rest.NewHealthHandler(app.DB.DB)
	if app.Redis != nil {
		health.WithRedis(app.Redis)
	}
	if app.AMQP != nil {
		conn := app.AMQP
		health.WithCheck("rabbitmq", func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		})
	}

	deps := rest.Dependencies{
		Health:         health,
		AuthHandler:    authHandler,
		AuthMiddleware: auth.NewMiddleware(app.Auth, cookie),
		RBAC:           auth.NewRBACAuthorization(app.Logger),
		UserHandler:    user.NewHandler(app.Accounts, app.Manager),
		SessionHandler: session.NewHandler(app.Manager),
		LoginLimiter:   app.loginLimiter(),
		ClientIP:       clientIP,
		Metrics:        app.Metrics,
		AllowedOrigins: cfg.Server.Origins(),
		OpenAPIPath:    openAPIPath,
		Logger:         app.Logger,
	}
	if cfg.Observability.Metrics.Enabled {
		deps.MetricsPath = cfg.Observability.Metrics.Path
	}
	return deps, nil
}

func init() {
	httpServerCmd.Flags().StringVar(&openAPIPath, "openapi", "./api/openapi.yml", "OpenAPI document served at /openapi.yml")
}
