package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/registrar/api"
	"github.com/jmcleod/registrar/catalog"
	"github.com/jmcleod/registrar/config"
	"github.com/jmcleod/registrar/session"
)

var (
	addr    string
	tlsCert string
	tlsKey  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the registrar web server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Addr = addr
		}
		if (tlsCert == "") != (tlsKey == "") {
			return errors.New("--tls-cert and --tls-key must be given together")
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		var opts []api.Option
		if cfg.AlertWebhookURL != "" {
			hook := api.NewAlertWebhook(cfg.AlertWebhookURL, cfg.AlertWebhookAuth, logger)
			defer hook.Close()
			opts = append(opts, api.WithAlertFunc(hook.Notify))
		}
		handler, err := newHandler(cfg, logger, opts...)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsCert != "" {
				server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
				err = server.ListenAndServeTLS(tlsCert, tlsKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		out := cmd.OutOrStdout()
		printBanner(out)
		fmt.Fprintf(out, "Starting server on %s (app: %s, auth: %s)...\n", cfg.Addr, cfg.AppURL, cfg.AuthURL)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// newHandler wires the remote auth delegate into the API and wraps it in
// the outer router.
func newHandler(cfg *config.Config, logger *slog.Logger, opts ...api.Option) (http.Handler, error) {
	key, err := cfg.AuthSecret.Open()
	if err != nil {
		return nil, fmt.Errorf("opening auth secret: %w", err)
	}
	delegate, err := session.NewRemote[catalog.UserFields](cfg.AuthURL, cfg.AuthBasePath,
		session.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		session.WithServiceSecret(key.Bytes()),
	)
	key.Destroy()
	if err != nil {
		return nil, err
	}

	opts = append([]api.Option{
		api.WithLogger(logger),
		api.WithAuthBasePath(cfg.AuthBasePath),
		api.WithTrustedProxies(cfg.TrustedProxies),
		api.WithAppURL(cfg.AppURL),
	}, opts...)
	a := api.New[catalog.UserFields](delegate, opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Mount("/", a.Router())
	return r, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides REGISTRAR_ADDR)")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
