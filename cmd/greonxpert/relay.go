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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/greonxpert/console/pkg/health"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/notify"
	"github.com/greonxpert/console/pkg/pubsub"
	"github.com/greonxpert/console/pkg/shutdown"
)

var relayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the push-notification relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closer.Close()

		if relayAddr != "" {
			cfg.Relay.Address = relayAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ps, err := newPubSub(ctx, logger)
		if err != nil {
			return err
		}

		hub := notify.NewHub(ps, notify.HubConfig{
			AllowedOrigins: cfg.Relay.AllowedOrigins,
			PublishSecret:  cfg.Relay.PublishSecret,
			MaxPerIP:       cfg.Relay.MaxPerIP,
		}, logger.With(logging.Component("hub")))

		checker := health.New(version)
		checker.Register(health.PubSubCheck(ps))
		checker.Register(health.CapacityCheck("connections", hub.ConnCount, cfg.Relay.MaxConnections))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(logging.RequestLogger(logger))
		r.Method(http.MethodGet, "/healthz", checker.Handler())
		hub.Routes(r)

		srv := &http.Server{
			Addr:              cfg.Relay.Address,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("relay listening",
				logging.String("addr", cfg.Relay.Address),
				logging.String("pubsub", cfg.Relay.PubSub),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		// Websocket connections are hijacked, so Shutdown does not wait
		// for them; the hub goes first.
		teardown := shutdown.New(10*time.Second, logger)
		teardown.AddCloser("hub", hub)
		teardown.Add("http", srv.Shutdown)
		teardown.AddCloser("pubsub", ps)
		defer teardown.Run()

		g.Go(func() error {
			<-ctx.Done()
			logger.Info("relay shutting down")
			return teardown.Run()
		})
		return g.Wait()
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "listen address (overrides relay.address)")
}

func newPubSub(ctx context.Context, logger logging.Logger) (pubsub.PubSub, error) {
	switch cfg.Relay.PubSub {
	case "", "memory":
		return pubsub.NewMemoryPubSub(logger), nil
	case "redis":
		rc := pubsub.DefaultRedisConfig()
		rc.Addr = cfg.Relay.Redis.Addr
		rc.Password = cfg.Relay.Redis.Password
		rc.DB = cfg.Relay.Redis.DB
		if cfg.Relay.Redis.Prefix != "" {
			rc.Prefix = cfg.Relay.Redis.Prefix
		}
		return pubsub.NewRedisPubSub(ctx, rc, logger)
	default:
		return nil, fmt.Errorf("unknown pubsub backend %q", cfg.Relay.PubSub)
	}
}
