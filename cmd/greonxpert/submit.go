package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/greonxpert/console/internal/tui"
	"github.com/greonxpert/console/pkg/core"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/uploads"
	"github.com/greonxpert/console/pkg/wizard"
)

var servePreviews string

type modelFactory func(ctx context.Context, backend wizard.Backend, reg *uploads.PreviewRegistry, opts tui.Options) (*tui.WizardModel, error)

var submitCmd = &cobra.Command{
	Use:   "submit [link-token]",
	Short: "Submit a blog post, video or resource",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args, tui.NewContentModel)
	},
}

var testimonialCmd = &cobra.Command{
	Use:   "testimonial [link-token]",
	Short: "Submit a testimonial",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args, tui.NewTestimonialModel)
	},
}

func init() {
	for _, c := range []*cobra.Command{submitCmd, testimonialCmd} {
		c.Flags().StringVar(&servePreviews, "serve-previews", "", "serve staged file previews on this address, e.g. localhost:8089")
	}
}

func runWizard(cmd *cobra.Command, args []string, newModel modelFactory) error {
	logger, closer, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	token := cfg.Wizard.LinkToken
	if len(args) == 1 {
		token = args[0]
	}
	if token == "" {
		return errors.New("a link token is required (argument or wizard.link_token)")
	}

	client, err := newAPIClient(logger)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	base := cfg.Wizard.PreviewBaseURL
	if servePreviews != "" {
		base = "http://" + servePreviews + "/previews/"
	}
	reg := uploads.NewPreviewRegistry(base)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if servePreviews != "" {
		srv, err := previewServer(ctx, servePreviews, reg, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}

	m, err := newModel(ctx, client, reg, tui.Options{
		LinkToken: token,
		Flashes:   core.NewFlashes(cfg.Wizard.FlashTTL),
		Logger:    logger.With(logging.Component("wizard")),
	})
	if err != nil {
		return err
	}
	defer m.Close()

	g.Go(func() error {
		defer cancel()
		_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if m.Submitted() {
		fmt.Fprintln(cmd.OutOrStdout(), m.Wizard().Confirmation())
	}
	return nil
}

// previewServer exposes the registry so a browser can open staged files.
func previewServer(ctx context.Context, addr string, reg *uploads.PreviewRegistry, logger logging.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	r := chi.NewRouter()
	r.Use(logging.RequestLogger(logger))
	r.Handle("/previews/*", reg)

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("preview server stopped", logging.Err(err))
		}
	}()
	logger.Info("serving previews", logging.String("addr", ln.Addr().String()))
	return srv, nil
}
