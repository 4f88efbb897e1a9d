package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/greonxpert/console/internal/tui"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/notify"
)

var (
	watchCodec string
	watchRelay string
)

var watchCmd = &cobra.Command{
	Use:   "watch [rooms...]",
	Short: "Follow admin lists live through the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer, err := newLogger(true)
		if err != nil {
			return err
		}
		defer closer.Close()

		rooms := args
		if len(rooms) == 0 {
			rooms = notify.Rooms
		}
		for _, room := range rooms {
			if !notify.ValidRoom(room) {
				return fmt.Errorf("invalid room %q", room)
			}
		}

		codecName := cfg.Watch.Codec
		if watchCodec != "" {
			codecName = watchCodec
		}
		codec, err := notify.CodecByName(codecName)
		if err != nil {
			return err
		}
		url := cfg.Watch.URL
		if watchRelay != "" {
			url = watchRelay
		}

		api, err := newAPIClient(logger)
		if err != nil {
			return err
		}
		defer api.CloseIdleConnections()

		client := notify.NewClient(url,
			notify.WithRooms(rooms...),
			notify.WithCodec(codec),
			notify.WithClientLogger(logger.With(logging.Component("relay-client"))),
		)
		model := tui.NewWatchModel(api, rooms,
			notify.WithRefetchLimit(rate.Every(cfg.Watch.RefreshEvery), 1),
			notify.WithPanelLogger(logger.With(logging.Component("panel"))),
		)
		defer model.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error { return client.Run(ctx) })
		g.Go(func() error {
			for ev := range client.Events() {
				model.Apply(ev)
			}
			return nil
		})
		g.Go(func() error {
			defer cancel()
			_, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
		return g.Wait()
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchCodec, "codec", "", "wire codec: json or msgpack")
	watchCmd.Flags().StringVar(&watchRelay, "relay", "", "relay websocket URL, e.g. ws://localhost:8088/ws")
}
