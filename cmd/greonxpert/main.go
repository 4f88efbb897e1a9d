// Command greonxpert is the GreonXpert console: the public submission
// wizards, a live view of admin lists, and the push-notification relay.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/auth"
	"github.com/greonxpert/console/pkg/config"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/retry"
)

var version = "0.1.0"

var (
	configPath string
	logLevel   string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "greonxpert",
	Short:         "GreonXpert submission console",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "greonxpert v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("GREONXPERT_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.AddCommand(versionCmd, submitCmd, testimonialCmd, watchCmd, relayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Terminal front ends pass
// toFile so log lines never land on the screen they draw.
func newLogger(toFile bool) (logging.Logger, io.Closer, error) {
	opts := []logging.Option{logging.WithLevel(logging.ParseLevel(cfg.Log.Level))}
	if cfg.Log.JSON {
		opts = append(opts, logging.WithJSON())
	}

	path := cfg.Log.File
	if path == "" && toFile {
		path = filepath.Join(os.TempDir(), "greonxpert.log")
	}
	if path == "" {
		l := logging.New(opts...)
		logging.SetDefault(l)
		return l, io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	l := logging.New(append(opts, logging.WithOutput(f))...)
	logging.SetDefault(l)
	return l, f, nil
}

// newAPIClient builds the REST client. A configured admin token is
// attached to every request.
func newAPIClient(logger logging.Logger) (*api.Client, error) {
	opts := []api.Option{
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger),
	}
	if cfg.API.Token != "" {
		sess := auth.NewSession()
		if err := sess.Login(cfg.API.Token); err != nil {
			return nil, err
		}
		opts = append(opts, api.WithSession(sess))
	}
	if cfg.API.ListRetries > 0 {
		p := retry.DefaultPolicy()
		p.Attempts = cfg.API.ListRetries
		opts = append(opts, api.WithRetry(p))
	}
	return api.New(cfg.API.BaseURL, opts...), nil
}
