// Package cli provides the command-line interface for the market data service.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradebridge/internal/broker"
	"tradebridge/internal/chain"
	"tradebridge/internal/config"
	apierrors "tradebridge/internal/errors"
	"tradebridge/internal/instruments"
	"tradebridge/internal/logging"
	"tradebridge/internal/notify"
	"tradebridge/internal/quotes"
	"tradebridge/internal/stream"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Broker      broker.Broker
	Quotes      *quotes.Aggregator
	Chain       *chain.Synthesizer
	Instruments *instruments.Master
	Stream      *stream.Manager
	Notifier    notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Notifier: notify.NewMultiNotifier(&cfg.Notifications),
	}

	fyersBroker := broker.NewFyersBroker(broker.FyersConfig{
		ClientID:       cfg.Credentials.ClientID,
		SecretKey:      cfg.Credentials.SecretKey,
		RedirectURI:    cfg.Credentials.RedirectURI,
		BaseURL:        cfg.Broker.BaseURL,
		SessionPath:    cfg.Broker.SessionPath,
		RequestTimeout: cfg.Broker.RequestTimeout,
		QuoteBatchMax:  cfg.Broker.QuoteBatchMax,
		Logger:         logger,
	})
	app.Broker = fyersBroker

	store, err := instruments.NewSnapshotStore(cfg.Instruments.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open instrument snapshot store, lookups start empty")
	}
	app.Instruments = instruments.NewMaster(instruments.MasterConfig{
		URL:    cfg.Instruments.MasterURL,
		TTL:    cfg.Instruments.TTL,
		Store:  store,
		Logger: logger,
	})

	app.Quotes = quotes.NewAggregator(app.Broker, app.Instruments, logger)
	app.Chain = chain.NewSynthesizer(app.Broker, app.Quotes, logger)
	app.Stream = stream.NewManager(stream.ManagerConfig{
		URL:            cfg.Stream.URL,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		Logger:         logger,
	})

	rootCmd := &cobra.Command{
		Use:   "tradebridge",
		Short: "TradeBridge - market data and broker integration CLI",
		Long: `TradeBridge bridges a trading dashboard to its upstream broker.

It handles session authentication, live and historical market data,
option chains, and push-channel subscriptions.

Use 'tradebridge help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradebridge)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addMarketDataCommands(rootCmd, app)
	addAccountCommands(rootCmd, app)
	addWatchCommands(rootCmd, app)

	notifyOnSessionExpiry(app, rootCmd)

	return rootCmd
}

// notifyOnSessionExpiry wraps every command so a session-expired failure
// also goes out through the configured notification channels.
func notifyOnSessionExpiry(app *App, cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		notifyOnSessionExpiry(app, sub)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if apierrors.Is(err, apierrors.ErrSessionExpired) {
			app.Notifier.SendSessionExpired(cmd.Context(), app.Config.Credentials.ClientID)
		}
		return err
	}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("TradeBridge v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Broker")
	output.Printf("  Base URL:        %s\n", cfg.Broker.BaseURL)
	output.Printf("  Request Timeout: %s\n", cfg.Broker.RequestTimeout)
	output.Printf("  Quote Batch Max: %d\n", cfg.Broker.QuoteBatchMax)
	output.Println()

	output.Bold("Stream")
	output.Printf("  URL:             %s\n", cfg.Stream.URL)
	output.Printf("  Reconnect Delay: %s\n", cfg.Stream.ReconnectDelay)
	output.Println()

	output.Bold("Instruments")
	output.Printf("  Master URL:      %s\n", cfg.Instruments.MasterURL)
	output.Printf("  TTL:             %s\n", cfg.Instruments.TTL)
	output.Printf("  DB Path:         %s\n", cfg.Instruments.DBPath)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)

	return nil
}
