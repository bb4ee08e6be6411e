// Package cli provides the command-line interface for the market data service.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradebridge/internal/models"
	"tradebridge/internal/quotes"
	"tradebridge/internal/stream"
)

// addWatchCommands adds live watch commands.
func addWatchCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <symbol> [symbol...]",
		Short: "Watch live prices for one or more symbols",
		Long: `Stream live prices over the push channel and print each update.

With --poll, falls back to REST polling at the configured interval
instead of the push channel. Press Ctrl+C to stop.`,
		Example: `  tradebridge watch RELIANCE TCS
  tradebridge watch NIFTY --poll`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			poll, _ := cmd.Flags().GetBool("poll")

			symbols := make([]string, 0, len(args))
			for _, a := range args {
				symbols = append(symbols, strings.ToUpper(a))
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			if poll {
				return watchPolling(ctx, app, output, symbols)
			}
			return watchStream(ctx, app, output, symbols)
		},
	}

	cmd.Flags().Bool("poll", false, "use REST polling instead of the push channel")

	return cmd
}

func watchStream(ctx context.Context, app *App, output *Output, symbols []string) error {
	output.Info("Streaming %d symbols, Ctrl+C to stop", len(symbols))

	handles := make(map[string]stream.Handle, len(symbols))
	for _, symbol := range symbols {
		brokerSymbol := app.Instruments.Normalize(symbol)
		name := symbol
		handles[brokerSymbol] = app.Stream.Subscribe(brokerSymbol, func(tick models.Tick) {
			printTick(output, name, tick)
		})
	}
	app.Notifier.SendStreamEvent(ctx, "started", symbols)

	<-ctx.Done()

	for symbol, h := range handles {
		app.Stream.Unsubscribe(symbol, h)
	}
	app.Notifier.SendStreamEvent(context.Background(), "stopped", symbols)
	output.Println()
	output.Dim("Stopped.")
	return nil
}

func watchPolling(ctx context.Context, app *App, output *Output, symbols []string) error {
	interval := app.Config.Quotes.PollInterval
	output.Info("Polling %d symbols every %s, Ctrl+C to stop", len(symbols), interval)

	subs := make([]*quotes.Subscription, 0, len(symbols))
	for _, symbol := range symbols {
		name := symbol
		sub := app.Quotes.Poll(ctx, symbol, interval, func(q *models.Quote) {
			if q == nil {
				output.Dim("%s  %s  no data", time.Now().Format("15:04:05"), name)
				return
			}
			printTick(output, name, models.Tick{
				Symbol:        q.Symbol,
				LTP:           q.LTP,
				Change:        q.Change,
				ChangePercent: q.ChangePercent,
				Volume:        q.Volume,
			})
		})
		subs = append(subs, sub)
	}

	<-ctx.Done()

	for _, sub := range subs {
		sub.Stop()
	}
	output.Println()
	output.Dim("Stopped.")
	return nil
}

func printTick(output *Output, name string, tick models.Tick) {
	output.Printf("%s  %-24s %10.2f  %s (%s)  vol %s\n",
		time.Now().Format("15:04:05"),
		name,
		tick.LTP,
		output.FormatChange(tick.Change),
		output.FormatChangePercent(tick.ChangePercent),
		FormatVolume(tick.Volume),
	)
}
