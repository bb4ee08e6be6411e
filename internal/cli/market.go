// Package cli provides the command-line interface for the market data service.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradebridge/internal/broker"
	"tradebridge/internal/instruments"
	"tradebridge/internal/models"
	"tradebridge/internal/quotes"
)

// addMarketDataCommands adds market data commands.
func addMarketDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newIndexesCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newDepthCmd(app))
	rootCmd.AddCommand(newMarketStatusCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newInstrumentsCmd(app))
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [symbol...]",
		Short: "Get live quotes for one or more symbols",
		Long:  "Get live quotes. With no symbols, shows the default watchlist.",
		Example: `  tradebridge quote RELIANCE
  tradebridge quote RELIANCE TCS INFY
  tradebridge quote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if len(args) == 0 {
				args = instruments.PopularStocks()
			}

			results := make([]*models.Quote, 0, len(args))
			for _, symbol := range args {
				q, _ := app.Quotes.GetQuote(ctx, strings.ToUpper(symbol))
				results = append(results, q)
			}

			if output.IsJSON() {
				return output.JSON(results)
			}

			table := NewTable(output, "SYMBOL", "LTP", "CHANGE", "CHANGE%", "VOLUME")
			for i, q := range results {
				if q == nil {
					table.AddRow(strings.ToUpper(args[i]), "-", "-", "-", "-")
					continue
				}
				table.AddRow(
					q.Symbol,
					fmt.Sprintf("%.2f", q.LTP),
					output.FormatChange(q.Change),
					output.FormatChangePercent(q.ChangePercent),
					FormatVolume(q.Volume),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newIndexesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Get quotes for the dashboard index headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			names := make([]string, 0, len(quotes.IndexSymbols))
			for name := range quotes.IndexSymbols {
				names = append(names, name)
			}

			result := app.Quotes.GetIndexQuotes(ctx, names)

			if output.IsJSON() {
				return output.JSON(result)
			}

			table := NewTable(output, "INDEX", "LTP", "CHANGE", "CHANGE%")
			for _, name := range names {
				q := result[name]
				if q == nil {
					table.AddRow(name, "-", "-", "-")
					continue
				}
				table.AddRow(
					name,
					fmt.Sprintf("%.2f", q.LTP),
					output.FormatChange(q.Change),
					output.FormatChangePercent(q.ChangePercent),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <symbol>",
		Short: "Get historical candles for a symbol",
		Example: `  tradebridge history RELIANCE
  tradebridge history RELIANCE --resolution=5 --days=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resolution, _ := cmd.Flags().GetString("resolution")
			days, _ := cmd.Flags().GetInt("days")

			symbol := app.Instruments.Normalize(args[0])
			to := time.Now()
			from := to.AddDate(0, 0, -days)

			candles, err := app.Broker.GetHistory(ctx, broker.HistoryRequest{
				Symbol:     symbol,
				Resolution: resolution,
				From:       from,
				To:         to,
			})
			if err != nil {
				output.Error("History fetch failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(candles)
			}

			table := NewTable(output, "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
			for _, c := range candles {
				table.AddRow(
					c.Timestamp.Format("02 Jan 15:04"),
					fmt.Sprintf("%.2f", c.Open),
					fmt.Sprintf("%.2f", c.High),
					fmt.Sprintf("%.2f", c.Low),
					fmt.Sprintf("%.2f", c.Close),
					FormatVolume(c.Volume),
				)
			}
			table.Render()
			output.Println()
			output.Dim("%d candles, oldest first", len(candles))
			return nil
		},
	}

	cmd.Flags().String("resolution", "D", "candle resolution: 1-240 minutes or D")
	cmd.Flags().Int("days", 30, "number of days to fetch")

	return cmd
}

func newChainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <underlying>",
		Short: "Get the option chain for an underlying",
		Long: `Fetch and display the option chain grouped by strike.

When the upstream fetch fails, a synthetic chain is generated around the
last known price so the display never goes blank. Synthetic data is
marked as such.`,
		Example: `  tradebridge chain NIFTY
  tradebridge chain BANKNIFTY --strikes=20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			strikes, _ := cmd.Flags().GetInt("strikes")
			symbol := strings.ToUpper(args[0])

			result := app.Chain.GetChain(ctx, symbol, strikes)

			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Bold("Option Chain: %s", result.Symbol)
			if result.Source == models.SourceSynthetic {
				output.Warning("⚠ Synthetic data (upstream unavailable)")
			}
			output.Println()

			table := NewTable(output, "CALL LTP", "CALL CHG", "CALL OI", "STRIKE", "PUT OI", "PUT CHG", "PUT LTP")
			for _, row := range result.Rows {
				table.AddRow(
					fmt.Sprintf("%.2f", row.CallLTP),
					output.FormatChange(row.CallChange),
					FormatVolume(row.CallOI),
					fmt.Sprintf("%.0f", row.Strike),
					FormatVolume(row.PutOI),
					output.FormatChange(row.PutChange),
					fmt.Sprintf("%.2f", row.PutLTP),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("strikes", 10, "number of strikes to request")

	return cmd
}

func newDepthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "depth <symbol>",
		Short:   "Get market depth for a symbol",
		Example: `  tradebridge depth RELIANCE`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := app.Instruments.Normalize(args[0])
			depth, err := app.Broker.GetMarketDepth(ctx, symbol)
			if err != nil {
				output.Error("Depth fetch failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(depth)
			}

			output.Bold("Market Depth: %s", depth.Symbol)
			output.Printf("LTP: %.2f  Buy Qty: %s  Sell Qty: %s\n",
				depth.LTP, FormatVolume(depth.TotalBuyQty), FormatVolume(depth.TotalSellQty))
			output.Println()

			table := NewTable(output, "BID QTY", "BID", "ASK", "ASK QTY")
			levels := len(depth.Bids)
			if len(depth.Asks) > levels {
				levels = len(depth.Asks)
			}
			for i := 0; i < levels; i++ {
				bidQty, bid, ask, askQty := "-", "-", "-", "-"
				if i < len(depth.Bids) {
					bidQty = FormatVolume(depth.Bids[i].Volume)
					bid = fmt.Sprintf("%.2f", depth.Bids[i].Price)
				}
				if i < len(depth.Asks) {
					ask = fmt.Sprintf("%.2f", depth.Asks[i].Price)
					askQty = FormatVolume(depth.Asks[i].Volume)
				}
				table.AddRow(bidQty, output.Green(bid), output.Red(ask), askQty)
			}
			table.Render()
			return nil
		},
	}
}

func newMarketStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "market-status",
		Short: "Get current market status per exchange segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			statuses := app.Quotes.GetMarketStatus(ctx)

			if output.IsJSON() {
				return output.JSON(statuses)
			}

			table := NewTable(output, "EXCHANGE", "SEGMENT", "TYPE", "STATUS")
			for _, s := range statuses {
				table.AddRow(
					exchangeName(s.Exchange),
					segmentName(s.Segment),
					s.MarketType,
					output.MarketStatus(s.Status),
				)
			}
			table.Render()
			return nil
		},
	}
}

func exchangeName(code int) string {
	switch code {
	case 10:
		return "NSE"
	case 11:
		return "MCX"
	case 12:
		return "BSE"
	default:
		return fmt.Sprintf("%d", code)
	}
}

func segmentName(code int) string {
	switch code {
	case 10:
		return "Equity"
	case 11:
		return "F&O"
	case 12:
		return "Currency"
	case 20:
		return "Commodity"
	default:
		return fmt.Sprintf("%d", code)
	}
}

func newSearchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Search instruments by symbol or name",
		Example: `  tradebridge search reliance`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")

			if err := app.Instruments.RefreshIfStale(ctx); err != nil {
				output.Warning("Instrument master refresh failed: %v", err)
			}

			results := app.Instruments.Search(args[0], limit)

			if output.IsJSON() {
				return output.JSON(results)
			}

			if len(results) == 0 {
				output.Warning("No instruments match %q", args[0])
				return nil
			}

			table := NewTable(output, "SYMBOL", "NAME", "SERIES", "LOT SIZE")
			for _, r := range results {
				table.AddRow(r.Ticker, r.Description, r.Series, fmt.Sprintf("%d", r.LotSize))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of results")

	return cmd
}

func newInstrumentsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "Instrument master cache management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refresh the instrument master if stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			if err := app.Instruments.RefreshIfStale(ctx); err != nil {
				output.Error("Refresh failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"records":   app.Instruments.Size(),
					"loaded_at": app.Instruments.LoadedAt(),
				})
			}

			output.Success("✓ Instrument master loaded: %d records", app.Instruments.Size())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show instrument master cache state",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			loadedAt := app.Instruments.LoadedAt()
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"records":   app.Instruments.Size(),
					"loaded_at": loadedAt,
				})
			}

			output.Printf("Records:   %d\n", app.Instruments.Size())
			if loadedAt.IsZero() {
				output.Printf("Loaded at: never\n")
			} else {
				output.Printf("Loaded at: %s (%s ago)\n",
					loadedAt.Format("02 Jan 15:04"),
					formatDuration(time.Since(loadedAt)))
			}
			return nil
		},
	})

	return cmd
}
