// Package cli provides the command-line interface for the market data service.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradebridge/internal/broker"
	"tradebridge/internal/models"
)

// addAccountCommands adds order and account commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newHoldingsCmd(app))
	rootCmd.AddCommand(newFundsCmd(app))
	rootCmd.AddCommand(newOrderCmd(app))
}

// orderStatusName maps upstream numeric order status to a label.
func orderStatusName(status int) string {
	switch status {
	case 1:
		return "CANCELED"
	case 2:
		return "FILLED"
	case 4:
		return "TRANSIT"
	case 5:
		return "REJECTED"
	case 6:
		return "PENDING"
	case 7:
		return "EXPIRED"
	default:
		return fmt.Sprintf("%d", status)
	}
}

func sideName(side models.OrderSide) string {
	if side == models.OrderSell {
		return "SELL"
	}
	return "BUY"
}

func newOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Get the order book",
		Example: `  tradebridge orders
  tradebridge orders --id=<order_id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			orderID, _ := cmd.Flags().GetString("id")
			tag, _ := cmd.Flags().GetString("tag")

			orders, err := app.Broker.GetOrders(ctx, broker.OrderFilter{OrderID: orderID, Tag: tag})
			if err != nil {
				output.Error("Order book fetch failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(orders)
			}

			if len(orders) == 0 {
				output.Info("No orders")
				return nil
			}

			table := NewTable(output, "ID", "SYMBOL", "SIDE", "QTY", "FILLED", "PRICE", "STATUS")
			for _, o := range orders {
				table.AddRow(
					o.ID,
					o.Symbol,
					sideName(o.Side),
					fmt.Sprintf("%d", o.Qty),
					fmt.Sprintf("%d", o.FilledQty),
					fmt.Sprintf("%.2f", o.LimitPrice),
					orderStatusName(o.Status),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("id", "", "filter by order ID")
	cmd.Flags().String("tag", "", "filter by order tag")

	return cmd
}

func newPositionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Get open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			positions, err := app.Broker.GetPositions(ctx)
			if err != nil {
				output.Error("Positions fetch failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(positions)
			}

			if len(positions) == 0 {
				output.Info("No open positions")
				return nil
			}

			var totalPnL float64
			table := NewTable(output, "SYMBOL", "NET QTY", "AVG", "LTP", "P&L")
			for _, p := range positions {
				totalPnL += p.PnL
				table.AddRow(
					p.Symbol,
					fmt.Sprintf("%d", p.NetQty),
					fmt.Sprintf("%.2f", p.NetAvg),
					fmt.Sprintf("%.2f", p.LTP),
					output.FormatChange(p.PnL),
				)
			}
			table.Render()
			output.Println()
			output.Printf("Total P&L: %s\n", output.FormatChange(totalPnL))
			return nil
		},
	}
}

func newHoldingsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Get demat holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			holdings, err := app.Broker.GetHoldings(ctx)
			if err != nil {
				output.Error("Holdings fetch failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(holdings)
			}

			if len(holdings) == 0 {
				output.Info("No holdings")
				return nil
			}

			table := NewTable(output, "SYMBOL", "QTY", "COST", "LTP", "VALUE", "P&L", "P&L%")
			for _, h := range holdings {
				table.AddRow(
					h.Symbol,
					fmt.Sprintf("%d", h.Quantity),
					fmt.Sprintf("%.2f", h.CostPrice),
					fmt.Sprintf("%.2f", h.LTP),
					FormatIndianCurrency(h.MarketValue),
					output.FormatChange(h.PnL),
					output.FormatChangePercent(h.PnLPercent),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newFundsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "funds",
		Short: "Get fund limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			funds, err := app.Broker.GetFunds(ctx)
			if err != nil {
				output.Error("Funds fetch failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(funds)
			}

			table := NewTable(output, "", "EQUITY", "COMMODITY")
			for _, f := range funds {
				table.AddRow(
					f.Title,
					FormatIndianCurrency(f.EquityAmount),
					FormatIndianCurrency(f.CommodityAmount),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newOrderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order <symbol>",
		Short: "Place an order",
		Long: `Place an order with the broker.

A failed placement is never retried automatically; rerun the command
after checking the order book to avoid duplicates.`,
		Example: `  tradebridge order RELIANCE --side=buy --qty=10
  tradebridge order RELIANCE --side=sell --qty=10 --type=limit --price=2850`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			side, _ := cmd.Flags().GetString("side")
			qty, _ := cmd.Flags().GetInt("qty")
			orderType, _ := cmd.Flags().GetString("type")
			price, _ := cmd.Flags().GetFloat64("price")
			stopPrice, _ := cmd.Flags().GetFloat64("stop")
			product, _ := cmd.Flags().GetString("product")

			if qty <= 0 {
				return fmt.Errorf("--qty must be positive")
			}

			req := models.OrderRequest{
				Symbol:      app.Instruments.Normalize(args[0]),
				Qty:         qty,
				ProductType: strings.ToUpper(product),
				LimitPrice:  price,
				StopPrice:   stopPrice,
			}

			switch strings.ToLower(side) {
			case "buy":
				req.Side = models.OrderBuy
			case "sell":
				req.Side = models.OrderSell
			default:
				return fmt.Errorf("--side must be buy or sell")
			}

			switch strings.ToLower(orderType) {
			case "limit":
				req.Type = models.OrderLimit
			case "market":
				req.Type = models.OrderMarket
			case "sl-m":
				req.Type = models.OrderStop
			case "sl-l":
				req.Type = models.OrderStopLimit
			default:
				return fmt.Errorf("--type must be limit, market, sl-m or sl-l")
			}

			result, err := app.Broker.PlaceOrder(ctx, req)
			if err != nil {
				output.Error("Order placement failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Success("✓ Order placed: %s", result.OrderID)
			if result.Message != "" {
				output.Dim(result.Message)
			}
			return nil
		},
	}

	cmd.Flags().String("side", "", "buy or sell (required)")
	cmd.Flags().Int("qty", 0, "quantity (required)")
	cmd.Flags().String("type", "market", "order type: limit, market, sl-m, sl-l")
	cmd.Flags().Float64("price", 0, "limit price")
	cmd.Flags().Float64("stop", 0, "stop price")
	cmd.Flags().String("product", "INTRADAY", "product type: INTRADAY, CNC, MARGIN")
	cmd.MarkFlagRequired("side")
	cmd.MarkFlagRequired("qty")

	return cmd
}
