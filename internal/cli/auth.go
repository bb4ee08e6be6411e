// Package cli provides the command-line interface for the market data service.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradebridge/internal/models"
)

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
	rootCmd.AddCommand(newAuthStatusCmd(app))
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the broker",
		Long: `Login to the broker using the one-time auth code handshake.

Opens the broker's login page in a browser. After logging in you are
redirected to a URL carrying an auth_code parameter; paste that code here
to complete the session exchange.`,
		Example: `  tradebridge login
  tradebridge login --code=<auth_code>  # Complete login with code`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if app.Config.Credentials.ClientID == "" {
				output.Error("Broker not configured. Set client_id in credentials.toml")
				return fmt.Errorf("broker not configured")
			}

			if app.Broker.IsAuthenticated() {
				return showLoginStatus(ctx, app, output)
			}

			code, _ := cmd.Flags().GetString("code")
			if code != "" {
				return completeLogin(ctx, app, output, code)
			}

			loginURL := app.Broker.GetAuthURL("tradebridge")

			output.Info("Opening broker login page...")
			output.Println()
			output.Bold("Login URL:")
			output.Println(loginURL)
			output.Println()

			if err := openURL(loginURL); err != nil {
				output.Warning("Could not open browser automatically")
			}

			output.Info("After logging in, you'll be redirected to a URL like:")
			output.Dim("  https://your-redirect-url.com/?auth_code=XXXXXX&state=tradebridge")
			output.Println()
			output.Bold("Paste the auth_code value here:")

			reader := bufio.NewReader(os.Stdin)
			fmt.Print("> ")
			inputCode, _ := reader.ReadString('\n')
			inputCode = strings.TrimSpace(inputCode)

			if inputCode == "" {
				output.Error("No auth code provided")
				return fmt.Errorf("no auth code provided")
			}

			return completeLogin(ctx, app, output, inputCode)
		},
	}

	cmd.Flags().String("code", "", "One-time auth code from redirect URL")

	return cmd
}

func completeLogin(ctx context.Context, app *App, output *Output, code string) error {
	output.Info("Exchanging auth code for session...")

	if err := app.Broker.Authenticate(ctx, code); err != nil {
		output.Error("Login failed: %v", err)
		return err
	}

	output.Success("✓ Login successful!")
	return showLoginStatus(ctx, app, output)
}

// showLoginStatus displays profile and session info after login.
func showLoginStatus(ctx context.Context, app *App, output *Output) error {
	output.Println()
	output.Bold("Account Info")
	output.Printf("  Client ID:  %s\n", app.Config.Credentials.ClientID)

	if profile, err := app.Broker.GetProfile(ctx); err == nil {
		output.Printf("  Name:       %s\n", profile.Name)
		if profile.Email != "" {
			output.Printf("  Email:      %s\n", profile.Email)
		}
	}

	if funds, err := app.Broker.GetFunds(ctx); err == nil {
		for _, f := range funds {
			if strings.EqualFold(f.Title, "Available Balance") {
				output.Printf("  Balance:    %s\n", FormatIndianCurrency(f.EquityAmount))
			}
		}
	}

	output.Println()

	expiry, remaining := sessionExpiry()
	output.Bold("Session")
	output.Printf("  Expires:    %s (%s remaining)\n",
		expiry.Format("02 Jan 2006, 03:04 PM"),
		formatDuration(remaining))

	return nil
}

// sessionExpiry returns when the current session expires: 6 AM IST the next
// day, or today if it is not yet 6 AM.
func sessionExpiry() (time.Time, time.Duration) {
	loc, _ := time.LoadLocation("Asia/Kolkata")
	now := time.Now().In(loc)
	expiry := time.Date(now.Year(), now.Month(), now.Day()+1, 6, 0, 0, 0, loc)
	if now.Hour() < 6 {
		expiry = time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, loc)
	}
	return expiry, expiry.Sub(now)
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the broker",
		Long: `Invalidate the current session and clear the stored session file.

You will need to login again before any authenticated calls succeed.`,
		Example: `  tradebridge logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if !app.Broker.IsAuthenticated() {
				output.Warning("Not currently logged in.")
				return nil
			}

			output.Info("Logging out...")

			if err := app.Broker.Logout(ctx); err != nil {
				output.Error("Logout failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"success":   true,
					"message":   "Logout successful",
					"timestamp": time.Now().Format(time.RFC3339),
				})
			}

			output.Success("✓ Logged out successfully!")
			output.Dim("Session has been cleared.")

			return nil
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-status",
		Short: "Check authentication status",
		Long:  "Display current authentication status and session expiry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			state := app.Broker.SessionState()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"state":         state,
					"authenticated": state == models.SessionAuthenticated,
				})
			}

			switch state {
			case models.SessionAuthenticated:
				output.Success("✓ Authenticated")
			case models.SessionExpired:
				output.Warning("Session expired")
				output.Println()
				output.Info("Run 'tradebridge login' to re-authenticate")
				return nil
			default:
				output.Warning("Not authenticated")
				output.Println()
				output.Info("Run 'tradebridge login' to authenticate")
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if _, err := app.Broker.GetProfile(ctx); err != nil {
				output.Warning("Session may be expired: %v", err)
				output.Info("Run 'tradebridge login' to re-authenticate")
				return nil
			}

			output.Println()
			expiry, remaining := sessionExpiry()
			output.Printf("  Session expires: %s (%s remaining)\n",
				expiry.Format("02 Jan 15:04"),
				formatDuration(remaining))

			return nil
		},
	}
}
