package broker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradebridge/internal/models"
)

// sessionData represents persisted session data.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	ClientID    string    `json:"client_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// loadSession restores a persisted session from disk. An expired or missing
// session leaves the client unauthenticated.
func (f *FyersBroker) loadSession() error {
	if f.sessionPath == "" {
		return nil
	}

	data, err := os.ReadFile(f.sessionPath)
	if err != nil {
		return err
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	if time.Now().After(session.ExpiresAt) {
		return fmt.Errorf("session expired")
	}

	f.mu.Lock()
	f.accessToken = session.AccessToken
	f.state = models.SessionAuthenticated
	f.mu.Unlock()

	return nil
}

// saveSession persists the session with restricted permissions. Upstream
// tokens expire at 6 AM IST the next day.
func (f *FyersBroker) saveSession(accessToken string) error {
	if f.sessionPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.sessionPath), 0700); err != nil {
		return err
	}

	loc, _ := time.LoadLocation("Asia/Kolkata")
	now := time.Now().In(loc)
	expiresAt := time.Date(now.Year(), now.Month(), now.Day()+1, 6, 0, 0, 0, loc)

	session := sessionData{
		AccessToken: accessToken,
		ClientID:    f.clientID,
		ExpiresAt:   expiresAt,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return os.WriteFile(f.sessionPath, data, 0600)
}

func (f *FyersBroker) clearSession() error {
	if f.sessionPath == "" {
		return nil
	}
	if err := os.Remove(f.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
