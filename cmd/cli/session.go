package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/expense-keeper/internal/client"
	"github.com/and161185/expense-keeper/internal/model"
)

// ---------- Session store (~/.config/expense-keeper/session.json) ----------

type sessionFile struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"exp"`
	UID   string    `json:"uid"`
	Email string    `json:"email"`
}

var errNoSession = errors.New("no valid session (login required)")

func cfgDir() (string, error) {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "expense-keeper"), nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".config", "expense-keeper"), nil
}

func sessionPath() (string, error) {
	d, err := cfgDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "session.json"), nil
}

func saveSession(s client.Session) error {
	p, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sessionFile{
		Token: s.AccessToken,
		Exp:   s.ExpiresAt,
		UID:   s.Caller.UID,
		Email: s.Caller.Email,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func loadSession() (sessionFile, error) {
	p, err := sessionPath()
	if err != nil {
		return sessionFile{}, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return sessionFile{}, errNoSession
	}
	if err != nil {
		return sessionFile{}, err
	}
	var s sessionFile
	if err := json.Unmarshal(b, &s); err != nil {
		return sessionFile{}, fmt.Errorf("session file: %w", err)
	}
	if s.Token == "" || s.UID == "" || time.Now().After(s.Exp) {
		return sessionFile{}, errNoSession
	}
	return s, nil
}

func clearSession() error {
	p, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s sessionFile) caller() model.Caller {
	return model.Caller{UID: s.UID, Email: s.Email}
}
