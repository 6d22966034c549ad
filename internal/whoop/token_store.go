package whoop

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenData is the on-disk OAuth2 token. ExpiresAt is Unix seconds so the
// file stays interchangeable with tokens written by requests-oauthlib.
type TokenData struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type,omitempty"`
	ExpiresIn    int     `json:"expires_in,omitempty"`
	ExpiresAt    float64 `json:"expires_at"`
	Scope        Scopes  `json:"scope,omitempty"`
}

// Scopes accepts both a space-separated string and a JSON list.
type Scopes []string

func (s *Scopes) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("scope must be a string or list: %w", err)
	}
	*s = strings.Fields(str)
	return nil
}

// Expiry returns ExpiresAt as a time. A zero ExpiresAt means unknown.
func (t *TokenData) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(t.ExpiresAt)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// IsExpired returns true if the token is expired or will expire within 5 minutes.
// Tokens without a recorded expiry are treated as valid.
func (t *TokenData) IsExpired(now time.Time) bool {
	exp := t.Expiry()
	if exp.IsZero() {
		return false
	}
	return now.Add(5 * time.Minute).After(exp)
}

func tokenDataFrom(tok *oauth2.Token, fallbackRefresh string) *TokenData {
	td := &TokenData{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if td.RefreshToken == "" {
		td.RefreshToken = fallbackRefresh
	}
	if !tok.Expiry.IsZero() {
		td.ExpiresAt = float64(tok.Expiry.UnixNano()) / 1e9
		td.ExpiresIn = int(time.Until(tok.Expiry).Seconds())
	}
	if v, ok := tok.Extra("scope").(string); ok {
		td.Scope = strings.Fields(v)
	}
	return td
}

// TokenStore is a JSON token file on disk.
type TokenStore struct {
	Path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{Path: path}
}

// Load reads the token file. Returns nil, nil if the file does not exist.
func (s *TokenStore) Load() (*TokenData, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tokens TokenData
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}

	return &tokens, nil
}

// Save writes tokens with 0600 permissions via tmp + rename.
func (s *TokenStore) Save(tokens *TokenData) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing temp token file: %w", err)
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming token file: %w", err)
	}

	return nil
}
