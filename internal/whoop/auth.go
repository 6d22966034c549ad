package whoop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.prod.whoop.com"

var defaultScopes = []string{"offline", "read:workout"}

// TokenState is where the cached token sits in its refresh lifecycle.
type TokenState int

const (
	TokenUnknown TokenState = iota
	TokenValid
	TokenExpired
	TokenRefreshing
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	case TokenRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Auth owns the WHOOP OAuth2 token lifecycle. A refreshed token is always
// persisted to the store before its access token is handed out.
type Auth struct {
	conf       *oauth2.Config
	store      *TokenStore
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	state TokenState
}

// NewAuth creates an Auth for the given app credentials. baseURL may be empty.
func NewAuth(clientID, clientSecret, baseURL string, store *TokenStore, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Auth{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth/oauth2/auth",
				TokenURL:  baseURL + "/oauth/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: defaultScopes,
		},
		store: store,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
}

// State reports the token state observed by the last EnsureValidToken call.
func (a *Auth) State() TokenState {
	return a.state
}

func (a *Auth) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// EnsureValidToken loads cached tokens, refreshes them if expired, and returns
// a valid access token.
func (a *Auth) EnsureValidToken(ctx context.Context) (string, error) {
	tokens, err := a.store.Load()
	if err != nil {
		a.state = TokenUnknown
		return "", &AuthError{Reason: "loading cached tokens", Err: err}
	}
	if tokens == nil {
		a.state = TokenUnknown
		return "", &AuthError{Reason: a.store.Path + " not found, run 'whoopsheet auth' first"}
	}

	if !tokens.IsExpired(a.now()) && tokens.AccessToken != "" {
		a.state = TokenValid
		return tokens.AccessToken, nil
	}

	a.state = TokenExpired
	a.logger.Info("access token expired, refreshing", "expired_at", tokens.Expiry())
	refreshed, err := a.refresh(ctx, tokens)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Refresh forces a refresh regardless of the recorded expiry. Used when the
// API rejects a token the file still claims is valid.
func (a *Auth) Refresh(ctx context.Context) (string, error) {
	tokens, err := a.store.Load()
	if err != nil {
		return "", &AuthError{Reason: "loading cached tokens", Err: err}
	}
	if tokens == nil {
		return "", &AuthError{Reason: a.store.Path + " not found, run 'whoopsheet auth' first"}
	}
	a.state = TokenExpired
	refreshed, err := a.refresh(ctx, tokens)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (a *Auth) refresh(ctx context.Context, tokens *TokenData) (*TokenData, error) {
	if tokens.RefreshToken == "" {
		return nil, &AuthError{Reason: "token expired and no refresh token is stored, run 'whoopsheet auth'"}
	}
	if a.conf.ClientID == "" || a.conf.ClientSecret == "" {
		return nil, &AuthError{Reason: "WHOOP_CLIENT_ID and WHOOP_CLIENT_SECRET are required to refresh the token"}
	}

	a.state = TokenRefreshing
	// An access-token-less token is never Valid, so the source always refreshes.
	src := a.conf.TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: tokens.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		a.state = TokenExpired
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &AuthError{Reason: "refresh rejected (run 'whoopsheet auth' to re-authenticate)", Err: err}
		}
		return nil, &AuthError{Reason: "refreshing token", Err: err}
	}

	newTokens := tokenDataFrom(tok, tokens.RefreshToken)
	if len(newTokens.Scope) == 0 {
		newTokens.Scope = tokens.Scope
	}
	if err := a.store.Save(newTokens); err != nil {
		a.state = TokenExpired
		return nil, &AuthError{Reason: "persisting refreshed token", Err: err}
	}

	a.state = TokenValid
	a.logger.Info("access token refreshed", "expires_at", newTokens.Expiry())
	return newTokens, nil
}

// AuthCodeURL returns the consent page URL for the authorization-code flow.
func (a *Auth) AuthCodeURL(redirectURL, state string) string {
	conf := *a.conf
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and saves them.
func (a *Auth) Exchange(ctx context.Context, redirectURL, code string) (*TokenData, error) {
	conf := *a.conf
	conf.RedirectURL = redirectURL
	tok, err := conf.Exchange(a.oauthContext(ctx), code)
	if err != nil {
		return nil, &AuthError{Reason: "exchanging authorization code", Err: err}
	}

	tokens := tokenDataFrom(tok, "")
	if err := a.store.Save(tokens); err != nil {
		return nil, &AuthError{Reason: "saving tokens", Err: err}
	}
	a.state = TokenValid
	return tokens, nil
}
