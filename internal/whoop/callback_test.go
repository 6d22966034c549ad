package whoop

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackServerRedirectsToConsent(t *testing.T) {
	auth := NewAuth("client-1", "secret", "https://whoop.example", NewTokenStore(filepath.Join(t.TempDir(), "t.json")), nil)
	cs, err := NewCallbackServer(auth, 5000, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	cs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "whoop.example", loc.Host)
	assert.Equal(t, "/oauth/oauth2/auth", loc.Path)
	assert.Equal(t, "client-1", loc.Query().Get("client_id"))
	assert.Equal(t, "https://localhost:5000/callback", loc.Query().Get("redirect_uri"))
	assert.Equal(t, "offline read:workout", loc.Query().Get("scope"))
	assert.Equal(t, cs.state, loc.Query().Get("state"))
}

func TestCallbackServerExchangesCode(t *testing.T) {
	tokenSrv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","expires_in":3600,"token_type":"bearer"}`))
	})

	store := NewTokenStore(filepath.Join(t.TempDir(), "t.json"))
	auth := NewAuth("client-1", "secret", tokenSrv.URL, store, nil)
	cs, err := NewCallbackServer(auth, 5000, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback?code=the-code&state="+cs.state, nil)
	cs.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tokens saved")

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a1", saved.AccessToken)
	assert.Equal(t, "r1", saved.RefreshToken)
	assert.True(t, saved.Expiry().After(time.Now()))

	select {
	case res := <-cs.result:
		require.NoError(t, res.err)
		assert.Equal(t, "a1", res.tokens.AccessToken)
	default:
		t.Fatal("callback did not report a result")
	}
}

func TestCallbackServerRejectsBadState(t *testing.T) {
	auth := NewAuth("client-1", "secret", "", NewTokenStore(filepath.Join(t.TempDir(), "t.json")), nil)
	cs, err := NewCallbackServer(auth, 5000, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	cs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=x&state=forged", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelfSignedCertCoversLocalhost(t *testing.T) {
	cert, err := selfSignedCert(time.Now())
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	assert.NotNil(t, cert.PrivateKey)
}
