package github

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

type secretServer struct {
	pub, priv *[32]byte
	received  map[string]string
	path      string
	fails     int
}

func newSecretServer(t *testing.T) (*secretServer, *Client) {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	s := &secretServer{pub: pub, priv: priv}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/octo/runs/actions/secrets/public-key":
			if s.fails > 0 {
				s.fails--
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(PublicKey{KeyID: "kid-1", Key: base64.StdEncoding.EncodeToString(pub[:])})
		case r.Method == http.MethodPut:
			s.path = r.URL.Path
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&s.received))
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient("gh-token", nil)
	c.baseURL = srv.URL
	c.retryDelay = time.Millisecond
	return s, c
}

func (s *secretServer) open(t *testing.T) string {
	t.Helper()
	sealed, err := base64.StdEncoding.DecodeString(s.received["encrypted_value"])
	require.NoError(t, err)
	plain, ok := box.OpenAnonymous(nil, sealed, s.pub, s.priv)
	require.True(t, ok, "sealed box opens with the repo key")
	return string(plain)
}

func TestUploadFileSealsContents(t *testing.T) {
	s, c := newSecretServer(t)
	path := filepath.Join(t.TempDir(), "whoop-tokens.json")
	tokens := `{"access_token":"a","refresh_token":"r","expires_at":1718000000.5}`
	require.NoError(t, os.WriteFile(path, []byte(tokens), 0600))

	err := c.UploadFile(t.Context(), "octo/runs", "WHOOP_TOKENS", path)
	require.NoError(t, err)

	assert.Equal(t, "/repos/octo/runs/actions/secrets/WHOOP_TOKENS", s.path)
	assert.Equal(t, "kid-1", s.received["key_id"])
	assert.Equal(t, tokens, s.open(t))
}

func TestPutSecretRetriesServerErrors(t *testing.T) {
	s, c := newSecretServer(t)
	s.fails = 2

	require.NoError(t, c.PutSecret(t.Context(), "octo/runs", "X", []byte("v")))
	assert.Equal(t, "v", s.open(t))
}

func TestPutSecretStopsRetryingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			cancel()
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("gh-token", nil)
	c.baseURL = srv.URL
	c.retryDelay = 10 * time.Second

	began := time.Now()
	err := c.PutSecret(ctx, "octo/runs", "X", []byte("v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(began), 2*time.Second, "backoff is abandoned on cancellation")
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestPutSecretUnknownRepo(t *testing.T) {
	_, c := newSecretServer(t)

	err := c.PutSecret(t.Context(), "octo/missing", "X", []byte("v"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestUploadFileRejectsInvalidJSON(t *testing.T) {
	_, c := newSecretServer(t)
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	err := c.UploadFile(t.Context(), "octo/runs", "X", path)
	require.ErrorContains(t, err, "not valid JSON")
}

func TestSealRejectsShortKey(t *testing.T) {
	_, err := Seal(&PublicKey{KeyID: "k", Key: base64.StdEncoding.EncodeToString([]byte("short"))}, []byte("v"))
	require.Error(t, err)
}

func TestResolveRepo(t *testing.T) {
	repo, err := ResolveRepo("octo/runs")
	require.NoError(t, err)
	assert.Equal(t, "octo/runs", repo)

	t.Setenv("GITHUB_REPOSITORY", "octo/env")
	repo, err = ResolveRepo("")
	require.NoError(t, err)
	assert.Equal(t, "octo/env", repo)

	_, err = ResolveRepo("no-slash")
	require.Error(t, err)
}
