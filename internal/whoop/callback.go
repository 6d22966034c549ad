package whoop

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"time"
)

// CallbackServer runs the authorization-code flow against a local HTTPS
// listener. WHOOP only accepts https redirect URIs, so the server presents a
// throwaway self-signed certificate for localhost.
type CallbackServer struct {
	auth   *Auth
	port   int
	state  string
	logger *slog.Logger

	result chan callbackResult
}

type callbackResult struct {
	tokens *TokenData
	err    error
}

func NewCallbackServer(auth *Auth, port int, logger *slog.Logger) (*CallbackServer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating oauth state: %w", err)
	}
	return &CallbackServer{
		auth:   auth,
		port:   port,
		state:  hex.EncodeToString(buf),
		logger: logger,
		result: make(chan callbackResult, 1),
	}, nil
}

func (s *CallbackServer) RedirectURL() string {
	return fmt.Sprintf("https://localhost:%d/callback", s.port)
}

// StartURL is the local page that redirects the browser to WHOOP's consent page.
func (s *CallbackServer) StartURL() string {
	return fmt.Sprintf("https://localhost:%d/", s.port)
}

func (s *CallbackServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, s.auth.AuthCodeURL(s.RedirectURL(), s.state), http.StatusFound)
	})
	mux.HandleFunc("/callback", s.handleCallback)
	return mux
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		err := fmt.Errorf("authorization denied: %s %s", e, q.Get("error_description"))
		s.finish(nil, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Get("state") != s.state {
		s.logger.Warn("oauth callback with mismatched state")
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	tokens, err := s.auth.Exchange(r.Context(), s.RedirectURL(), code)
	if err != nil {
		s.logger.Error("obtaining token", "error", err)
		s.finish(nil, err)
		http.Error(w, fmt.Sprintf("Error obtaining token: %v", err), http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "Tokens saved to %s. You may close this window.\n", s.auth.store.Path)
	s.finish(tokens, nil)
}

func (s *CallbackServer) finish(tokens *TokenData, err error) {
	select {
	case s.result <- callbackResult{tokens: tokens, err: err}:
	default:
	}
}

// Run serves until the callback completes or ctx is cancelled. onReady is
// called with the URL the user should open once the listener is up.
func (s *CallbackServer) Run(ctx context.Context, onReady func(url string)) (*TokenData, error) {
	cert, err := selfSignedCert(time.Now())
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
	if err != nil {
		return nil, fmt.Errorf("listening on port %d: %w", s.port, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}},
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ServeTLS(ln, "", "")
	}()

	s.logger.Info("local HTTPS server started", "redirect_uri", s.RedirectURL())
	if onReady != nil {
		onReady(s.StartURL())
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		res.err = ctx.Err()
	case res = <-s.result:
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			res.err = fmt.Errorf("serving callback: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Debug("callback server shutdown", "error", err)
	}

	return res.tokens, res.err
}

func selfSignedCert(now time.Time) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("creating certificate: %w", err)
	}

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
