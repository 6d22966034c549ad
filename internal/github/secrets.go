package github

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/crypto/nacl/box"
)

// PublicKey is a repository's Actions secrets encryption key.
type PublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

// GetPublicKey fetches the key used to seal Actions secrets for repo.
func (c *Client) GetPublicKey(ctx context.Context, repo string) (*PublicKey, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/repos/"+repo+"/actions/secrets/public-key", nil)
	if err != nil {
		return nil, fmt.Errorf("getting public key for %s: %w", repo, err)
	}

	var pk PublicKey
	if err := json.Unmarshal(data, &pk); err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if pk.KeyID == "" || pk.Key == "" {
		return nil, fmt.Errorf("public key response for %s is incomplete", repo)
	}
	return &pk, nil
}

// Seal encrypts value as a libsodium sealed box for the given key.
func Seal(pk *PublicKey, value []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(pk.Key)
	if err != nil {
		return "", fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("public key has %d bytes, want 32", len(raw))
	}

	var recipient [32]byte
	copy(recipient[:], raw)

	sealed, err := box.SealAnonymous(nil, value, &recipient, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("sealing secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// PutSecret creates or replaces an Actions secret in repo.
func (c *Client) PutSecret(ctx context.Context, repo, name string, value []byte) error {
	pk, err := c.GetPublicKey(ctx, repo)
	if err != nil {
		return err
	}

	encrypted, err := Seal(pk, value)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"encrypted_value": encrypted,
		"key_id":          pk.KeyID,
	})
	if err != nil {
		return fmt.Errorf("encoding secret payload: %w", err)
	}

	path := fmt.Sprintf("/repos/%s/actions/secrets/%s", repo, url.PathEscape(name))
	if _, err := c.doRequest(ctx, http.MethodPut, path, payload); err != nil {
		return fmt.Errorf("putting secret %s: %w", name, err)
	}

	c.logger.Info("secret updated", "repo", repo, "secret", name, "key_id", pk.KeyID)
	return nil
}

// UploadFile stores the contents of a JSON file as an Actions secret.
func (c *Client) UploadFile(ctx context.Context, repo, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s is not valid JSON", path)
	}
	return c.PutSecret(ctx, repo, name, data)
}
