package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const minSecretLength = 32

// ClientID issues and verifies the signed cookie that identifies a browser
// to the API. The value is an opaque random id, never user data.
type ClientID struct {
	cfg     Config
	secrets [][]byte
}

func NewClientID(cfg Config) (*ClientID, error) {
	raw := cfg.secrets()
	if len(raw) == 0 {
		return nil, ErrNoSecret
	}
	secrets := make([][]byte, 0, len(raw))
	for i, s := range raw {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
		secrets = append(secrets, []byte(s))
	}
	if cfg.Name == "" {
		cfg.Name = "fintrack_client"
	}
	return &ClientID{cfg: cfg, secrets: secrets}, nil
}

// Get returns the verified client id of r.
func (c *ClientID) Get(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.cfg.Name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return c.verify(ck.Value)
}

// Ensure returns the client id of r, issuing a new one on w when the cookie
// is missing or fails verification. The boolean reports a new id.
func (c *ClientID) Ensure(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id, err := c.Get(r); err == nil {
		return id, false
	}
	id := uuid.NewString()
	c.set(w, c.sign(id), c.cfg.MaxAge)
	return id, true
}

// Clear removes the cookie.
func (c *ClientID) Clear(w http.ResponseWriter) {
	c.set(w, "", -1)
}

func (c *ClientID) set(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    value,
		Path:     "/",
		Domain:   c.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	})
}

func (c *ClientID) sign(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value)) + "." + mac(c.secrets[0], value)
}

// verify accepts signatures of any configured secret, so secrets can be
// rotated without dropping every client.
func (c *ClientID) verify(signed string) (string, error) {
	encoded, sig, ok := strings.Cut(signed, ".")
	if !ok {
		return "", ErrInvalidFormat
	}
	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidFormat
	}
	for _, secret := range c.secrets {
		if hmac.Equal([]byte(sig), []byte(mac(secret, string(value)))) {
			return string(value), nil
		}
	}
	return "", ErrInvalidSignature
}

func mac(secret []byte, value string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
