package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Operations a signed URL can grant.
const (
	OpGet = "get"
	OpPut = "put"
)

// ErrBadSignature is returned by Verify for tampered or expired URLs.
var ErrBadSignature = errors.New("storage: invalid or expired signature")

// SignedURL is a time-limited access grant for one artifact key.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Signer mints and verifies HMAC-signed artifact URLs. It plays the role an
// object store's presigner would: holders of a signed URL can fetch or upload
// exactly one key until the expiry, nothing else.
type Signer struct {
	secret  []byte
	baseURL string

	// Now is overridable so tests can pin expiry checks.
	Now func() time.Time
}

// NewSigner creates a Signer serving URLs under baseURL (scheme://host[:port]).
func NewSigner(secret, baseURL string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("storage: signing secret is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: base url is required")
	}
	return &Signer{secret: []byte(secret), baseURL: baseURL, Now: time.Now}, nil
}

// Sign issues a signed URL for op on key, valid for ttl.
func (s *Signer) Sign(key, op string, ttl time.Duration) (SignedURL, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return SignedURL{}, err
	}
	if op != OpGet && op != OpPut {
		return SignedURL{}, fmt.Errorf("storage: unsupported operation %q", op)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	expires := s.Now().Add(ttl)
	sig := s.signature(cleanKey, op, expires.Unix())

	q := url.Values{}
	q.Set("op", op)
	q.Set("exp", strconv.FormatInt(expires.Unix(), 10))
	q.Set("sig", sig)
	return SignedURL{
		URL:       fmt.Sprintf("%s/artifacts/%s?%s", s.baseURL, cleanKey, q.Encode()),
		ExpiresAt: expires,
	}, nil
}

// Verify checks the signature and expiry for an op on key.
func (s *Signer) Verify(key, op string, expires int64, sig string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if s.Now().Unix() > expires {
		return ErrBadSignature
	}
	want := s.signature(cleanKey, op, expires)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

func (s *Signer) signature(key, op string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", op, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
