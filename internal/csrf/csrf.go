// internal/csrf/csrf.go
//
// formlab – stateless CSRF tokens.
//
// Context
//   Every rendered form embeds a hidden `csrf_token` input.  POST handlers
//   verify it before the record reaches a controller.  Tokens are stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(key, binding+nonce+unixMicro) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – issue time, 8 bytes, big-endian.
//   •  binding – the visitor session id, so a token minted for one visitor
//      is useless to another.
//
//   Verification checks the signature and that the issue time lies within
//   MaxAge (with one minute of tolerated clock skew).
//
// Workflow
//   •  NewSigner(key) or NewSigner(nil) for an ephemeral random key.
//   •  s.Token(binding)         → token string for the renderer.
//   •  s.Verify(binding, tok)   → constant-time verify; false on any failure.
//
//------------------------------------------------------------------------------

package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

const (
	nonceBytes = 16
	tokenBytes = nonceBytes + 8 + sha256.Size
	skew       = time.Minute
)

// DefaultMaxAge is the validity window used when Signer.MaxAge is zero.
const DefaultMaxAge = 2 * time.Hour

// ErrShortKey is returned by NewSigner for keys under 32 bytes.
var ErrShortKey = errors.New("csrf: key must be at least 32 bytes")

// Signer mints and verifies tokens with one HMAC key.
type Signer struct {
	key    []byte
	MaxAge time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer using key.  A nil key generates a random one;
// tokens then stop verifying after a restart.
func NewSigner(key []byte) (*Signer, error) {
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if len(key) < 32 {
		return nil, ErrShortKey
	}
	return &Signer{key: append([]byte(nil), key...), now: time.Now}, nil
}

// DecodeKey parses a base64url (raw or padded) or std-base64 key string.
func DecodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("csrf: key is not base64")
}

// Token creates a token bound to binding.  Call once per form render.
func (s *Signer) Token(binding string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(s.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, s.sign(binding, nonce, ts)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify reports whether tok was minted by this signer for binding and is
// still within MaxAge.
func (s *Signer) Verify(binding, tok string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}
	nonce := raw[:nonceBytes]
	tsBytes := raw[nonceBytes : nonceBytes+8]
	sig := raw[nonceBytes+8:]

	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	now := s.now()
	if now.Sub(issued) > maxAge || issued.Sub(now) > skew {
		return false
	}

	return hmac.Equal(sig, s.sign(binding, nonce, tsBytes))
}

func (s *Signer) sign(binding string, nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(binding))
	mac.Write([]byte{0})
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}
