package x402

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSessionExpired distinguishes a well-formed but stale credential from
// garbage; the gate answers the two cases differently.
var ErrSessionExpired = errors.New("session expired")

// Session is the decoded x402 session credential.
type Session struct {
	Subject   string
	AuthHash  string // hash of the original payment authorization
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionManager mints and validates session credentials. Tokens are
// HS256-signed so a forged or tampered token fails verification instead
// of being accepted on parse.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret []byte, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionManager{secret: secret, ttl: ttl, now: time.Now}
}

// Mint issues a credential binding the payer identity to the hash of the
// payment authorization that opened the session.
func (m *SessionManager) Mint(subject, authHash string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"sig": authHash,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	})
	return token.SignedString(m.secret)
}

// Decode verifies and parses a credential. An expired but authentic token
// returns the session alongside ErrSessionExpired; anything else invalid
// returns a plain error.
func (m *SessionManager) Decode(tokenStr string) (*Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid session claims")
	}

	sess := &Session{}
	if sub, ok := claims["sub"].(string); ok {
		sess.Subject = sub
	}
	if sig, ok := claims["sig"].(string); ok {
		sess.AuthHash = sig
	}
	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, errors.New("session token missing iat")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, errors.New("session token missing exp")
	}
	sess.IssuedAt = time.Unix(int64(iat), 0)
	sess.ExpiresAt = time.Unix(int64(exp), 0)

	if !sess.ExpiresAt.After(m.now()) {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// AuthorizationHash fingerprints a raw payment-authorization header for
// embedding in the session credential and for nonce replay tracking.
func AuthorizationHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
