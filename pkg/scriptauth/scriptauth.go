// Package scriptauth issues and validates short-lived session tokens for
// pkg/scripthost, so a client can drop a websocket/TCP connection and
// reconnect to an in-flight, input-blocked script without losing the
// VM's runtime state. One claims-plus-secret token kind, HS256-signed.
package scriptauth

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/antibyte/hspc/pkg/hlog"
)

const (
	defaultSecret     = "fallback_secret_change_in_production"
	defaultExpiration = 2 * time.Hour
)

func secretKey() string {
	if s := os.Getenv("HSPC_SESSION_SECRET"); s != "" {
		return s
	}
	return defaultSecret
}

// SessionClaims identifies one reconnectable script session: a running
// *hsp.VM lives on the host side keyed by SessionID, suspended on an
// input builtin until the matching client reconnects with a valid
// token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// IssueToken signs a session token valid for defaultExpiration.
func IssueToken(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(defaultExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "hspc-scripthost",
			Subject:   "script-session",
			ID:        sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secretKey()))
	if err != nil {
		return "", fmt.Errorf("session token could not be signed: %w", err)
	}
	hlog.DebugLog(hlog.AreaHost, "issued session token for %s", sessionID)
	return signed, nil
}

// ValidateToken parses and verifies a session token, rejecting expired
// or malformed ones.
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %v", t.Header["alg"])
		}
		return []byte(secretKey()), nil
	})
	if err != nil {
		return nil, fmt.Errorf("session token parsing failed: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	if claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("session token has expired")
	}
	return claims, nil
}

// ExtractTokenFromRequest pulls a bearer token from the Authorization
// header or a "session_token" query parameter.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}
	if tok := r.URL.Query().Get("session_token"); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("no session token found in request")
}
