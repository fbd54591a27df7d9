package scriptauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	id := NewSessionID()

	tok, err := IssueToken(id)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.SessionID != id {
		t.Errorf("SessionID = %q, want %q", claims.SessionID, id)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-jwt"); err == nil {
		t.Error("ValidateToken() on garbage input returned nil error")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: NewSessionID(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secretKey()))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := ValidateToken(signed); err == nil {
		t.Error("ValidateToken() on expired token returned nil error")
	}
}

func TestExtractTokenFromRequestBearerHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/run", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	tok, err := ExtractTokenFromRequest(r)
	if err != nil {
		t.Fatalf("ExtractTokenFromRequest() error = %v", err)
	}
	if tok != "abc123" {
		t.Errorf("token = %q, want %q", tok, "abc123")
	}
}

func TestExtractTokenFromRequestQueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/run?session_token=xyz789", nil)

	tok, err := ExtractTokenFromRequest(r)
	if err != nil {
		t.Fatalf("ExtractTokenFromRequest() error = %v", err)
	}
	if tok != "xyz789" {
		t.Errorf("token = %q, want %q", tok, "xyz789")
	}
}

func TestExtractTokenFromRequestMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/run", nil)

	if _, err := ExtractTokenFromRequest(r); err == nil {
		t.Error("ExtractTokenFromRequest() with no token returned nil error")
	}
}
