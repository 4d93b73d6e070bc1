package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParse_ValidHS256(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: "u1", Roles: []string{RoleOperator}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParse_RejectsUnexpectedAlgorithm(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		UserID: "u1",
		Roles:  []string{RoleOperator},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "u1",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatalf("expected parse to reject non-HS256 token")
	}
}

func TestParse_RejectsExpiredAndForeignTokens(t *testing.T) {
	secret := []byte("test-secret")
	expired, err := Issue(secret, Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(secret, expired); err == nil {
		t.Fatal("expired token accepted")
	}

	foreign, err := Issue([]byte("other"), Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(secret, foreign); err == nil {
		t.Fatal("token signed with another key accepted")
	}
}

func TestClaimsHasRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		role  string
		want  bool
	}{
		{"operator writes", []string{RoleOperator}, RoleOperator, true},
		{"operator reads", []string{RoleOperator}, RoleViewer, true},
		{"viewer reads", []string{RoleViewer}, RoleViewer, true},
		{"viewer cannot write", []string{RoleViewer}, RoleOperator, false},
		{"no roles", nil, RoleViewer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Roles: tt.roles}
			if got := c.HasRole(tt.role); got != tt.want {
				t.Fatalf("HasRole(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestParse_RequiresIssuer(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatal("token from another issuer accepted")
	}
}
