package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/config"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "shopsphere",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now().UTC()
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	cases := []struct {
		name string
		cfg  config.JWTConfig
		role enums.UserRole
		want string
	}{
		{name: "missing secret", cfg: config.JWTConfig{Issuer: "shopsphere", ExpirationMinutes: 5}, role: payload.Role, want: "secret"},
		{name: "missing issuer", cfg: config.JWTConfig{Secret: "s", ExpirationMinutes: 5}, role: payload.Role, want: "issuer"},
		{name: "bad ttl", cfg: config.JWTConfig{Secret: "s", Issuer: "i"}, role: payload.Role, want: "expiration"},
		{name: "bad role", cfg: config.JWTConfig{Secret: "s", Issuer: "i", ExpirationMinutes: 5}, role: enums.UserRole("root"), want: "role"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := payload
			p.Role = tc.role
			_, err := MintAccessToken(tc.cfg, now, p)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	minted, err := MintAccessToken(config.JWTConfig{
		Secret:            "secret",
		Issuer:            "someone-else",
		ExpirationMinutes: 5,
	}, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "shopsphere"}, minted)
	if err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}
