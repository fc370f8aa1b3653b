package admin

import (
	"errors"
	"testing"
	"time"

	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/golang-jwt/jwt/v5"
)

func testJWTConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "unit-test-secret"
	cfg.JWT.Issuer = "go-docvault-test"
	cfg.JWT.ExpiresIn = time.Hour
	cfg.JWT.RefreshExpireHours = 72 * time.Hour
	return cfg
}

// signedToken 手工拼一个指定签发时间的 Token，用于模拟过窗的旧凭证
func signedToken(t *testing.T, cfg *config.Config, issuedAt time.Time) string {
	t.Helper()
	claims := &utils.Claims{
		UserID:   42,
		Username: "alice",
		Role:     "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    cfg.JWT.Issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.SecretKey))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestRefreshTokenReissues(t *testing.T) {
	cfg := testJWTConfig()
	svc := NewAuthService(nil, cfg)

	old := signedToken(t, cfg, time.Now().Add(-time.Minute))
	fresh, err := svc.RefreshToken(old)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}

	claims, err := utils.ParseToken(fresh, cfg.JWT.SecretKey)
	if err != nil {
		t.Fatalf("reissued token does not parse: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != "user" {
		t.Errorf("reissued claims = %d/%s/%s, want 42/alice/user", claims.UserID, claims.Username, claims.Role)
	}
}

func TestRefreshTokenRejects(t *testing.T) {
	cfg := testJWTConfig()
	svc := NewAuthService(nil, cfg)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage token", "not.a.token"},
		{"wrong secret", func() string {
			other := testJWTConfig()
			other.JWT.SecretKey = "another-secret"
			return signedToken(t, other, time.Now())
		}()},
		{"outside refresh window", signedToken(t, cfg, time.Now().Add(-100*time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RefreshToken(tt.token); !errors.Is(err, xerr.ErrTokenInvalid) {
				t.Errorf("RefreshToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
