package auth

import (
	"strings"
	"testing"

	"github.com/tranmanhhung/sn111/internal/config"
)

func TestGenerateAndVerify(t *testing.T) {
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q missing prefix", token)
	}
	if len(token) != len(TokenPrefix)+tokenLength*2 {
		t.Errorf("token length = %d", len(token))
	}
	if !VerifyToken(token, hash) {
		t.Error("generated token does not verify against its own hash")
	}
	if VerifyToken(TokenPrefix+strings.Repeat("0", tokenLength*2), hash) {
		t.Error("wrong token verified")
	}
}

func TestVerifyAcceptsBareSecret(t *testing.T) {
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	bare := strings.TrimPrefix(token, TokenPrefix)
	if !VerifyToken(bare, hash) {
		t.Error("secret without prefix rejected")
	}
}

func TestMaskToken(t *testing.T) {
	token := TokenPrefix + strings.Repeat("a", 64)
	masked := MaskToken(token)
	if strings.Contains(masked, strings.Repeat("a", 12)) {
		t.Errorf("mask leaks secret: %q", masked)
	}
	if !strings.HasPrefix(masked, TokenPrefix) {
		t.Errorf("mask dropped prefix: %q", masked)
	}
	if MaskToken("short") != "****" {
		t.Errorf("short token mask = %q", MaskToken("short"))
	}
}

func TestGuard(t *testing.T) {
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Run("disabled admits everything", func(t *testing.T) {
		g := NewGuard(config.AuthConfig{Enabled: false})
		if !g.Allow("") || !g.Allow("junk") {
			t.Error("disabled guard rejected a request")
		}
	})

	t.Run("enabled requires the token", func(t *testing.T) {
		g := NewGuard(config.AuthConfig{Enabled: true, TokenHash: hash})
		if !g.Allow(token) {
			t.Error("valid token rejected")
		}
		if g.Allow("") {
			t.Error("empty token admitted")
		}
		if g.Allow(TokenPrefix + strings.Repeat("f", 64)) {
			t.Error("wrong token admitted")
		}
	})

	t.Run("enabled without hash rejects", func(t *testing.T) {
		g := NewGuard(config.AuthConfig{Enabled: true})
		if g.Allow(token) {
			t.Error("guard with no hash admitted a token")
		}
	})
}
