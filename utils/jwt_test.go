package utils

import (
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "a@example.com", "user", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.Role != "user" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("user-1", "a@example.com", "user", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	if _, err := ParseToken("not.a.token"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestVisibleIDShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewVisibleID()
		if len(id) != 10 {
			t.Fatalf("visible id %q length = %d, want 10", id, len(id))
		}
		if seen[id] {
			t.Fatalf("visible id %q repeated within 100 draws", id)
		}
		seen[id] = true
	}
	if len(NewShareCode()) != 12 {
		t.Fatalf("share code length = %d, want 12", len(NewShareCode()))
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("valid password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
