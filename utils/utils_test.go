package utils

import (
	"strings"
	"testing"
	"time"
)

func TestToFloat(t *testing.T) {
	cases := map[string]float64{
		"42":     42,
		" 7.5 ":  7.5,
		"":       0,
		"abc":    0,
		"NaN":    0,
		"-3":     -3,
		"1e2":    100,
		"+Inf":   0,
		"12hp":   0,
		"0.0001": 0.0001,
	}
	for in, want := range cases {
		if got := ToFloat(in); got != want {
			t.Errorf("ToFloat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPasswordHash("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("hunter3", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("testsecret", time.Hour)
	tok, err := tm.GenerateJWT("abc123", "owner")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := tm.ValidateJWT(tok)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "abc123" || claims.Role != "owner" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenRejected(t *testing.T) {
	tm := NewTokenManager("testsecret", time.Hour)
	tok, _ := tm.GenerateJWT("abc123", "renter")

	other := NewTokenManager("othersecret", time.Hour)
	if _, err := other.ValidateJWT(tok); err == nil {
		t.Error("token signed with another key accepted")
	}

	expired := NewTokenManager("testsecret", -time.Minute)
	old, _ := expired.GenerateJWT("abc123", "renter")
	_, err := tm.ValidateJWT(old)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("expired token error = %v", err)
	}

	if _, err := tm.ValidateJWT("not.a.token"); err == nil {
		t.Error("garbage token accepted")
	}
}
