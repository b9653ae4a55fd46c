package auth_test

import (
	"testing"
	"time"

	"mindmosaic/internal/platform/auth"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()
	now := time.Now()
	v, err := auth.NewVerifier("s3cret", func() time.Time { return now })
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := v.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "user-1" {
		t.Fatalf("expected subject user-1, got %q", p.UserID)
	}
	if p.ExpiresAt.IsZero() {
		t.Fatalf("expected expiry to be set")
	}
}

func TestVerifyRejectsWrongSecretAndExpiredTokens(t *testing.T) {
	t.Parallel()
	now := time.Now()
	issuer, _ := auth.NewVerifier("one", func() time.Time { return now })
	other, _ := auth.NewVerifier("two", func() time.Time { return now })
	token, err := issuer.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
	later, _ := auth.NewVerifier("one", func() time.Time { return now.Add(2 * time.Hour) })
	if _, err := later.Verify(token); err == nil {
		t.Fatalf("expired token must fail")
	}
	if _, err := issuer.Verify(""); err == nil {
		t.Fatalf("empty token must fail")
	}
	if _, err := auth.NewVerifier(" ", nil); err == nil {
		t.Fatalf("blank secret must fail")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	if tok, ok := auth.BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q %v", tok, ok)
	}
	if _, ok := auth.BearerToken("Basic abc"); ok {
		t.Fatalf("basic auth must not parse as bearer")
	}
}

func TestInspectReadsClaimsWithoutSecret(t *testing.T) {
	t.Parallel()
	now := time.Now()
	v, _ := auth.NewVerifier("s3cret", func() time.Time { return now })
	token, err := v.Issue("user-7", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := auth.Inspect(token, now)
	if err != nil || p.UserID != "user-7" {
		t.Fatalf("inspect: %+v %v", p, err)
	}
	if _, err := auth.Inspect(token, now.Add(time.Hour)); err == nil {
		t.Fatalf("expired token must fail inspection")
	}
	if _, err := auth.Inspect("not-a-jwt", now); err == nil {
		t.Fatalf("malformed token must fail inspection")
	}
}
