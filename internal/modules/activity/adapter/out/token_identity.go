package out

import (
	"context"
	"strings"

	"mindmosaic/internal/platform/auth"
	"mindmosaic/internal/platform/clock"
)

// TokenIdentity derives the user from a bearer JWT. With a verifier the
// signature is checked; without one only the claims are read.
type TokenIdentity struct {
	token    string
	verifier *auth.Verifier
	clock    clock.Clock
}

func NewTokenIdentity(token string, verifier *auth.Verifier, clk clock.Clock) TokenIdentity {
	return TokenIdentity{token: strings.TrimSpace(token), verifier: verifier, clock: clk}
}

func (i TokenIdentity) IsAuthenticated(ctx context.Context) bool {
	_, ok := i.principal()
	return ok
}

func (i TokenIdentity) UserID(ctx context.Context) string {
	p, _ := i.principal()
	return p.UserID
}

func (i TokenIdentity) principal() (auth.Principal, bool) {
	if i.token == "" {
		return auth.Principal{}, false
	}
	var (
		p   auth.Principal
		err error
	)
	if i.verifier != nil {
		p, err = i.verifier.Verify(i.token)
	} else {
		p, err = auth.Inspect(i.token, i.clock.Now())
	}
	if err != nil {
		return auth.Principal{}, false
	}
	return p, true
}
