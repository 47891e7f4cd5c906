// Package auth turns bearer tokens into verified actors.
//
// Credential issuance lives elsewhere; this package only checks a presented
// token against the configured table and reports the identity and role it
// stands for.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"templateflow/internal/config"
	"templateflow/internal/workflow"
)

// ErrCredentialInvalid reports a missing or unknown token.
var ErrCredentialInvalid = errors.New("credential invalid")

// Verifier resolves a bearer token to the actor it authenticates.
type Verifier interface {
	Verify(ctx context.Context, token string) (workflow.Actor, error)
}

type staticEntry struct {
	token string
	actor workflow.Actor
}

// StaticVerifier checks tokens against a fixed table.
type StaticVerifier struct {
	entries []staticEntry
}

// NewStaticVerifier builds a verifier from configured tokens.
func NewStaticVerifier(tokens []config.Token) *StaticVerifier {
	entries := make([]staticEntry, 0, len(tokens))
	for _, tok := range tokens {
		if strings.TrimSpace(tok.Token) == "" {
			continue
		}
		entries = append(entries, staticEntry{
			token: tok.Token,
			actor: workflow.Actor{Identity: tok.Identity, Role: tok.Role},
		})
	}
	return &StaticVerifier{entries: entries}
}

// Verify implements Verifier with constant-time token comparison.
func (v *StaticVerifier) Verify(_ context.Context, token string) (workflow.Actor, error) {
	if token == "" {
		return workflow.Actor{}, ErrCredentialInvalid
	}
	var (
		found workflow.Actor
		ok    bool
	)
	for _, entry := range v.entries {
		if subtle.ConstantTimeCompare([]byte(entry.token), []byte(token)) == 1 {
			found, ok = entry.actor, true
		}
	}
	if !ok {
		return workflow.Actor{}, ErrCredentialInvalid
	}
	return found, nil
}

// IdentitiesWithRole lists the distinct identities configured with role, in
// table order.
func (v *StaticVerifier) IdentitiesWithRole(role string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range v.entries {
		if entry.actor.Role != role || entry.actor.Identity == "" {
			continue
		}
		if _, ok := seen[entry.actor.Identity]; ok {
			continue
		}
		seen[entry.actor.Identity] = struct{}{}
		out = append(out, entry.actor.Identity)
	}
	return out
}

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the
// token query parameter browsers use for WebSocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

type actorKey struct{}

// WithActor stores the verified actor on ctx.
func WithActor(ctx context.Context, actor workflow.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the verified actor stored on ctx.
func ActorFrom(ctx context.Context) (workflow.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(workflow.Actor)
	return actor, ok
}

// Middleware rejects requests without a valid token with 401 and stores the
// verified actor on the request context otherwise.
func Middleware(verifier Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := verifier.Verify(r.Context(), TokenFromRequest(r))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
