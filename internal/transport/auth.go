package transport

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type clientKey struct{}

// ClientResolver resolves a client name from a bearer token.
type ClientResolver interface {
	ResolveClient(ctx context.Context, token string) (string, error)
}

// ClientFromContext returns the authenticated client name, if present.
func ClientFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(clientKey{}).(string)
	return name, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver ClientResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			name, err := resolver.ResolveClient(r.Context(), token)
			if err != nil || name == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), clientKey{}, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaticTokens resolves clients from a fixed token table. Only token
// hashes are kept in memory.
type StaticTokens struct {
	hashes map[string]string
}

// NewStaticTokens builds a resolver from client name to token.
func NewStaticTokens(tokens map[string]string) *StaticTokens {
	s := &StaticTokens{hashes: make(map[string]string, len(tokens))}
	for name, token := range tokens {
		if token == "" {
			continue
		}
		s.hashes[hashToken(token)] = name
	}
	return s
}

// ResolveClient implements ClientResolver.
func (s *StaticTokens) ResolveClient(_ context.Context, token string) (string, error) {
	want := hashToken(token)
	for hash, name := range s.hashes {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(want)) == 1 {
			return name, nil
		}
	}
	return "", ErrUnauthorized
}

// Empty reports whether no tokens are configured.
func (s *StaticTokens) Empty() bool {
	return len(s.hashes) == 0
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
