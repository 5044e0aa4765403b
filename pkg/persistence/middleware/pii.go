package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks Session.Data values whose
// keys match any of the patterns in List results. List feeds the inspection
// surfaces (HTTP /sessions, MCP list_sessions); Get is left untouched so steps
// still see the real values.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	return m.next.Get(ctx, userID)
}

func (m *redactMiddleware) Put(ctx context.Context, s *domain.Session) error {
	return m.next.Put(ctx, s)
}

func (m *redactMiddleware) Remove(ctx context.Context, userID int64) error {
	return m.next.Remove(ctx, userID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]*domain.Session, error) {
	sessions, err := m.next.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, len(sessions))
	for i, s := range sessions {
		c := s.Clone()
		c.Data = deepCopyMap(s.Data)
		maskMap(c.Data, m.patterns)
		out[i] = c
	}
	return out, nil
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
