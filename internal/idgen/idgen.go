package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a UUIDv7 identifier string.
// If UUIDv7 generation fails, it falls back to a random UUIDv4.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Disambiguate derives a replacement id from one that a non-compliant
// remote reused for different content. The original id stays recognizable
// as a prefix; the key makes the result unique within the task. Callers
// pass a key derived from the content so the same input always maps to
// the same id; an empty key falls back to a random suffix.
func Disambiguate(id, key string) string {
	base := strings.TrimSpace(id)
	if base == "" {
		return New()
	}
	if key == "" {
		key = New()
	}
	return base + "#" + key
}
