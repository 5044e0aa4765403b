package domain

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxPayloadSize matches the longest message chat platforms accept.
	DefaultMaxPayloadSize = 4096
	// EnvMaxPayloadSize overrides DefaultMaxPayloadSize.
	EnvMaxPayloadSize = "RELAY_MAX_PAYLOAD_SIZE"
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("payload contains invalid UTF-8 sequences")
)

// SanitizePayload enforces the size limit, validates UTF-8 and strips
// control characters other than newline, tab and carriage return.
// Adapters call it on every inbound event before dispatch.
func SanitizePayload(payload string) (string, error) {
	limit := maxPayloadSize()
	if len(payload) > limit {
		// Rejected rather than truncated: a cut callback payload could match another route.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrPayloadTooLarge, len(payload), limit)
	}
	if !utf8.ValidString(payload) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(payload, unsafeControl) < 0 {
		return payload, nil
	}
	var b strings.Builder
	b.Grow(len(payload))
	for _, r := range payload {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxPayloadSize() int {
	if val := os.Getenv(EnvMaxPayloadSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxPayloadSize
}
