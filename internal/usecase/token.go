package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"gate-admission/internal/domain"
)

const (
	minTokenLength = 8
	maxTokenLength = 64
)

// NormalizeToken upper-cases a presented QR or manual code, drops whitespace and
// restores the dash of a manual code typed without it.
func NormalizeToken(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			continue
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			return "", domain.ErrInvalidToken
		}
	}
	tok := b.String()
	if len(tok) < minTokenLength || len(tok) > maxTokenLength {
		return "", domain.ErrInvalidToken
	}
	if len(tok) == manualCodeLength && isManualAlphabet(tok) {
		tok = tok[:4] + "-" + tok[4:]
	}
	return tok, nil
}

func isManualAlphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(manualAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// HashToken is what check events store instead of the presented code.
func HashToken(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
