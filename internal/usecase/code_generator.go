package usecase

import (
	"crypto/rand"
	"encoding/base32"
	"io"
)

// CredentialCodes is one freshly generated QR/manual pair.
type CredentialCodes struct {
	QR     string
	Manual string
}

// CodeGenerator produces candidate codes. Uniqueness is checked against the store.
type CodeGenerator interface {
	Generate() (CredentialCodes, error)
}

// A character set that avoids ambiguous characters like O/0, I/1, l.
const manualAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	manualCodeLength = 8
	qrEntropyBytes   = 20
)

type randomCodeGenerator struct {
	src io.Reader
}

// NewCodeGenerator returns a generator backed by crypto/rand.
func NewCodeGenerator() CodeGenerator {
	return &randomCodeGenerator{src: rand.Reader}
}

func (g *randomCodeGenerator) Generate() (CredentialCodes, error) {
	qr, err := g.qrCode()
	if err != nil {
		return CredentialCodes{}, err
	}
	manual, err := g.manualCode()
	if err != nil {
		return CredentialCodes{}, err
	}
	return CredentialCodes{QR: qr, Manual: manual}, nil
}

// qrCode encodes 160 random bits as 32 base32 characters.
func (g *randomCodeGenerator) qrCode() (string, error) {
	buf := make([]byte, qrEntropyBytes)
	if _, err := io.ReadFull(g.src, buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// manualCode creates a short human-typeable code. Format: XXXX-XXXX
func (g *randomCodeGenerator) manualCode() (string, error) {
	buffer := make([]byte, manualCodeLength)
	if _, err := io.ReadFull(g.src, buffer); err != nil {
		return "", err
	}

	// 256 is a multiple of 32, so the modulo keeps the distribution uniform.
	for i := 0; i < manualCodeLength; i++ {
		buffer[i] = manualAlphabet[int(buffer[i])%len(manualAlphabet)]
	}

	return string(buffer[0:4]) + "-" + string(buffer[4:8]), nil
}
