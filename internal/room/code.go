// internal/room/code.go
package room

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	// CodeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
	// Its length is 32, so a random byte masked to 5 bits picks a letter uniformly.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	maxCodeAttempts = 64
)

// CodeGenerator produces room codes from a random source.
type CodeGenerator struct {
	src io.Reader
}

// NewCodeGenerator returns a generator reading from src, or crypto/rand when src is nil.
func NewCodeGenerator(src io.Reader) *CodeGenerator {
	if src == nil {
		src = rand.Reader
	}
	return &CodeGenerator{src: src}
}

// Generate returns a code for which taken reports false. It retries on collision and
// gives up after a bounded number of attempts, which is unreachable in practice.
func (g *CodeGenerator) Generate(taken func(code string) bool) (string, error) {
	buf := make([]byte, CodeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for i, b := range buf {
			buf[i] = CodeAlphabet[b&31]
		}
		code := string(buf)
		if !taken(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free room code after %d attempts", ErrInternal, maxCodeAttempts)
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidCode reports whether s has the right length and only alphabet characters.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(CodeAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
