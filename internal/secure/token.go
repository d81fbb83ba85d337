// Package secure holds the crypto primitives of the code engine: CSPRNG token
// generation, keyed hashing for at-rest code storage, constant-time comparison
// and authenticated encryption for reversible PII fields.
package secure

import (
	"crypto/rand"
	"fmt"
)

// RandomToken returns a string of length n with every character drawn
// uniformly from alphabet, using the platform CSPRNG. Rejection sampling keeps
// the distribution uniform when the alphabet does not divide 256.
func RandomToken(n int, alphabet string) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", fmt.Errorf("alphabet size must be in 1..256, got %d", len(alphabet))
	}

	// Largest multiple of len(alphabet) that fits in a byte; bytes at or above
	// it are re-drawn.
	limit := 256 - 256%len(alphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
