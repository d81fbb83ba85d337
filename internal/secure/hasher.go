package secure

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Hasher derives the at-rest hash of invite codes. HMAC-SHA256 with a server
// key keeps the hash deterministic (it doubles as the store lookup key) while
// a leaked hash table stays useless without the key. The key must never be
// stored next to the hashes.
type Hasher struct {
	key []byte
}

func NewHasher(key string) *Hasher {
	return &Hasher{key: []byte(key)}
}

// Hash returns the hex-encoded HMAC-SHA256 of code.
func (h *Hasher) Hash(code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEquals compares two strings without short-circuiting on the
// first differing byte.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskCode renders a code safe for audit details and logs: the first segment
// and the last two characters survive, everything else is starred.
func MaskCode(code string) string {
	if code == "" {
		return ""
	}
	first := code
	if i := strings.IndexByte(code, '-'); i > 0 {
		first = code[:i]
	}
	if len(code) <= len(first)+2 {
		return first + "****"
	}
	return first + "-****" + code[len(code)-2:]
}
