package payment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Signer produces PhonePe X-VERIFY values: hex(sha256(content + saltKey)) + "###" + saltIndex.
type Signer struct {
	saltKey   string
	saltIndex string
}

func NewSigner(saltKey, saltIndex string) Signer {
	return Signer{saltKey: saltKey, saltIndex: saltIndex}
}

// Sign covers payment/debit requests (base64 body + API path) and status
// checks (path only) alike; callers concatenate the parts.
func (s Signer) Sign(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	h.Write([]byte(s.saltKey))
	return hex.EncodeToString(h.Sum(nil)) + "###" + s.saltIndex
}

// Verify compares in constant time.
func (s Signer) Verify(presented string, parts ...string) bool {
	expected := s.Sign(parts...)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
