package tokengenerator

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the at-rest digest of a raw refresh or reset token.
//
// The token is reduced to its hex SHA-256 before bcrypt: every token shares
// the same header and leading claims, and bcrypt only reads 72 bytes.
func (g *JwtTokenGenerator) HashToken(raw string) (string, error) {
	return g.hasher.Hash(fingerprint(raw))
}

// VerifyTokenHash compares a presented raw token with its stored digest.
func (g *JwtTokenGenerator) VerifyTokenHash(raw, digest string) bool {
	return g.hasher.Verify(fingerprint(raw), digest)
}

func fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
