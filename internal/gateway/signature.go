package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const checksumSeparator = "###"

// Checksum builds the X-VERIFY header: hex(SHA256(payload + saltKey)) + "###" + saltIndex.
func Checksum(payload, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(payload + saltKey))
	return hex.EncodeToString(sum[:]) + checksumSeparator + saltIndex
}

func validChecksum(payload, saltKey, saltIndex, got string) bool {
	want := Checksum(payload, saltKey, saltIndex)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
