package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Lines hashes lines joined by newlines after trimming surrounding
// whitespace, so reformatting a descriptor does not count as a change.
func Lines(lines ...string) string {
	trimmed := make([]string, len(lines))
	for i, l := range lines {
		trimmed[i] = strings.TrimSpace(l)
	}
	return SHA256([]byte(strings.Join(trimmed, "\n")))
}
