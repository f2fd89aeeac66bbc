package content

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Decode decodes a standard base64 payload. Line breaks are ignored, so
// content copied from the GitHub API (wrapped at 60 columns) is accepted.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 content: %w", err)
	}
	return b, nil
}

// BlobSHA returns the git blob object id of b, which is what the contents API
// reports as a file's sha.
func BlobSHA(b []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(b))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
