package download

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// HashFile computes the content hash of a file as an upper-case hex digest.
// MD5 is the catalog's digest format; it doubles as the S3 ETag for
// single-part uploads, which is what makes the pre-download check possible.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// HashEqual compares two hex digests case-insensitively.
func HashEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
