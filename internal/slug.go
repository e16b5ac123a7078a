package internal

import (
	"crypto/rand"
	"math/big"
)

// Slugs are the only guard against link discovery, so they come from
// crypto/rand over the full alphanumeric alphabet (62 symbols).
const (
	slugAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	DefaultSlugLength = 7
)

var slugAlphabetLen = big.NewInt(int64(len(slugAlphabet)))

// GenerateSlug returns a random slug of the given length. Lengths <= 0
// fall back to DefaultSlugLength.
func GenerateSlug(length int) (string, error) {
	if length <= 0 {
		length = DefaultSlugLength
	}

	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, slugAlphabetLen)
		if err != nil {
			return "", err
		}
		buf[i] = slugAlphabet[n.Int64()]
	}

	return string(buf), nil
}
