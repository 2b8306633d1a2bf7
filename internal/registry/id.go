package registry

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Meeting ids are exactly 9 ASCII digits, drawn uniformly from
// [100000000, 999999999]. This is the canonical room-addressing scheme
// and is validated client-side before room entry.
const (
	idMin = 100000000
	idMax = 999999999

	// maxIDAttempts bounds the generate-and-check loop. The id space
	// is sparse relative to expected usage, so exhausting this many
	// attempts means something is badly wrong.
	maxIDAttempts = 100
)

// GenerateMeetingID draws random 9-digit ids until exists reports one
// as unused, giving up with ErrIDSpaceExhausted after a bounded number
// of attempts.
func GenerateMeetingID(exists func(id string) bool) (string, error) {
	span := big.NewInt(idMax - idMin + 1)
	for range maxIDAttempts {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return "", fmt.Errorf("generate meeting id: %w", err)
		}
		id := fmt.Sprintf("%d", n.Int64()+idMin)
		if !exists(id) {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// ValidMeetingID reports whether id is exactly 9 ASCII digits.
func ValidMeetingID(id string) bool {
	if len(id) != 9 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return id[0] != '0'
}
