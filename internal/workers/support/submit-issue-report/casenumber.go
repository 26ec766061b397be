package submitissuereport

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// CaseNumberGenerator returns a new case number for a report taken at now.
type CaseNumberGenerator func(now time.Time) (string, error)

// GenerateCaseNumber returns BW-YYYYMMDD-XXXXXXXXXX: the UTC date and ten
// Crockford base32 characters (50 random bits).
func GenerateCaseNumber(now time.Time) (string, error) {
	return generateCaseNumber(now, rand.Reader)
}

func generateCaseNumber(now time.Time, r io.Reader) (string, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", fmt.Errorf("read random bits: %w", err)
	}
	n := binary.BigEndian.Uint64(b[:])

	var suffix [10]byte
	for i := len(suffix) - 1; i >= 0; i-- {
		suffix[i] = crockford[n&0x1f]
		n >>= 5
	}
	return fmt.Sprintf("BW-%s-%s", now.UTC().Format("20060102"), suffix[:]), nil
}
