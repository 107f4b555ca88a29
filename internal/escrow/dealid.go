package escrow

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	dealIdPrefix = "DL-"
	dealIdLength = 6
	// No 0/O or 1/I/L so ids survive being read aloud or retyped.
	dealIdAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
)

var dealIdPattern = regexp.MustCompile(`^DL-[` + dealIdAlphabet + `]{6}$`)

// NewDealId returns a short human-shareable id such as "DL-7K3F9Q".
func NewDealId() (string, error) {
	var sb strings.Builder
	sb.WriteString(dealIdPrefix)
	base := big.NewInt(int64(len(dealIdAlphabet)))
	for i := 0; i < dealIdLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("failed to generate deal id: %w", err)
		}
		sb.WriteByte(dealIdAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeDealId upper-cases user input and adds the prefix when omitted.
func NormalizeDealId(input string) string {
	id := strings.ToUpper(strings.TrimSpace(input))
	if !strings.HasPrefix(id, dealIdPrefix) {
		id = dealIdPrefix + id
	}
	return id
}

// IsValidDealId reports whether id has the shape produced by NewDealId.
func IsValidDealId(id string) bool {
	return dealIdPattern.MatchString(id)
}
