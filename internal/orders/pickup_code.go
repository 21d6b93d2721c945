package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// pickupCodeAlphabet drops characters that are easy to misread (0/O, 1/I/L).
const pickupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const pickupCodeLength = 6

// NewPickupCode returns a random code the customer quotes at pickup.
func NewPickupCode() (string, error) {
	max := big.NewInt(int64(len(pickupCodeAlphabet)))
	code := make([]byte, pickupCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate pickup code: %w", err)
		}
		code[i] = pickupCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
