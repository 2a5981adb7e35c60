package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderID creates the externally visible, human-readable order id.
// It is generated once at checkout and never changes.
func GenerateOrderID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("ord_%d_%06d", timestamp, randomNum.Int64())
}
