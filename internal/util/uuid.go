package util

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// RandomCheckingAccountNumber returns a number in [1, upper]. Numbers are not
// unique across accounts.
func RandomCheckingAccountNumber(upper int) int {
	return rand.IntN(upper) + 1
}
