package utils

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random identifier for a live connection.
func NewID() string {
	return uuid.NewString()
}

// NewOrderNumber returns a human-facing order number AGR-<6>-<3>: the last six
// digits of the current millisecond clock and a random three-digit suffix.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("AGR-%06d-%03d", now.UnixMilli()%1_000_000, rand.IntN(1000))
}
