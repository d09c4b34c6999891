package order

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewOrderNumber builds a human-readable, globally unique order number:
// UTC timestamp plus a 4-byte random suffix. The orders table carries a
// unique index on it; the service regenerates on the (rare) collision.
func NewOrderNumber() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("ORD-%s-%s",
		time.Now().UTC().Format("20060102150405"),
		strings.ToUpper(hex.EncodeToString(b[:])))
}
