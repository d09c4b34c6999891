package order

import (
	"strings"
	"testing"
)

func TestNewOrderNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		n := NewOrderNumber()
		if !strings.HasPrefix(n, "ORD-") {
			t.Fatalf("unexpected format: %s", n)
		}
		if seen[n] {
			t.Fatalf("duplicate order number in 1000 draws: %s", n)
		}
		seen[n] = true
	}
}
