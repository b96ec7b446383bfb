package order

import (
	"fmt"
	"math/rand"
	"time"
)

// codeAlphabet drops easily confused characters (0/O, 1/I/L) so codes can
// be read over the phone.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewCode produces a human-legible candidate order code, e.g.
// BF-20260829-K7Q2MX. Uniqueness is not guaranteed here; the repository
// retries generation until the code is free.
func NewCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return fmt.Sprintf("BF-%s-%s", time.Now().UTC().Format("20060102"), string(b))
}
