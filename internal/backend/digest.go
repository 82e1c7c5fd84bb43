package backend

import (
	"crypto/sha256"

	"github.com/roach88/onepass/internal/op"
)

// Domain prefixes for backend identities.
const (
	domainFilter  = "onepass/filter/v1"
	domainProduct = "onepass/product/v1"
)

// digestOf hashes parts with domain separation. Each part is followed by
// a 0x00 separator so that part boundaries are unambiguous.
func digestOf(domain string, parts ...string) op.Digest {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x00})
	}
	var d op.Digest
	copy(d[:], h.Sum(nil))
	return d
}
