package op

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/text/unicode/norm"
)

// DomainNode prefixes every node digest. The version suffix leaves room
// for a future change of the hashed layout.
const DomainNode = "onepass/op/v1"

// Digest is the structural identity of a node.
type Digest [sha256.Size]byte

// String returns the full hex encoding.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, enough for log lines.
func (d Digest) Short() string { return d.String()[:12] }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

// digester accumulates the hashed fields of one node.
// Format: SHA256(domain + 0x00 + kind + field...), every field length
// prefixed so adjacent strings cannot run into each other.
type digester struct {
	h hash.Hash
}

func newDigester(kind Kind, typeName string) *digester {
	d := &digester{h: sha256.New()}
	d.h.Write([]byte(DomainNode))
	d.h.Write([]byte{0x00})
	d.h.Write([]byte{byte(kind)})
	d.str(typeName)
	return d
}

// str hashes an NFC-normalised string.
func (d *digester) str(s string) *digester {
	b := []byte(norm.NFC.String(s))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	d.h.Write(n[:])
	d.h.Write(b)
	return d
}

func (d *digester) num(v int64) *digester {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(v))
	d.h.Write(n[:])
	return d
}

func (d *digester) flag(b bool) *digester {
	if b {
		d.h.Write([]byte{1})
	} else {
		d.h.Write([]byte{0})
	}
	return d
}

func (d *digester) nodes(ns []Node) *digester {
	d.num(int64(len(ns)))
	for _, n := range ns {
		dg := n.Digest()
		d.h.Write(dg[:])
	}
	return d
}

func (d *digester) sum() Digest {
	var out Digest
	copy(out[:], d.h.Sum(nil))
	return out
}
