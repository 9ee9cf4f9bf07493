// Package pgp assembles parsed OpenPGP packets into keyblock/signature
// trees and drives verification and decryption against them. Packet
// byte parsing itself is delegated to golang.org/x/crypto/openpgp/packet;
// this package owns everything above that: the pull-based filter
// pipeline, the packet sequencer, the tree processor, and status
// reporting.
package pgp

import (
	"crypto"
	"hash"
	"io"

	"github.com/lamhaoyin/openpgpingest/xlog"
)

var logger = xlog.NewPackageLogger("github.com/lamhaoyin/openpgpingest/xpki", "pgp")

// Filter is one stage of a pull-based byte-stream pipeline. Read
// implements UNDERFLOW: it produces up to len(p) bytes, pulling from
// upstream as needed, and returns io.EOF once the stage is exhausted.
// Init must be called before the first Read; Close must be called on
// every exit path, including error, so a filter can release any
// private buffers it holds (FREE in the source terminology).
type Filter interface {
	io.Reader
	io.Closer
	Init() error
	Flush() error
}

// DigestTap is the message-digest filter from the filter-pipeline
// contract: it forwards bytes unchanged while updating a multi-hash
// context over the digests enabled for the data passing through it. It
// implements Filter, so it can sit downstream of any other stage (an
// armor.Reader included) in a pull-based pipeline; the sequencer
// inserts one immediately above the plaintext source so signed bytes
// are hashed exactly as they are delivered to the verifier.
type DigestTap struct {
	r      io.Reader
	hashes map[crypto.Hash]hash.Hash
}

// NewDigestTap wraps r, computing algos over every byte read through it.
func NewDigestTap(r io.Reader, algos []crypto.Hash) *DigestTap {
	t := &DigestTap{r: r, hashes: make(map[crypto.Hash]hash.Hash, len(algos))}
	for _, a := range algos {
		if a.Available() {
			t.hashes[a] = a.New()
		}
	}
	return t
}

// Init satisfies the Filter lifecycle contract; the tap is ready to
// pull from construction.
func (t *DigestTap) Init() error { return nil }

// Flush is a no-op: the tap has no internal write buffer to drain.
func (t *DigestTap) Flush() error { return nil }

// Close releases the tap. If the wrapped reader is itself a Filter or
// io.Closer, Close is forwarded to it so a chain of stages tears down
// in order.
func (t *DigestTap) Close() error {
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *DigestTap) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		for _, h := range t.hashes {
			h.Write(p[:n])
		}
	}
	return n, err
}

// Enabled reports whether algo was constructed into this tap.
func (t *DigestTap) Enabled(algo crypto.Hash) bool {
	_, ok := t.hashes[algo]
	return ok
}

// Sum returns the running digest for algo, or nil if it was not enabled.
func (t *DigestTap) Sum(algo crypto.Hash) []byte {
	h, ok := t.hashes[algo]
	if !ok {
		return nil
	}
	return h.Sum(nil)
}

// HashFor returns the live hash.Hash for algo, for callers (signature
// verification) that need to pass the hash object itself rather than
// its current digest bytes. Summing it does not reset or mutate it, so
// more than one Signature sharing the same Plaintext body can each
// call HashFor and verify independently.
func (t *DigestTap) HashFor(algo crypto.Hash) hash.Hash {
	return t.hashes[algo]
}
