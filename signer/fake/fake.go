// Package fake provides an in-memory signer.Signer for tests, mirroring
// htlcswitch/mock.go's mockSigner: a fixed key standing in for a real
// signing oracle, with no actual cryptographic transport involved.
package fake

import (
	"context"
	"fmt"
)

// Signer returns a deterministic "signature" derived from the blob and a
// fixed key, so tests can assert on exactly what was signed without a
// real signing backend.
type Signer struct {
	Key string
}

// New constructs a fake Signer keyed by key.
func New(key string) *Signer {
	return &Signer{Key: key}
}

// Sign implements signer.Signer.
func (s *Signer) Sign(ctx context.Context, blob []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("sig(%s,%x)", s.Key, blob)), nil
}
