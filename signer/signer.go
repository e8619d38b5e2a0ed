// Package signer declares the sign(blob) -> signature oracle black box
// (§1's explicit scope exclusion: no concrete signer implementation
// ships). coordinator.Engine takes one Signer per chain side.
package signer

import "context"

// Signer produces a chain-specific signature over an opaque transaction
// blob. No concrete implementation is provided; production deployments
// supply one backed by a hardware wallet, KMS, or local keystore.
type Signer interface {
	Sign(ctx context.Context, blob []byte) ([]byte, error)
}
