// Package hashlock implements the HashLock primitive (C1): deriving a lock
// from a 32-byte preimage and verifying a revealed preimage against it.
package hashlock

import "golang.org/x/crypto/sha3"

// Size is the byte length of a preimage and of a HashLock.
const Size = 32

// Preimage is the 32-byte secret whose hash is committed on-chain.
type Preimage [Size]byte

// HashLock is keccak256(preimage). The zero HashLock is never well-formed.
type HashLock [Size]byte

// Zero is the well-formed-rejecting zero digest.
var Zero HashLock

// Lock derives the HashLock committed to by preimage.
func Lock(preimage Preimage) HashLock {
	var h HashLock
	sum := sha3.NewLegacyKeccak256()
	sum.Write(preimage[:])
	sum.Sum(h[:0])
	return h
}

// Verify reports whether preimage hashes to lock.
func Verify(preimage Preimage, lock HashLock) bool {
	return Lock(preimage) == lock
}

// IsWellFormed rejects the zero digest; every other 32-byte value is
// considered well-formed since any preimage hashes somewhere in the space.
func IsWellFormed(lock HashLock) bool {
	return lock != Zero
}
