// Package crypto implements the blake2b hashing the contracts runtime
// addresses state with: code hashes, contract addresses and derived keys.
package crypto

import (
	"encoding/binary"

	"github.com/tos-network/wasmbench/common"
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 calculates the blake2b-256 hash of the concatenation of data.
func Blake2b256(data ...[]byte) common.Hash {
	h, _ := blake2b.New256(nil)
	for _, b := range data {
		h.Write(b)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// HashOfUint32 hashes the little endian encoding of n. Benchmark fixtures use
// it to derive unique storage keys and event topics from loop indices.
func HashOfUint32(n uint32) common.Hash {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	return Blake2b256(buf[:])
}

// ContractAddress derives the deterministic address a contract is
// instantiated at from its code hash, the constructor input and the
// instantiating account. The tuple order is part of the ABI and must not
// change.
func ContractAddress(codeHash common.Hash, input []byte, caller common.Address) common.Address {
	digest := Blake2b256(codeHash[:], input, caller[:])
	return common.BytesToAddress(digest[:])
}
