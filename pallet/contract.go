package pallet

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/crypto"
	"github.com/tos-network/wasmbench/kvdb"
)

// AliveInfo is the bookkeeping of a live contract.
type AliveInfo struct {
	// TrieID prefixes every storage key of this contract in the backing
	// store. Restoration moves the prefix, not the items.
	TrieID   []byte
	CodeHash common.Hash

	// StorageSize is the accounted byte count rent is charged on, PairCount
	// the number of stored items.
	StorageSize uint32
	PairCount   uint32

	// RentAllowance caps the total rent this contract will ever pay.
	RentAllowance *uint256.Int
	// DeductBlock is the height rent was last settled at.
	DeductBlock uint64
}

// TombstoneInfo is what remains of an evicted contract: enough to verify a
// later restoration against, nothing more.
type TombstoneInfo struct {
	TrieID      []byte
	CodeHash    common.Hash
	StorageRoot common.Hash
}

// ContractInfo is the state of a contract account: exactly one of the two
// fields is set.
type ContractInfo struct {
	Alive     *AliveInfo
	Tombstone *TombstoneInfo
}

// ContractInfoOf returns the contract state at addr, or nil if the address
// holds no contract.
func (p *Pallet) ContractInfoOf(addr common.Address) *ContractInfo {
	return p.contracts[addr]
}

// GetAlive returns the live bookkeeping of the contract at addr.
func (p *Pallet) GetAlive(addr common.Address) (*AliveInfo, error) {
	info, ok := p.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, addr.TerminalString())
	}
	if info.Alive == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAlive, addr.TerminalString())
	}
	return info.Alive, nil
}

// GetTombstone returns the tombstone at addr.
func (p *Pallet) GetTombstone(addr common.Address) (*TombstoneInfo, error) {
	info, ok := p.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, addr.TerminalString())
	}
	if info.Tombstone == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotTombstone, addr.TerminalString())
	}
	return info.Tombstone, nil
}

// WriteContractStorage writes a raw key/value pair into the contract's
// storage, bypassing host function dispatch. A nil value deletes the key.
// Storage size accounting is kept current so rent arithmetic stays exact.
func (p *Pallet) WriteContractStorage(addr common.Address, key common.Hash, value []byte) error {
	info, err := p.GetAlive(addr)
	if err != nil {
		return err
	}
	if value != nil && uint32(len(value)) > p.cfg.Schedule.MaxValueSize {
		return fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(value))
	}
	dbKey := storageKey(info.TrieID, key)
	old, err := p.db.Get(dbKey)
	switch {
	case err == nil:
		info.StorageSize -= uint32(len(old))
		info.PairCount--
	case err != kvdb.ErrNotFound:
		return err
	}
	if value == nil {
		if err == nil {
			return p.db.Delete(dbKey)
		}
		return nil
	}
	if err := p.db.Put(dbKey, value); err != nil {
		return err
	}
	info.StorageSize += uint32(len(value))
	info.PairCount++
	return nil
}

// ReadContractStorage reads a raw storage value. It works for tombstones
// too: evicted storage stays retrievable until a restoration consumes it.
func (p *Pallet) ReadContractStorage(addr common.Address, key common.Hash) ([]byte, error) {
	info, ok := p.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, addr.TerminalString())
	}
	trieID := []byte(nil)
	if info.Alive != nil {
		trieID = info.Alive.TrieID
	} else {
		trieID = info.Tombstone.TrieID
	}
	return p.db.Get(storageKey(trieID, key))
}

// storageRoot folds the contract's storage into a single digest. Items are
// visited in key order, so the digest is deterministic for a given state.
func (p *Pallet) storageRoot(trieID []byte) common.Hash {
	it := p.db.NewIterator(trieID)
	defer it.Release()

	acc := make([]byte, 0, 1024)
	for it.Next() {
		acc = append(acc, it.Key()...)
		acc = append(acc, it.Value()...)
	}
	return crypto.Blake2b256(acc)
}

func storageKey(trieID []byte, key common.Hash) []byte {
	out := make([]byte, 0, len(trieID)+common.HashLength)
	out = append(out, trieID...)
	return append(out, key[:]...)
}
