package pallet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/crypto"
)

// newRentPayingContract instantiates a contract endowed one unit short of
// buying its accounted storage outright, so rent deductions bite from the
// first collection on.
func newRentPayingContract(t *testing.T, p *Pallet) common.Address {
	t.Helper()
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment, storageSize := p.cfg.FeeModel.RentBearingEndowment()
	addr, err := p.Instantiate(origin, endowment, 0, hash, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	info, err := p.GetAlive(addr)
	if err != nil {
		t.Fatalf("contract not alive: %v", err)
	}
	info.StorageSize = storageSize
	return addr
}

func TestEvictionBlockProjection(t *testing.T) {
	p := newTestPallet(t)
	addr := newRentPayingContract(t, p)

	evictAt, err := p.EvictionBlock(addr)
	if err != nil {
		t.Fatalf("failed to project eviction block: %v", err)
	}
	if evictAt <= p.BlockNumber() {
		t.Fatalf("eviction block %d not in the future of block %d", evictAt, p.BlockNumber())
	}

	// One block short of the projection the contract survives collection with
	// a reduced balance.
	before := p.FreeBalance(addr)
	p.SetBlockNumber(evictAt - 1)
	p.CollectRent(addr)
	if _, err := p.GetAlive(addr); err != nil {
		t.Fatalf("contract evicted before its eviction block: %v", err)
	}
	after := p.FreeBalance(addr)
	if after.Cmp(before) >= 0 {
		t.Fatalf("rent collection did not lower balance: %v -> %v", before, after)
	}
	if subsistence := p.cfg.FeeModel.SubsistenceThreshold(); after.Cmp(subsistence) <= 0 {
		t.Fatalf("surviving contract at or below subsistence: %v <= %v", after, subsistence)
	}

	// At the projected block the budget runs out and the contract becomes a
	// tombstone retaining exactly the subsistence threshold.
	p.SetBlockNumber(evictAt)
	p.CollectRent(addr)
	if _, err := p.GetTombstone(addr); err != nil {
		t.Fatalf("contract not evicted at its eviction block: %v", err)
	}
	if balance, subsistence := p.FreeBalance(addr), p.cfg.FeeModel.SubsistenceThreshold(); balance.Cmp(subsistence) != 0 {
		t.Fatalf("evicted balance = %v, want subsistence %v", balance, subsistence)
	}
}

func TestMaxEndowmentOutlivesProjection(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	addr, err := p.Instantiate(origin, p.cfg.FeeModel.MaxEndowment(), 0, hash, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	if _, err := p.EvictionBlock(addr); !errors.Is(err, ErrNoEviction) {
		t.Fatalf("projection error = %v, want %v", err, ErrNoEviction)
	}

	// Far future rent collection deducts but never evicts.
	p.SetBlockNumber(1_000_000)
	p.CollectRent(addr)
	if _, err := p.GetAlive(addr); err != nil {
		t.Fatalf("maximally endowed contract evicted: %v", err)
	}
}

func TestCollectRentIsIdempotentWithinBlock(t *testing.T) {
	p := newTestPallet(t)
	addr := newRentPayingContract(t, p)

	p.SetBlockNumber(p.BlockNumber() + 1)
	p.CollectRent(addr)
	settled := p.FreeBalance(addr)
	p.CollectRent(addr)
	if again := p.FreeBalance(addr); again.Cmp(settled) != 0 {
		t.Fatalf("second collection in the same block deducted: %v -> %v", settled, again)
	}
}

func TestCallCollectsOverdueRent(t *testing.T) {
	p := newTestPallet(t)
	addr := newRentPayingContract(t, p)

	evictAt, err := p.EvictionBlock(addr)
	if err != nil {
		t.Fatalf("failed to project eviction block: %v", err)
	}
	p.SetBlockNumber(evictAt + 1)
	if err := p.Call(common.Address{0x01}, addr, uint256.NewInt(0), 0, nil); !errors.Is(err, ErrNotAlive) {
		t.Fatalf("call error = %v, want %v", err, ErrNotAlive)
	}
	if _, err := p.GetTombstone(addr); err != nil {
		t.Fatalf("overdue contract not evicted by call: %v", err)
	}
}

func TestClaimSurcharge(t *testing.T) {
	p := newTestPallet(t)
	addr := newRentPayingContract(t, p)
	claimer := common.Address{0x02}

	evictAt, err := p.EvictionBlock(addr)
	if err != nil {
		t.Fatalf("failed to project eviction block: %v", err)
	}
	handicap := p.cfg.FeeModel.SignedClaimHandicap

	p.SetBlockNumber(evictAt)
	if err := p.ClaimSurcharge(claimer, addr); !errors.Is(err, ErrClaimPremature) {
		t.Fatalf("claim error = %v, want %v", err, ErrClaimPremature)
	}

	p.SetBlockNumber(evictAt + handicap)
	if err := p.ClaimSurcharge(claimer, addr); err != nil {
		t.Fatalf("failed to claim surcharge: %v", err)
	}
	if _, err := p.GetTombstone(addr); err != nil {
		t.Fatalf("claimed contract not evicted: %v", err)
	}
	if reward := p.FreeBalance(claimer).Uint64(); reward != p.cfg.FeeModel.SurchargeReward {
		t.Fatalf("claimer reward = %d, want %d", reward, p.cfg.FeeModel.SurchargeReward)
	}
}

func TestTombstoneRetainsStorage(t *testing.T) {
	p := newTestPallet(t)
	addr := newRentPayingContract(t, p)

	value := bytes.Repeat([]byte{0x42}, 100)
	key := crypto.HashOfUint32(7)
	if err := p.WriteContractStorage(addr, key, value); err != nil {
		t.Fatalf("failed to write item: %v", err)
	}
	alive, err := p.GetAlive(addr)
	if err != nil {
		t.Fatalf("contract not alive: %v", err)
	}
	codeHash := alive.CodeHash

	evictAt, err := p.EvictionBlock(addr)
	if err != nil {
		t.Fatalf("failed to project eviction block: %v", err)
	}
	p.SetBlockNumber(evictAt)
	p.CollectRent(addr)

	tomb, err := p.GetTombstone(addr)
	if err != nil {
		t.Fatalf("contract not evicted: %v", err)
	}
	if tomb.CodeHash != codeHash {
		t.Fatalf("tombstone code hash = %s, want %s", tomb.CodeHash.Hex(), codeHash.Hex())
	}
	if tomb.StorageRoot == (common.Hash{}) {
		t.Fatal("tombstone of a contract with storage carries an empty root")
	}
	got, err := p.ReadContractStorage(addr, key)
	if err != nil {
		t.Fatalf("failed to read evicted storage: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("evicted storage mismatch: have %x, want %x", got, value)
	}
}
