package bench

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/crypto"
	"github.com/tos-network/wasmbench/kvdb"
	"github.com/tos-network/wasmbench/kvdb/memorydb"
	"github.com/tos-network/wasmbench/pallet"
	"github.com/tos-network/wasmbench/params"
	"github.com/tos-network/wasmbench/wasm"
)

// maxGas is the gas ceiling measured operations run under. It is effectively
// unlimited so the timed dispatch can never fail from resource exhaustion.
const maxGas uint64 = math.MaxUint64 / 2

// evictionMargin is the number of blocks a forced eviction overshoots the
// projected eviction point, on top of the signed claim handicap. Rent at the
// eviction point itself is an exact boundary; the margin keeps fixtures away
// from it.
const evictionMargin uint64 = 5

var (
	ErrNotEvicted  = errors.New("bench: contract survived forced eviction")
	ErrStillActive = errors.New("bench: expected tombstone, contract is alive")
)

// EndowmentPolicy selects how much balance an instantiated fixture receives.
type EndowmentPolicy int

const (
	// EndowMax endows the contract so heavily that rent never influences the
	// measurement.
	EndowMax EndowmentPolicy = iota
	// EndowCollectRent endows the contract just short of buying its accounted
	// storage outright, so rent bookkeeping runs during the measured call.
	EndowCollectRent
)

// Contract is an instantiated fixture: immutable within its scenario.
type Contract struct {
	Caller    common.Address
	Addr      common.Address
	Endowment *uint256.Int
	Code      *wasm.Code
}

// StorageItem is one raw key/value pair seeded into a fixture.
type StorageItem struct {
	Key   common.Hash
	Value []byte
}

// Tombstone is an evicted fixture together with the storage snapshot it held
// at eviction time, kept for restoration checks.
type Tombstone struct {
	Contract *Contract
	Items    []StorageItem
}

// Driver owns one isolated runtime instance and builds the contract fixtures
// scenarios measure against. Every scenario sample gets a fresh driver, so
// balances, code and block height never leak between measurements.
type Driver struct {
	cfg          *params.Config
	pallet       *pallet.Pallet
	accountNonce uint32
}

// NewDriver creates a driver over an in-memory store.
func NewDriver(cfg *params.Config) *Driver {
	return NewDriverWithDB(cfg, memorydb.New())
}

// NewDriverWithDB creates a driver over the given backing store. The store
// must be empty; fixtures assume virgin state.
func NewDriverWithDB(cfg *params.Config, db kvdb.KeyValueStore) *Driver {
	p := pallet.New(cfg, db, nil)
	p.SetBlockNumber(1)
	return &Driver{cfg: cfg, pallet: p}
}

// Pallet exposes the underlying runtime instance for measured dispatches.
func (d *Driver) Pallet() *pallet.Pallet { return d.pallet }

// NewFundedAccount derives a fresh deterministic account and credits it with
// the standard funding, half of the representable maximum, so no later
// transfer or reward can overflow.
func (d *Driver) NewFundedAccount() common.Address {
	d.accountNonce++
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], d.accountNonce)
	addr := common.BytesToAddress(crypto.Blake2b256([]byte("account"), buf[:]).Bytes())
	d.pallet.SetBalance(addr, params.Funding())
	return addr
}

// Deploy registers compiled code with the runtime. Deploying the same bytes
// twice is a no-op by content hash.
func (d *Driver) Deploy(code *wasm.Code) error {
	hash, err := d.pallet.DeployCode(code.Bytes)
	if err != nil {
		return fmt.Errorf("bench: deploy failed: %w", err)
	}
	if hash != code.Hash {
		return fmt.Errorf("bench: registry hash %s does not match content hash %s", hash.Hex(), code.Hash.Hex())
	}
	return nil
}

// Instantiate deploys the definition if needed and instantiates it with the
// endowment the policy prescribes, asserting the result is alive. The
// rent-bearing policy additionally pre-sets the storage size accounting the
// endowment formula assumed, so rent accrues at the intended rate.
func (d *Driver) Instantiate(def wasm.ModuleDefinition, input []byte, policy EndowmentPolicy) (*Contract, error) {
	code, err := wasm.Build(def)
	if err != nil {
		return nil, fmt.Errorf("bench: module build failed: %w", err)
	}
	if err := d.Deploy(code); err != nil {
		return nil, err
	}

	var endowment *uint256.Int
	var storageSize uint32
	switch policy {
	case EndowCollectRent:
		endowment, storageSize = d.cfg.FeeModel.RentBearingEndowment()
	default:
		endowment = d.cfg.FeeModel.MaxEndowment()
	}

	caller := d.NewFundedAccount()
	addr, err := d.pallet.Instantiate(caller, endowment, maxGas, code.Hash, input)
	if err != nil {
		return nil, fmt.Errorf("bench: instantiation failed: %w", err)
	}
	c := &Contract{Caller: caller, Addr: addr, Endowment: endowment, Code: code}
	if policy == EndowCollectRent {
		info, err := d.pallet.GetAlive(addr)
		if err != nil {
			return nil, fmt.Errorf("bench: rent-bearing fixture not alive: %w", err)
		}
		info.StorageSize = storageSize
	}
	if err := d.AssertAlive(c); err != nil {
		return nil, err
	}
	return c, nil
}

// SeedStorage writes raw key/value pairs directly into the fixture's
// storage, bypassing host function dispatch.
func (d *Driver) SeedStorage(c *Contract, items []StorageItem) error {
	for _, item := range items {
		if err := d.pallet.WriteContractStorage(c.Addr, item.Key, item.Value); err != nil {
			return fmt.Errorf("bench: storage seeding failed: %w", err)
		}
	}
	return nil
}

// NewStorageItems derives n deterministic items of size bytes each. Keys are
// hashes of the item index, so they are unique and reproducible.
func NewStorageItems(n, size uint32) []StorageItem {
	items := make([]StorageItem, 0, n)
	for i := uint32(0); i < n; i++ {
		items = append(items, StorageItem{
			Key:   crypto.HashOfUint32(i),
			Value: bytes.Repeat([]byte{0x42}, int(size)),
		})
	}
	return items
}

// EvictionBlock projects the fixture's eviction point.
func (d *Driver) EvictionBlock(c *Contract) (uint64, error) {
	return d.pallet.EvictionBlock(c.Addr)
}

// ForceEviction advances the chain past the fixture's eviction point, plus
// the signed claim handicap and a safety margin, and collects rent. The
// fixture must come out of it as a tombstone.
func (d *Driver) ForceEviction(c *Contract) error {
	evictAt, err := d.pallet.EvictionBlock(c.Addr)
	if err != nil {
		return fmt.Errorf("bench: eviction projection failed: %w", err)
	}
	d.pallet.SetBlockNumber(evictAt + d.cfg.FeeModel.SignedClaimHandicap + evictionMargin)
	d.pallet.CollectRent(c.Addr)
	if err := d.AssertTombstone(c); err != nil {
		return fmt.Errorf("%w: %s", ErrNotEvicted, c.Addr.TerminalString())
	}
	return nil
}

// NewTombstone builds an evicted fixture holding the given storage snapshot:
// a rent-bearing contract, seeded, then force evicted.
func (d *Driver) NewTombstone(items []StorageItem) (*Tombstone, error) {
	c, err := d.Instantiate(DummyModule(), nil, EndowCollectRent)
	if err != nil {
		return nil, err
	}
	if err := d.SeedStorage(c, items); err != nil {
		return nil, err
	}
	if err := d.ForceEviction(c); err != nil {
		return nil, err
	}
	return &Tombstone{Contract: c, Items: items}, nil
}

// AssertAlive fails if the fixture is not a live contract.
func (d *Driver) AssertAlive(c *Contract) error {
	if _, err := d.pallet.GetAlive(c.Addr); err != nil {
		return fmt.Errorf("bench: fixture not alive: %w", err)
	}
	return nil
}

// AssertTombstone fails if the fixture is not a tombstone.
func (d *Driver) AssertTombstone(c *Contract) error {
	if _, err := d.pallet.GetTombstone(c.Addr); err != nil {
		return fmt.Errorf("%w: %v", ErrStillActive, err)
	}
	return nil
}
