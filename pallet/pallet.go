// Package pallet implements the contracts runtime the benchmark harness
// drives: account balances, a content addressed code registry, contract
// instantiation, calls, rent collection and eviction. Contract code is
// executed through the Engine interface; the package itself contains no
// instruction interpreter.
package pallet

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/crypto"
	"github.com/tos-network/wasmbench/kvdb"
	"github.com/tos-network/wasmbench/params"
	"github.com/tos-network/wasmbench/wasm"
)

// moduleCacheSize is the number of decoded modules kept alive. Scenario
// fixtures deploy at most a few hundred distinct codes.
const moduleCacheSize = 512

var (
	ErrCodeTooLarge        = errors.New("pallet: code size exceeds schedule limit")
	ErrCodeNotFound        = errors.New("pallet: no code registered for hash")
	ErrTooManyPages        = errors.New("pallet: imported memory exceeds schedule limit")
	ErrBelowSubsistence    = errors.New("pallet: endowment below subsistence threshold")
	ErrInsufficientBalance = errors.New("pallet: insufficient balance")
	ErrDuplicateContract   = errors.New("pallet: contract already exists at address")
	ErrNoContract          = errors.New("pallet: no contract at address")
	ErrNotAlive            = errors.New("pallet: contract is not alive")
	ErrNotTombstone        = errors.New("pallet: contract is not a tombstone")
	ErrValueTooLarge       = errors.New("pallet: storage value exceeds schedule limit")
	ErrNoEviction          = errors.New("pallet: contract does not pay rent")
	ErrClaimPremature      = errors.New("pallet: contract not ripe for eviction")
	ErrStaleSchedule       = errors.New("pallet: schedule version not newer")
)

// Pallet is one instance of the contracts runtime state: balances, code,
// contracts and the block height rent accrues against. Scenarios construct a
// fresh instance each, so no state leaks between measurements.
type Pallet struct {
	cfg     *params.Config
	engine  Engine
	db      kvdb.KeyValueStore
	modules *lru.Cache

	balances  map[common.Address]*uint256.Int
	codes     map[common.Hash][]byte
	contracts map[common.Address]*ContractInfo
	block     uint64
	trieNonce uint64
}

// New creates an empty runtime instance on top of the given store. A nil
// engine falls back to the shape validating engine.
func New(cfg *params.Config, db kvdb.KeyValueStore, engine Engine) *Pallet {
	if engine == nil {
		engine = NewValidatingEngine()
	}
	cache, _ := lru.New(moduleCacheSize)
	return &Pallet{
		cfg:       cfg,
		engine:    engine,
		db:        db,
		modules:   cache,
		balances:  make(map[common.Address]*uint256.Int),
		codes:     make(map[common.Hash][]byte),
		contracts: make(map[common.Address]*ContractInfo),
	}
}

// Config returns the runtime configuration the instance was built with.
func (p *Pallet) Config() *params.Config { return p.cfg }

// BlockNumber returns the current block height.
func (p *Pallet) BlockNumber() uint64 { return p.block }

// SetBlockNumber moves the chain to the given height. Rent accrues against
// the distance covered the next time it is collected.
func (p *Pallet) SetBlockNumber(n uint64) { p.block = n }

// UpdateSchedule replaces the active schedule. Only strictly newer versions
// are accepted so that stale updates cannot roll limits back.
func (p *Pallet) UpdateSchedule(s *params.Schedule) error {
	if s.Version <= p.cfg.Schedule.Version {
		return fmt.Errorf("%w: have %d, current %d", ErrStaleSchedule, s.Version, p.cfg.Schedule.Version)
	}
	p.cfg.Schedule = s
	return nil
}

// SetBalance credits the account with the given free balance.
func (p *Pallet) SetBalance(addr common.Address, amount *uint256.Int) {
	p.balances[addr] = amount.Clone()
}

// FreeBalance returns the free balance of the account.
func (p *Pallet) FreeBalance(addr common.Address) *uint256.Int {
	if b, ok := p.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (p *Pallet) transfer(from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	src := p.FreeBalance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s", ErrInsufficientBalance, from.TerminalString())
	}
	p.balances[from] = src.Sub(src, amount)
	p.balances[to] = new(uint256.Int).Add(p.FreeBalance(to), amount)
	return nil
}

// DeployCode registers compiled code under its content hash. The code is
// decoded and validated against the schedule, the host API and the entry
// point ABI once, here; registering identical bytes twice is a no-op.
func (p *Pallet) DeployCode(code []byte) (common.Hash, error) {
	if uint32(len(code)) > p.cfg.Schedule.MaxCodeSize {
		return common.Hash{}, fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, len(code))
	}
	hash := crypto.Blake2b256(code)
	if _, ok := p.codes[hash]; ok {
		return hash, nil
	}
	mod, err := wasm.Decode(code)
	if err != nil {
		return common.Hash{}, err
	}
	if mod.Memory != nil && mod.Memory.MaxPages > p.cfg.Schedule.MaxMemoryPages {
		return common.Hash{}, fmt.Errorf("%w: %d pages", ErrTooManyPages, mod.Memory.MaxPages)
	}
	if err := validateHostImports(mod); err != nil {
		return common.Hash{}, err
	}
	if err := validateEntryPoints(mod); err != nil {
		return common.Hash{}, err
	}
	p.codes[hash] = code
	p.modules.Add(hash, mod)
	return hash, nil
}

// moduleOf returns the decoded module for a registered code hash.
func (p *Pallet) moduleOf(hash common.Hash) (*wasm.Module, error) {
	if cached, ok := p.modules.Get(hash); ok {
		return cached.(*wasm.Module), nil
	}
	code, ok := p.codes[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, hash.TerminalString())
	}
	mod, err := wasm.Decode(code)
	if err != nil {
		return nil, err
	}
	p.modules.Add(hash, mod)
	return mod, nil
}

// ContractAddress computes the deterministic address instantiation of the
// given code with the given constructor input by the given caller yields.
func (p *Pallet) ContractAddress(codeHash common.Hash, input []byte, caller common.Address) common.Address {
	return crypto.ContractAddress(codeHash, input, caller)
}

// Instantiate creates a new contract from registered code. The endowment is
// moved from the origin to the new account and must cover the subsistence
// threshold, otherwise the contract could be evicted in the same block it
// was born in.
func (p *Pallet) Instantiate(origin common.Address, endowment *uint256.Int, gasLimit uint64, codeHash common.Hash, input []byte) (common.Address, error) {
	mod, err := p.moduleOf(codeHash)
	if err != nil {
		return common.Address{}, err
	}
	if endowment.Cmp(p.cfg.FeeModel.SubsistenceThreshold()) < 0 {
		return common.Address{}, ErrBelowSubsistence
	}
	addr := p.ContractAddress(codeHash, input, origin)
	if _, ok := p.contracts[addr]; ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrDuplicateContract, addr.TerminalString())
	}
	if err := p.transfer(origin, addr, endowment); err != nil {
		return common.Address{}, err
	}
	p.trieNonce++
	info := &AliveInfo{
		TrieID:        newTrieID(addr, p.trieNonce),
		CodeHash:      codeHash,
		RentAllowance: new(uint256.Int).Not(uint256.NewInt(0)),
		DeductBlock:   p.block,
	}
	p.contracts[addr] = &ContractInfo{Alive: info}
	if err := p.engine.Execute(mod, wasm.ExportDeploy, p.callContext(origin, addr, endowment, gasLimit, input)); err != nil {
		// A failed constructor leaves no trace: the contract entry and the
		// endowment are rolled back.
		delete(p.contracts, addr)
		p.transfer(addr, origin, endowment)
		return common.Address{}, err
	}
	return addr, nil
}

// Call dispatches the call entry point of an alive contract. Outstanding
// rent is collected first, so a call always runs against settled state; the
// call fails if that collection evicts the contract.
func (p *Pallet) Call(origin, addr common.Address, value *uint256.Int, gasLimit uint64, input []byte) error {
	if _, ok := p.contracts[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrNoContract, addr.TerminalString())
	}
	p.CollectRent(addr)
	info, err := p.GetAlive(addr)
	if err != nil {
		return err
	}
	mod, err := p.moduleOf(info.CodeHash)
	if err != nil {
		return err
	}
	if err := p.transfer(origin, addr, value); err != nil {
		return err
	}
	return p.engine.Execute(mod, wasm.ExportCall, p.callContext(origin, addr, value, gasLimit, input))
}

// ClaimSurcharge evicts a contract whose rent is overdue and pays the
// reward to the claiming origin out of the evicted balance. Signed claims
// only become valid SignedClaimHandicap blocks past the eviction point, so
// block producers get first pick.
func (p *Pallet) ClaimSurcharge(origin, addr common.Address) error {
	evictAt, err := p.EvictionBlock(addr)
	if err != nil {
		return err
	}
	if p.block < evictAt+p.cfg.FeeModel.SignedClaimHandicap {
		return fmt.Errorf("%w: block %d, claimable at %d", ErrClaimPremature,
			p.block, evictAt+p.cfg.FeeModel.SignedClaimHandicap)
	}
	p.CollectRent(addr)
	if _, err := p.GetTombstone(addr); err != nil {
		return err
	}
	reward := uint256.NewInt(p.cfg.FeeModel.SurchargeReward)
	return p.transfer(addr, origin, reward)
}

func (p *Pallet) callContext(caller, addr common.Address, value *uint256.Int, gasLimit uint64, input []byte) *CallContext {
	return &CallContext{
		Caller:   caller,
		Address:  addr,
		Value:    value.Clone(),
		GasLimit: gasLimit,
		Input:    input,
		Block:    p.block,
	}
}

func newTrieID(addr common.Address, nonce uint64) []byte {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(nonce >> (56 - 8*i))
	}
	id := crypto.Blake2b256([]byte("trie"), addr[:], buf[:])
	return id[:]
}
