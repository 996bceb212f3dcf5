package pallet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/crypto"
	"github.com/tos-network/wasmbench/kvdb/memorydb"
	"github.com/tos-network/wasmbench/params"
	"github.com/tos-network/wasmbench/wasm"
)

func newTestPallet(t *testing.T) *Pallet {
	t.Helper()
	p := New(params.DefaultConfig(), memorydb.New(), nil)
	p.SetBlockNumber(1)
	return p
}

func dummyCode(t *testing.T) *wasm.Code {
	t.Helper()
	code, err := wasm.Build(wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
	})
	if err != nil {
		t.Fatalf("failed to build module: %v", err)
	}
	return code
}

// deployDummy registers the minimal valid module and funds the origin so a
// subsequent instantiation cannot fail on balance.
func deployDummy(t *testing.T, p *Pallet, origin common.Address) common.Hash {
	t.Helper()
	code := dummyCode(t)
	hash, err := p.DeployCode(code.Bytes)
	if err != nil {
		t.Fatalf("failed to deploy code: %v", err)
	}
	p.SetBalance(origin, params.Funding())
	return hash
}

func TestDeployCodeIdempotent(t *testing.T) {
	p := newTestPallet(t)
	code := dummyCode(t)

	first, err := p.DeployCode(code.Bytes)
	if err != nil {
		t.Fatalf("failed to deploy code: %v", err)
	}
	second, err := p.DeployCode(code.Bytes)
	if err != nil {
		t.Fatalf("failed to redeploy code: %v", err)
	}
	if first != second {
		t.Fatalf("redeployment changed hash: %s != %s", first.Hex(), second.Hex())
	}
	if first != code.Hash {
		t.Fatalf("registry hash %s does not match content hash %s", first.Hex(), code.Hash.Hex())
	}
}

func TestDeployCodeRejectsOversizedMemory(t *testing.T) {
	p := newTestPallet(t)
	code, err := wasm.Build(wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: p.cfg.Schedule.MaxMemoryPages + 1},
	})
	if err != nil {
		t.Fatalf("failed to build module: %v", err)
	}
	if _, err := p.DeployCode(code.Bytes); !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("deployment error = %v, want %v", err, ErrTooManyPages)
	}
}

func TestDeployCodeRejectsUnknownImport(t *testing.T) {
	p := newTestPallet(t)
	code, err := wasm.Build(wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
		ImportedFunctions: []wasm.ImportedFunction{
			{Name: "seal_bogus", Params: []wasm.ValueType{wasm.I32}},
		},
	})
	if err != nil {
		t.Fatalf("failed to build module: %v", err)
	}
	if _, err := p.DeployCode(code.Bytes); !errors.Is(err, ErrUnknownImport) {
		t.Fatalf("deployment error = %v, want %v", err, ErrUnknownImport)
	}
}

func TestDeployCodeRejectsImportSignatureMismatch(t *testing.T) {
	p := newTestPallet(t)
	code, err := wasm.Build(wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
		ImportedFunctions: []wasm.ImportedFunction{
			{Name: "seal_caller", Params: []wasm.ValueType{wasm.I64, wasm.I32}},
		},
	})
	if err != nil {
		t.Fatalf("failed to build module: %v", err)
	}
	if _, err := p.DeployCode(code.Bytes); !errors.Is(err, ErrImportType) {
		t.Fatalf("deployment error = %v, want %v", err, ErrImportType)
	}
}

func TestDeployCodeRejectsMissingEntryPoints(t *testing.T) {
	p := newTestPallet(t)
	// A bare module header decodes fine but exports neither entry point.
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if _, err := p.DeployCode(header); !errors.Is(err, ErrNoEntryPoint) {
		t.Fatalf("deployment error = %v, want %v", err, ErrNoEntryPoint)
	}
}

func TestInstantiateAboveSubsistence(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment := p.cfg.FeeModel.SubsistenceThreshold()
	addr, err := p.Instantiate(origin, endowment, 0, hash, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	info, err := p.GetAlive(addr)
	if err != nil {
		t.Fatalf("contract not alive after instantiation: %v", err)
	}
	if info.CodeHash != hash {
		t.Fatalf("contract bound to code %s, want %s", info.CodeHash.Hex(), hash.Hex())
	}
	if info.DeductBlock != p.BlockNumber() {
		t.Fatalf("rent deduction block = %d, want %d", info.DeductBlock, p.BlockNumber())
	}
	if balance := p.FreeBalance(addr); balance.Cmp(endowment) != 0 {
		t.Fatalf("contract balance = %v, want %v", balance, endowment)
	}
}

func TestInstantiateBelowSubsistence(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment := new(uint256.Int).SubUint64(p.cfg.FeeModel.SubsistenceThreshold(), 1)
	if _, err := p.Instantiate(origin, endowment, 0, hash, nil); !errors.Is(err, ErrBelowSubsistence) {
		t.Fatalf("instantiation error = %v, want %v", err, ErrBelowSubsistence)
	}
}

// failingEngine rejects every dispatch, standing in for a trapping
// constructor.
type failingEngine struct{}

func (failingEngine) Execute(mod *wasm.Module, entry string, ctx *CallContext) error {
	return errors.New("engine: trap")
}

func TestInstantiateRollsBackOnConstructorFailure(t *testing.T) {
	p := New(params.DefaultConfig(), memorydb.New(), failingEngine{})
	p.SetBlockNumber(1)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment := p.cfg.FeeModel.SubsistenceThreshold()
	if _, err := p.Instantiate(origin, endowment, 0, hash, nil); err == nil {
		t.Fatal("instantiation succeeded under a failing constructor")
	}
	addr := p.ContractAddress(hash, nil, origin)
	if _, err := p.GetAlive(addr); !errors.Is(err, ErrNoContract) {
		t.Fatalf("contract survived its failed constructor: %v", err)
	}
	if balance := p.FreeBalance(origin); balance.Cmp(params.Funding()) != 0 {
		t.Fatalf("origin balance = %v, want %v back", balance, params.Funding())
	}
	if balance := p.FreeBalance(addr); !balance.IsZero() {
		t.Fatalf("endowment %v orphaned at %s", balance, addr.TerminalString())
	}
}

func TestInstantiateDuplicate(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment := p.cfg.FeeModel.SubsistenceThreshold()
	if _, err := p.Instantiate(origin, endowment, 0, hash, nil); err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	if _, err := p.Instantiate(origin, endowment, 0, hash, nil); !errors.Is(err, ErrDuplicateContract) {
		t.Fatalf("instantiation error = %v, want %v", err, ErrDuplicateContract)
	}
}

func TestInstantiateAddressesAreInputSalted(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment := p.cfg.FeeModel.SubsistenceThreshold()
	first, err := p.Instantiate(origin, endowment, 0, hash, []byte{0})
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	second, err := p.Instantiate(origin, endowment, 0, hash, []byte{1})
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	if first == second {
		t.Fatalf("distinct constructor inputs yielded the same address %s", first.TerminalString())
	}
}

func TestCallTransfersValue(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	endowment := p.cfg.FeeModel.SubsistenceThreshold()
	addr, err := p.Instantiate(origin, endowment, 0, hash, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	if err := p.Call(origin, addr, uint256.NewInt(5), 0, nil); err != nil {
		t.Fatalf("failed to call: %v", err)
	}
	want := new(uint256.Int).AddUint64(endowment, 5)
	if balance := p.FreeBalance(addr); balance.Cmp(want) != 0 {
		t.Fatalf("contract balance = %v, want %v", balance, want)
	}
}

func TestCallMissingContract(t *testing.T) {
	p := newTestPallet(t)
	if err := p.Call(common.Address{0x01}, common.Address{0x02}, uint256.NewInt(0), 0, nil); !errors.Is(err, ErrNoContract) {
		t.Fatalf("call error = %v, want %v", err, ErrNoContract)
	}
}

func TestContractStorageAccounting(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	addr, err := p.Instantiate(origin, p.cfg.FeeModel.SubsistenceThreshold(), 0, hash, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	value := bytes.Repeat([]byte{0x42}, 100)
	for i := uint32(0); i < 10; i++ {
		if err := p.WriteContractStorage(addr, crypto.HashOfUint32(i), value); err != nil {
			t.Fatalf("failed to write item %d: %v", i, err)
		}
	}
	info, err := p.GetAlive(addr)
	if err != nil {
		t.Fatalf("contract not alive: %v", err)
	}
	if info.StorageSize != 1000 || info.PairCount != 10 {
		t.Fatalf("storage accounting = %d bytes / %d pairs, want 1000 / 10", info.StorageSize, info.PairCount)
	}

	// Overwriting replaces the accounted size, deleting removes it.
	if err := p.WriteContractStorage(addr, crypto.HashOfUint32(0), bytes.Repeat([]byte{0x42}, 50)); err != nil {
		t.Fatalf("failed to overwrite item: %v", err)
	}
	if info.StorageSize != 950 || info.PairCount != 10 {
		t.Fatalf("storage accounting after overwrite = %d bytes / %d pairs, want 950 / 10", info.StorageSize, info.PairCount)
	}
	if err := p.WriteContractStorage(addr, crypto.HashOfUint32(1), nil); err != nil {
		t.Fatalf("failed to delete item: %v", err)
	}
	if info.StorageSize != 850 || info.PairCount != 9 {
		t.Fatalf("storage accounting after delete = %d bytes / %d pairs, want 850 / 9", info.StorageSize, info.PairCount)
	}

	got, err := p.ReadContractStorage(addr, crypto.HashOfUint32(2))
	if err != nil {
		t.Fatalf("failed to read item back: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("stored value mismatch: have %x, want %x", got, value)
	}
}

func TestWriteContractStorageValueTooLarge(t *testing.T) {
	p := newTestPallet(t)
	origin := common.Address{0x01}
	hash := deployDummy(t, p, origin)

	addr, err := p.Instantiate(origin, p.cfg.FeeModel.SubsistenceThreshold(), 0, hash, nil)
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	oversized := make([]byte, p.cfg.Schedule.MaxValueSize+1)
	if err := p.WriteContractStorage(addr, crypto.HashOfUint32(0), oversized); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("write error = %v, want %v", err, ErrValueTooLarge)
	}
}

func TestUpdateSchedule(t *testing.T) {
	p := newTestPallet(t)

	stale := params.DefaultSchedule()
	if err := p.UpdateSchedule(stale); !errors.Is(err, ErrStaleSchedule) {
		t.Fatalf("update error = %v, want %v", err, ErrStaleSchedule)
	}
	newer := params.DefaultSchedule()
	newer.Version++
	if err := p.UpdateSchedule(newer); err != nil {
		t.Fatalf("failed to update schedule: %v", err)
	}
	if p.cfg.Schedule.Version != newer.Version {
		t.Fatalf("active schedule version = %d, want %d", p.cfg.Schedule.Version, newer.Version)
	}
}
