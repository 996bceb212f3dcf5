package bench

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/crypto"
	"github.com/tos-network/wasmbench/params"
	"github.com/tos-network/wasmbench/wasm"
)

// Batches is the upper bound of the repeat dimension of host API scenarios.
// Each repeat unit dispatches params.APIBatchSize host calls, so the fixed
// overhead of the measured call amortizes to a constant share of the sample.
const Batches uint32 = 20

// kib is one kibibyte, the unit of every size dimension.
const kib uint32 = 1024

// sentinel is the pointer value host functions interpret as "skip this
// output". Written as a signed i32 constant it is -1.
const sentinel int32 = -1

// Dim is one varied dimension of a scenario, sampled over [Low, High].
type Dim struct {
	Name      string
	Low, High uint32
}

// Args carries one concrete assignment of a scenario's dimensions.
type Args map[string]uint32

// Run is one prepared scenario sample: exactly one measured operation and
// the post-condition check it must satisfy. A verification failure means the
// measured operation did not follow the intended code path, so the sample is
// invalid, never just slow.
type Run struct {
	Measure func() error
	Verify  func() error
}

// Benchmark is one catalog entry. Setup builds all fixtures the sample
// needs; nothing inside Measure may allocate fixtures.
type Benchmark struct {
	Name  string
	Dims  []Dim
	Setup func(d *Driver, args Args) (*Run, error)
}

// Catalog returns the full scenario set for the given runtime configuration.
// The configuration determines the dimension bounds; the scenarios
// themselves are fixed.
func Catalog(cfg *params.Config) []*Benchmark {
	sched := cfg.Schedule
	list := []*Benchmark{
		updateSchedule(),
		putCode(sched),
		instantiate(sched),
		call(),
		claimSurcharge(),
	}
	for _, getter := range []string{
		"seal_caller", "seal_address", "seal_gas_left", "seal_balance",
		"seal_value_transferred", "seal_minimum_balance", "seal_tombstone_deposit",
		"seal_rent_allowance", "seal_block_number", "seal_now",
	} {
		list = append(list, getterBenchmark(getter))
	}
	list = append(list,
		gasBenchmark(),
		weightToFee(),
		sealInput(), sealInputPerKB(sched),
		sealReturn(), sealReturnPerKB(sched),
		sealTerminate(),
		sealRestoreTo(), sealRestoreToPerDelta(),
		sealRandom(),
		sealDepositEvent(), sealDepositEventPerTopicAndKB(sched),
		sealSetRentAllowance(),
		sealSetStorage(), sealSetStoragePerKB(sched),
		sealClearStorage(),
		sealGetStorage(), sealGetStoragePerKB(sched),
		sealTransfer(),
		sealCall(),
		sealInstantiate(),
	)
	for _, hasher := range []string{
		"seal_hash_sha2_256", "seal_hash_keccak_256",
		"seal_hash_blake2_256", "seal_hash_blake2_128",
	} {
		list = append(list, hasherBenchmark(hasher), hasherPerKB(hasher, sched))
	}
	return list
}

// batch scales a repeat dimension to the number of host calls it stands for.
func batch(r uint32) uint32 { return r * params.APIBatchSize }

// measureCall returns the timed dispatch of the fixture's call entry point.
func measureCall(d *Driver, c *Contract, input []byte) func() error {
	return func() error {
		return d.Pallet().Call(c.Caller, c.Addr, uint256.NewInt(0), maxGas, input)
	}
}

// verifyCallSites decodes the fixture's code and checks that the call body
// contains exactly the expected number of call sites targeting import 0.
// Generated bodies never call anything else, so the count pins down the host
// call volume the sample dispatched.
func verifyCallSites(c *Contract, want uint32) func() error {
	return func() error {
		mod, err := wasm.Decode(c.Code.Bytes)
		if err != nil {
			return err
		}
		index, ok := mod.ExportedFunc(wasm.ExportCall)
		if !ok {
			return fmt.Errorf("bench: fixture does not export %q", wasm.ExportCall)
		}
		body, ok := mod.Body(index)
		if !ok {
			return fmt.Errorf("bench: call entry bound to an import")
		}
		have := uint32(0)
		for _, ins := range body.Instructions {
			if ins.Op == wasm.OpCall && ins.Imm == 0 {
				have++
			}
		}
		if have != want {
			return fmt.Errorf("bench: %d call sites, want %d", have, want)
		}
		return nil
	}
}

// memMax imports the largest permitted linear memory.
func memMax(sched *params.Schedule) *wasm.ImportedMemory {
	return &wasm.ImportedMemory{MinPages: sched.MaxMemoryPages, MaxPages: sched.MaxMemoryPages}
}

// balanceBytes encodes an amount as the 16 byte little endian value buffer
// host functions take balances in.
func balanceBytes(v uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// uniqueKeys derives n distinct 32 byte keys and returns them both packed
// back to back, for a data segment, and individually, for raw seeding.
func uniqueKeys(n uint32) ([]byte, []common.Hash) {
	packed := make([]byte, 0, int(n)*common.HashLength)
	keys := make([]common.Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		key := crypto.HashOfUint32(i)
		packed = append(packed, key[:]...)
		keys = append(keys, key)
	}
	return packed, keys
}

func updateSchedule() *Benchmark {
	return &Benchmark{
		Name: "update_schedule",
		Setup: func(d *Driver, args Args) (*Run, error) {
			next := *d.Pallet().Config().Schedule
			next.Version++
			return &Run{
				Measure: func() error { return d.Pallet().UpdateSchedule(&next) },
				Verify: func() error {
					if have := d.Pallet().Config().Schedule.Version; have != next.Version {
						return fmt.Errorf("bench: schedule version %d, want %d", have, next.Version)
					}
					return nil
				},
			}, nil
		},
	}
}

func putCode(sched *params.Schedule) *Benchmark {
	return &Benchmark{
		Name: "put_code",
		Dims: []Dim{{Name: "n", Low: 0, High: sched.MaxCodeSize / kib}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			code, err := wasm.Build(SizedModule(args["n"] * kib))
			if err != nil {
				return nil, err
			}
			return &Run{
				Measure: func() error { return d.Deploy(code) },
				Verify: func() error {
					// Redeployment is idempotent by content hash.
					hash, err := d.Pallet().DeployCode(code.Bytes)
					if err != nil {
						return err
					}
					if hash != code.Hash {
						return fmt.Errorf("bench: registry hash drifted: %s != %s", hash.Hex(), code.Hash.Hex())
					}
					return nil
				},
			}, nil
		},
	}
}

func instantiate(sched *params.Schedule) *Benchmark {
	return &Benchmark{
		Name: "instantiate",
		Dims: []Dim{{Name: "n", Low: 0, High: sched.MaxMemoryBytes() / kib}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			code, err := wasm.Build(DummyModule())
			if err != nil {
				return nil, err
			}
			if err := d.Deploy(code); err != nil {
				return nil, err
			}
			caller := d.NewFundedAccount()
			endowment := d.Pallet().Config().FeeModel.MaxEndowment()
			input := bytes.Repeat([]byte{0x42}, int(args["n"]*kib))
			addr := d.Pallet().ContractAddress(code.Hash, input, caller)
			return &Run{
				Measure: func() error {
					_, err := d.Pallet().Instantiate(caller, endowment, maxGas, code.Hash, input)
					return err
				},
				Verify: func() error {
					if _, err := d.Pallet().GetAlive(addr); err != nil {
						return err
					}
					if balance := d.Pallet().FreeBalance(addr); balance.Cmp(endowment) != 0 {
						return fmt.Errorf("bench: endowment %v not moved, balance %v", endowment, balance)
					}
					return nil
				},
			}, nil
		},
	}
}

// call measures the plain dispatch with rent bookkeeping in flight: the
// fixture pays rent and the block height sits shortly before its eviction
// point, so the collection path runs without evicting.
func call() *Benchmark {
	return &Benchmark{
		Name: "call",
		Setup: func(d *Driver, args Args) (*Run, error) {
			c, err := d.Instantiate(DummyModule(), nil, EndowCollectRent)
			if err != nil {
				return nil, err
			}
			evictAt, err := d.EvictionBlock(c)
			if err != nil {
				return nil, err
			}
			d.Pallet().SetBlockNumber(evictAt - evictionMargin)
			return &Run{
				Measure: measureCall(d, c, nil),
				Verify: func() error {
					if err := d.AssertAlive(c); err != nil {
						return err
					}
					info, err := d.Pallet().GetAlive(c.Addr)
					if err != nil {
						return err
					}
					if info.DeductBlock != d.Pallet().BlockNumber() {
						return fmt.Errorf("bench: rent not settled at block %d", d.Pallet().BlockNumber())
					}
					return nil
				},
			}, nil
		},
	}
}

func claimSurcharge() *Benchmark {
	return &Benchmark{
		Name: "claim_surcharge",
		Setup: func(d *Driver, args Args) (*Run, error) {
			c, err := d.Instantiate(DummyModule(), nil, EndowCollectRent)
			if err != nil {
				return nil, err
			}
			evictAt, err := d.EvictionBlock(c)
			if err != nil {
				return nil, err
			}
			model := d.Pallet().Config().FeeModel
			d.Pallet().SetBlockNumber(evictAt + model.SignedClaimHandicap + evictionMargin)
			claimer := d.NewFundedAccount()
			before := d.Pallet().FreeBalance(claimer)
			return &Run{
				Measure: func() error { return d.Pallet().ClaimSurcharge(claimer, c.Addr) },
				Verify: func() error {
					if err := d.AssertTombstone(c); err != nil {
						return err
					}
					reward := new(uint256.Int).Sub(d.Pallet().FreeBalance(claimer), before)
					if reward.Uint64() != model.SurchargeReward {
						return fmt.Errorf("bench: claimer earned %v, want %d", reward, model.SurchargeReward)
					}
					return nil
				},
			}, nil
		},
	}
}

// apiBenchmark wraps the shared shape of host API scenarios: instantiate the
// definition with a maximal endowment, time one call, verify the call site
// count.
func apiBenchmark(name string, def func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error)) *Benchmark {
	return &Benchmark{
		Name: name,
		Dims: []Dim{{Name: "r", Low: 0, High: Batches}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			definition, sites, err := def(d, args)
			if err != nil {
				return nil, err
			}
			c, err := d.Instantiate(definition, nil, EndowMax)
			if err != nil {
				return nil, err
			}
			return &Run{
				Measure: measureCall(d, c, nil),
				Verify:  verifyCallSites(c, sites),
			}, nil
		},
	}
}

func getterBenchmark(getter string) *Benchmark {
	return apiBenchmark(getter, func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := batch(args["r"])
		return GetterModule(d.Pallet().Config().Schedule, getter, repeat), repeat, nil
	})
}

func gasBenchmark() *Benchmark {
	return apiBenchmark("gas", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := batch(args["r"])
		return wasm.ModuleDefinition{
			Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "gas",
				Params: []wasm.ValueType{wasm.I32},
			}},
			CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
				wasm.I32Const(42),
				wasm.Call(0),
			}),
		}, repeat, nil
	})
}

func weightToFee() *Benchmark {
	return apiBenchmark("seal_weight_to_fee", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		sched := d.Pallet().Config().Schedule
		repeat := batch(args["r"])
		return wasm.ModuleDefinition{
			Memory: memMax(sched),
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_weight_to_fee",
				Params: []wasm.ValueType{wasm.I64, wasm.I32, wasm.I32},
			}},
			DataSegments: []wasm.DataSegment{{Offset: 0, Value: bufferLenWord(sched)}},
			CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
				wasm.I64Const(500_000),
				wasm.I32Const(4), // out_ptr
				wasm.I32Const(0), // out_len_ptr
				wasm.Call(0),
			}),
		}, repeat, nil
	})
}

func sealInput() *Benchmark {
	return apiBenchmark("seal_input", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := batch(args["r"])
		return inputModule(d.Pallet().Config().Schedule, repeat), repeat, nil
	})
}

// sealInputPerKB varies the size of the transferred input instead of the
// call count: one read per dispatch, input n kibibytes.
func sealInputPerKB(sched *params.Schedule) *Benchmark {
	return &Benchmark{
		Name: "seal_input_per_kb",
		Dims: []Dim{{Name: "n", Low: 0, High: sched.MaxMemoryBytes() / kib}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			c, err := d.Instantiate(inputModule(d.Pallet().Config().Schedule, 1), nil, EndowMax)
			if err != nil {
				return nil, err
			}
			input := bytes.Repeat([]byte{0x42}, int(args["n"]*kib))
			return &Run{
				Measure: measureCall(d, c, input),
				Verify:  verifyCallSites(c, 1),
			}, nil
		},
	}
}

func inputModule(sched *params.Schedule, repeat uint32) wasm.ModuleDefinition {
	return wasm.ModuleDefinition{
		Memory: memMax(sched),
		ImportedFunctions: []wasm.ImportedFunction{{
			Name:   "seal_input",
			Params: []wasm.ValueType{wasm.I32, wasm.I32},
		}},
		DataSegments: []wasm.DataSegment{{Offset: 0, Value: bufferLenWord(sched)}},
		CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
			wasm.I32Const(4), // buf_ptr
			wasm.I32Const(0), // buf_len_ptr
			wasm.Call(0),
		}),
	}
}

// sealReturn can run at most once per dispatch, so its repeat dimension is
// 0..1: the slope of the fit is the cost of one early return.
func sealReturn() *Benchmark {
	b := apiBenchmark("seal_return", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		return returnModule(args["r"], 0), args["r"], nil
	})
	b.Dims = []Dim{{Name: "r", Low: 0, High: 1}}
	return b
}

func sealReturnPerKB(sched *params.Schedule) *Benchmark {
	b := apiBenchmark("seal_return_per_kb", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		return returnModule(1, args["n"]*kib), 1, nil
	})
	b.Dims = []Dim{{Name: "n", Low: 0, High: sched.MaxMemoryBytes() / kib}}
	return b
}

func returnModule(repeat, dataLen uint32) wasm.ModuleDefinition {
	pages := (dataLen + params.PageSize - 1) / params.PageSize
	if pages == 0 {
		pages = 1
	}
	return wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: pages, MaxPages: pages},
		ImportedFunctions: []wasm.ImportedFunction{{
			Name:   "seal_return",
			Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32},
		}},
		CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
			wasm.I32Const(0), // flags
			wasm.I32Const(0), // data_ptr
			wasm.I32Const(int32(dataLen)),
			wasm.Call(0),
		}),
	}
}

func sealTerminate() *Benchmark {
	b := apiBenchmark("seal_terminate", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		return wasm.ModuleDefinition{
			Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_terminate",
				Params: []wasm.ValueType{wasm.I32, wasm.I32},
			}},
			CallBody: wasm.BodyRepeated(args["r"], []wasm.Instruction{
				wasm.I32Const(0), // beneficiary_ptr
				wasm.I32Const(common.AddressLength),
				wasm.Call(0),
			}),
		}, args["r"], nil
	})
	b.Dims = []Dim{{Name: "r", Low: 0, High: 1}}
	return b
}

func sealRestoreTo() *Benchmark {
	b := &Benchmark{
		Name: "seal_restore_to",
		Dims: []Dim{{Name: "r", Low: 0, High: 1}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			return restoreToRun(d, args["r"], 0)
		},
	}
	return b
}

// sealRestoreToPerDelta varies the number of delta keys passed alongside the
// restoration, with exactly one restore call.
func sealRestoreToPerDelta() *Benchmark {
	return &Benchmark{
		Name: "seal_restore_to_per_delta",
		Dims: []Dim{{Name: "d", Low: 0, High: Batches}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			return restoreToRun(d, 1, args["d"])
		},
	}
}

// restoreToRun builds a tombstone and a restorer contract whose memory is
// seeded with the restoration arguments: destination address, code hash,
// rent allowance and delta keys, laid out back to back.
func restoreToRun(d *Driver, repeat, deltaKeys uint32) (*Run, error) {
	tomb, err := d.NewTombstone(NewStorageItems(8, 100))
	if err != nil {
		return nil, err
	}
	const (
		destOffset      = 0
		codeHashOffset  = destOffset + common.AddressLength
		allowanceOffset = codeHashOffset + common.HashLength
		deltaOffset     = allowanceOffset + 16
	)
	deltaPacked, _ := uniqueKeys(deltaKeys)
	sched := d.Pallet().Config().Schedule
	def := wasm.ModuleDefinition{
		Memory: memMax(sched),
		ImportedFunctions: []wasm.ImportedFunction{{
			Name: "seal_restore_to",
			Params: []wasm.ValueType{
				wasm.I32, wasm.I32, wasm.I32, wasm.I32,
				wasm.I32, wasm.I32, wasm.I32, wasm.I32,
			},
		}},
		DataSegments: []wasm.DataSegment{
			{Offset: destOffset, Value: tomb.Contract.Addr.Bytes()},
			{Offset: codeHashOffset, Value: tomb.Contract.Code.Hash.Bytes()},
			{Offset: allowanceOffset, Value: balanceBytes(1 << 32)},
			{Offset: deltaOffset, Value: deltaPacked},
		},
		CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
			wasm.I32Const(destOffset),
			wasm.I32Const(common.AddressLength),
			wasm.I32Const(codeHashOffset),
			wasm.I32Const(common.HashLength),
			wasm.I32Const(allowanceOffset),
			wasm.I32Const(16),
			wasm.I32Const(deltaOffset),
			wasm.I32Const(int32(deltaKeys)),
			wasm.Call(0),
		}),
	}
	c, err := d.Instantiate(def, nil, EndowMax)
	if err != nil {
		return nil, err
	}
	return &Run{
		Measure: measureCall(d, c, nil),
		Verify: func() error {
			if err := verifyCallSites(c, repeat)(); err != nil {
				return err
			}
			// The snapshot must still be retrievable for the restoration.
			for _, item := range tomb.Items {
				value, err := d.Pallet().ReadContractStorage(tomb.Contract.Addr, item.Key)
				if err != nil {
					return err
				}
				if !bytes.Equal(value, item.Value) {
					return fmt.Errorf("bench: tombstone item %s drifted", item.Key.TerminalString())
				}
			}
			return nil
		},
	}, nil
}

func sealRandom() *Benchmark {
	return apiBenchmark("seal_random", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		sched := d.Pallet().Config().Schedule
		repeat := batch(args["r"])
		subjectLen := int32(sched.MaxSubjectLen)
		return wasm.ModuleDefinition{
			Memory: memMax(sched),
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_random",
				Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32, wasm.I32},
			}},
			DataSegments: []wasm.DataSegment{{Offset: 0, Value: bufferLenWord(sched)}},
			CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
				wasm.I32Const(4), // subject_ptr
				wasm.I32Const(subjectLen),
				wasm.I32Const(4 + subjectLen), // out_ptr
				wasm.I32Const(0),              // out_len_ptr
				wasm.Call(0),
			}),
		}, repeat, nil
	})
}

func sealDepositEvent() *Benchmark {
	return apiBenchmark("seal_deposit_event", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := batch(args["r"])
		return wasm.ModuleDefinition{
			Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_deposit_event",
				Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32, wasm.I32},
			}},
			CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
				wasm.I32Const(0), // topics_ptr
				wasm.I32Const(0), // topics_len
				wasm.I32Const(0), // data_ptr
				wasm.I32Const(0), // data_len
				wasm.Call(0),
			}),
		}, repeat, nil
	})
}

// sealDepositEventPerTopicAndKB varies the topic count and data size at a
// fixed batch of calls. Every emission reads a distinct topic buffer, so
// topic deduplication cost cannot hide behind caching.
func sealDepositEventPerTopicAndKB(sched *params.Schedule) *Benchmark {
	return &Benchmark{
		Name: "seal_deposit_event_per_topic_and_kb",
		Dims: []Dim{
			{Name: "t", Low: 0, High: sched.MaxEventTopics},
			{Name: "n", Low: 0, High: 16},
		},
		Setup: func(d *Driver, args Args) (*Run, error) {
			sched := d.Pallet().Config().Schedule
			repeat := params.APIBatchSize
			topicsLen := args["t"] * common.HashLength
			topics, _ := uniqueKeys(repeat * args["t"])
			dataPtr := uint32(len(topics))
			def := wasm.ModuleDefinition{
				Memory: memMax(sched),
				ImportedFunctions: []wasm.ImportedFunction{{
					Name:   "seal_deposit_event",
					Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32, wasm.I32},
				}},
				DataSegments: []wasm.DataSegment{{Offset: 0, Value: topics}},
				CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
					wasm.Counter(0, topicsLen), // topics_ptr
					wasm.Regular(wasm.I32Const(int32(topicsLen))),
					wasm.Regular(wasm.I32Const(int32(dataPtr))),
					wasm.Regular(wasm.I32Const(int32(args["n"] * kib))),
					wasm.Regular(wasm.Call(0)),
				}),
			}
			c, err := d.Instantiate(def, nil, EndowMax)
			if err != nil {
				return nil, err
			}
			return &Run{
				Measure: measureCall(d, c, nil),
				Verify:  verifyCallSites(c, repeat),
			}, nil
		},
	}
}

func sealSetRentAllowance() *Benchmark {
	return apiBenchmark("seal_set_rent_allowance", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := batch(args["r"])
		return wasm.ModuleDefinition{
			Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_set_rent_allowance",
				Params: []wasm.ValueType{wasm.I32, wasm.I32},
			}},
			DataSegments: []wasm.DataSegment{{Offset: 0, Value: balanceBytes(1 << 40)}},
			CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
				wasm.I32Const(0),  // value_ptr
				wasm.I32Const(16), // value_len
				wasm.Call(0),
			}),
		}, repeat, nil
	})
}

func sealSetStorage() *Benchmark {
	return apiBenchmark("seal_set_storage", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		sched := d.Pallet().Config().Schedule
		repeat := batch(args["r"])
		keys, _ := uniqueKeys(repeat)
		valuePtr := int32(len(keys))
		return wasm.ModuleDefinition{
			Memory: memMax(sched),
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_set_storage",
				Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32},
			}},
			DataSegments: []wasm.DataSegment{{Offset: 0, Value: keys}},
			CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
				wasm.Counter(0, common.HashLength), // key_ptr
				wasm.Regular(wasm.I32Const(valuePtr)),
				wasm.Regular(wasm.I32Const(0)), // value_len
				wasm.Regular(wasm.Call(0)),
			}),
		}, repeat, nil
	})
}

func sealSetStoragePerKB(sched *params.Schedule) *Benchmark {
	b := apiBenchmark("seal_set_storage_per_kb", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		sched := d.Pallet().Config().Schedule
		repeat := params.APIBatchSize
		key := crypto.HashOfUint32(0)
		return wasm.ModuleDefinition{
			Memory: memMax(sched),
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:   "seal_set_storage",
				Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32},
			}},
			DataSegments: []wasm.DataSegment{{Offset: 0, Value: key.Bytes()}},
			CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
				wasm.I32Const(0),                  // key_ptr
				wasm.I32Const(common.HashLength),  // value_ptr
				wasm.I32Const(int32(args["n"] * kib)),
				wasm.Call(0),
			}),
		}, repeat, nil
	})
	b.Dims = []Dim{{Name: "n", Low: 0, High: sched.MaxValueSize / kib}}
	return b
}

// sealClearStorage seeds the keys it clears, so every call operates on an
// existing item.
func sealClearStorage() *Benchmark {
	return &Benchmark{
		Name: "seal_clear_storage",
		Dims: []Dim{{Name: "r", Low: 0, High: Batches}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			sched := d.Pallet().Config().Schedule
			repeat := batch(args["r"])
			packed, keys := uniqueKeys(repeat)
			def := wasm.ModuleDefinition{
				Memory: memMax(sched),
				ImportedFunctions: []wasm.ImportedFunction{{
					Name:   "seal_clear_storage",
					Params: []wasm.ValueType{wasm.I32},
				}},
				DataSegments: []wasm.DataSegment{{Offset: 0, Value: packed}},
				CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
					wasm.Counter(0, common.HashLength),
					wasm.Regular(wasm.Call(0)),
				}),
			}
			c, err := d.Instantiate(def, nil, EndowMax)
			if err != nil {
				return nil, err
			}
			items := make([]StorageItem, 0, len(keys))
			for _, key := range keys {
				items = append(items, StorageItem{Key: key, Value: []byte{0x42}})
			}
			if err := d.SeedStorage(c, items); err != nil {
				return nil, err
			}
			return &Run{
				Measure: measureCall(d, c, nil),
				Verify:  verifyCallSites(c, repeat),
			}, nil
		},
	}
}

func sealGetStorage() *Benchmark {
	return &Benchmark{
		Name: "seal_get_storage",
		Dims: []Dim{{Name: "r", Low: 0, High: Batches}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			return getStorageRun(d, batch(args["r"]), 1)
		},
	}
}

func sealGetStoragePerKB(sched *params.Schedule) *Benchmark {
	return &Benchmark{
		Name: "seal_get_storage_per_kb",
		Dims: []Dim{{Name: "n", Low: 0, High: sched.MaxValueSize / kib}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			return getStorageRun(d, params.APIBatchSize, args["n"]*kib)
		},
	}
}

// getStorageRun seeds repeat items of valueSize bytes and reads each of them
// back once through the host function.
func getStorageRun(d *Driver, repeat, valueSize uint32) (*Run, error) {
	sched := d.Pallet().Config().Schedule
	packed, keys := uniqueKeys(repeat)
	outPtr := int32(4 + len(packed))
	def := wasm.ModuleDefinition{
		Memory: memMax(sched),
		ImportedFunctions: []wasm.ImportedFunction{{
			Name:    "seal_get_storage",
			Params:  []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32},
			Results: []wasm.ValueType{wasm.I32},
		}},
		DataSegments: []wasm.DataSegment{
			{Offset: 0, Value: bufferLenWord(sched)},
			{Offset: 4, Value: packed},
		},
		CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
			wasm.Counter(4, common.HashLength), // key_ptr
			wasm.Regular(wasm.I32Const(outPtr)),
			wasm.Regular(wasm.I32Const(0)), // out_len_ptr
			wasm.Regular(wasm.Call(0)),
			wasm.Regular(wasm.Drop),
		}),
	}
	c, err := d.Instantiate(def, nil, EndowMax)
	if err != nil {
		return nil, err
	}
	items := make([]StorageItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, StorageItem{Key: key, Value: bytes.Repeat([]byte{0x42}, int(valueSize))})
	}
	if err := d.SeedStorage(c, items); err != nil {
		return nil, err
	}
	return &Run{
		Measure: measureCall(d, c, nil),
		Verify:  verifyCallSites(c, repeat),
	}, nil
}

// sealTransfer transfers to a distinct fresh account on every call.
func sealTransfer() *Benchmark {
	return apiBenchmark("seal_transfer", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		sched := d.Pallet().Config().Schedule
		repeat := batch(args["r"])
		accounts := make([]byte, 0, int(repeat)*common.AddressLength)
		for i := uint32(0); i < repeat; i++ {
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], i)
			addr := common.BytesToAddress(crypto.Blake2b256([]byte("transfer-dest"), buf[:]).Bytes())
			accounts = append(accounts, addr.Bytes()...)
		}
		const valueLen = 16
		accountsPtr := int32(valueLen)
		return wasm.ModuleDefinition{
			Memory: memMax(sched),
			ImportedFunctions: []wasm.ImportedFunction{{
				Name:    "seal_transfer",
				Params:  []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32, wasm.I32},
				Results: []wasm.ValueType{wasm.I32},
			}},
			DataSegments: []wasm.DataSegment{
				{Offset: 0, Value: balanceBytes(1)},
				{Offset: valueLen, Value: accounts},
			},
			CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
				wasm.Counter(uint32(accountsPtr), common.AddressLength), // account_ptr
				wasm.Regular(wasm.I32Const(common.AddressLength)),
				wasm.Regular(wasm.I32Const(0)), // value_ptr
				wasm.Regular(wasm.I32Const(valueLen)),
				wasm.Regular(wasm.Call(0)),
				wasm.Regular(wasm.Drop),
			}),
		}, repeat, nil
	})
}

// sealCall dispatches to a rotating set of instantiated callees so the
// callee lookup never hits the same contract twice in a row.
func sealCall() *Benchmark {
	return &Benchmark{
		Name: "seal_call",
		Dims: []Dim{{Name: "r", Low: 0, High: Batches}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			sched := d.Pallet().Config().Schedule
			repeat := batch(args["r"])
			callees := make([]byte, 0, int(params.APIBatchSize)*common.AddressLength)
			for i := uint32(0); i < params.APIBatchSize; i++ {
				var salt [4]byte
				binary.BigEndian.PutUint32(salt[:], i)
				callee, err := d.Instantiate(DummyModule(), salt[:], EndowMax)
				if err != nil {
					return nil, err
				}
				callees = append(callees, callee.Addr.Bytes()...)
			}
			const valueLen = 16
			calleesPtr := uint32(valueLen)
			def := wasm.ModuleDefinition{
				Memory: memMax(sched),
				ImportedFunctions: []wasm.ImportedFunction{{
					Name: "seal_call",
					Params: []wasm.ValueType{
						wasm.I32, wasm.I32, wasm.I64, wasm.I32, wasm.I32,
						wasm.I32, wasm.I32, wasm.I32, wasm.I32,
					},
					Results: []wasm.ValueType{wasm.I32},
				}},
				DataSegments: []wasm.DataSegment{
					{Offset: 0, Value: balanceBytes(0)},
					{Offset: calleesPtr, Value: callees},
				},
				CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
					wasm.Counter(calleesPtr, common.AddressLength), // callee_ptr
					wasm.Regular(wasm.I32Const(common.AddressLength)),
					wasm.Regular(wasm.I64Const(0)), // gas
					wasm.Regular(wasm.I32Const(0)), // value_ptr
					wasm.Regular(wasm.I32Const(valueLen)),
					wasm.Regular(wasm.I32Const(0)),        // input_ptr
					wasm.Regular(wasm.I32Const(0)),        // input_len
					wasm.Regular(wasm.I32Const(sentinel)), // output_ptr
					wasm.Regular(wasm.I32Const(0)),        // output_len_ptr
					wasm.Regular(wasm.Call(0)),
					wasm.Regular(wasm.Drop),
				}),
			}
			c, err := d.Instantiate(def, nil, EndowMax)
			if err != nil {
				return nil, err
			}
			return &Run{
				Measure: measureCall(d, c, nil),
				Verify:  verifyCallSites(c, repeat),
			}, nil
		},
	}
}

// sealInstantiate instantiates from a rotating set of distinct code hashes,
// so address derivation never collides.
func sealInstantiate() *Benchmark {
	return &Benchmark{
		Name: "seal_instantiate",
		Dims: []Dim{{Name: "r", Low: 0, High: Batches}},
		Setup: func(d *Driver, args Args) (*Run, error) {
			sched := d.Pallet().Config().Schedule
			repeat := batch(args["r"])
			hashes := make([]byte, 0, int(params.APIBatchSize)*common.HashLength)
			for i := uint32(0); i < params.APIBatchSize; i++ {
				code, err := wasm.Build(MarkedModule(int32(i)))
				if err != nil {
					return nil, err
				}
				if err := d.Deploy(code); err != nil {
					return nil, err
				}
				hashes = append(hashes, code.Hash.Bytes()...)
			}
			const valueLen = 16
			hashesPtr := uint32(valueLen)
			def := wasm.ModuleDefinition{
				Memory: memMax(sched),
				ImportedFunctions: []wasm.ImportedFunction{{
					Name: "seal_instantiate",
					Params: []wasm.ValueType{
						wasm.I32, wasm.I32, wasm.I64, wasm.I32, wasm.I32, wasm.I32,
						wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32,
					},
					Results: []wasm.ValueType{wasm.I32},
				}},
				DataSegments: []wasm.DataSegment{
					{Offset: 0, Value: balanceBytes(d.Pallet().Config().FeeModel.ExistentialDeposit + d.Pallet().Config().FeeModel.TombstoneDeposit)},
					{Offset: hashesPtr, Value: hashes},
				},
				CallBody: wasm.BodyCounted(repeat, []wasm.CountedInstruction{
					wasm.Counter(hashesPtr, common.HashLength), // code_hash_ptr
					wasm.Regular(wasm.I32Const(common.HashLength)),
					wasm.Regular(wasm.I64Const(0)), // gas
					wasm.Regular(wasm.I32Const(0)), // value_ptr
					wasm.Regular(wasm.I32Const(valueLen)),
					wasm.Regular(wasm.I32Const(0)),        // input_ptr
					wasm.Regular(wasm.I32Const(0)),        // input_len
					wasm.Regular(wasm.I32Const(sentinel)), // address_ptr
					wasm.Regular(wasm.I32Const(0)),        // address_len_ptr
					wasm.Regular(wasm.I32Const(sentinel)), // output_ptr
					wasm.Regular(wasm.I32Const(0)),        // output_len_ptr
					wasm.Regular(wasm.Call(0)),
					wasm.Regular(wasm.Drop),
				}),
			}
			c, err := d.Instantiate(def, nil, EndowMax)
			if err != nil {
				return nil, err
			}
			return &Run{
				Measure: measureCall(d, c, nil),
				Verify:  verifyCallSites(c, repeat),
			}, nil
		},
	}
}

func hasherBenchmark(hasher string) *Benchmark {
	return apiBenchmark(hasher, func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := batch(args["r"])
		return HasherModule(d.Pallet().Config().Schedule, hasher, repeat, 0), repeat, nil
	})
}

func hasherPerKB(hasher string, sched *params.Schedule) *Benchmark {
	b := apiBenchmark(hasher+"_per_kb", func(d *Driver, args Args) (wasm.ModuleDefinition, uint32, error) {
		repeat := params.APIBatchSize
		return HasherModule(d.Pallet().Config().Schedule, hasher, repeat, args["n"]*kib), repeat, nil
	})
	b.Dims = []Dim{{Name: "n", Low: 0, High: sched.MaxMemoryBytes() / kib}}
	return b
}
