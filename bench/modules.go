// Package bench contains the calibration scenarios for the contracts
// runtime: module presets, the contract lifecycle driver they are deployed
// through, the scenario catalog and the runner that times them. Everything
// here is deterministic; identical parameters compile to byte identical
// modules so runs stay comparable across machines.
package bench

import (
	"encoding/binary"

	"github.com/tos-network/wasmbench/params"
	"github.com/tos-network/wasmbench/wasm"
)

// Byte sizes of the smallest module DummyModule builds, of its code section
// and of one repetition of the SizedModule expansion block. Only the code
// section varies with the expansion count, so sizedModuleBytes can compute
// compiled sizes without building.
const (
	dummyModuleSize      = 65
	emptyCodeSectionSize = 9
	sizedExpansionBytes  = 6
)

// DummyModule returns the minimal valid contract: one page of memory, both
// entry points empty. Scenarios that only need a deployable code blob or an
// instantiable contract use it.
func DummyModule() wasm.ModuleDefinition {
	return wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: 1, MaxPages: 1},
	}
}

// MarkedModule is DummyModule with a distinct constant dropped on the stack
// of the call body. The marker changes the code bytes, and with them the
// content hash, without changing behaviour; scenarios that need many
// distinct code hashes build one per marker value.
func MarkedModule(marker int32) wasm.ModuleDefinition {
	def := DummyModule()
	def.CallBody = wasm.Body(
		wasm.I32Const(marker),
		wasm.Drop,
		wasm.End,
	)
	return def
}

// SizedModule returns a dummy module padded to the largest compiled size not
// exceeding targetBytes. Padding is dead weight in the call body, one branch
// block per expansion, so the module stays valid at every size and remains
// deployable when the target is the code size limit itself.
func SizedModule(targetBytes uint32) wasm.ModuleDefinition {
	expansions := uint32(0)
	if targetBytes > dummyModuleSize {
		expansions = (targetBytes - dummyModuleSize) / sizedExpansionBytes
	}
	for sizedModuleBytes(expansions+1) <= targetBytes {
		expansions++
	}
	for expansions > 0 && sizedModuleBytes(expansions) > targetBytes {
		expansions--
	}
	def := DummyModule()
	def.CallBody = wasm.BodyRepeated(expansions, []wasm.Instruction{
		wasm.I32Const(0),
		wasm.If,
		wasm.Return,
		wasm.End,
	})
	return def
}

// sizedModuleBytes is the exact compiled size of SizedModule's output for a
// given expansion count. The call body drags its own and the code section's
// LEB128 length prefix along as it grows, so the plain division estimate can
// land one byte over at prefix boundaries.
func sizedModuleBytes(expansions uint32) uint32 {
	callBody := sizedExpansionBytes*expansions + 2 // locals vector + end
	content := 4 + ulebSize(callBody) + callBody   // body count + empty deploy body
	return dummyModuleSize - emptyCodeSectionSize + 1 + ulebSize(content) + content
}

// ulebSize is the encoded length of v as unsigned LEB128.
func ulebSize(v uint32) uint32 {
	n := uint32(1)
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// GetterModule returns a module importing one host getter with the
// out_ptr/out_len_ptr convention and calling it repeat times. The first
// memory word is seeded with the free buffer length so every call finds a
// writable output region starting at byte 4.
func GetterModule(sched *params.Schedule, getter string, repeat uint32) wasm.ModuleDefinition {
	return wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: sched.MaxMemoryPages, MaxPages: sched.MaxMemoryPages},
		ImportedFunctions: []wasm.ImportedFunction{{
			Name:   getter,
			Params: []wasm.ValueType{wasm.I32, wasm.I32},
		}},
		DataSegments: []wasm.DataSegment{{
			Offset: 0,
			Value:  bufferLenWord(sched),
		}},
		CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
			wasm.I32Const(4), // out_ptr
			wasm.I32Const(0), // out_len_ptr
			wasm.Call(0),
		}),
	}
}

// HasherModule returns a module importing one host hash function with the
// input_ptr/input_len/out_ptr convention, hashing dataSize bytes of zeroed
// memory repeat times.
func HasherModule(sched *params.Schedule, hasher string, repeat, dataSize uint32) wasm.ModuleDefinition {
	return wasm.ModuleDefinition{
		Memory: &wasm.ImportedMemory{MinPages: sched.MaxMemoryPages, MaxPages: sched.MaxMemoryPages},
		ImportedFunctions: []wasm.ImportedFunction{{
			Name:   hasher,
			Params: []wasm.ValueType{wasm.I32, wasm.I32, wasm.I32},
		}},
		CallBody: wasm.BodyRepeated(repeat, []wasm.Instruction{
			wasm.I32Const(0), // input_ptr
			wasm.I32Const(int32(dataSize)),
			wasm.I32Const(0), // out_ptr
			wasm.Call(0),
		}),
	}
}

// bufferLenWord encodes the length of the output buffer that follows the
// length word itself, which is the whole linear memory minus the word.
func bufferLenWord(sched *params.Schedule) []byte {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], sched.MaxMemoryBytes()-4)
	return word[:]
}
