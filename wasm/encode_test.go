package wasm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// definitions covering every feature of the builder, used by the round-trip
// tests below.
func testDefinitions() map[string]ModuleDefinition {
	return map[string]ModuleDefinition{
		"empty": {},
		"getter": {
			Memory: &ImportedMemory{MinPages: 1, MaxPages: 1},
			ImportedFunctions: []ImportedFunction{
				{Name: "seal_caller", Params: []ValueType{I32, I32}},
			},
			DataSegments: []DataSegment{
				{Offset: 0, Value: []byte{0xfc, 0xff, 0x00, 0x00}},
			},
			CallBody: BodyRepeated(4, []Instruction{I32Const(4), I32Const(0), Call(0)}),
		},
		"two imports with results": {
			Memory: &ImportedMemory{MinPages: 2, MaxPages: 16},
			ImportedFunctions: []ImportedFunction{
				{Name: "seal_get_storage", Params: []ValueType{I32, I32, I32}, Results: []ValueType{I32}},
				{Name: "seal_gas", Params: []ValueType{I32}},
			},
			DeployBody: Body(I32Const(0), Drop, End),
			CallBody: BodyCounted(3, []CountedInstruction{
				Counter(0, 32),
				Regular(I32Const(36)),
				Regular(I32Const(32)),
				Regular(Call(0)),
				Regular(Drop),
			}),
		},
		"branching": {
			CallBody: Body(
				I32Const(0), I32Eqz, If, Nop, Else, Unreachable, End,
				Return, End,
			),
		},
	}
}

func TestBuildRoundTrip(t *testing.T) {
	for name, def := range testDefinitions() {
		t.Run(name, func(t *testing.T) {
			code, err := Build(def)
			require.NoError(t, err)

			mod, err := Decode(code.Bytes)
			require.NoError(t, err)

			reencoded, err := Encode(mod)
			require.NoError(t, err)
			require.True(t, bytes.Equal(code.Bytes, reencoded),
				"re-encoding changed the byte sequence")
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	for name, def := range testDefinitions() {
		t.Run(name, func(t *testing.T) {
			first, err := Build(def)
			require.NoError(t, err)
			second, err := Build(def)
			require.NoError(t, err)
			require.True(t, bytes.Equal(first.Bytes, second.Bytes))
			require.Equal(t, first.Hash, second.Hash)
		})
	}
}

func TestBuildExportsEntryPoints(t *testing.T) {
	def := testDefinitions()["two imports with results"]
	code, err := Build(def)
	require.NoError(t, err)
	mod, err := Decode(code.Bytes)
	require.NoError(t, err)

	require.Len(t, mod.Exports, 2, "only deploy and call may be exported")
	deploy, ok := mod.ExportedFunc(ExportDeploy)
	require.True(t, ok)
	call, ok := mod.ExportedFunc(ExportCall)
	require.True(t, ok)

	// The internal functions sit immediately after the imports, so call
	// instructions referencing import k stay unambiguous.
	require.Equal(t, mod.NumImportedFuncs(), deploy)
	require.Equal(t, mod.NumImportedFuncs()+1, call)
	for i, imp := range mod.Imports {
		require.Equal(t, HostModule, imp.Module)
		require.Equal(t, uint32(i), imp.TypeIndex)
	}
}

func TestBuildSynthesizesEmptyBodies(t *testing.T) {
	code, err := Build(ModuleDefinition{})
	require.NoError(t, err)
	mod, err := Decode(code.Bytes)
	require.NoError(t, err)
	require.Len(t, mod.Bodies, 2)
	for _, body := range mod.Bodies {
		require.Equal(t, []Instruction{End}, body.Instructions)
	}
}

func TestBuildCallSites(t *testing.T) {
	// A module importing one zero-argument getter, cyclic-repeated three
	// times, must decode to exactly three call sites targeting import 0.
	code, err := Build(ModuleDefinition{
		ImportedFunctions: []ImportedFunction{
			{Name: "seal_block_number", Results: []ValueType{I64}},
		},
		CallBody: BodyRepeated(3, []Instruction{Call(0), Drop}),
	})
	require.NoError(t, err)
	mod, err := Decode(code.Bytes)
	require.NoError(t, err)

	callIndex, ok := mod.ExportedFunc(ExportCall)
	require.True(t, ok)
	body, ok := mod.Body(callIndex)
	require.True(t, ok)

	sites := 0
	for _, ins := range body.Instructions {
		if ins.Op == OpCall {
			require.Equal(t, int64(0), ins.Imm)
			sites++
		}
	}
	require.Equal(t, 3, sites)
}

func TestBuildDataSegments(t *testing.T) {
	def := testDefinitions()["getter"]
	code, err := Build(def)
	require.NoError(t, err)
	mod, err := Decode(code.Bytes)
	require.NoError(t, err)
	require.Equal(t, def.DataSegments, mod.DataSegments)
	require.Equal(t, def.Memory, mod.Memory)
}

func TestBuildRejectsInvalidDefinitions(t *testing.T) {
	if _, err := Build(ModuleDefinition{
		DataSegments: []DataSegment{{Offset: 0, Value: []byte{1}}},
	}); err == nil {
		t.Fatalf("expected data segment without memory to fail")
	}
	if _, err := Build(ModuleDefinition{
		Memory: &ImportedMemory{MinPages: 2, MaxPages: 1},
	}); err == nil {
		t.Fatalf("expected inverted memory limits to fail")
	}
	if _, err := Build(ModuleDefinition{
		Memory:       &ImportedMemory{MinPages: 1, MaxPages: 1},
		DataSegments: []DataSegment{{Offset: pageSize - 1, Value: []byte{1, 2}}},
	}); err == nil {
		t.Fatalf("expected out of range data segment to fail")
	}
	if _, err := Build(ModuleDefinition{
		CallBody: Body(I32Const(1), Drop),
	}); err == nil {
		t.Fatalf("expected unterminated body to fail")
	}
}

func TestLeb128RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	unsigned := []uint64{0, 1, 127, 128, 624485, 1<<32 - 1}
	for _, v := range unsigned {
		buf.Reset()
		writeUleb128(&buf, v)
		r := &byteReader{data: buf.Bytes()}
		got, err := r.readUleb128(10)
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("uleb round trip: have %d want %d", got, v)
		}
	}
	signed := []int64{0, 1, -1, 63, 64, -64, -65, -624485, 1<<31 - 1, -(1 << 31)}
	for _, v := range signed {
		buf.Reset()
		writeSleb128(&buf, v)
		r := &byteReader{data: buf.Bytes()}
		got, err := r.readSleb128(10)
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("sleb round trip: have %d want %d", got, v)
		}
	}
}
