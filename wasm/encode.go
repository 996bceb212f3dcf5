package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/tos-network/wasmbench/crypto"
)

// pageSize is the size of one linear memory page in bytes.
const pageSize = 64 * 1024

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d} // "\0asm"
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

// Binary section ids, in the order they must appear in a module.
const (
	secType     byte = 1
	secImport   byte = 2
	secFunction byte = 3
	secExport   byte = 7
	secCode     byte = 10
	secData     byte = 11
)

const (
	importKindFunc   byte = 0x00
	importKindMemory byte = 0x02
	exportKindFunc   byte = 0x00
	funcTypeTag      byte = 0x60
	limitsMinMax     byte = 0x01
)

var (
	ErrNoMemory          = errors.New("wasm: data segment requires imported memory")
	ErrMemoryLimits      = errors.New("wasm: memory max pages below min pages")
	ErrSegmentOutOfRange = errors.New("wasm: data segment outside initial memory")
	ErrUnterminatedBody  = errors.New("wasm: body does not end with the end marker")
)

// Build assembles a module from its definition and returns the compiled
// bytes with their content hash. The module exports exactly "deploy" and
// "call", bound to the two internal functions placed immediately after all
// imports, so a Call(k) instruction in a body always targets import k.
// Identical definitions build byte-identical code.
func Build(def ModuleDefinition) (*Code, error) {
	mod, err := assemble(def)
	if err != nil {
		return nil, err
	}
	code, err := Encode(mod)
	if err != nil {
		return nil, err
	}
	return &Code{Bytes: code, Hash: crypto.Blake2b256(code)}, nil
}

// assemble lowers a definition into the decoded module structure Encode
// serializes. One signature is emitted per imported function, in declaration
// order, followed by the shared nullary signature of the entry points.
func assemble(def ModuleDefinition) (*Module, error) {
	if def.Memory != nil && def.Memory.MaxPages < def.Memory.MinPages {
		return nil, ErrMemoryLimits
	}
	if def.Memory == nil && len(def.DataSegments) > 0 {
		return nil, ErrNoMemory
	}
	for _, seg := range def.DataSegments {
		if def.Memory != nil {
			limit := uint64(def.Memory.MinPages) * pageSize
			if uint64(seg.Offset)+uint64(len(seg.Value)) > limit {
				return nil, fmt.Errorf("%w: offset %d len %d limit %d",
					ErrSegmentOutOfRange, seg.Offset, len(seg.Value), limit)
			}
		}
	}
	mod := &Module{
		Memory:       def.Memory,
		DataSegments: def.DataSegments,
	}
	for i, fn := range def.ImportedFunctions {
		mod.Types = append(mod.Types, FuncType{Params: fn.Params, Results: fn.Results})
		mod.Imports = append(mod.Imports, ImportEntry{
			Module:    HostModule,
			Field:     fn.Name,
			TypeIndex: uint32(i),
		})
	}
	entryType := uint32(len(mod.Types))
	mod.Types = append(mod.Types, FuncType{})
	mod.Funcs = []uint32{entryType, entryType}

	entryOffset := uint32(len(mod.Imports))
	mod.Exports = []ExportEntry{
		{Name: ExportDeploy, FuncIndex: entryOffset},
		{Name: ExportCall, FuncIndex: entryOffset + 1},
	}
	for _, body := range []*FuncBody{def.DeployBody, def.CallBody} {
		if body == nil {
			body = EmptyBody()
		}
		if n := len(body.Instructions); n == 0 || body.Instructions[n-1].Op != OpEnd {
			return nil, ErrUnterminatedBody
		}
		mod.Bodies = append(mod.Bodies, *body)
	}
	return mod, nil
}

// Encode serializes a module structure into the binary format. Encoding a
// module freshly produced by Decode yields the original byte sequence.
func Encode(m *Module) ([]byte, error) {
	var out bytes.Buffer
	out.Write(magic)
	out.Write(version)

	var sec bytes.Buffer

	// Type section.
	writeUleb128(&sec, uint64(len(m.Types)))
	for _, typ := range m.Types {
		sec.WriteByte(funcTypeTag)
		writeUleb128(&sec, uint64(len(typ.Params)))
		for _, p := range typ.Params {
			sec.WriteByte(byte(p))
		}
		writeUleb128(&sec, uint64(len(typ.Results)))
		for _, r := range typ.Results {
			sec.WriteByte(byte(r))
		}
	}
	writeSection(&out, secType, &sec)

	// Import section: the memory import precedes the function imports. The
	// two index spaces are independent, so function imports keep indices
	// 0..n-1 either way.
	if m.Memory != nil || len(m.Imports) > 0 {
		count := uint64(len(m.Imports))
		if m.Memory != nil {
			count++
		}
		writeUleb128(&sec, count)
		if m.Memory != nil {
			writeName(&sec, MemoryModule)
			writeName(&sec, MemoryField)
			sec.WriteByte(importKindMemory)
			sec.WriteByte(limitsMinMax)
			writeUleb128(&sec, uint64(m.Memory.MinPages))
			writeUleb128(&sec, uint64(m.Memory.MaxPages))
		}
		for _, imp := range m.Imports {
			writeName(&sec, imp.Module)
			writeName(&sec, imp.Field)
			sec.WriteByte(importKindFunc)
			writeUleb128(&sec, uint64(imp.TypeIndex))
		}
		writeSection(&out, secImport, &sec)
	}

	// Function section.
	writeUleb128(&sec, uint64(len(m.Funcs)))
	for _, typeIndex := range m.Funcs {
		writeUleb128(&sec, uint64(typeIndex))
	}
	writeSection(&out, secFunction, &sec)

	// Export section.
	writeUleb128(&sec, uint64(len(m.Exports)))
	for _, exp := range m.Exports {
		writeName(&sec, exp.Name)
		sec.WriteByte(exportKindFunc)
		writeUleb128(&sec, uint64(exp.FuncIndex))
	}
	writeSection(&out, secExport, &sec)

	// Code section.
	writeUleb128(&sec, uint64(len(m.Bodies)))
	for i := range m.Bodies {
		body, err := encodeBody(&m.Bodies[i])
		if err != nil {
			return nil, err
		}
		writeUleb128(&sec, uint64(len(body)))
		sec.Write(body)
	}
	writeSection(&out, secCode, &sec)

	// Data section.
	if len(m.DataSegments) > 0 {
		writeUleb128(&sec, uint64(len(m.DataSegments)))
		for _, seg := range m.DataSegments {
			writeUleb128(&sec, 0) // memory index
			sec.WriteByte(byte(OpI32Const))
			writeSleb128(&sec, int64(int32(seg.Offset)))
			sec.WriteByte(byte(OpEnd))
			writeUleb128(&sec, uint64(len(seg.Value)))
			sec.Write(seg.Value)
		}
		writeSection(&out, secData, &sec)
	}
	return out.Bytes(), nil
}

func writeSection(out *bytes.Buffer, id byte, payload *bytes.Buffer) {
	out.WriteByte(id)
	writeUleb128(out, uint64(payload.Len()))
	out.Write(payload.Bytes())
	payload.Reset()
}

func writeName(buf *bytes.Buffer, name string) {
	writeUleb128(buf, uint64(len(name)))
	buf.WriteString(name)
}

func encodeBody(body *FuncBody) ([]byte, error) {
	var buf bytes.Buffer
	writeUleb128(&buf, 0) // no locals
	for _, ins := range body.Instructions {
		if err := encodeInstruction(&buf, ins); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeInstruction(buf *bytes.Buffer, ins Instruction) error {
	buf.WriteByte(byte(ins.Op))
	switch ins.Op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpI32Eqz:
		// no immediate
	case OpIf:
		buf.WriteByte(blockTypeEmpty)
	case OpCall:
		if ins.Imm < 0 || ins.Imm > math.MaxUint32 {
			return fmt.Errorf("wasm: call index %d out of range", ins.Imm)
		}
		writeUleb128(buf, uint64(ins.Imm))
	case OpI32Const:
		if ins.Imm < math.MinInt32 || ins.Imm > math.MaxInt32 {
			return fmt.Errorf("wasm: i32 constant %d out of range", ins.Imm)
		}
		writeSleb128(buf, ins.Imm)
	case OpI64Const:
		writeSleb128(buf, ins.Imm)
	default:
		return fmt.Errorf("wasm: cannot encode opcode %#x", byte(ins.Op))
	}
	return nil
}
