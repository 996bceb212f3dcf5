package wasm

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrBadMagic       = errors.New("wasm: bad magic or version")
	ErrSectionOrder   = errors.New("wasm: section out of order")
	ErrTrailingBytes  = errors.New("wasm: trailing bytes after last section")
	ErrUnknownSection = errors.New("wasm: unknown section")
)

// Decode parses a binary module produced by Encode back into its structure.
// It understands exactly the sections Encode emits, which is all a module of
// this harness ever contains.
func Decode(data []byte) (*Module, error) {
	r := &byteReader{data: data}
	head, err := r.readBytes(8)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(head[:4], magic) || !bytes.Equal(head[4:], version) {
		return nil, ErrBadMagic
	}
	mod := new(Module)
	lastSection := byte(0)
	for r.pos < len(r.data) {
		id, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if id <= lastSection {
			return nil, fmt.Errorf("%w: section %d after %d", ErrSectionOrder, id, lastSection)
		}
		lastSection = id
		size, err := r.readUleb128(5)
		if err != nil {
			return nil, err
		}
		payload, err := r.readBytes(int(size))
		if err != nil {
			return nil, err
		}
		sr := &byteReader{data: payload}
		switch id {
		case secType:
			err = decodeTypeSection(sr, mod)
		case secImport:
			err = decodeImportSection(sr, mod)
		case secFunction:
			err = decodeFunctionSection(sr, mod)
		case secExport:
			err = decodeExportSection(sr, mod)
		case secCode:
			err = decodeCodeSection(sr, mod)
		case secData:
			err = decodeDataSection(sr, mod)
		default:
			return nil, fmt.Errorf("%w: id %d", ErrUnknownSection, id)
		}
		if err != nil {
			return nil, err
		}
		if sr.pos != len(sr.data) {
			return nil, fmt.Errorf("%w: in section %d", ErrTrailingBytes, id)
		}
	}
	return mod, nil
}

func decodeTypeSection(r *byteReader, mod *Module) error {
	count, err := r.readUleb128(5)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		tag, err := r.readByte()
		if err != nil {
			return err
		}
		if tag != funcTypeTag {
			return fmt.Errorf("wasm: unexpected type tag %#x", tag)
		}
		var typ FuncType
		if typ.Params, err = readValueTypes(r); err != nil {
			return err
		}
		if typ.Results, err = readValueTypes(r); err != nil {
			return err
		}
		mod.Types = append(mod.Types, typ)
	}
	return nil
}

func readValueTypes(r *byteReader) ([]ValueType, error) {
	count, err := r.readUleb128(5)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	types := make([]ValueType, count)
	for i := range types {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		types[i] = ValueType(b)
	}
	return types, nil
}

func decodeImportSection(r *byteReader, mod *Module) error {
	count, err := r.readUleb128(5)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		module, err := readName(r)
		if err != nil {
			return err
		}
		field, err := readName(r)
		if err != nil {
			return err
		}
		kind, err := r.readByte()
		if err != nil {
			return err
		}
		switch kind {
		case importKindFunc:
			typeIndex, err := r.readUleb128(5)
			if err != nil {
				return err
			}
			mod.Imports = append(mod.Imports, ImportEntry{
				Module:    module,
				Field:     field,
				TypeIndex: uint32(typeIndex),
			})
		case importKindMemory:
			flags, err := r.readByte()
			if err != nil {
				return err
			}
			if flags != limitsMinMax {
				return fmt.Errorf("wasm: unexpected memory limit flags %#x", flags)
			}
			min, err := r.readUleb128(5)
			if err != nil {
				return err
			}
			max, err := r.readUleb128(5)
			if err != nil {
				return err
			}
			mod.Memory = &ImportedMemory{MinPages: uint32(min), MaxPages: uint32(max)}
		default:
			return fmt.Errorf("wasm: unsupported import kind %#x", kind)
		}
	}
	return nil
}

func decodeFunctionSection(r *byteReader, mod *Module) error {
	count, err := r.readUleb128(5)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		typeIndex, err := r.readUleb128(5)
		if err != nil {
			return err
		}
		mod.Funcs = append(mod.Funcs, uint32(typeIndex))
	}
	return nil
}

func decodeExportSection(r *byteReader, mod *Module) error {
	count, err := r.readUleb128(5)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return err
		}
		kind, err := r.readByte()
		if err != nil {
			return err
		}
		if kind != exportKindFunc {
			return fmt.Errorf("wasm: unsupported export kind %#x", kind)
		}
		index, err := r.readUleb128(5)
		if err != nil {
			return err
		}
		mod.Exports = append(mod.Exports, ExportEntry{Name: name, FuncIndex: uint32(index)})
	}
	return nil
}

func decodeCodeSection(r *byteReader, mod *Module) error {
	count, err := r.readUleb128(5)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		size, err := r.readUleb128(5)
		if err != nil {
			return err
		}
		payload, err := r.readBytes(int(size))
		if err != nil {
			return err
		}
		body, err := decodeBody(&byteReader{data: payload})
		if err != nil {
			return err
		}
		mod.Bodies = append(mod.Bodies, *body)
	}
	return nil
}

func decodeDataSection(r *byteReader, mod *Module) error {
	count, err := r.readUleb128(5)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		memIndex, err := r.readUleb128(5)
		if err != nil {
			return err
		}
		if memIndex != 0 {
			return fmt.Errorf("wasm: data segment for memory %d unsupported", memIndex)
		}
		offsetExpr, err := decodeInstruction(r)
		if err != nil {
			return err
		}
		if offsetExpr.Op != OpI32Const {
			return fmt.Errorf("wasm: unsupported data offset opcode %#x", byte(offsetExpr.Op))
		}
		if end, err := decodeInstruction(r); err != nil {
			return err
		} else if end.Op != OpEnd {
			return errors.New("wasm: unterminated data offset expression")
		}
		size, err := r.readUleb128(5)
		if err != nil {
			return err
		}
		value, err := r.readBytes(int(size))
		if err != nil {
			return err
		}
		mod.DataSegments = append(mod.DataSegments, DataSegment{
			Offset: uint32(int32(offsetExpr.Imm)),
			Value:  value,
		})
	}
	return nil
}

func decodeBody(r *byteReader) (*FuncBody, error) {
	locals, err := r.readUleb128(5)
	if err != nil {
		return nil, err
	}
	if locals != 0 {
		return nil, errors.New("wasm: local declarations unsupported")
	}
	body := new(FuncBody)
	for r.pos < len(r.data) {
		ins, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		body.Instructions = append(body.Instructions, ins)
	}
	if n := len(body.Instructions); n == 0 || body.Instructions[n-1].Op != OpEnd {
		return nil, ErrUnterminatedBody
	}
	return body, nil
}

func decodeInstruction(r *byteReader) (Instruction, error) {
	op, err := r.readByte()
	if err != nil {
		return Instruction{}, err
	}
	ins := Instruction{Op: OpCode(op)}
	switch ins.Op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpI32Eqz:
	case OpIf:
		bt, err := r.readByte()
		if err != nil {
			return Instruction{}, err
		}
		if bt != blockTypeEmpty {
			return Instruction{}, fmt.Errorf("wasm: unsupported block type %#x", bt)
		}
	case OpCall:
		index, err := r.readUleb128(5)
		if err != nil {
			return Instruction{}, err
		}
		ins.Imm = int64(index)
	case OpI32Const:
		v, err := r.readSleb128(5)
		if err != nil {
			return Instruction{}, err
		}
		ins.Imm = v
	case OpI64Const:
		v, err := r.readSleb128(10)
		if err != nil {
			return Instruction{}, err
		}
		ins.Imm = v
	default:
		return Instruction{}, fmt.Errorf("wasm: cannot decode opcode %#x", op)
	}
	return ins, nil
}

func readName(r *byteReader) (string, error) {
	size, err := r.readUleb128(5)
	if err != nil {
		return "", err
	}
	raw, err := r.readBytes(int(size))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
