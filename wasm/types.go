// Package wasm assembles the minimal, deterministic WebAssembly modules the
// benchmark harness deploys as synthetic contracts. It covers exactly the
// subset of the binary format those modules need: imported functions and
// memory, two exported entry points and active data segments. It is not a
// general purpose wasm toolchain.
package wasm

// ValueType is the binary encoding of a wasm value type.
type ValueType byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
	F32 ValueType = 0x7d
	F64 ValueType = 0x7c
)

// OpCode is the one byte opcode of a wasm instruction.
type OpCode byte

const (
	OpUnreachable OpCode = 0x00
	OpNop         OpCode = 0x01
	OpIf          OpCode = 0x04
	OpElse        OpCode = 0x05
	OpEnd         OpCode = 0x0b
	OpReturn      OpCode = 0x0f
	OpCall        OpCode = 0x10
	OpDrop        OpCode = 0x1a
	OpI32Const    OpCode = 0x41
	OpI64Const    OpCode = 0x42
	OpI32Eqz      OpCode = 0x45
)

// blockTypeEmpty encodes an if block producing no result.
const blockTypeEmpty byte = 0x40

// Instruction is one instruction of a generated function body. Imm carries
// the single immediate operand of the opcodes that take one: the constant of
// i32.const/i64.const and the function index of call.
type Instruction struct {
	Op  OpCode
	Imm int64
}

// Instructions without immediate operands.
var (
	Unreachable = Instruction{Op: OpUnreachable}
	Nop         = Instruction{Op: OpNop}
	If          = Instruction{Op: OpIf} // no-result block form only
	Else        = Instruction{Op: OpElse}
	End         = Instruction{Op: OpEnd}
	Return      = Instruction{Op: OpReturn}
	Drop        = Instruction{Op: OpDrop}
	I32Eqz      = Instruction{Op: OpI32Eqz}
)

// I32Const returns an i32.const instruction pushing v.
func I32Const(v int32) Instruction {
	return Instruction{Op: OpI32Const, Imm: int64(v)}
}

// I64Const returns an i64.const instruction pushing v.
func I64Const(v int64) Instruction {
	return Instruction{Op: OpI64Const, Imm: v}
}

// Call returns a call instruction targeting function index fn. Generated
// bodies only ever call imports, which occupy the first len(imports) indices
// of the function index space.
func Call(fn uint32) Instruction {
	return Instruction{Op: OpCall, Imm: int64(fn)}
}
