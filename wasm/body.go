package wasm

// FuncBody is the instruction stream of one entry point. Generated bodies
// never declare locals, so only the instructions are carried. A well formed
// body ends with the End terminator; the constructors below guarantee that.
type FuncBody struct {
	Instructions []Instruction
}

// EmptyBody returns the body synthesized for an omitted entry point: nothing
// but the end-of-body marker.
func EmptyBody() *FuncBody {
	return &FuncBody{Instructions: []Instruction{End}}
}

// Body wraps a fixed instruction sequence into a function body. The caller
// supplies the End terminator, which keeps call sites that need instructions
// after a conditional block explicit about where the body closes.
func Body(instructions ...Instruction) *FuncBody {
	return &FuncBody{Instructions: instructions}
}

// BodyRepeated emits the given sequence back to back repetitions times at
// compile time and terminates the stream. The duplication is deliberate:
// repeating in the binary rather than through a runtime loop keeps loop
// control cost out of the per-repetition cost under measurement.
func BodyRepeated(repetitions uint32, instructions []Instruction) *FuncBody {
	body := make([]Instruction, 0, int(repetitions)*len(instructions)+1)
	for i := uint32(0); i < repetitions; i++ {
		body = append(body, instructions...)
	}
	return &FuncBody{Instructions: append(body, End)}
}

// CountedInstruction is one slot of a counted-repeat sequence: either a
// fixed instruction or a counter whose emission advances by a fixed
// increment, so each repetition can address distinct memory.
type CountedInstruction struct {
	counter   bool
	offset    uint32
	increment uint32
	regular   Instruction
}

// Counter returns a counted slot that emits i32.const offset+i*increment on
// its i-th emission.
func Counter(offset, increment uint32) CountedInstruction {
	return CountedInstruction{counter: true, offset: offset, increment: increment}
}

// Regular returns a counted slot that emits the same instruction on every
// repetition.
func Regular(ins Instruction) CountedInstruction {
	return CountedInstruction{regular: ins}
}

// BodyCounted is BodyRepeated with counter slots: fixed slots repeat
// verbatim while counter slots step a mutable cursor on each emission. A
// benchmark uses it to touch repetitions distinct addresses or storage keys
// instead of hammering one location, which would measure cache behaviour
// rather than the host function.
func BodyCounted(repetitions uint32, instructions []CountedInstruction) *FuncBody {
	cursors := make([]uint32, len(instructions))
	for i, ins := range instructions {
		cursors[i] = ins.offset
	}
	body := make([]Instruction, 0, int(repetitions)*len(instructions)+1)
	for r := uint32(0); r < repetitions; r++ {
		for i, ins := range instructions {
			if ins.counter {
				body = append(body, I32Const(int32(cursors[i])))
				cursors[i] += ins.increment
			} else {
				body = append(body, ins.regular)
			}
		}
	}
	return &FuncBody{Instructions: append(body, End)}
}
