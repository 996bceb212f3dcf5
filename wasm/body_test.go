package wasm

import "testing"

func TestBodyRepeatedLength(t *testing.T) {
	seq := []Instruction{I32Const(4), I32Const(0), Call(0)}
	for _, n := range []uint32{0, 1, 3, 17} {
		body := BodyRepeated(n, seq)
		want := int(n)*len(seq) + 1
		if len(body.Instructions) != want {
			t.Fatalf("repetitions %d: have %d instructions, want %d", n, len(body.Instructions), want)
		}
		if last := body.Instructions[len(body.Instructions)-1]; last.Op != OpEnd {
			t.Fatalf("repetitions %d: body not terminated, last op %#x", n, byte(last.Op))
		}
	}
}

func TestBodyCountedAdvancesCursor(t *testing.T) {
	const (
		repetitions = 7
		base        = 96
		increment   = 32
	)
	body := BodyCounted(repetitions, []CountedInstruction{
		Counter(base, increment),
		Regular(I32Const(0)),
		Regular(Call(0)),
	})
	if want := repetitions*3 + 1; len(body.Instructions) != want {
		t.Fatalf("have %d instructions, want %d", len(body.Instructions), want)
	}
	prev := int64(-1)
	for i := 0; i < repetitions; i++ {
		ins := body.Instructions[i*3]
		if ins.Op != OpI32Const {
			t.Fatalf("emission %d: op %#x, want i32.const", i, byte(ins.Op))
		}
		if want := int64(base + i*increment); ins.Imm != want {
			t.Fatalf("emission %d: operand %d, want %d", i, ins.Imm, want)
		}
		if ins.Imm <= prev {
			t.Fatalf("emission %d: operand %d not strictly increasing after %d", i, ins.Imm, prev)
		}
		prev = ins.Imm
	}
}

func TestBodyCountedIndependentCursors(t *testing.T) {
	body := BodyCounted(3, []CountedInstruction{
		Counter(0, 8),
		Counter(100, 1),
	})
	wantFirst := []int64{0, 8, 16}
	wantSecond := []int64{100, 101, 102}
	for i := 0; i < 3; i++ {
		if have := body.Instructions[i*2].Imm; have != wantFirst[i] {
			t.Fatalf("first cursor emission %d: have %d want %d", i, have, wantFirst[i])
		}
		if have := body.Instructions[i*2+1].Imm; have != wantSecond[i] {
			t.Fatalf("second cursor emission %d: have %d want %d", i, have, wantSecond[i])
		}
	}
}

func TestEmptyBodyIsJustTerminator(t *testing.T) {
	body := EmptyBody()
	if len(body.Instructions) != 1 || body.Instructions[0].Op != OpEnd {
		t.Fatalf("unexpected empty body: %+v", body.Instructions)
	}
}
