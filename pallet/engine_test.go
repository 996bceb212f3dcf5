package pallet

import (
	"errors"
	"testing"

	"github.com/tos-network/wasmbench/wasm"
)

func TestValidatingEngineRejectsUnknownEntry(t *testing.T) {
	code := dummyCode(t)
	mod, err := wasm.Decode(code.Bytes)
	if err != nil {
		t.Fatalf("failed to decode module: %v", err)
	}
	engine := NewValidatingEngine()
	if err := engine.Execute(mod, "bogus", &CallContext{}); !errors.Is(err, ErrNoEntryPoint) {
		t.Fatalf("execution error = %v, want %v", err, ErrNoEntryPoint)
	}
	if err := engine.Execute(mod, wasm.ExportCall, &CallContext{}); err != nil {
		t.Fatalf("failed to execute call entry: %v", err)
	}
}

func TestHostFuncTableCoversImports(t *testing.T) {
	for _, name := range []string{"gas", "seal_transfer", "seal_call", "seal_instantiate", "seal_hash_blake2_256"} {
		typ, ok := HostFunc(name)
		if !ok {
			t.Fatalf("host function %q not in table", name)
		}
		if len(typ.Params) == 0 {
			t.Fatalf("host function %q has no parameters", name)
		}
	}
}
