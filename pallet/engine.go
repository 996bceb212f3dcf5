package pallet

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tos-network/wasmbench/common"
	"github.com/tos-network/wasmbench/wasm"
)

var (
	ErrNoEntryPoint  = errors.New("pallet: module does not export entry point")
	ErrUnknownImport = errors.New("pallet: module imports unknown host function")
	ErrImportType    = errors.New("pallet: host import signature mismatch")
)

// CallContext carries the execution environment of one entry point
// dispatch.
type CallContext struct {
	Caller   common.Address
	Address  common.Address
	Value    *uint256.Int
	GasLimit uint64
	Input    []byte
	Block    uint64
}

// Engine executes a contract entry point. The instruction interpreter lives
// outside this module; measurement runs plug in the real engine here. The
// default implementation below verifies that the module satisfies the ABI
// the real engine would hold it to, then reports effect-free success, which
// keeps scenario fixtures runnable and checkable without an interpreter.
type Engine interface {
	Execute(mod *wasm.Module, entry string, ctx *CallContext) error
}

// ValidatingEngine checks module shape and host imports on every dispatch
// and otherwise succeeds without side effects.
type ValidatingEngine struct{}

// NewValidatingEngine returns the default engine.
func NewValidatingEngine() *ValidatingEngine {
	return &ValidatingEngine{}
}

// Execute implements Engine.
func (e *ValidatingEngine) Execute(mod *wasm.Module, entry string, ctx *CallContext) error {
	index, ok := mod.ExportedFunc(entry)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoEntryPoint, entry)
	}
	if _, ok := mod.Body(index); !ok {
		return fmt.Errorf("%w: %q bound to import", ErrNoEntryPoint, entry)
	}
	return validateHostImports(mod)
}

// validateEntryPoints checks that the module exports both entry points as
// internal functions. Registration rejects modules missing either one, so no
// contract can come alive with a constructor that cannot be dispatched.
func validateEntryPoints(mod *wasm.Module) error {
	for _, entry := range []string{wasm.ExportDeploy, wasm.ExportCall} {
		index, ok := mod.ExportedFunc(entry)
		if !ok {
			return fmt.Errorf("%w: %q", ErrNoEntryPoint, entry)
		}
		if _, ok := mod.Body(index); !ok {
			return fmt.Errorf("%w: %q bound to import", ErrNoEntryPoint, entry)
		}
	}
	return nil
}

// validateHostImports checks every function import against the host API
// table. The import namespace and each signature are part of the ABI; a
// mismatch means the generated module would trap on dispatch, so it is
// rejected before any measurement can run against it.
func validateHostImports(mod *wasm.Module) error {
	for _, imp := range mod.Imports {
		if imp.Module != wasm.HostModule {
			return fmt.Errorf("%w: namespace %q", ErrUnknownImport, imp.Module)
		}
		want, ok := hostAPI[imp.Field]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownImport, imp.Module, imp.Field)
		}
		if int(imp.TypeIndex) >= len(mod.Types) {
			return fmt.Errorf("%w: %s has no signature", ErrImportType, imp.Field)
		}
		have := mod.Types[imp.TypeIndex]
		if !typesEqual(have.Params, want.Params) || !typesEqual(have.Results, want.Results) {
			return fmt.Errorf("%w: %s", ErrImportType, imp.Field)
		}
	}
	return nil
}

func typesEqual(a, b []wasm.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
