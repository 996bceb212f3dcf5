package wasm

import "github.com/tos-network/wasmbench/common"

// The import namespace and export names below are a fixed ABI contract with
// the execution engine. They must match bit for bit.
const (
	// HostModule is the namespace all host functions are imported from.
	HostModule = "seal0"
	// MemoryModule and MemoryField name the single importable linear memory.
	MemoryModule = "env"
	MemoryField  = "memory"
	// ExportDeploy and ExportCall are the two entry points every contract
	// module must export.
	ExportDeploy = "deploy"
	ExportCall   = "call"
)

// ImportedFunction declares one host function the module imports. Imports
// receive ascending function indices starting at zero, in declaration
// order, strictly before the two internal entry points.
type ImportedFunction struct {
	Name    string
	Params  []ValueType
	Results []ValueType
}

// ImportedMemory declares the linear memory the module imports, in pages.
type ImportedMemory struct {
	MinPages uint32
	MaxPages uint32
}

// DataSegment initializes memory at Offset with Value when the module is
// instantiated. Callers must not place segments over regions a generated
// body addresses with its own literal operands.
type DataSegment struct {
	Offset uint32
	Value  []byte
}

// ModuleDefinition is the declarative description Build assembles a module
// from. A nil DeployBody or CallBody stands for the synthesized empty body,
// see EmptyBody.
type ModuleDefinition struct {
	DataSegments      []DataSegment
	Memory            *ImportedMemory
	ImportedFunctions []ImportedFunction
	DeployBody        *FuncBody
	CallBody          *FuncBody
}

// Code is the compiled form of a module definition together with its
// content hash. The hash addresses the code in the runtime's code registry.
type Code struct {
	Bytes []byte
	Hash  common.Hash
}

// FuncType is a decoded function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// ImportEntry is a decoded function import.
type ImportEntry struct {
	Module    string
	Field     string
	TypeIndex uint32
}

// ExportEntry is a decoded function export.
type ExportEntry struct {
	Name      string
	FuncIndex uint32
}

// Module is the decoded structure of a compiled module. Decode produces it
// and Encode writes it back to the identical byte sequence, which is what
// round-trip tests and the engine's shape validation operate on.
type Module struct {
	Types        []FuncType
	Memory       *ImportedMemory
	Imports      []ImportEntry
	Funcs        []uint32 // type indices of internal functions
	Exports      []ExportEntry
	Bodies       []FuncBody
	DataSegments []DataSegment
}

// ExportedFunc returns the function index the given name is exported under.
func (m *Module) ExportedFunc(name string) (uint32, bool) {
	for _, exp := range m.Exports {
		if exp.Name == name {
			return exp.FuncIndex, true
		}
	}
	return 0, false
}

// NumImportedFuncs returns the number of imported functions, which is also
// the function index of the first internal function.
func (m *Module) NumImportedFuncs() uint32 {
	return uint32(len(m.Imports))
}

// Body returns the decoded body of the internal function with the given
// index into the function index space.
func (m *Module) Body(funcIndex uint32) (*FuncBody, bool) {
	internal := int(funcIndex) - len(m.Imports)
	if internal < 0 || internal >= len(m.Bodies) {
		return nil, false
	}
	return &m.Bodies[internal], true
}
