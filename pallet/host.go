package pallet

import "github.com/tos-network/wasmbench/wasm"

// hostAPI is the signature table of the seal0 host function namespace. It
// mirrors what the execution engine links against; generated modules are
// validated against it at deploy time.
var hostAPI = map[string]wasm.FuncType{
	"gas": {Params: sig(wasm.I32)},

	// Getters share the out_ptr/out_len_ptr convention.
	"seal_caller":            {Params: sig(wasm.I32, wasm.I32)},
	"seal_address":           {Params: sig(wasm.I32, wasm.I32)},
	"seal_gas_left":          {Params: sig(wasm.I32, wasm.I32)},
	"seal_balance":           {Params: sig(wasm.I32, wasm.I32)},
	"seal_value_transferred": {Params: sig(wasm.I32, wasm.I32)},
	"seal_minimum_balance":   {Params: sig(wasm.I32, wasm.I32)},
	"seal_tombstone_deposit": {Params: sig(wasm.I32, wasm.I32)},
	"seal_rent_allowance":    {Params: sig(wasm.I32, wasm.I32)},
	"seal_block_number":      {Params: sig(wasm.I32, wasm.I32)},
	"seal_now":               {Params: sig(wasm.I32, wasm.I32)},

	"seal_weight_to_fee": {Params: sig(wasm.I64, wasm.I32, wasm.I32)},

	"seal_input":  {Params: sig(wasm.I32, wasm.I32)},
	"seal_return": {Params: sig(wasm.I32, wasm.I32, wasm.I32)},

	"seal_terminate":  {Params: sig(wasm.I32, wasm.I32)},
	"seal_restore_to": {Params: sig(wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32)},

	"seal_random":             {Params: sig(wasm.I32, wasm.I32, wasm.I32, wasm.I32)},
	"seal_deposit_event":      {Params: sig(wasm.I32, wasm.I32, wasm.I32, wasm.I32)},
	"seal_set_rent_allowance": {Params: sig(wasm.I32, wasm.I32)},

	"seal_set_storage":   {Params: sig(wasm.I32, wasm.I32, wasm.I32)},
	"seal_clear_storage": {Params: sig(wasm.I32)},
	"seal_get_storage":   {Params: sig(wasm.I32, wasm.I32, wasm.I32), Results: sig(wasm.I32)},

	"seal_transfer": {Params: sig(wasm.I32, wasm.I32, wasm.I32, wasm.I32), Results: sig(wasm.I32)},

	"seal_call": {
		Params:  sig(wasm.I32, wasm.I32, wasm.I64, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32),
		Results: sig(wasm.I32),
	},
	"seal_instantiate": {
		Params:  sig(wasm.I32, wasm.I32, wasm.I64, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32),
		Results: sig(wasm.I32),
	},

	"seal_hash_sha2_256":   {Params: sig(wasm.I32, wasm.I32, wasm.I32)},
	"seal_hash_keccak_256": {Params: sig(wasm.I32, wasm.I32, wasm.I32)},
	"seal_hash_blake2_256": {Params: sig(wasm.I32, wasm.I32, wasm.I32)},
	"seal_hash_blake2_128": {Params: sig(wasm.I32, wasm.I32, wasm.I32)},
}

func sig(types ...wasm.ValueType) []wasm.ValueType { return types }

// HostFunc returns the signature of a seal0 host function.
func HostFunc(name string) (wasm.FuncType, bool) {
	typ, ok := hostAPI[name]
	return typ, ok
}
