package params

import (
	"errors"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/naoina/toml"
)

// FeeModelVersion is the fee model revision this harness was written
// against. Weight figures derived under one revision are not comparable to
// figures derived under another, so a file carrying a different version is
// rejected instead of silently reinterpreted.
const FeeModelVersion uint32 = 1

var (
	ErrFeeModelVersion = errors.New("params: unsupported fee model version")
	ErrFeeModelZero    = errors.New("params: fee model constant must not be zero")
)

// FeeModel carries the runtime constants that the rent and deposit
// arithmetic of contract fixtures depends on. They are an explicit, versioned
// input rather than hard-coded formulas: when the surrounding runtime changes
// a constant, the calibration run must be told, not guess.
type FeeModel struct {
	Version uint32

	// ExistentialDeposit is the minimum balance of any account.
	ExistentialDeposit uint64
	// TombstoneDeposit is the balance reserved for storing a tombstone.
	TombstoneDeposit uint64
	// RentByteFee is the rent charged per stored byte and block.
	RentByteFee uint64
	// RentDepositOffset is the balance that buys one byte of free storage.
	RentDepositOffset uint64
	// StorageSizeOffset is the storage byte count every contract is charged
	// for regardless of what it stores.
	StorageSizeOffset uint32
	// SurchargeReward is paid to the sender of a successful eviction claim.
	SurchargeReward uint64
	// SignedClaimHandicap is the block grace signed eviction claims carry.
	SignedClaimHandicap uint64
}

// DefaultFeeModel returns the fee model of the reference runtime.
func DefaultFeeModel() *FeeModel {
	return &FeeModel{
		Version:             FeeModelVersion,
		ExistentialDeposit:  1000,
		TombstoneDeposit:    256,
		RentByteFee:         4,
		RentDepositOffset:   256,
		StorageSizeOffset:   8,
		SurchargeReward:     512,
		SignedClaimHandicap: 2,
	}
}

// LoadFeeModel reads a fee model from a TOML file and validates it.
func LoadFeeModel(path string) (*FeeModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	model := new(FeeModel)
	if err := toml.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("params: invalid fee model file: %v", err)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// Validate checks that the model is usable for fixture arithmetic.
func (f *FeeModel) Validate() error {
	if f.Version != FeeModelVersion {
		return fmt.Errorf("%w: have %d want %d", ErrFeeModelVersion, f.Version, FeeModelVersion)
	}
	if f.ExistentialDeposit == 0 || f.RentByteFee == 0 || f.RentDepositOffset == 0 {
		return ErrFeeModelZero
	}
	if f.SurchargeReward > f.ExistentialDeposit+f.TombstoneDeposit {
		// An evicted contract retains exactly the subsistence threshold, which
		// is what the eviction reward is paid out of.
		return fmt.Errorf("params: surcharge reward %d exceeds subsistence threshold %d",
			f.SurchargeReward, f.ExistentialDeposit+f.TombstoneDeposit)
	}
	if f.SubsistenceThreshold().Uint64()/f.RentDepositOffset == 0 {
		// A rent-bearing fixture with zero accounted storage would never pay
		// rent however large the subsistence threshold grows.
		return fmt.Errorf("params: subsistence threshold %d too small for rent deposit offset %d",
			f.SubsistenceThreshold().Uint64(), f.RentDepositOffset)
	}
	return nil
}

// SubsistenceThreshold is the minimum balance a contract needs to stay alive.
func (f *FeeModel) SubsistenceThreshold() *uint256.Int {
	return uint256.NewInt(f.ExistentialDeposit + f.TombstoneDeposit)
}

// Funding is the balance benchmark accounts are endowed with: half of the
// representable maximum, so that no later transfer or reward can overflow.
func Funding() *uint256.Int {
	max := new(uint256.Int).Not(uint256.NewInt(0))
	return max.Rsh(max, 1)
}

// MaxEndowment is the largest endowment an instantiation can move out of a
// funded account while keeping the account itself above the existential
// deposit.
func (f *FeeModel) MaxEndowment() *uint256.Int {
	return new(uint256.Int).Sub(Funding(), uint256.NewInt(f.ExistentialDeposit))
}

// RentBearingEndowment returns the endowment and pre-set storage size of a
// contract that pays rent for a small, controlled number of blocks. The
// endowment is one unit short of buying the accounted storage outright, so
// every rent period actually deducts balance instead of being absorbed by
// the deposit allowance.
func (f *FeeModel) RentBearingEndowment() (*uint256.Int, uint32) {
	storageSize := f.SubsistenceThreshold().Uint64() / f.RentDepositOffset
	endowment := f.RentDepositOffset * (storageSize + uint64(f.StorageSizeOffset))
	return uint256.NewInt(endowment - 1), uint32(storageSize)
}
