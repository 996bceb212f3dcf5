package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultFeeModelValid(t *testing.T) {
	if err := DefaultFeeModel().Validate(); err != nil {
		t.Fatalf("default fee model invalid: %v", err)
	}
}

func TestRentBearingEndowmentBelowDeposit(t *testing.T) {
	f := DefaultFeeModel()
	endowment, storageSize := f.RentBearingEndowment()
	if storageSize == 0 {
		t.Fatalf("rent bearing fixture must account for storage")
	}
	deposit := f.RentDepositOffset * (uint64(storageSize) + uint64(f.StorageSizeOffset))
	if endowment.Uint64() != deposit-1 {
		t.Fatalf("endowment %d does not undercut deposit %d by one", endowment.Uint64(), deposit)
	}
	if endowment.Cmp(f.SubsistenceThreshold()) < 0 {
		t.Fatalf("endowment %d below subsistence threshold %d", endowment.Uint64(), f.SubsistenceThreshold().Uint64())
	}
}

func TestFundingHalvesMaximum(t *testing.T) {
	funding := Funding()
	doubled := funding.Clone()
	if _, overflow := doubled.AddOverflow(doubled, funding); overflow {
		t.Fatalf("twice the funding amount must still be representable")
	}
}

func TestLoadFeeModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feemodel.toml")
	blob := []byte(`
Version = 1
ExistentialDeposit = 2000
TombstoneDeposit = 512
RentByteFee = 8
RentDepositOffset = 512
StorageSizeOffset = 16
SurchargeReward = 1024
SignedClaimHandicap = 3
`)
	if err := os.WriteFile(path, blob, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	model, err := LoadFeeModel(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if model.ExistentialDeposit != 2000 || model.RentByteFee != 8 || model.SignedClaimHandicap != 3 {
		t.Fatalf("unexpected model: %+v", model)
	}
}

func TestLoadFeeModelRejectsVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feemodel.toml")
	blob := []byte(`
Version = 99
ExistentialDeposit = 2000
TombstoneDeposit = 512
RentByteFee = 8
RentDepositOffset = 512
StorageSizeOffset = 16
SurchargeReward = 1024
SignedClaimHandicap = 3
`)
	if err := os.WriteFile(path, blob, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFeeModel(path); !errors.Is(err, ErrFeeModelVersion) {
		t.Fatalf("expected version error, got %v", err)
	}
}
