// Package testutil provides fixture builders shared by the package
// tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"tradelic.app/cloud/models"
	"tradelic.app/cloud/storage"
)

// Now is the reference clock for fixture dates, captured once per test
// run. Fixtures derive dates relative to it so an "active" license
// stays active regardless of the wall-clock date the tests run on.
var Now = time.Now()

// RawLicense returns a plausible active license. Mutate the result per
// test case.
func RawLicense(key string) models.RawLicense {
	return models.RawLicense{
		LicenseKey:     key,
		ClientName:     "Test Client",
		Status:         models.StatusActive,
		AccountNumber:  "12345",
		AccountOwner:   "John Trader",
		AccountType:    models.AccountReal,
		BrokerName:     "RoboForex",
		LastBalance:    2500,
		Months:         3,
		RobotName:      "ScalperPro",
		RobotVersion:   "2.1",
		CreatedDate:    models.FormatDate(Now.AddDate(0, -2, 0)),
		ActivationDate: models.FormatDate(Now.AddDate(0, -2, 1)),
		ExpiryDate:     models.FormatDate(Now.AddDate(0, 1, 0)),
		LastCheck:      models.FormatDate(Now.Add(-2 * time.Hour)),
	}
}

// CreatedLicense returns a license that has never been activated.
func CreatedLicense(key string) models.RawLicense {
	return models.RawLicense{
		LicenseKey:  key,
		ClientName:  "Test Client",
		Status:      models.StatusCreated,
		Months:      1,
		RobotName:   "ScalperPro",
		CreatedDate: models.FormatDate(Now.AddDate(0, 0, -1)),
	}
}

// SeedStorage creates a memory store preloaded with the given licenses.
func SeedStorage(t *testing.T, licenses ...models.RawLicense) *storage.MemoryStorage {
	t.Helper()
	store := storage.NewMemoryStorage()
	for i := range licenses {
		if err := store.CreateLicense(context.Background(), &licenses[i]); err != nil {
			t.Fatalf("seeding license %s: %v", licenses[i].LicenseKey, err)
		}
	}
	return store
}
