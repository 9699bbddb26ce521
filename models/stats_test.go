package models

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"
)

func statsLicense(key, status string, balance float64, accountType string) License {
	return License{
		Key:         key,
		ClientName:  "Client " + key,
		Status:      status,
		AccountType: accountType,
		Balance:     balance,
		DaysLeft:    90,
	}
}

func TestAggregate_Empty(t *testing.T) {
	stats := Aggregate(nil, testNow)

	if stats.Total != 0 {
		t.Errorf("Expected 0 total, got %d", stats.Total)
	}
	if stats.TotalBalance != 0 || stats.MinBalance != 0 || stats.MaxBalance != 0 {
		t.Errorf("Expected zero currency figures, got %+v", stats)
	}
	if stats.HealthScore != 100 {
		t.Errorf("Expected perfect health score, got %v", stats.HealthScore)
	}
	if len(stats.Problems) != 0 {
		t.Errorf("Expected no problems, got %v", stats.Problems)
	}
}

func TestAggregate_DemoExcludedFromCurrency(t *testing.T) {
	licenses := []License{
		statsLicense("A", StatusActive, 1000, AccountReal),
		statsLicense("B", StatusActive, 50000, AccountReal),
		statsLicense("C", StatusActive, 500000, AccountDemo),
	}

	stats := Aggregate(licenses, testNow)

	if stats.TotalBalance != 51000 {
		t.Errorf("Expected real-only total 51000, got %v", stats.TotalBalance)
	}
	if stats.AverageBalance != 25500 {
		t.Errorf("Expected average 25500, got %v", stats.AverageBalance)
	}
	if stats.MaxBalance != 50000 {
		t.Errorf("Expected max 50000, got %v", stats.MaxBalance)
	}
	if stats.MinBalance != 1000 {
		t.Errorf("Expected min 1000, got %v", stats.MinBalance)
	}
	if stats.RealAccounts != 2 || stats.DemoAccounts != 1 {
		t.Errorf("Expected 2 real / 1 demo, got %d / %d", stats.RealAccounts, stats.DemoAccounts)
	}
}

func TestAggregate_ZeroBalanceNotCounted(t *testing.T) {
	licenses := []License{
		statsLicense("A", StatusActive, 0, AccountReal),
		statsLicense("B", StatusActive, 200, AccountReal),
	}

	stats := Aggregate(licenses, testNow)

	if stats.AverageBalance != 200 {
		t.Errorf("Expected average over funded accounts only, got %v", stats.AverageBalance)
	}
	if stats.MinBalance != 200 {
		t.Errorf("Expected min 200, got %v", stats.MinBalance)
	}
}

func TestAggregate_ExpiryBuckets(t *testing.T) {
	critical := statsLicense("A", StatusActive, 1000, AccountReal)
	critical.DaysLeft = 2
	soon := statsLicense("B", StatusActive, 1000, AccountReal)
	soon.DaysLeft = 6
	normal := statsLicense("C", StatusActive, 1000, AccountReal)
	normal.DaysLeft = 60

	recent := testNow.AddDate(0, 0, -5)
	old := testNow.AddDate(0, 0, -60)
	expiredRecent := statsLicense("D", StatusExpired, 0, AccountReal)
	expiredRecent.ExpiryDate = &recent
	expiredOld := statsLicense("E", StatusExpired, 0, AccountReal)
	expiredOld.ExpiryDate = &old

	stats := Aggregate([]License{critical, soon, normal, expiredRecent, expiredOld}, testNow)

	if stats.ExpiringCritical != 1 {
		t.Errorf("Expected 1 critical, got %d", stats.ExpiringCritical)
	}
	if stats.ExpiringSoon != 1 {
		t.Errorf("Expected 1 soon, got %d", stats.ExpiringSoon)
	}
	if stats.ExpiredRecently != 1 {
		t.Errorf("Expected 1 recently expired, got %d", stats.ExpiredRecently)
	}
	if !stats.HasCriticalProblems() {
		t.Error("Expected a critical problem flag")
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	soon := testNow.AddDate(0, 0, -3)
	licenses := []License{
		statsLicense("A", StatusActive, 1000, AccountReal),
		statsLicense("B", StatusBlocked, 0, AccountReal),
		statsLicense("C", StatusCreated, 0, AccountReal),
		{Key: "D", Status: StatusExpired, AccountType: AccountReal, ExpiryDate: &soon},
		statsLicense("E", StatusActive, 300000, AccountDemo),
	}

	base := Aggregate(licenses, testNow)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		shuffled := make([]License, len(licenses))
		copy(shuffled, licenses)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Aggregate(shuffled, testNow)
		// Problem order follows input order, so compare everything else.
		got.Problems, base.Problems = nil, nil
		if !reflect.DeepEqual(got, base) {
			t.Fatalf("Aggregation depends on order:\n%+v\n%+v", got, base)
		}
	}
}

func TestAggregate_ActivityCounters(t *testing.T) {
	checkedToday := testNow.Add(-1 * time.Hour)
	checkedLastWeek := testNow.AddDate(0, 0, -6)
	activatedRecently := testNow.AddDate(0, 0, -10)

	a := statsLicense("A", StatusActive, 1000, AccountReal)
	a.LastCheck = &checkedToday
	a.ActivationDate = &activatedRecently
	b := statsLicense("B", StatusActive, 1000, AccountReal)
	b.LastCheck = &checkedLastWeek
	c := statsLicense("C", StatusActive, 1000, AccountReal)

	stats := Aggregate([]License{a, b, c}, testNow)

	if stats.CheckedToday != 1 {
		t.Errorf("Expected 1 checked today, got %d", stats.CheckedToday)
	}
	if stats.NeverChecked != 1 {
		t.Errorf("Expected 1 never checked, got %d", stats.NeverChecked)
	}
	if stats.ActivatedThisMonth != 1 {
		t.Errorf("Expected 1 activated this month, got %d", stats.ActivatedThisMonth)
	}
}

func TestHealthScore(t *testing.T) {
	// 10 licenses, all checked today except the blocked one. One critical
	// expiry: 100 - 10 - (1/10)*30 + 9 = 96.
	checked := testNow.Add(-1 * time.Hour)
	var licenses []License
	for i := 0; i < 8; i++ {
		l := statsLicense(string(rune('A'+i)), StatusActive, 1000, AccountReal)
		l.LastCheck = &checked
		licenses = append(licenses, l)
	}
	critical := statsLicense("X", StatusActive, 1000, AccountReal)
	critical.DaysLeft = 1
	critical.LastCheck = &checked
	licenses = append(licenses, critical)
	licenses = append(licenses, statsLicense("Y", StatusBlocked, 0, AccountReal))

	stats := Aggregate(licenses, testNow)

	if stats.HealthScore != 96 {
		t.Errorf("Expected health score 96, got %v", stats.HealthScore)
	}
}

func TestHealthScore_Clamped(t *testing.T) {
	var licenses []License
	for i := 0; i < 20; i++ {
		l := statsLicense(string(rune('A'+i)), StatusActive, 1000, AccountReal)
		l.DaysLeft = 1
		licenses = append(licenses, l)
	}

	stats := Aggregate(licenses, testNow)

	if stats.HealthScore != 0 {
		t.Errorf("Expected score clamped to 0, got %v", stats.HealthScore)
	}
}

func TestStatistics_Report(t *testing.T) {
	stats := Aggregate([]License{statsLicense("A", StatusActive, 1000, AccountReal)}, testNow)
	report := stats.Report()
	if report == "" {
		t.Fatal("Expected a report")
	}
	for _, want := range []string{"LICENSE STATISTICS", "Total licenses: 1", "Score:"} {
		if !strings.Contains(report, want) {
			t.Errorf("Report missing %q", want)
		}
	}
}
