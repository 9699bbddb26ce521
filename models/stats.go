package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Problem flags a single license in the aggregated view.
type Problem struct {
	Type       string `json:"type"` // critical, warning or info
	Message    string `json:"message"`
	LicenseKey string `json:"license_key,omitempty"`
}

// Statistics is the summary over a license collection. All currency
// figures cover real accounts with a positive balance only; demo accounts
// are counted but never summed.
type Statistics struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Blocked int `json:"blocked"`
	Created int `json:"created"`

	TotalBalance   float64 `json:"total_balance"`
	AverageBalance float64 `json:"average_balance"`
	MaxBalance     float64 `json:"max_balance"`
	MinBalance     float64 `json:"min_balance"`
	RealAccounts   int     `json:"real_accounts_count"`
	DemoAccounts   int     `json:"demo_accounts_count"`
	TotalAccounts  int     `json:"total_accounts"`

	ExpiringCritical int `json:"expiring_critical"`
	ExpiringSoon     int `json:"expiring_soon"`
	ExpiredRecently  int `json:"expired_recently"`

	ActivatedThisMonth  int `json:"activated_this_month"`
	CheckedToday        int `json:"checked_today"`
	NeverChecked        int `json:"never_checked"`
	UniqueBrokers       int `json:"unique_brokers_count"`
	UniqueClients       int `json:"unique_clients_count"`
	ClientsWithTelegram int `json:"clients_with_telegram"`

	Problems    []Problem `json:"problems"`
	HealthScore float64   `json:"health_score"`
}

// Aggregate folds a license collection into summary statistics. The fold
// is order-independent and total: an empty collection yields zero counts,
// zero currency figures and a perfect health score.
func Aggregate(licenses []License, now time.Time) Statistics {
	stats := Statistics{Problems: []Problem{}}
	stats.Total = len(licenses)

	monthAgo := now.Add(-30 * 24 * time.Hour)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	brokers := make(map[string]struct{})
	clients := make(map[string]struct{})
	realBalances := 0
	stats.MinBalance = math.Inf(1)

	for _, l := range licenses {
		switch l.Status {
		case StatusActive:
			stats.Active++
			if l.DaysLeft >= 0 {
				if l.DaysLeft <= 3 {
					stats.ExpiringCritical++
					stats.Problems = append(stats.Problems, Problem{
						Type:       "critical",
						Message:    fmt.Sprintf("license %s expires in %d days", l.Key, l.DaysLeft),
						LicenseKey: l.Key,
					})
				} else if l.DaysLeft <= 7 {
					stats.ExpiringSoon++
					stats.Problems = append(stats.Problems, Problem{
						Type:       "warning",
						Message:    fmt.Sprintf("license %s expires in %d days", l.Key, l.DaysLeft),
						LicenseKey: l.Key,
					})
				}
			}
		case StatusExpired:
			stats.Expired++
			if l.ExpiryDate != nil && floorDays(now.Sub(*l.ExpiryDate)) <= 30 {
				stats.ExpiredRecently++
			}
		case StatusBlocked:
			stats.Blocked++
			stats.Problems = append(stats.Problems, Problem{
				Type:       "info",
				Message:    fmt.Sprintf("license %s is blocked", l.Key),
				LicenseKey: l.Key,
			})
		case StatusCreated:
			stats.Created++
		}

		if l.AccountType == AccountReal {
			stats.RealAccounts++
		} else {
			stats.DemoAccounts++
		}

		if l.Balance > 0 && l.AccountType == AccountReal {
			realBalances++
			stats.TotalBalance += l.Balance
			stats.MaxBalance = math.Max(stats.MaxBalance, l.Balance)
			stats.MinBalance = math.Min(stats.MinBalance, l.Balance)

			if l.Balance < 100 && l.Status == StatusActive {
				stats.Problems = append(stats.Problems, Problem{
					Type:       "warning",
					Message:    fmt.Sprintf("low balance for %s: $%.0f", l.ClientName, l.Balance),
					LicenseKey: l.Key,
				})
			}
		}

		if l.AccountNumber != "" {
			stats.TotalAccounts++
		}
		if l.BrokerName != "" {
			brokers[l.BrokerName] = struct{}{}
		}
		if l.ClientName != "" {
			clients[l.ClientName] = struct{}{}
		}
		if l.ClientTelegram != "" {
			stats.ClientsWithTelegram++
		}

		if l.ActivationDate != nil && !l.ActivationDate.Before(monthAgo) {
			stats.ActivatedThisMonth++
		}

		if l.LastCheck != nil {
			if !l.LastCheck.Before(todayStart) {
				stats.CheckedToday++
			}
		} else if l.Status == StatusActive {
			stats.NeverChecked++
			stats.Problems = append(stats.Problems, Problem{
				Type:       "info",
				Message:    fmt.Sprintf("license %s has never been checked", l.Key),
				LicenseKey: l.Key,
			})
		}
	}

	if realBalances > 0 {
		stats.AverageBalance = stats.TotalBalance / float64(realBalances)
	}
	if math.IsInf(stats.MinBalance, 1) {
		stats.MinBalance = 0
	}
	stats.UniqueBrokers = len(brokers)
	stats.UniqueClients = len(clients)
	stats.HealthScore = stats.healthScore()

	return stats
}

// healthScore is a heuristic 0-100 display metric, not an audited
// quantity.
func (s *Statistics) healthScore() float64 {
	if s.Total == 0 {
		return 100
	}

	score := 100.0
	score -= float64(s.ExpiringCritical) * 10
	score -= float64(s.ExpiringSoon) * 5
	score -= float64(s.ExpiredRecently) * 3
	score -= float64(s.NeverChecked) * 2
	score -= float64(s.Expired+s.Blocked) / float64(s.Total) * 30

	if s.CheckedToday > 0 {
		score += math.Min(10, float64(s.CheckedToday))
	}

	return math.Max(0, math.Min(100, score))
}

// HasCriticalProblems reports whether any flagged problem is critical.
func (s *Statistics) HasCriticalProblems() bool {
	for _, p := range s.Problems {
		if p.Type == "critical" {
			return true
		}
	}
	return false
}

func (s *Statistics) HasWarnings() bool {
	for _, p := range s.Problems {
		if p.Type == "warning" {
			return true
		}
	}
	return false
}

// Trends describes the population direction on four axes. The thresholds
// are display heuristics carried over from the operator console.
func (s *Statistics) Trends() map[string]string {
	trends := make(map[string]string)

	switch {
	case s.Total > 0 && float64(s.ActivatedThisMonth) > float64(s.Total)*0.1:
		trends["activation"] = "growing"
	case s.ActivatedThisMonth == 0:
		trends["activation"] = "stagnant"
	default:
		trends["activation"] = "normal"
	}

	switch {
	case s.HasCriticalProblems():
		trends["problems"] = "critical"
	case s.HasWarnings():
		trends["problems"] = "warning"
	default:
		trends["problems"] = "good"
	}

	if s.Active > 0 {
		ratio := float64(s.CheckedToday) / float64(s.Active)
		switch {
		case ratio > 0.5:
			trends["usage"] = "high"
		case ratio > 0:
			trends["usage"] = "normal"
		default:
			trends["usage"] = "low"
		}
	} else {
		trends["usage"] = "none"
	}

	switch {
	case s.AverageBalance > 10000:
		trends["finance"] = "excellent"
	case s.AverageBalance > 1000:
		trends["finance"] = "good"
	case s.AverageBalance > 100:
		trends["finance"] = "normal"
	default:
		trends["finance"] = "low"
	}

	return trends
}

// Alerts returns operator-facing warning lines, most urgent first.
func (s *Statistics) Alerts() []string {
	var alerts []string

	if s.ExpiringCritical > 0 {
		alerts = append(alerts, fmt.Sprintf("%d licenses expire within 3 days", s.ExpiringCritical))
	}
	if s.ExpiringSoon > 0 {
		alerts = append(alerts, fmt.Sprintf("%d licenses expire within 7 days", s.ExpiringSoon))
	}
	if s.ExpiredRecently > 0 {
		alerts = append(alerts, fmt.Sprintf("%d licenses expired in the last 30 days", s.ExpiredRecently))
	}
	if s.NeverChecked > 0 {
		alerts = append(alerts, fmt.Sprintf("%d licenses have never been checked", s.NeverChecked))
	}

	lowBalance := 0
	for _, p := range s.Problems {
		if strings.HasPrefix(p.Message, "low balance") {
			lowBalance++
		}
	}
	if lowBalance > 0 {
		alerts = append(alerts, fmt.Sprintf("%d real accounts with low balance", lowBalance))
	}

	if s.RealAccounts > 0 && s.DemoAccounts > 0 {
		alerts = append(alerts, fmt.Sprintf("real accounts: %d, demo: %d", s.RealAccounts, s.DemoAccounts))
	}
	if s.UniqueBrokers > 10 {
		alerts = append(alerts, fmt.Sprintf("many distinct brokers in use: %d", s.UniqueBrokers))
	}

	return alerts
}

// Report renders a plain-text summary for the console.
func (s *Statistics) Report() string {
	trends := s.Trends()
	divider := strings.Repeat("=", 40)

	return fmt.Sprintf(`LICENSE STATISTICS
%s
Total licenses: %d
  active: %d
  expired: %d
  blocked: %d
  created: %d

FINANCE (REAL ACCOUNTS ONLY)
%s
Total balance: %s
Average balance: %s
Max balance: %s
Min balance: %s
Real accounts: %d
Demo accounts: %d

ACTIVITY
%s
Checked today: %d
Activated this month: %d
Never checked: %d

PROBLEMS
%s
Expiring within 3 days: %d
Expiring within 7 days: %d
Expired in last 30 days: %d

HEALTH
%s
Score: %.1f%%
Activation trend: %s
Usage trend: %s
Problem trend: %s
`,
		divider, s.Total, s.Active, s.Expired, s.Blocked, s.Created,
		divider, FormatBalance(s.TotalBalance), FormatBalance(s.AverageBalance),
		FormatBalance(s.MaxBalance), FormatBalance(s.MinBalance),
		s.RealAccounts, s.DemoAccounts,
		divider, s.CheckedToday, s.ActivatedThisMonth, s.NeverChecked,
		divider, s.ExpiringCritical, s.ExpiringSoon, s.ExpiredRecently,
		divider, s.HealthScore,
		trends["activation"], trends["usage"], trends["problems"])
}
