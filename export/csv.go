// Package export renders license listings for consumption outside the
// API, currently as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"tradelic.app/cloud/models"
)

var csvHeader = []string{
	"license_key", "client_name", "client_contact", "client_telegram",
	"status", "robot_name", "account_number", "account_owner",
	"account_type", "broker_name", "balance", "created_date",
	"activation_date", "expiry_date", "last_check", "days_left",
	"days_left_text", "urgency", "check_count", "notes",
}

// CSV writes the licenses as a CSV document with a header row. Dates are
// local wall-clock, matching what the rest of the system displays.
func CSV(w io.Writer, licenses []models.License) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, l := range licenses {
		record := []string{
			l.Key,
			l.ClientName,
			l.ClientContact,
			l.ClientTelegram,
			l.Status,
			l.RobotName,
			l.AccountNumber,
			l.AccountOwner,
			l.AccountType,
			l.BrokerName,
			strconv.FormatFloat(l.Balance, 'f', 2, 64),
			formatDate(l.CreatedDate),
			formatDate(l.ActivationDate),
			formatDate(l.ExpiryDate),
			formatDate(l.LastCheck),
			strconv.Itoa(l.DaysLeft),
			l.DaysLeftText,
			l.Urgency,
			strconv.Itoa(l.CheckCount),
			l.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing license %s: %w", l.Key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return models.FormatDate(*t)
}
