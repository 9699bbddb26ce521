package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"tradelic.app/cloud/internal/logger"
	"tradelic.app/cloud/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStorage is the production implementation.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{
		db:   db,
		path: path,
	}

	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

const licenseColumns = `license_key, client_name, client_contact, client_telegram,
	robot_name, robot_version, account_number, account_owner, account_type, broker_name,
	fingerprint, fingerprint_hash, created_date, activation_date, expiry_date, months,
	status, last_ip, activation_ip, last_check, last_balance, terminal_version, os_info,
	check_count, failed_checks, heartbeat_count, notes`

func scanLicense(row interface{ Scan(...any) error }) (*models.RawLicense, error) {
	var lic models.RawLicense
	var clientName, clientContact, clientTelegram, robotName, robotVersion sql.NullString
	var accountNumber, accountOwner, accountType, brokerName sql.NullString
	var fingerprint, fingerprintHash sql.NullString
	var createdDate, activationDate, expiryDate, lastCheck sql.NullString
	var lastIP, activationIP, terminalVersion, osInfo, notes sql.NullString
	var months sql.NullInt64
	var lastBalance sql.NullFloat64

	err := row.Scan(
		&lic.LicenseKey, &clientName, &clientContact, &clientTelegram,
		&robotName, &robotVersion, &accountNumber, &accountOwner, &accountType, &brokerName,
		&fingerprint, &fingerprintHash, &createdDate, &activationDate, &expiryDate, &months,
		&lic.Status, &lastIP, &activationIP, &lastCheck, &lastBalance, &terminalVersion, &osInfo,
		&lic.CheckCount, &lic.FailedChecks, &lic.HeartbeatCount, &notes,
	)
	if err != nil {
		return nil, err
	}

	lic.ClientName = clientName.String
	lic.ClientContact = clientContact.String
	lic.ClientTelegram = clientTelegram.String
	lic.RobotName = robotName.String
	lic.RobotVersion = robotVersion.String
	lic.AccountNumber = accountNumber.String
	lic.AccountOwner = accountOwner.String
	lic.AccountType = accountType.String
	lic.BrokerName = brokerName.String
	lic.Fingerprint = fingerprint.String
	lic.FingerprintHash = fingerprintHash.String
	lic.CreatedDate = createdDate.String
	lic.ActivationDate = activationDate.String
	lic.ExpiryDate = expiryDate.String
	lic.LastCheck = lastCheck.String
	lic.Months = int(months.Int64)
	lic.LastIP = lastIP.String
	lic.ActivationIP = activationIP.String
	lic.LastBalance = lastBalance.Float64
	lic.TerminalVersion = terminalVersion.String
	lic.OSInfo = osInfo.String
	lic.Notes = notes.String

	return &lic, nil
}

func (s *SQLiteStorage) ListLicenses(ctx context.Context, f Filters) ([]models.RawLicense, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE 1=1`
	var params []any

	if f.Status != "" {
		query += ` AND status = ?`
		params = append(params, f.Status)
	}
	if f.RobotName != "" {
		query += ` AND robot_name = ?`
		params = append(params, f.RobotName)
	}
	query += ` ORDER BY created_date DESC`

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query licenses: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", map[string]interface{}{"error": err.Error()})
		}
	}()

	var licenses []models.RawLicense
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, *lic)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licenses: %w", err)
	}

	return licenses, nil
}

func (s *SQLiteStorage) GetLicense(ctx context.Context, key string) (*models.RawLicense, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE license_key = ?`

	lic, err := scanLicense(s.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lic, nil
}

func (s *SQLiteStorage) CreateLicense(ctx context.Context, lic *models.RawLicense) error {
	query := `INSERT INTO licenses
		(license_key, client_name, client_contact, client_telegram, robot_name, months, notes, status, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		lic.LicenseKey,
		lic.ClientName,
		lic.ClientContact,
		lic.ClientTelegram,
		nullable(lic.RobotName),
		lic.Months,
		lic.Notes,
		lic.Status,
		lic.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create license: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpdateLicense(ctx context.Context, key string, fields map[string]string) error {
	var pairs []string
	var values []any

	for field, value := range fields {
		if !allowedUpdateFields[field] {
			continue
		}
		pairs = append(pairs, field+" = ?")
		values = append(values, value)
	}

	if len(pairs) == 0 {
		return fmt.Errorf("no fields to update")
	}

	values = append(values, key)
	query := `UPDATE licenses SET ` + strings.Join(pairs, ", ") + ` WHERE license_key = ?`

	result, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to update license: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) SetStatus(ctx context.Context, key, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE licenses SET status = ? WHERE license_key = ?`, status, key)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) SetExpiry(ctx context.Context, key string, expiry time.Time, status string) error {
	var result sql.Result
	var err error

	if status != "" {
		result, err = s.db.ExecContext(ctx,
			`UPDATE licenses SET expiry_date = ?, status = ? WHERE license_key = ?`,
			models.FormatDate(expiry), status, key)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE licenses SET expiry_date = ? WHERE license_key = ?`,
			models.FormatDate(expiry), key)
	}
	if err != nil {
		return fmt.Errorf("failed to set expiry: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) Activate(ctx context.Context, key string, act Activation) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET
			robot_name = ?,
			robot_version = ?,
			account_number = ?,
			account_owner = ?,
			account_type = ?,
			broker_name = ?,
			fingerprint = ?,
			fingerprint_hash = ?,
			activation_date = ?,
			activation_ip = ?,
			expiry_date = ?,
			status = 'active',
			terminal_version = ?,
			os_info = ?,
			last_balance = ?,
			last_check = ?,
			check_count = 1
		WHERE license_key = ?`,
		act.RobotName,
		act.RobotVersion,
		act.AccountNumber,
		act.AccountOwner,
		act.AccountType,
		act.BrokerName,
		act.Fingerprint,
		act.FingerprintHash,
		models.FormatDate(act.ActivationDate),
		act.IP,
		models.FormatDate(act.ExpiryDate),
		act.TerminalVersion,
		act.OSInfo,
		act.Balance,
		models.FormatDate(act.ActivationDate),
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to activate license: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) RecordCheck(ctx context.Context, key string, chk CheckUpdate) error {
	// A successful check wipes the failure tally so a recovered robot
	// starts clean.
	counter := "check_count = check_count + 1, failed_checks = 0"
	if chk.Failed {
		counter = "failed_checks = failed_checks + 1"
	} else if chk.Heartbeat {
		counter = "heartbeat_count = heartbeat_count + 1"
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET
			last_check = ?,
			last_ip = ?,
			last_balance = ?,
			terminal_version = COALESCE(NULLIF(?, ''), terminal_version),
			account_owner = COALESCE(NULLIF(?, ''), account_owner),
			broker_name = COALESCE(NULLIF(?, ''), broker_name),
			account_type = COALESCE(NULLIF(?, ''), account_type),
			`+counter+`
		WHERE license_key = ?`,
		models.FormatDate(chk.CheckedAt),
		chk.IP,
		chk.Balance,
		chk.TerminalVersion,
		chk.AccountOwner,
		chk.BrokerName,
		chk.AccountType,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to record check: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) DeleteLicense(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM licenses WHERE license_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete license: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStorage) InsertEvent(ctx context.Context, ev *models.Event) error {
	details := "{}"
	if len(ev.Details) > 0 {
		if encoded, err := json.Marshal(ev.Details); err == nil {
			details = string(encoded)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, license_key, robot_name, client_name, description, priority, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Type,
		nullable(ev.LicenseKey),
		nullable(ev.RobotName),
		nullable(ev.ClientName),
		ev.Description,
		ev.Priority,
		details,
		nullable(ev.IPAddress),
		models.FormatDate(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListEvents(ctx context.Context, days int) ([]models.Event, error) {
	// created_at is stored as local wall-clock text, so the cutoff is
	// computed in Go rather than with SQLite's UTC datetime().
	cutoff := models.FormatDate(time.Now().AddDate(0, 0, -days))
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, license_key, robot_name, client_name, description, priority, details, ip_address, created_at
		FROM events
		WHERE created_at >= ?
		ORDER BY created_at DESC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", map[string]interface{}{"error": err.Error()})
		}
	}()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var licenseKey, robotName, clientName, ipAddress, details, createdAt sql.NullString

		err := rows.Scan(&ev.ID, &ev.Type, &licenseKey, &robotName, &clientName,
			&ev.Description, &ev.Priority, &details, &ipAddress, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.LicenseKey = licenseKey.String
		ev.RobotName = robotName.String
		ev.ClientName = clientName.String
		ev.IPAddress = ipAddress.String
		if details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &ev.Details)
		}
		if createdAt.String != "" {
			if t, err := time.Parse("2006-01-02T15:04:05", createdAt.String); err == nil {
				ev.CreatedAt = t
			}
		}

		events = append(events, ev)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
