package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const sensorSelect = `SELECT mac, name, status, latitude, longitude, location, battery,
	temperature, humidity, dust, created_by, created_at, updated_at FROM sensors`

const historySelect = `SELECT id, mac, temperature, humidity, dust, battery,
	latitude, longitude, location, updated_at FROM history`

const userSelect = `SELECT uid, email, name, role, password_hash, created_at, last_login FROM users`

type SQLProvider struct {
	db     *sqlx.DB
	driver string

	// Reports whether err is a unique constraint violation on users.email.
	isEmailConflict func(err error) bool

	logger *slog.Logger
}

func NewSQLProvider(driverName string, dataSource string) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	return &SQLProvider{
		db:              db,
		driver:          driverName,
		isEmailConflict: func(error) bool { return false },
		logger:          slog.With("component", "storage", "driver", driverName),
	}, nil
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Migrate applies all pending schema migrations.
func (p *SQLProvider) Migrate(ctx context.Context) error {
	return NewMigrationRunner(p.db, p.driver).Migrate(ctx, -1)
}

func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	return NewMigrationRunner(p.db, p.driver).CurrentVersion(ctx)
}

// ---------------------------------------------------------------------------
// Sensors
// ---------------------------------------------------------------------------

func (p *SQLProvider) ListSensors(ctx context.Context) ([]Sensor, error) {
	sensors := []Sensor{}
	if err := p.db.SelectContext(ctx, &sensors, sensorSelect+` ORDER BY mac`); err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	return sensors, nil
}

func (p *SQLProvider) GetSensor(ctx context.Context, mac string) (*Sensor, error) {
	var sensor Sensor
	err := p.db.GetContext(ctx, &sensor, sensorSelect+` WHERE mac = ?`, mac)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sensor %s: %w", mac, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get sensor %s: %w", mac, err)
	}
	return &sensor, nil
}

// patchValues resolves a patch into sorted column names and bind values.
func patchValues(patch Patch, now time.Time) ([]string, []any, error) {
	columns := make([]string, 0, len(patch))
	for column := range patch {
		if !sensorColumns[column] {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]any, 0, len(columns))
	for _, column := range columns {
		value := patch[column]
		switch v := value.(type) {
		case serverTimestamp:
			value = now
		case time.Time:
			value = v.UTC()
		case *time.Time:
			if v != nil {
				value = v.UTC()
			}
		case SensorStatus:
			value = string(v)
		}
		// status is NOT NULL, an absent status is the empty string
		if column == "status" && value == nil {
			value = string(SensorStatusNone)
		}
		if column == "status" {
			if _, ok := value.(string); !ok {
				return nil, nil, fmt.Errorf("%w: status %T", ErrInvalidPatch, value)
			}
		}
		args = append(args, value)
	}
	return columns, args, nil
}

func (p *SQLProvider) MergeSensor(ctx context.Context, mac string, patch Patch) error {
	columns, args, err := patchValues(patch, time.Now().UTC())
	if err != nil {
		return err
	}

	var query string
	if len(columns) == 0 {
		query = `INSERT INTO sensors (mac) VALUES (?) ON CONFLICT(mac) DO NOTHING`
	} else {
		sets := make([]string, len(columns))
		for i, column := range columns {
			sets[i] = fmt.Sprintf("%s = excluded.%s", column, column)
		}
		query = fmt.Sprintf(
			`INSERT INTO sensors (mac, %s) VALUES (?%s) ON CONFLICT(mac) DO UPDATE SET %s`,
			strings.Join(columns, ", "),
			strings.Repeat(", ?", len(columns)),
			strings.Join(sets, ", "),
		)
	}

	if _, err := p.db.ExecContext(ctx, query, append([]any{mac}, args...)...); err != nil {
		return fmt.Errorf("failed to merge sensor %s: %w", mac, err)
	}
	p.logger.Debug("Merged sensor", "mac", mac, "columns", columns)
	return nil
}

func (p *SQLProvider) UpdateSensor(ctx context.Context, mac string, patch Patch) error {
	columns, args, err := patchValues(patch, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		_, err := p.GetSensor(ctx, mac)
		return err
	}

	sets := make([]string, len(columns))
	for i, column := range columns {
		sets[i] = column + " = ?"
	}
	query := fmt.Sprintf(`UPDATE sensors SET %s WHERE mac = ?`, strings.Join(sets, ", "))

	res, err := p.db.ExecContext(ctx, query, append(args, mac)...)
	if err != nil {
		return fmt.Errorf("failed to update sensor %s: %w", mac, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("sensor %s: %w", mac, ErrNotFound)
	}
	p.logger.Debug("Updated sensor", "mac", mac, "columns", columns)
	return nil
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func (p *SQLProvider) AddHistory(ctx context.Context, entry HistoryEntry) error {
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	_, err := p.db.NamedExecContext(ctx, `INSERT INTO history
		(id, mac, temperature, humidity, dust, battery, latitude, longitude, location, updated_at)
		VALUES (:id, :mac, :temperature, :humidity, :dust, :battery, :latitude, :longitude, :location, :updated_at)`,
		entry)
	if err != nil {
		return fmt.Errorf("failed to add history for %s: %w", entry.MAC, err)
	}
	return nil
}

func (p *SQLProvider) LatestHistory(ctx context.Context, mac string) (*HistoryEntry, error) {
	var entry HistoryEntry
	err := p.db.GetContext(ctx, &entry,
		historySelect+` WHERE mac = ? ORDER BY updated_at DESC, rowid DESC LIMIT 1`, mac)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history of %s: %w", mac, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get latest history of %s: %w", mac, err)
	}
	return &entry, nil
}

func (p *SQLProvider) ListHistory(ctx context.Context, mac string, limit int) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}
	err := p.db.SelectContext(ctx, &entries,
		historySelect+` WHERE mac = ? ORDER BY updated_at DESC, rowid DESC LIMIT ?`, mac, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history of %s: %w", mac, err)
	}
	slices.Reverse(entries)
	return entries, nil
}

func (p *SQLProvider) RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}
	err := p.db.SelectContext(ctx, &entries,
		historySelect+` ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent history: %w", err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (p *SQLProvider) CreateUser(ctx context.Context, user User) error {
	user.CreatedAt = user.CreatedAt.UTC()
	if user.LastLogin != nil {
		t := user.LastLogin.UTC()
		user.LastLogin = &t
	}
	_, err := p.db.NamedExecContext(ctx, `INSERT INTO users
		(uid, email, name, role, password_hash, created_at, last_login)
		VALUES (:uid, :email, :name, :role, :password_hash, :created_at, :last_login)`,
		user)
	if err != nil {
		if p.isEmailConflict(err) {
			return fmt.Errorf("%s: %w", user.Email, ErrEmailInUse)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	p.logger.Info("Created user", "uid", user.UID, "role", user.Role)
	return nil
}

func (p *SQLProvider) getUser(ctx context.Context, where string, arg any) (*User, error) {
	var user User
	err := p.db.GetContext(ctx, &user, userSelect+` WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (p *SQLProvider) GetUser(ctx context.Context, uid string) (*User, error) {
	return p.getUser(ctx, `uid = ?`, uid)
}

func (p *SQLProvider) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return p.getUser(ctx, `email = ?`, strings.TrimSpace(email))
}

func (p *SQLProvider) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := p.db.SelectContext(ctx, &users, userSelect+` ORDER BY email`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (p *SQLProvider) execOne(ctx context.Context, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *SQLProvider) UpdateUserRole(ctx context.Context, uid string, role string) error {
	if err := p.execOne(ctx, `UPDATE users SET role = ? WHERE uid = ?`, role, uid); err != nil {
		return fmt.Errorf("failed to set role of %s: %w", uid, err)
	}
	return nil
}

func (p *SQLProvider) TouchLastLogin(ctx context.Context, uid string, at time.Time) error {
	if err := p.execOne(ctx, `UPDATE users SET last_login = ? WHERE uid = ?`, at.UTC(), uid); err != nil {
		return fmt.Errorf("failed to update last login of %s: %w", uid, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Nonces
// ---------------------------------------------------------------------------

func (p *SQLProvider) CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO nonces (nonce, expires_at) VALUES (?, ?)`, nonce, expiresAt.UTC())
	return err
}

func (p *SQLProvider) ExistsNonce(ctx context.Context, nonce string) (bool, error) {
	var count int
	err := p.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM nonces WHERE nonce = ? AND expires_at > ?`, nonce, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *SQLProvider) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM nonces WHERE nonce = ? AND expires_at > ?`, nonce, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *SQLProvider) ExpireNonces(ctx context.Context, now time.Time) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM nonces WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		p.logger.Debug("Expired nonces", "count", n)
	}
	return nil
}
