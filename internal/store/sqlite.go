package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jira-dashboard/internal/capacity"
	"jira-dashboard/internal/stats/discovery"
	"jira-dashboard/internal/workflow"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLite is a Store backed by a single SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initDB(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*SQLite, error) {
	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return initDB(db)
}

func initDB(db *sql.DB) (*SQLite, error) {
	// One connection serialises writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS cycle_time_cache (
			issue_key TEXT PRIMARY KEY,
			discovery_start_date TEXT,
			discovery_end_date TEXT,
			end_date_logic TEXT NOT NULL,
			calendar_days_in_discovery INTEGER,
			active_days_in_discovery INTEGER,
			completion_quarter TEXT,
			complexity TEXT NOT NULL DEFAULT 'Not Set',
			assignee TEXT NOT NULL DEFAULT '',
			calculated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_time_cache_quarter ON cycle_time_cache(completion_quarter);`,
		`CREATE TABLE IF NOT EXISTS discovery_exclusions (
			issue_key TEXT PRIMARY KEY,
			excluded_by TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			toggled_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS weekly_snapshots (
			id TEXT PRIMARY KEY,
			week_date TEXT NOT NULL,
			member TEXT NOT NULL,
			total INTEGER NOT NULL,
			health_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			UNIQUE(week_date, member)
		);`,
		`CREATE TABLE IF NOT EXISTS capacity_baseline (
			week_date TEXT PRIMARY KEY,
			members_json TEXT NOT NULL DEFAULT '{}',
			total INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

const recordColumns = `issue_key, discovery_start_date, discovery_end_date, end_date_logic,
	calendar_days_in_discovery, active_days_in_discovery, completion_quarter, complexity, assignee, calculated_at`

func (s *SQLite) Get(ctx context.Context, key string) (discovery.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM cycle_time_cache WHERE issue_key = ?`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, ErrNotFound) {
		return discovery.Record{}, false, nil
	}
	if err != nil {
		return discovery.Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLite) GetAll(ctx context.Context) ([]discovery.Record, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM cycle_time_cache ORDER BY issue_key`)
}

func (s *SQLite) GetByQuarter(ctx context.Context, quarter string) ([]discovery.Record, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM cycle_time_cache WHERE completion_quarter = ? ORDER BY issue_key`, quarter)
}

func (s *SQLite) queryRecords(ctx context.Context, query string, args ...any) ([]discovery.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []discovery.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Put(ctx context.Context, key string, rec discovery.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_time_cache (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(issue_key) DO UPDATE SET
			discovery_start_date = excluded.discovery_start_date,
			discovery_end_date = excluded.discovery_end_date,
			end_date_logic = excluded.end_date_logic,
			calendar_days_in_discovery = excluded.calendar_days_in_discovery,
			active_days_in_discovery = excluded.active_days_in_discovery,
			completion_quarter = excluded.completion_quarter,
			complexity = excluded.complexity,
			assignee = excluded.assignee,
			calculated_at = excluded.calculated_at`,
		key,
		nullableTS(rec.DiscoveryStartDate),
		nullableTS(rec.DiscoveryEndDate),
		string(rec.EndDateLogic),
		nullableInt(rec.CalendarDaysInDiscovery),
		nullableInt(rec.ActiveDaysInDiscovery),
		nullableString(rec.CompletionQuarter),
		string(rec.Complexity),
		rec.Assignee,
		ts(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put cycle time %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) (int, error) {
	return s.deleteInTx(ctx, `DELETE FROM cycle_time_cache`)
}

func (s *SQLite) ClearQuarter(ctx context.Context, quarter string) (int, error) {
	return s.deleteInTx(ctx, `DELETE FROM cycle_time_cache WHERE completion_quarter = ?`, quarter)
}

func (s *SQLite) deleteInTx(ctx context.Context, query string, args ...any) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear cycle time cache: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLite) ToggleExclusion(ctx context.Context, key, by, reason string) (excluded bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM discovery_exclusions WHERE issue_key = ?`, key)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO discovery_exclusions (issue_key, excluded_by, reason, toggled_at) VALUES (?, ?, ?, ?)`,
			key, by, reason, ts(s.now()))
		if err != nil {
			return false, fmt.Errorf("insert exclusion %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return removed == 0, nil
}

func (s *SQLite) ListExclusions(ctx context.Context) ([]Exclusion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT issue_key, excluded_by, reason, toggled_at FROM discovery_exclusions ORDER BY issue_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exclusion
	for rows.Next() {
		var (
			e          Exclusion
			toggledRaw string
		)
		if err := rows.Scan(&e.IssueKey, &e.ExcludedBy, &e.Reason, &toggledRaw); err != nil {
			return nil, err
		}
		e.ToggledAt = parseTS(toggledRaw)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) IsExcluded(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM discovery_exclusions WHERE issue_key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) PutSnapshot(ctx context.Context, snap capacity.WeeklySnapshot) error {
	healthRaw, err := json.Marshal(snap.Health)
	if err != nil {
		return fmt.Errorf("encode snapshot health: %w", err)
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	created := snap.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weekly_snapshots (id, week_date, member, total, health_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(week_date, member) DO UPDATE SET
			total = excluded.total,
			health_json = excluded.health_json,
			created_at = excluded.created_at`,
		snap.ID, weekKey(snap.Week), snap.Member, snap.Total, string(healthRaw), ts(created))
	if err != nil {
		return fmt.Errorf("put snapshot %s/%s: %w", weekKey(snap.Week), snap.Member, err)
	}
	return nil
}

const snapshotColumns = `id, week_date, member, total, health_json, created_at`

func (s *SQLite) GetSnapshots(ctx context.Context, week time.Time) ([]capacity.WeeklySnapshot, error) {
	return s.querySnapshots(ctx, `SELECT `+snapshotColumns+` FROM weekly_snapshots WHERE week_date = ? ORDER BY member`, weekKey(week))
}

func (s *SQLite) ListSnapshots(ctx context.Context) ([]capacity.WeeklySnapshot, error) {
	return s.querySnapshots(ctx, `SELECT `+snapshotColumns+` FROM weekly_snapshots ORDER BY week_date, member`)
}

func (s *SQLite) querySnapshots(ctx context.Context, query string, args ...any) ([]capacity.WeeklySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []capacity.WeeklySnapshot
	for rows.Next() {
		var (
			snap       capacity.WeeklySnapshot
			weekRaw    string
			healthRaw  string
			createdRaw string
		)
		if err := rows.Scan(&snap.ID, &weekRaw, &snap.Member, &snap.Total, &healthRaw, &createdRaw); err != nil {
			return nil, err
		}
		snap.Week = parseDay(weekRaw)
		snap.CreatedAt = parseTS(createdRaw)
		if err := json.Unmarshal([]byte(healthRaw), &snap.Health); err != nil {
			return nil, fmt.Errorf("decode health_json: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLite) ReplaceBaseline(ctx context.Context, points []capacity.BaselinePoint) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM capacity_baseline`); err != nil {
		return err
	}
	for _, p := range points {
		membersRaw, mErr := json.Marshal(p.Members)
		if mErr != nil {
			err = fmt.Errorf("encode baseline members: %w", mErr)
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO capacity_baseline (week_date, members_json, total) VALUES (?, ?, ?)`,
			weekKey(p.Date), string(membersRaw), p.Total)
		if err != nil {
			return fmt.Errorf("insert baseline %s: %w", weekKey(p.Date), err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListBaseline(ctx context.Context) ([]capacity.BaselinePoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT week_date, members_json, total FROM capacity_baseline ORDER BY week_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []capacity.BaselinePoint
	for rows.Next() {
		var (
			p          capacity.BaselinePoint
			weekRaw    string
			membersRaw string
		)
		if err := rows.Scan(&weekRaw, &membersRaw, &p.Total); err != nil {
			return nil, err
		}
		p.Date = parseDay(weekRaw)
		if err := json.Unmarshal([]byte(membersRaw), &p.Members); err != nil {
			return nil, fmt.Errorf("decode members_json: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// scanner represents a *sql.Row or *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (discovery.Record, error) {
	var (
		rec           discovery.Record
		startRaw      sql.NullString
		endRaw        sql.NullString
		logic         string
		calendar      sql.NullInt64
		active        sql.NullInt64
		quarter       sql.NullString
		complexity    string
		calculatedRaw string
	)
	if err := sc.Scan(&rec.IssueKey, &startRaw, &endRaw, &logic, &calendar, &active, &quarter, &complexity, &rec.Assignee, &calculatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return discovery.Record{}, ErrNotFound
		}
		return discovery.Record{}, err
	}
	rec.DiscoveryStartDate = parseNullTS(startRaw)
	rec.DiscoveryEndDate = parseNullTS(endRaw)
	rec.EndDateLogic = discovery.EndDateLogic(logic)
	rec.CalendarDaysInDiscovery = parseNullInt(calendar)
	rec.ActiveDaysInDiscovery = parseNullInt(active)
	rec.CompletionQuarter = quarter.String
	rec.Complexity = workflow.Complexity(complexity)
	rec.CalculatedAt = parseTS(calculatedRaw)
	return rec, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func parseTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	t := parseTS(v.String)
	return &t
}

func parseNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func parseDay(v string) time.Time {
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
