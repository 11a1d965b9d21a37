/*
Package sqlite provides a SQLite-backed implementation of generic.Store.

PURPOSE:
  Durable relational store for the point ledger, the chore catalog and both
  badge tables. The engine's at-most-once and no-lost-update guarantees are
  enforced here by constraints and atomic statements, not by callers.

KEY TABLES:
  families, kids, chores: Catalog records (owned by other subsystems)
  point_entries:          Append-only ledger
  chore_badges:           One row per (kid_id, chore_id)
  achievement_badges:     One row per (kid_id, badge_id)

CONSTRAINTS:
  - chore_badges PRIMARY KEY(kid_id, chore_id): target of the atomic upsert
  - achievement_badges UNIQUE(kid_id, badge_id): at-most-once award
  - chore_badges.chore_id REFERENCES chores ON DELETE CASCADE: a deleted
    chore takes its mastery rows with it, and a concurrent increment fails
    with a stale reference
  - point_entries.chore_id is a plain reference with no foreign key: ledger
    rows are never rewritten, so a deleted chore still counts in history

CONCURRENCY:
  Writers open transactions with BEGIN IMMEDIATE (_txlock=immediate), so two
  increments of the same (kid, chore) serialise on the database write lock
  even across processes. A single pooled connection keeps ":memory:"
  databases coherent; an RWMutex orders access within the process.

USAGE:
  store, err := sqlite.New("./data/chores.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/chore-engine/generic"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements generic.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var _ generic.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &generic.TransientError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kids (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kids_family ON kids(family_id);

	CREATE TABLE IF NOT EXISTS chores (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chores_family ON chores(family_id);

	-- Point ledger (append-only)
	CREATE TABLE IF NOT EXISTS point_entries (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		kid_id TEXT NOT NULL REFERENCES kids(id) ON DELETE CASCADE,
		chore_id TEXT,
		points INTEGER NOT NULL,
		date TEXT NOT NULL,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_entries_kid_date
		ON point_entries(kid_id, date);
	CREATE INDEX IF NOT EXISTS idx_point_entries_kid_chore
		ON point_entries(kid_id, chore_id) WHERE chore_id IS NOT NULL;

	-- Chore mastery: the (kid_id, chore_id) key is the upsert target
	CREATE TABLE IF NOT EXISTS chore_badges (
		kid_id TEXT NOT NULL REFERENCES kids(id) ON DELETE CASCADE,
		chore_id TEXT NOT NULL REFERENCES chores(id) ON DELETE CASCADE,
		family_id TEXT NOT NULL,
		count INTEGER NOT NULL CHECK (count >= 1),
		level INTEGER NOT NULL CHECK (level >= 0),
		first_earned_at TEXT NOT NULL,
		last_level_up_at TEXT NOT NULL,
		PRIMARY KEY (kid_id, chore_id)
	);

	-- Achievements: at most one row per (kid_id, badge_id)
	CREATE TABLE IF NOT EXISTS achievement_badges (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		kid_id TEXT NOT NULL REFERENCES kids(id) ON DELETE CASCADE,
		badge_id TEXT NOT NULL,
		earned_at TEXT NOT NULL,
		metadata_json TEXT,
		UNIQUE (kid_id, badge_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// POINT LEDGER (generic.LedgerStore)
// =============================================================================

// AppendEntry adds an entry to the ledger.
func (s *Store) AppendEntry(ctx context.Context, e generic.PointEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var choreID sql.NullString
	if e.ChoreID != nil {
		choreID = nullString(string(*e.ChoreID))
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	// The ledger has no foreign key to chores, so a missing chore is checked
	// here. The write lock orders this against DeleteChore.
	if e.ChoreID != nil {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chores WHERE id = ?", *e.ChoreID).Scan(&exists)
		if err != nil {
			return translate("check chore", err)
		}
		if exists == 0 {
			return &generic.StaleReferenceError{KidID: e.KidID, ChoreID: *e.ChoreID, Err: generic.ErrNotFound}
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO point_entries
		(id, family_id, kid_id, chore_id, points, date, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.FamilyID, e.KidID, choreID, e.Points,
		formatTime(e.Date), nullString(e.Reason), nullString(e.IdempotencyKey),
		formatTime(createdAt),
	)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return generic.ErrDuplicateIdempotencyKey
		case isForeignKeyError(err):
			ref := &generic.StaleReferenceError{KidID: e.KidID, Err: err}
			if e.ChoreID != nil {
				ref.ChoreID = *e.ChoreID
			}
			return ref
		}
		return translate("append point entry", err)
	}
	return nil
}

// Entries returns a kid's entries ordered by date.
func (s *Store) Entries(ctx context.Context, kidID generic.KidID, filter generic.EntryFilter) ([]generic.PointEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, family_id, kid_id, chore_id, points, date, reason, idempotency_key, created_at
		FROM point_entries
		WHERE kid_id = ?`
	args := []any{kidID}
	if filter.EarnedOnly {
		query += " AND points > 0"
	}
	if filter.From != nil {
		query += " AND date >= ?"
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		query += " AND date < ?"
		args = append(args, formatTime(*filter.To))
	}
	query += " ORDER BY date ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("query point entries", err)
	}
	defer rows.Close()

	var entries []generic.PointEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, translate("query point entries", rows.Err())
}

func (s *Store) SumPoints(ctx context.Context, kidID generic.KidID) (int, error) {
	return s.queryInt(ctx, "sum points",
		"SELECT COALESCE(SUM(points), 0) FROM point_entries WHERE kid_id = ?", kidID)
}

func (s *Store) CountChoreCompletions(ctx context.Context, kidID generic.KidID, choreID generic.ChoreID) (int, error) {
	return s.queryInt(ctx, "count chore completions",
		"SELECT COUNT(*) FROM point_entries WHERE kid_id = ? AND chore_id = ? AND points > 0", kidID, choreID)
}

func (s *Store) CountDistinctChores(ctx context.Context, kidID generic.KidID) (int, error) {
	return s.queryInt(ctx, "count distinct chores",
		"SELECT COUNT(DISTINCT chore_id) FROM point_entries WHERE kid_id = ? AND chore_id IS NOT NULL AND points > 0", kidID)
}

func (s *Store) queryInt(ctx context.Context, op, query string, args ...any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translate(op, err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (generic.PointEntry, error) {
	var (
		e              generic.PointEntry
		choreID        sql.NullString
		date           string
		reason         sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)
	err := rows.Scan(&e.ID, &e.FamilyID, &e.KidID, &choreID, &e.Points,
		&date, &reason, &idempotencyKey, &createdAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan point entry: %w", err)
	}
	if choreID.Valid {
		id := generic.ChoreID(choreID.String)
		e.ChoreID = &id
	}
	e.Date = parseTime(date)
	e.Reason = reason.String
	e.IdempotencyKey = idempotencyKey.String
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// CATALOG (generic.CatalogStore)
// =============================================================================

func (s *Store) SaveFamily(ctx context.Context, f generic.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO families (id, name, timezone, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, timezone = excluded.timezone
	`, f.ID, f.Name, f.Timezone, formatTime(s.now()))
	return translate("save family", err)
}

func (s *Store) SaveKid(ctx context.Context, k generic.Kid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The WHERE clause turns a cross-family upsert into a no-op.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kids (id, family_id, name, timezone, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, timezone = excluded.timezone
		WHERE kids.family_id = excluded.family_id
	`, k.ID, k.FamilyID, k.Name, k.Timezone, formatTime(s.now()))
	if isForeignKeyError(err) {
		return &generic.StaleReferenceError{KidID: k.ID, Err: err}
	}
	if err != nil {
		return translate("save kid", err)
	}
	return checkOwned(res, "kid", string(k.ID))
}

func (s *Store) SaveChore(ctx context.Context, c generic.Chore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chores (id, family_id, name, icon, points, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, icon = excluded.icon, points = excluded.points
		WHERE chores.family_id = excluded.family_id
	`, c.ID, c.FamilyID, c.Name, c.Icon, c.Points, formatTime(s.now()))
	if isForeignKeyError(err) {
		return &generic.StaleReferenceError{ChoreID: c.ID, Err: err}
	}
	if err != nil {
		return translate("save chore", err)
	}
	return checkOwned(res, "chore", string(c.ID))
}

// checkOwned reports an upsert that touched no row, which only happens when
// the id exists under another family.
func checkOwned(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, generic.ErrOwnershipConflict)
	}
	return nil
}

// DeleteChore removes a chore. Its chore badges cascade; ledger rows keep
// the chore id.
func (s *Store) DeleteChore(ctx context.Context, id generic.ChoreID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM chores WHERE id = ?", id)
	if err != nil {
		return translate("delete chore", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (s *Store) GetFamily(ctx context.Context, id generic.FamilyID) (*generic.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f generic.Family
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, timezone, created_at FROM families WHERE id = ?", id,
	).Scan(&f.ID, &f.Name, &f.Timezone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, translate("get family", err)
	}
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}

func (s *Store) GetKid(ctx context.Context, id generic.KidID) (*generic.Kid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var k generic.Kid
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, family_id, name, timezone, created_at FROM kids WHERE id = ?", id,
	).Scan(&k.ID, &k.FamilyID, &k.Name, &k.Timezone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, translate("get kid", err)
	}
	k.CreatedAt = parseTime(createdAt)
	return &k, nil
}

func (s *Store) GetChore(ctx context.Context, id generic.ChoreID) (*generic.Chore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c generic.Chore
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, family_id, name, icon, points, created_at FROM chores WHERE id = ?", id,
	).Scan(&c.ID, &c.FamilyID, &c.Name, &c.Icon, &c.Points, &createdAt)
	if err == sql.ErrNoRows {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, translate("get chore", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s *Store) ListChores(ctx context.Context, familyID generic.FamilyID) ([]generic.Chore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, family_id, name, icon, points, created_at FROM chores WHERE family_id = ? ORDER BY name",
		familyID,
	)
	if err != nil {
		return nil, translate("list chores", err)
	}
	defer rows.Close()

	var chores []generic.Chore
	for rows.Next() {
		var c generic.Chore
		var createdAt string
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Icon, &c.Points, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		chores = append(chores, c)
	}
	return chores, translate("list chores", rows.Err())
}

func (s *Store) KidTimezone(ctx context.Context, kidID generic.KidID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tz string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(NULLIF(k.timezone, ''), f.timezone, '')
		FROM kids k JOIN families f ON f.id = k.family_id
		WHERE k.id = ?
	`, kidID).Scan(&tz)
	if err == sql.ErrNoRows {
		return "", generic.ErrNotFound
	}
	if err != nil {
		return "", translate("kid timezone", err)
	}
	return tz, nil
}

// =============================================================================
// CHORE BADGES (generic.ChoreBadgeStore)
// =============================================================================

// IncrementChoreBadge performs the increment as one upsert inside an
// IMMEDIATE transaction. The upsert returns the post-increment count with
// the pre-increment level; the level is then raised in the same transaction
// only if the new count crossed a threshold.
func (s *Store) IncrementChoreBadge(ctx context.Context, key generic.ChoreBadgeKey, at time.Time, level generic.LevelFunc) (generic.ChoreBadgeChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := func(err error) error {
		return &generic.StaleReferenceError{KidID: key.KidID, ChoreID: key.ChoreID, Err: err}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.ChoreBadgeChange{}, translate("begin chore badge increment", err)
	}
	defer sqlTx.Rollback()

	ts := formatTime(at)
	var (
		row                  generic.ChoreBadge
		firstEarned, lastUp string
	)
	err = sqlTx.QueryRowContext(ctx, `
		INSERT INTO chore_badges (kid_id, chore_id, family_id, count, level, first_earned_at, last_level_up_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(kid_id, chore_id) DO UPDATE SET count = chore_badges.count + 1
		RETURNING family_id, count, level, first_earned_at, last_level_up_at
	`, key.KidID, key.ChoreID, key.FamilyID, level(1), ts, ts,
	).Scan(&row.FamilyID, &row.Count, &row.Level, &firstEarned, &lastUp)
	if err != nil {
		if isForeignKeyError(err) {
			return generic.ChoreBadgeChange{}, stale(err)
		}
		return generic.ChoreBadgeChange{}, translate("increment chore badge", err)
	}
	row.KidID = key.KidID
	row.ChoreID = key.ChoreID
	row.FirstEarnedAt = parseTime(firstEarned)
	row.LastLevelUpAt = parseTime(lastUp)

	change := generic.ChoreBadgeChange{After: row}
	if row.Count > 1 {
		before := row
		before.Count = row.Count - 1
		change.Before = &before

		if next := level(row.Count); next > row.Level {
			_, err := sqlTx.ExecContext(ctx, `
				UPDATE chore_badges SET level = ?, last_level_up_at = ?
				WHERE kid_id = ? AND chore_id = ?
			`, next, ts, key.KidID, key.ChoreID)
			if err != nil {
				return generic.ChoreBadgeChange{}, translate("level up chore badge", err)
			}
			change.After.Level = next
			change.After.LastLevelUpAt = parseTime(ts)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		if isForeignKeyError(err) {
			return generic.ChoreBadgeChange{}, stale(err)
		}
		return generic.ChoreBadgeChange{}, translate("commit chore badge increment", err)
	}
	return change, nil
}

func (s *Store) ChoreBadges(ctx context.Context, kidID generic.KidID) ([]generic.ChoreBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT family_id, kid_id, chore_id, count, level, first_earned_at, last_level_up_at
		FROM chore_badges WHERE kid_id = ? ORDER BY chore_id
	`, kidID)
	if err != nil {
		return nil, translate("query chore badges", err)
	}
	defer rows.Close()

	var badges []generic.ChoreBadge
	for rows.Next() {
		var b generic.ChoreBadge
		var firstEarned, lastUp string
		if err := rows.Scan(&b.FamilyID, &b.KidID, &b.ChoreID, &b.Count, &b.Level, &firstEarned, &lastUp); err != nil {
			return nil, fmt.Errorf("failed to scan chore badge: %w", err)
		}
		b.FirstEarnedAt = parseTime(firstEarned)
		b.LastLevelUpAt = parseTime(lastUp)
		badges = append(badges, b)
	}
	return badges, translate("query chore badges", rows.Err())
}

// =============================================================================
// ACHIEVEMENTS (generic.AchievementStore)
// =============================================================================

func (s *Store) EarnedBadgeIDs(ctx context.Context, kidID generic.KidID) (map[generic.BadgeID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT badge_id FROM achievement_badges WHERE kid_id = ?", kidID)
	if err != nil {
		return nil, translate("query earned badges", err)
	}
	defer rows.Close()

	earned := make(map[generic.BadgeID]bool)
	for rows.Next() {
		var id generic.BadgeID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		earned[id] = true
	}
	return earned, translate("query earned badges", rows.Err())
}

// InsertAchievement is insert-or-conflict on (kid_id, badge_id). Losing the
// race is reported as ErrAlreadyAwarded.
func (s *Store) InsertAchievement(ctx context.Context, b generic.AchievementBadge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, err := json.Marshal(b.Metadata)
	if err != nil {
		return fmt.Errorf("encode achievement metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO achievement_badges (id, family_id, kid_id, badge_id, earned_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kid_id, badge_id) DO NOTHING
	`, b.ID, b.FamilyID, b.KidID, b.BadgeID, formatTime(b.EarnedAt), string(metadataJSON))
	if err != nil {
		switch {
		case isForeignKeyError(err):
			return &generic.StaleReferenceError{KidID: b.KidID, Err: err}
		case isUniqueConstraintError(err):
			return generic.ErrAlreadyAwarded
		}
		return translate("insert achievement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrAlreadyAwarded
	}
	return nil
}

func (s *Store) Achievements(ctx context.Context, kidID generic.KidID) ([]generic.AchievementBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family_id, kid_id, badge_id, earned_at, metadata_json
		FROM achievement_badges WHERE kid_id = ? ORDER BY earned_at, badge_id
	`, kidID)
	if err != nil {
		return nil, translate("query achievements", err)
	}
	defer rows.Close()

	var awards []generic.AchievementBadge
	for rows.Next() {
		var (
			a            generic.AchievementBadge
			earnedAt     string
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.FamilyID, &a.KidID, &a.BadgeID, &earnedAt, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.EarnedAt = parseTime(earnedAt)
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode achievement metadata: %w", err)
			}
		}
		awards = append(awards, a)
	}
	return awards, translate("query achievements", rows.Err())
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// translate maps driver errors onto the generic taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || isBusyError(err) {
		return &generic.TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isBusyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
