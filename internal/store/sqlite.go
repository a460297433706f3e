package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"designmuse/internal/journal"
	"designmuse/internal/store/migrations"
)

// Store handles database operations for inspiration entries and
// weekly notes. Each operation is independently atomic at the row
// level; no cross-operation transactions are needed.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates it to the
// latest schema. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: keeps :memory: databases coherent across the
	// pool and sidesteps SQLITE_BUSY for this single-user workload.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const entryColumns = "id, week_id, day_key, image_url, tags, caption, orientation, decor_type, rotation, created_at"

// FetchWeek returns all entries belonging to a week, oldest first,
// together with the week's note content ("" when no note exists).
func (s *Store) FetchWeek(weekID string) ([]journal.Entry, string, error) {
	rows, err := s.db.Query(
		"SELECT "+entryColumns+" FROM inspirations WHERE week_id = ? ORDER BY created_at, id",
		weekID,
	)
	if err != nil {
		return nil, "", fmt.Errorf("fetch week entries: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("fetch week entries: %w", err)
	}

	var notes string
	err = s.db.QueryRow("SELECT content FROM weekly_notes WHERE week_id = ?", weekID).Scan(&notes)
	if err != nil && err != sql.ErrNoRows {
		return nil, "", fmt.Errorf("fetch week note: %w", err)
	}

	return entries, notes, nil
}

// InsertEntry persists a new entry, assigning its identifier and
// creation timestamp, and returns the persisted entry.
func (s *Store) InsertEntry(e journal.Entry) (*journal.Entry, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
	if e.Tags == nil {
		e.Tags = []string{}
	}

	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO inspirations ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.WeekID, e.DayKey, e.ImageURL, string(tags), e.Caption,
		string(e.Orientation), string(e.DecorType), e.Rotation, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &e, nil
}

// GetEntry retrieves an entry by its identifier, or nil when absent.
func (s *Store) GetEntry(id string) (*journal.Entry, error) {
	row := s.db.QueryRow("SELECT "+entryColumns+" FROM inspirations WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEntry merges only the provided patch fields into an entry and
// returns the updated row. Returns nil when no entry has that id.
func (s *Store) UpdateEntry(id string, patch journal.EntryPatch) (*journal.Entry, error) {
	var sets []string
	var args []any

	if patch.Tags != nil {
		tags, err := json.Marshal(patch.Tags)
		if err != nil {
			return nil, fmt.Errorf("marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tags))
	}
	if patch.Orientation != nil {
		sets = append(sets, "orientation = ?")
		args = append(args, string(*patch.Orientation))
	}
	if patch.Caption != nil {
		sets = append(sets, "caption = ?")
		args = append(args, *patch.Caption)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.Exec(
			"UPDATE inspirations SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
		)
		if err != nil {
			return nil, fmt.Errorf("update entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, nil
		}
	}

	return s.GetEntry(id)
}

// UpsertNote creates or replaces the note for a week. At most one
// note exists per week (primary key).
func (s *Store) UpsertNote(weekID, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO weekly_notes (week_id, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(week_id) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`, weekID, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

// GetNote retrieves the note row for a week, or nil when absent.
func (s *Store) GetNote(weekID string) (*journal.WeeklyNote, error) {
	var n journal.WeeklyNote
	err := s.db.QueryRow(
		"SELECT week_id, content, updated_at FROM weekly_notes WHERE week_id = ?", weekID,
	).Scan(&n.WeekID, &n.Content, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &n, nil
}

// AllEntries returns every entry in the store, oldest first. Used to
// rebuild the search index.
func (s *Store) AllEntries() ([]journal.Entry, error) {
	rows, err := s.db.Query("SELECT " + entryColumns + " FROM inspirations ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// AllNotes returns every weekly note keyed by week identifier.
func (s *Store) AllNotes() (map[string]string, error) {
	rows, err := s.db.Query("SELECT week_id, content FROM weekly_notes")
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make(map[string]string)
	for rows.Next() {
		var weekID, content string
		if err := rows.Scan(&weekID, &content); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes[weekID] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*journal.Entry, error) {
	var e journal.Entry
	var tags, orientation, decor string
	err := row.Scan(&e.ID, &e.WeekID, &e.DayKey, &e.ImageURL, &tags, &e.Caption,
		&orientation, &decor, &e.Rotation, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags for entry %s: %w", e.ID, err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.Orientation = journal.Orientation(orientation)
	e.DecorType = journal.DecorType(decor)
	return &e, nil
}
