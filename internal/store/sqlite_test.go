package store

import (
	"testing"

	"designmuse/internal/journal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(dayKey string) journal.Entry {
	weekID, _ := journal.WeekIDForDayKey(dayKey)
	return journal.Entry{
		WeekID:      weekID,
		DayKey:      dayKey,
		ImageURL:    "data:image/png;base64,aGVsbG8=",
		Caption:     journal.PlaceholderCaption,
		Orientation: journal.Square,
		DecorType:   journal.DecorTape,
		Rotation:    1.5,
	}
}

func TestInsertEntry_AssignsIdentity(t *testing.T) {
	s := newTestStore(t)

	e, err := s.InsertEntry(testEntry("2024-03-20"))
	if err != nil {
		t.Fatalf("InsertEntry() error: %v", err)
	}

	if e.ID == "" {
		t.Error("ID not assigned")
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
	if e.Tags == nil {
		t.Error("Tags should default to an empty slice")
	}

	got, err := s.GetEntry(e.ID)
	if err != nil {
		t.Fatalf("GetEntry() error: %v", err)
	}
	if got == nil || got.Caption != journal.PlaceholderCaption {
		t.Errorf("GetEntry() = %+v, want placeholder caption", got)
	}
	if got.DecorType != journal.DecorTape || got.Rotation != 1.5 {
		t.Errorf("cosmetic fields not persisted: %+v", got)
	}
}

func TestFetchWeek(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.InsertEntry(testEntry("2024-03-20")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertEntry(testEntry("2024-03-21")); err != nil {
		t.Fatal(err)
	}
	// Entry in a different week must not leak in.
	if _, err := s.InsertEntry(testEntry("2024-03-27")); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertNote("2024-W12", "soft gradients everywhere"); err != nil {
		t.Fatal(err)
	}

	entries, notes, err := s.FetchWeek("2024-W12")
	if err != nil {
		t.Fatalf("FetchWeek() error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
	if notes != "soft gradients everywhere" {
		t.Errorf("notes = %q", notes)
	}

	t.Run("unknown week is empty, not an error", func(t *testing.T) {
		entries, notes, err := s.FetchWeek("1999-W01")
		if err != nil {
			t.Fatalf("FetchWeek() error: %v", err)
		}
		if len(entries) != 0 || notes != "" {
			t.Errorf("FetchWeek(1999-W01) = (%v, %q), want empty", entries, notes)
		}
	})
}

func TestUpdateEntry_MergesOnlyProvidedFields(t *testing.T) {
	s := newTestStore(t)

	e, err := s.InsertEntry(testEntry("2024-03-20"))
	if err != nil {
		t.Fatal(err)
	}

	portrait := journal.Portrait
	caption := "极简主义"
	got, err := s.UpdateEntry(e.ID, journal.EntryPatch{
		Tags:        []string{"Low Poly", "Gradient"},
		Orientation: &portrait,
		Caption:     &caption,
	})
	if err != nil {
		t.Fatalf("UpdateEntry() error: %v", err)
	}
	if got.Caption != "极简主义" || got.Orientation != journal.Portrait {
		t.Errorf("UpdateEntry() = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "Low Poly" {
		t.Errorf("Tags = %v", got.Tags)
	}
	// Untouched fields survive.
	if got.ImageURL != e.ImageURL || got.DecorType != e.DecorType {
		t.Errorf("untouched fields changed: %+v", got)
	}

	t.Run("partial patch leaves other fields", func(t *testing.T) {
		caption2 := "新标题"
		got, err := s.UpdateEntry(e.ID, journal.EntryPatch{Caption: &caption2})
		if err != nil {
			t.Fatal(err)
		}
		if got.Caption != "新标题" {
			t.Errorf("Caption = %q", got.Caption)
		}
		if len(got.Tags) != 2 || got.Orientation != journal.Portrait {
			t.Errorf("previous patch lost: %+v", got)
		}
	})

	t.Run("unknown id yields nil", func(t *testing.T) {
		got, err := s.UpdateEntry("missing", journal.EntryPatch{Caption: &caption})
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("UpdateEntry(missing) = %+v, want nil", got)
		}
	})
}

func TestUpsertNote(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertNote("2024-W12", "first"); err != nil {
		t.Fatalf("UpsertNote() error: %v", err)
	}
	n1, err := s.GetNote("2024-W12")
	if err != nil {
		t.Fatal(err)
	}
	if n1 == nil || n1.Content != "first" {
		t.Fatalf("GetNote() = %+v", n1)
	}

	if err := s.UpsertNote("2024-W12", "second"); err != nil {
		t.Fatalf("UpsertNote() upsert error: %v", err)
	}
	n2, err := s.GetNote("2024-W12")
	if err != nil {
		t.Fatal(err)
	}
	if n2.Content != "second" {
		t.Errorf("Content = %q, want %q", n2.Content, "second")
	}
	if n2.UpdatedAt.Before(n1.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", n1.UpdatedAt, n2.UpdatedAt)
	}

	if n, err := s.GetNote("1999-W01"); err != nil || n != nil {
		t.Errorf("GetNote(unknown) = (%+v, %v), want (nil, nil)", n, err)
	}
}
