package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"designmuse/internal/journal"
)

func TestUnconfiguredClient(t *testing.T) {
	c := New("")

	if c.Configured() {
		t.Error("Configured() = true for empty base URL")
	}
	_, err := c.FetchWeek(context.Background(), "2024-W12")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("FetchWeek() error = %v, want ErrNotConfigured", err)
	}
	if err := c.SaveNote(context.Background(), "2024-W12", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SaveNote() error = %v, want ErrNotConfigured", err)
	}
}

func TestFetchWeek(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/weekly/2024-W12" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"entries": []journal.Entry{{ID: "e1", WeekID: "2024-W12", DayKey: "2024-03-20"}},
			"notes":   "reflections",
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	data, err := c.FetchWeek(context.Background(), "2024-W12")
	if err != nil {
		t.Fatalf("FetchWeek() error: %v", err)
	}
	if len(data.Entries) != 1 || data.Entries[0].ID != "e1" {
		t.Errorf("Entries = %+v", data.Entries)
	}
	if data.Notes != "reflections" {
		t.Errorf("Notes = %q", data.Notes)
	}
}

func TestFetchWeek_NilEntriesBecomeEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entries": null, "notes": ""}`))
	}))
	defer srv.Close()

	data, err := New(srv.URL).FetchWeek(context.Background(), "2024-W12")
	if err != nil {
		t.Fatalf("FetchWeek() error: %v", err)
	}
	if data.Entries == nil {
		t.Error("Entries = nil, want empty slice")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("server failure status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "database exploded"}`))
		}))
		defer srv.Close()

		_, err := New(srv.URL).FetchWeek(context.Background(), "2024-W12")
		var serverErr *ServerError
		if !errors.As(err, &serverErr) {
			t.Fatalf("error = %v, want *ServerError", err)
		}
		if serverErr.Status != http.StatusInternalServerError || serverErr.Message != "database exploded" {
			t.Errorf("ServerError = %+v", serverErr)
		}
	})

	t.Run("unreachable store", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // reachable no more

		_, err := New(srv.URL).FetchWeek(context.Background(), "2024-W12")
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("error = %v, want *NetworkError", err)
		}
	})
}

func TestFetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Image routes live at the server root, not under /api.
		if r.URL.Path != "/images/abc.png" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL + "/api")
	uri, err := c.FetchImage(context.Background(), "/images/abc.png")
	if err != nil {
		t.Fatalf("FetchImage() error: %v", err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png bytes"))
	if uri != want {
		t.Errorf("FetchImage() = %q, want %q", uri, want)
	}
}

func TestCreateAndUpdateEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/entries":
			var e journal.Entry
			json.NewDecoder(r.Body).Decode(&e)
			e.ID = "assigned"
			json.NewEncoder(w).Encode(e)
		case r.Method == "PATCH" && r.URL.Path == "/entries/assigned":
			var patch journal.EntryPatch
			json.NewDecoder(r.Body).Decode(&patch)
			if patch.Caption == nil || *patch.Caption != "极简主义" {
				t.Errorf("patch = %+v", patch)
			}
			json.NewEncoder(w).Encode(journal.Entry{ID: "assigned", Caption: *patch.Caption})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	saved, err := c.CreateEntry(context.Background(), journal.Entry{WeekID: "2024-W12", DayKey: "2024-03-20"})
	if err != nil {
		t.Fatalf("CreateEntry() error: %v", err)
	}
	if saved.ID != "assigned" {
		t.Errorf("ID = %q", saved.ID)
	}

	caption := "极简主义"
	updated, err := c.UpdateEntry(context.Background(), saved.ID, journal.EntryPatch{Caption: &caption})
	if err != nil {
		t.Fatalf("UpdateEntry() error: %v", err)
	}
	if updated.Caption != caption {
		t.Errorf("Caption = %q", updated.Caption)
	}
}
