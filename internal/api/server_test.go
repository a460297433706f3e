package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"designmuse/internal/blob"
	"designmuse/internal/journal"
	"designmuse/internal/search"
	"designmuse/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	idx, err := search.OpenMemory()
	if err != nil {
		t.Fatalf("search.OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	srv := httptest.NewServer(New(st, idx, blob.NewMemoryStore(), nil, "").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func dataURI(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func createEntry(t *testing.T, srv *httptest.Server, dayKey string) journal.Entry {
	t.Helper()
	weekID, err := journal.WeekIDForDayKey(dayKey)
	if err != nil {
		t.Fatal(err)
	}
	resp := postJSON(t, srv.URL+"/api/entries", journal.Entry{
		WeekID:      weekID,
		DayKey:      dayKey,
		ImageURL:    dataURI("image for " + dayKey),
		Tags:        []string{},
		Caption:     journal.PlaceholderCaption,
		Orientation: journal.Square,
		DecorType:   journal.DecorTape,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/entries status = %d", resp.StatusCode)
	}
	return decodeBody[journal.Entry](t, resp)
}

func TestGetWeek_EmptyWeekHasEntriesArray(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/weekly/2024-W12")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Entries []journal.Entry `json:"entries"`
		Notes   string          `json:"notes"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, raw)
	}
	if body.Entries == nil {
		t.Errorf("entries = null in %s, want []", raw)
	}
	if strings.Contains(string(raw), `"entries":null`) {
		t.Errorf("raw body serializes null entries: %s", raw)
	}
}

func TestAddEntry_PersistsAndOffloadsImage(t *testing.T) {
	srv := newTestServer(t)

	saved := createEntry(t, srv, "2024-03-20")
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Errorf("saved entry missing identity: %+v", saved)
	}
	if !strings.HasPrefix(saved.ImageURL, "/images/") {
		t.Fatalf("ImageURL = %q, want blob reference", saved.ImageURL)
	}

	// The offloaded image is served back byte for byte.
	resp, err := http.Get(srv.URL + saved.ImageURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", saved.ImageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "image for 2024-03-20" {
		t.Errorf("image bytes = %q", body)
	}

	// And the week fetch returns the stored entry.
	wr, err := http.Get(srv.URL + "/api/weekly/2024-W12")
	if err != nil {
		t.Fatal(err)
	}
	week := decodeBody[struct {
		Entries []journal.Entry `json:"entries"`
	}](t, wr)
	if len(week.Entries) != 1 || week.Entries[0].ID != saved.ID {
		t.Errorf("week entries = %+v", week.Entries)
	}
}

func TestAddEntry_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		entry journal.Entry
	}{
		{"missing image", journal.Entry{WeekID: "2024-W12", DayKey: "2024-03-20"}},
		{"invalid day key", journal.Entry{WeekID: "2024-W12", DayKey: "not-a-day", ImageURL: dataURI("x")}},
		{"week day mismatch", journal.Entry{WeekID: "2024-W13", DayKey: "2024-03-20", ImageURL: dataURI("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/entries", tt.entry)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestAddEntry_DerivesWeekWhenOmitted(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/entries", journal.Entry{
		DayKey:   "2024-03-20",
		ImageURL: dataURI("x"),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	saved := decodeBody[journal.Entry](t, resp)
	if saved.WeekID != "2024-W12" {
		t.Errorf("WeekID = %q, want derived 2024-W12", saved.WeekID)
	}
}

func TestPatchEntry(t *testing.T) {
	srv := newTestServer(t)
	saved := createEntry(t, srv, "2024-03-20")

	patch := map[string]any{
		"tags":        []string{"Low Poly"},
		"orientation": "portrait",
		"caption":     "极简主义",
	}
	data, _ := json.Marshal(patch)
	req, _ := http.NewRequest("PATCH", fmt.Sprintf("%s/api/entries/%s", srv.URL, saved.ID), bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	updated := decodeBody[journal.Entry](t, resp)
	if updated.Caption != "极简主义" || updated.Orientation != journal.Portrait {
		t.Errorf("updated = %+v", updated)
	}
	// Fields absent from the patch stay put.
	if updated.ImageURL != saved.ImageURL || updated.DecorType != saved.DecorType {
		t.Errorf("unpatched fields changed: %+v", updated)
	}
}

func TestPatchEntry_NotFound(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest("PATCH", srv.URL+"/api/entries/nope", strings.NewReader(`{"caption":"x"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSaveNote_RoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/notes", SaveNoteRequest{WeekID: "2024-W12", Content: "reflections"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// Upsert replaces, never duplicates.
	resp = postJSON(t, srv.URL+"/api/notes", SaveNoteRequest{WeekID: "2024-W12", Content: "rewritten"})
	resp.Body.Close()

	wr, err := http.Get(srv.URL + "/api/weekly/2024-W12")
	if err != nil {
		t.Fatal(err)
	}
	week := decodeBody[struct {
		Notes string `json:"notes"`
	}](t, wr)
	if week.Notes != "rewritten" {
		t.Errorf("notes = %q", week.Notes)
	}
}

func TestSearch_FindsPatchedCaption(t *testing.T) {
	srv := newTestServer(t)
	saved := createEntry(t, srv, "2024-03-20")

	caption := "Brutalist poster"
	data, _ := json.Marshal(journal.EntryPatch{Caption: &caption})
	req, _ := http.NewRequest("PATCH", fmt.Sprintf("%s/api/entries/%s", srv.URL, saved.ID), bytes.NewReader(data))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	sr, err := http.Get(srv.URL + "/api/search?q=brutalist")
	if err != nil {
		t.Fatal(err)
	}
	if sr.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", sr.StatusCode)
	}
	results := decodeBody[struct {
		Results []search.Result `json:"results"`
	}](t, sr)
	if len(results.Results) != 1 || results.Results[0].ID != saved.ID {
		t.Errorf("results = %+v", results.Results)
	}
}

func TestSearch_RequiresQuery(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/search")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetImage_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/images/deadbeef.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
