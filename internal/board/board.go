// Package board is the synchronization layer: a per-week, pull-based
// client cache of the persistence store, orchestrating
// fetch-on-navigation, optimistic local updates, and asynchronous
// patch-after-enrichment. The store is the source of truth; the cache
// has no freshness guarantee beyond the last successful fetch.
package board

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"designmuse/internal/curator"
	"designmuse/internal/journal"
)

// StoreClient is the store's HTTP surface as seen by the board.
type StoreClient interface {
	FetchWeek(ctx context.Context, weekID string) (*journal.WeekData, error)
	CreateEntry(ctx context.Context, e journal.Entry) (*journal.Entry, error)
	UpdateEntry(ctx context.Context, id string, patch journal.EntryPatch) (*journal.Entry, error)
	SaveNote(ctx context.Context, weekID, content string) error
	FetchImage(ctx context.Context, path string) (string, error)
}

// Curator is the enrichment boundary. Implementations are
// best-effort: a failure never blocks entry creation.
type Curator interface {
	AnalyzeDay(ctx context.Context, images []string, dayKey string) (*curator.Analysis, error)
}

// WeekStatus is the fetch state of one cached week.
type WeekStatus int

const (
	// StatusUnfetched means the week has never been loaded.
	StatusUnfetched WeekStatus = iota
	// StatusFetching means a load is in flight.
	StatusFetching
	// StatusFetched means the cache holds the last successful fetch.
	StatusFetched
	// StatusError means the only load attempt failed with nothing cached.
	StatusError
	// StatusStale means a refresh failed but earlier data is retained.
	StatusStale
)

func (s WeekStatus) String() string {
	switch s {
	case StatusFetching:
		return "fetching"
	case StatusFetched:
		return "fetched"
	case StatusError:
		return "error"
	case StatusStale:
		return "stale"
	default:
		return "unfetched"
	}
}

// WeekSnapshot is a point-in-time copy of one week's cached state.
type WeekSnapshot struct {
	Status WeekStatus
	Bucket journal.WeekBucket
	Notes  string
	Err    error
}

type weekState struct {
	status    WeekStatus
	fetched   bool // a successful fetch has happened at least once
	bucket    journal.WeekBucket
	notes     string
	noteDirty bool // local note edit not yet persisted
	err       error
}

type pendingNote struct {
	timer   *time.Timer
	content string
}

// DefaultDebounce is the idle window coalescing rapid note edits into
// a single persist call.
const DefaultDebounce = time.Second

// Board owns the client-side week cache. Safe for concurrent use.
type Board struct {
	client   StoreClient
	curator  Curator
	logger   Logger
	debounce time.Duration

	mu      sync.Mutex
	weeks   map[string]*weekState
	pending map[string]*pendingNote

	inflight atomic.Int32
}

// New creates a Board. curator may be nil, in which case entries keep
// their placeholder caption until a later refresh.
func New(client StoreClient, cur Curator, logger Logger) *Board {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Board{
		client:   client,
		curator:  cur,
		logger:   logger,
		debounce: DefaultDebounce,
		weeks:    make(map[string]*weekState),
		pending:  make(map[string]*pendingNote),
	}
}

// SetDebounce overrides the note-save idle window.
func (b *Board) SetDebounce(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.debounce = d
}

// Syncing reports whether any request is currently outstanding.
func (b *Board) Syncing() bool {
	return b.inflight.Load() > 0
}

// Week returns a snapshot of the cached state for a week identifier.
func (b *Board) Week(weekID string) WeekSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ws, ok := b.weeks[weekID]
	if !ok {
		return WeekSnapshot{Status: StatusUnfetched, Bucket: journal.WeekBucket{Entries: map[string][]journal.Entry{}}}
	}
	return WeekSnapshot{
		Status: ws.status,
		Bucket: copyBucket(ws.bucket),
		Notes:  ws.notes,
		Err:    ws.err,
	}
}

// LoadWeek fetches a week from the store: a single attempt, no retry,
// no backoff. On success the cached bucket is fully overwritten (the
// store is authoritative); the notes string is overwritten only when
// no local note edit is pending, so a refetch cannot clobber an
// unsaved reflection. On failure any previously cached data remains
// visible and the error is recorded on the week's state.
func (b *Board) LoadWeek(ctx context.Context, weekID string) error {
	b.mu.Lock()
	ws := b.week(weekID)
	ws.status = StatusFetching
	b.mu.Unlock()

	b.inflight.Add(1)
	data, err := b.client.FetchWeek(ctx, weekID)
	b.inflight.Add(-1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		ws.err = err
		if ws.fetched {
			ws.status = StatusStale
		} else {
			ws.status = StatusError
		}
		b.logger.Warn("week load failed", "week", weekID, "err", err)
		return err
	}

	ws.bucket = journal.GroupEntries(data.Entries)
	if !ws.noteDirty {
		ws.notes = data.Notes
	}
	ws.status = StatusFetched
	ws.fetched = true
	ws.err = nil
	b.logger.Debug("week loaded", "week", weekID, "entries", ws.bucket.Len())
	return nil
}

// CreateEntry uploads an image for a day: it encodes the payload,
// assigns the placeholder caption and random decoration, persists the
// entry, and appends the persisted result to the local bucket under
// the day it was created for (never the currently viewed day). It
// then runs one enrichment pass for the day's full image set; a
// failed enrichment leaves the placeholder in place and is never
// surfaced as an error.
func (b *Board) CreateEntry(ctx context.Context, weekID, dayKey string, image []byte, mimeType string) (*journal.Entry, error) {
	derived, err := journal.WeekIDForDayKey(dayKey)
	if err != nil {
		return nil, err
	}
	if derived != weekID {
		return nil, fmt.Errorf("day %s belongs to week %s, not %s", dayKey, derived, weekID)
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	e := journal.Entry{
		WeekID:      weekID,
		DayKey:      dayKey,
		ImageURL:    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image),
		Tags:        []string{},
		Caption:     journal.PlaceholderCaption,
		Orientation: journal.Square,
		DecorType:   journal.RandomDecor(),
		Rotation:    journal.RandomRotation(),
	}

	b.inflight.Add(1)
	saved, err := b.client.CreateEntry(ctx, e)
	b.inflight.Add(-1)
	if err != nil {
		// The local append is gated on success, so there is nothing
		// to roll back.
		return nil, err
	}

	b.mu.Lock()
	ws := b.week(weekID)
	if _, seen := ws.bucket.Entries[dayKey]; !seen {
		ws.bucket.Days = append(ws.bucket.Days, dayKey)
	}
	ws.bucket.Entries[dayKey] = append(ws.bucket.Entries[dayKey], *saved)
	b.mu.Unlock()

	b.enrich(ctx, weekID, dayKey, saved)
	return saved, nil
}

// enrich runs one enrichment call over every image currently known
// for the day, correlates the result back to the created entry by its
// identifier, patches it, and refetches the week to reconcile.
func (b *Board) enrich(ctx context.Context, weekID, dayKey string, created *journal.Entry) {
	if b.curator == nil {
		return
	}

	b.mu.Lock()
	snapshot := append([]journal.Entry(nil), b.week(weekID).bucket.Entries[dayKey]...)
	b.mu.Unlock()

	// The analysis needs the raw payloads; entries whose images were
	// offloaded by the server hold reference URLs and must be resolved
	// back into data URIs first.
	images := make([]string, len(snapshot))
	pos := -1
	for i, e := range snapshot {
		uri := e.ImageURL
		if !strings.HasPrefix(uri, "data:") {
			resolved, err := b.client.FetchImage(ctx, uri)
			if err != nil {
				b.logger.Warn("image fetch for enrichment failed", "entry", e.ID, "err", err)
				return
			}
			uri = resolved
		}
		images[i] = uri
		if e.ID == created.ID {
			pos = i
		}
	}
	if pos < 0 {
		b.logger.Warn("created entry missing from day snapshot", "entry", created.ID, "day", dayKey)
		return
	}

	b.inflight.Add(1)
	analysis, err := b.curator.AnalyzeDay(ctx, images, dayKey)
	b.inflight.Add(-1)
	if err != nil {
		b.logger.Warn("enrichment failed, keeping placeholder", "entry", created.ID, "err", err)
		return
	}

	var match *curator.ImageAnalysis
	for i := range analysis.ImagesAnalysis {
		if analysis.ImagesAnalysis[i].ImageIndex == pos {
			match = &analysis.ImagesAnalysis[i]
			break
		}
	}
	if match == nil {
		b.logger.Warn("enrichment result has no match for entry", "entry", created.ID, "index", pos)
		return
	}

	patch := journal.EntryPatch{
		Tags:        match.Tags,
		Orientation: &match.Orientation,
		Caption:     &analysis.DaySummary.TitleZH,
	}

	b.inflight.Add(1)
	_, err = b.client.UpdateEntry(ctx, created.ID, patch)
	b.inflight.Add(-1)
	if err != nil {
		b.logger.Warn("enrichment patch failed", "entry", created.ID, "err", err)
		return
	}

	// Full refetch reconciles the cache with the authoritative store.
	// A failure here is already recorded on the week's state.
	_ = b.LoadWeek(ctx, weekID)
}

// SaveNote applies a note edit to the cache immediately and schedules
// a debounced persist: only the last edit within the idle window
// triggers a call. Persist failures are logged, never surfaced.
func (b *Board) SaveNote(weekID, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ws := b.week(weekID)
	ws.notes = content
	ws.noteDirty = true

	if p, ok := b.pending[weekID]; ok {
		p.content = content
		p.timer.Reset(b.debounce)
		return
	}
	p := &pendingNote{content: content}
	p.timer = time.AfterFunc(b.debounce, func() { b.persistNote(weekID) })
	b.pending[weekID] = p
}

// FlushNotes persists all pending note edits immediately. Call on
// shutdown so a trailing edit inside the debounce window is not lost.
func (b *Board) FlushNotes() {
	b.mu.Lock()
	var ids []string
	for weekID, p := range b.pending {
		p.timer.Stop()
		ids = append(ids, weekID)
	}
	b.mu.Unlock()

	for _, weekID := range ids {
		b.persistNote(weekID)
	}
}

func (b *Board) persistNote(weekID string) {
	b.mu.Lock()
	p, ok := b.pending[weekID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, weekID)
	content := p.content
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b.inflight.Add(1)
	err := b.client.SaveNote(ctx, weekID, content)
	b.inflight.Add(-1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.logger.Warn("note save failed", "week", weekID, "err", err)
		return
	}
	if ws := b.week(weekID); ws.notes == content {
		ws.noteDirty = false
	}
}

// week returns the state for weekID, creating it when absent. Callers
// must hold b.mu.
func (b *Board) week(weekID string) *weekState {
	ws, ok := b.weeks[weekID]
	if !ok {
		ws = &weekState{
			status: StatusUnfetched,
			bucket: journal.WeekBucket{Entries: make(map[string][]journal.Entry)},
		}
		b.weeks[weekID] = ws
	}
	return ws
}

func copyBucket(src journal.WeekBucket) journal.WeekBucket {
	dst := journal.WeekBucket{
		Days:    append([]string(nil), src.Days...),
		Entries: make(map[string][]journal.Entry, len(src.Entries)),
	}
	for day, es := range src.Entries {
		dst.Entries[day] = append([]journal.Entry(nil), es...)
	}
	return dst
}
