// Package search maintains a full-text index over entry captions,
// tags, and weekly notes.
package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"designmuse/internal/journal"
)

// Index wraps a Bleve search index.
type Index struct {
	index bleve.Index
}

// indexedEntry is the document shape stored for one entry.
type indexedEntry struct {
	Kind    string
	WeekID  string
	DayKey  string
	Caption string
	Tags    []string
}

// indexedNote is the document shape stored for one weekly note.
type indexedNote struct {
	Kind    string
	WeekID  string
	Content string
}

// Result is one search hit.
type Result struct {
	ID        string              `json:"id"`
	WeekID    string              `json:"weekId"`
	DayKey    string              `json:"dayKey,omitempty"`
	Caption   string              `json:"caption,omitempty"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Open opens or creates an index at path.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Index{index: idx}, nil
}

// OpenMemory creates a throwaway in-memory index.
func OpenMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = "keyword"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Kind", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("WeekID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("DayKey", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Caption", textFieldMapping)
	docMapping.AddFieldMappingsAt("Tags", textFieldMapping)
	docMapping.AddFieldMappingsAt("Content", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func (i *Index) Close() error {
	return i.index.Close()
}

// IndexEntry adds or updates an entry document.
func (i *Index) IndexEntry(e *journal.Entry) error {
	return i.index.Index(e.ID, &indexedEntry{
		Kind:    "entry",
		WeekID:  e.WeekID,
		DayKey:  e.DayKey,
		Caption: e.Caption,
		Tags:    e.Tags,
	})
}

// IndexNote adds or updates the note document for a week. Notes share
// the id space with entries under a "note:" prefix.
func (i *Index) IndexNote(weekID, content string) error {
	return i.index.Index("note:"+weekID, &indexedNote{
		Kind:    "note",
		WeekID:  weekID,
		Content: content,
	})
}

// Delete removes a document from the index.
func (i *Index) Delete(id string) error {
	return i.index.Delete(id)
}

// Search runs a query-string query (quotes, boolean operators, fuzzy ~)
// with highlighted fragments.
func (i *Index) Search(queryStr string, limit int) ([]*Result, error) {
	query := bleve.NewQueryStringQuery(queryStr)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"WeekID", "DayKey", "Caption"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		r := &Result{
			ID:        hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if weekID, ok := hit.Fields["WeekID"].(string); ok {
			r.WeekID = weekID
		}
		if dayKey, ok := hit.Fields["DayKey"].(string); ok {
			r.DayKey = dayKey
		}
		if caption, ok := hit.Fields["Caption"].(string); ok {
			r.Caption = caption
		}
		hits = append(hits, r)
	}
	return hits, nil
}

// Rebuild reindexes every entry and note in one batch, replacing
// whatever the index held for them.
func (i *Index) Rebuild(entries []journal.Entry, notes map[string]string) error {
	batch := i.index.NewBatch()
	for idx := range entries {
		e := &entries[idx]
		doc := &indexedEntry{
			Kind:    "entry",
			WeekID:  e.WeekID,
			DayKey:  e.DayKey,
			Caption: e.Caption,
			Tags:    e.Tags,
		}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", e.ID, err)
		}
	}
	for weekID, content := range notes {
		if strings.TrimSpace(content) == "" {
			continue
		}
		doc := &indexedNote{Kind: "note", WeekID: weekID, Content: content}
		if err := batch.Index("note:"+weekID, doc); err != nil {
			return fmt.Errorf("batch index note %s: %w", weekID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Count returns the number of documents in the index.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
