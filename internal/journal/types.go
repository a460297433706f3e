package journal

import "time"

// PlaceholderCaption is assigned to an entry at creation time and
// replaced once enrichment completes. Entries whose enrichment failed
// keep it indefinitely.
const PlaceholderCaption = "AI 正在分析中..."

// Orientation classifies an image's aspect.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
	Square    Orientation = "square"
)

// DecorType is the cosmetic decoration style picked at creation time.
// It is never revisited after creation.
type DecorType string

const (
	DecorTape  DecorType = "tape"
	DecorPin   DecorType = "pin"
	DecorClip  DecorType = "clip"
	DecorWashi DecorType = "washi"
)

// Entry is a single inspiration image pinned to a calendar day.
type Entry struct {
	ID          string      `json:"id"`
	WeekID      string      `json:"weekId"`
	DayKey      string      `json:"dayKey"`
	ImageURL    string      `json:"imageUrl"` // data URI at creation, possibly rewritten to a hosted URL
	Tags        []string    `json:"tags"`
	Caption     string      `json:"caption"`
	Orientation Orientation `json:"orientation"`
	DecorType   DecorType   `json:"decorType"`
	Rotation    float64     `json:"rotation"` // degrees, in [-3, 3]
	CreatedAt   time.Time   `json:"createdAt"`
}

// EntryPatch carries a partial update. Nil fields are left untouched.
type EntryPatch struct {
	Tags        []string     `json:"tags,omitempty"`
	Orientation *Orientation `json:"orientation,omitempty"`
	Caption     *string      `json:"caption,omitempty"`
}

// WeekData is the wire shape of a full week fetch.
type WeekData struct {
	Entries []Entry `json:"entries"`
	Notes   string  `json:"notes"`
}

// WeeklyNote is the persisted reflection text for one week.
type WeeklyNote struct {
	WeekID    string    `json:"weekId"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}
