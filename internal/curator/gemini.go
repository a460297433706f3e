package curator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"designmuse/internal/journal"
)

const geminiAPI = "https://generativelanguage.googleapis.com/v1beta/models"

// Analysis is the enrichment result for one day's image set.
type Analysis struct {
	DaySummary     DaySummary      `json:"day_summary"`
	LayoutConfig   LayoutConfig    `json:"layout_config"`
	ImagesAnalysis []ImageAnalysis `json:"images_analysis"`
}

// DaySummary is the day-level bilingual title and vibe description.
type DaySummary struct {
	TitleEN         string `json:"title_en"`
	TitleZH         string `json:"title_zh"`
	VibeDescription string `json:"vibe_description"`
}

// LayoutConfig is the suggested presentation for the day.
type LayoutConfig struct {
	GridStyle       string `json:"grid_style"` // "masonry" or "grid"
	BackgroundColor string `json:"background_color"`
}

// ImageAnalysis is the per-image result, correlated by position in
// the submitted image list.
type ImageAnalysis struct {
	ImageIndex    int                 `json:"image_index"`
	Tags          []string            `json:"tags"`
	SuggestedSize string              `json:"suggested_size"` // "large", "medium", or "small"
	Orientation   journal.Orientation `json:"orientation"`
}

// DefaultAnalysis is the fixed fallback used when the boundary
// returns malformed or empty data. Enrichment is best-effort and must
// never block entry creation.
func DefaultAnalysis(n int) *Analysis {
	a := &Analysis{
		DaySummary: DaySummary{
			TitleEN:         "Daily Muse",
			TitleZH:         "每日灵感",
			VibeDescription: "A collection of found moments.",
		},
		LayoutConfig: LayoutConfig{
			GridStyle:       "masonry",
			BackgroundColor: "#fffbeb",
		},
	}
	for i := 0; i < n; i++ {
		a.ImagesAnalysis = append(a.ImagesAnalysis, ImageAnalysis{
			ImageIndex:    i,
			Tags:          []string{"Inspiration"},
			SuggestedSize: "medium",
			Orientation:   journal.Square,
		})
	}
	return a
}

// Curator analyzes a day's images via the Gemini API.
type Curator struct {
	apiKey string
	model  string
	client *http.Client
}

// New creates a Curator from the GEMINI_API_KEY environment variable.
func New() (*Curator, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	return &Curator{
		apiKey: apiKey,
		model:  "gemini-3-pro-preview",
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// AnalyzeDay submits the ordered data-URI image payloads for a single
// day plus its day key and returns the analysis. A transport or API
// failure returns an error; a malformed or empty model response
// degrades to DefaultAnalysis without error.
func (c *Curator) AnalyzeDay(ctx context.Context, images []string, dayKey string) (*Analysis, error) {
	var parts []apiPart
	for _, img := range images {
		mime, data, err := splitDataURI(img)
		if err != nil {
			return nil, fmt.Errorf("image payload: %w", err)
		}
		parts = append(parts, apiPart{InlineData: &apiInlineData{MimeType: mime, Data: data}})
	}
	parts = append(parts, apiPart{Text: buildPrompt(dayKey)})

	text, err := c.callAPI(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	analysis, ok := parseResponse(text)
	if !ok {
		return DefaultAnalysis(len(images)), nil
	}
	return analysis, nil
}

func buildPrompt(dayKey string) string {
	var sb strings.Builder

	sb.WriteString("你是一个灵感手账的 AI 策展人。")
	sb.WriteString("你的目标是将用户上传的碎片化图片整理成一个有主题的每日合集。\n")
	sb.WriteString("日期: ")
	sb.WriteString(dayKey)
	sb.WriteString("\n\n")

	sb.WriteString(`你必须严格返回以下 JSON 结构:
{
  "day_summary": {
    "title_en": "Deep Amber Minimalism",
    "title_zh": "深琥珀极简主义",
    "vibe_description": "20 字以内的氛围描述"
  },
  "layout_config": {
    "grid_style": "masonry",
    "background_color": "#HexCode"
  },
  "images_analysis": [
    {
      "image_index": 0,
      "tags": ["Low Poly", "Gradient", "Futurism"],
      "suggested_size": "large",
      "orientation": "portrait"
    }
  ]
}

Rules:
- tags: 5-10 professional design terms per image
- suggested_size: one of large, medium, small
- orientation: one of landscape, portrait, square
- Return ONLY the JSON, no other text.`)

	return sb.String()
}

type apiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inline_data,omitempty"`
}

type apiRequest struct {
	Contents         []apiContent        `json:"contents"`
	GenerationConfig apiGenerationConfig `json:"generationConfig"`
}

type apiContent struct {
	Parts []apiPart `json:"parts"`
}

type apiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Curator) callAPI(ctx context.Context, parts []apiPart) (string, error) {
	reqBody := apiRequest{
		Contents:         []apiContent{{Parts: parts}},
		GenerationConfig: apiGenerationConfig{ResponseMimeType: "application/json"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", geminiAPI, c.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}

// parseResponse decodes the model's JSON text. The second return is
// false when the text is empty or malformed.
func parseResponse(text string) (*Analysis, bool) {
	// Strip markdown code fences if present.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, false
	}

	var a Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return nil, false
	}
	if len(a.ImagesAnalysis) == 0 {
		return nil, false
	}
	return &a, true
}

// splitDataURI separates a data URI into mime type and base64 payload.
func splitDataURI(uri string) (mime, data string, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", fmt.Errorf("not a data URI")
	}
	meta, data, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URI")
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/png"
	}
	return mime, data, nil
}
