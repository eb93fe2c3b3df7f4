// Package extract turns photos and spreadsheets into item drafts with a
// generative model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/remarket/internal/model"
)

// ErrMalformedResponse is returned when the model output is not the
// expected JSON.
var ErrMalformedResponse = errors.New("malformed model response")

// ErrUnavailable is returned when no model is configured.
var ErrUnavailable = errors.New("AI extraction is not configured")

// Row is one spreadsheet row keyed by column header.
type Row map[string]string

// Extractor is the AI extraction service.
type Extractor interface {
	// AnalyzeImage suggests form values for a single item photo.
	AnalyzeImage(ctx context.Context, data []byte, mime string) (model.Suggestion, error)
	// ExtractImage lists the items visible in a photo (of items or of a
	// printed list).
	ExtractImage(ctx context.Context, data []byte, mime string) ([]model.Draft, error)
	// ExtractTable maps spreadsheet rows to drafts.
	ExtractTable(ctx context.Context, rows []Row) ([]model.Draft, error)
}

// stripFences removes a Markdown code fence around JSON output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseDrafts decodes a JSON array of drafts. Empty output means no drafts.
// Malformed output yields an empty list and ErrMalformedResponse.
func ParseDrafts(text string) ([]model.Draft, error) {
	text = stripFences(text)
	if text == "" {
		return []model.Draft{}, nil
	}

	var drafts []model.Draft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return []model.Draft{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if drafts == nil {
		drafts = []model.Draft{}
	}
	return drafts, nil
}

// ParseSuggestion decodes a single-photo analysis.
func ParseSuggestion(text string) (model.Suggestion, error) {
	text = stripFences(text)
	if text == "" {
		text = "{}"
	}

	var s model.Suggestion
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return model.Suggestion{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	s.Title = strings.TrimSpace(s.Title)
	s.Category = strings.TrimSpace(s.Category)
	if s.Category == "" {
		s.Category = model.DefaultCategory
	}
	return s, nil
}

// Unavailable is the Extractor used when no API key is configured.
type Unavailable struct{}

func (Unavailable) AnalyzeImage(context.Context, []byte, string) (model.Suggestion, error) {
	return model.Suggestion{}, ErrUnavailable
}

func (Unavailable) ExtractImage(context.Context, []byte, string) ([]model.Draft, error) {
	return nil, ErrUnavailable
}

func (Unavailable) ExtractTable(context.Context, []Row) ([]model.Draft, error) {
	return nil, ErrUnavailable
}
