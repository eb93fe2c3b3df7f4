// Package importer holds the review-then-confirm flow of bulk imports.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
)

// State is the step an import flow is in.
type State string

const (
	StateInput     State = "input"
	StateReview    State = "review"
	StateCommitted State = "committed"
)

// ErrWrongState is returned when an operation is not allowed in the current
// state.
var ErrWrongState = errors.New("operation not allowed in this import state")

// Source is the uploaded file an import extracts from.
type Source struct {
	Name string
	MIME string
	Data []byte
}

// ContentType returns the declared type, sniffing the data when none was
// given.
func (s Source) ContentType() string {
	if s.MIME == "" || s.MIME == "application/octet-stream" {
		return http.DetectContentType(s.Data)
	}
	return s.MIME
}

// IsImage reports whether the source should go to image extraction.
func (s Source) IsImage() bool {
	return strings.HasPrefix(s.ContentType(), "image/")
}

// Failure is one draft that could not be created.
type Failure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Result is the outcome of a confirm.
type Result struct {
	Created  []int64   `json:"created"`
	Failures []Failure `json:"failures,omitempty"`
}

// PartialError is returned by Confirm when some drafts failed. The items
// that were created stay created.
type PartialError struct {
	Failures []Failure
}

func (e *PartialError) Error() string {
	idx := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		idx[i] = strconv.Itoa(f.Index)
	}
	return fmt.Sprintf("%d drafts failed to import (indices %s)", len(e.Failures), strings.Join(idx, ", "))
}

// Creator creates catalog items.
type Creator interface {
	Create(ctx context.Context, in model.ItemInput, by string) (*model.Item, error)
}

// Flow is one bulk import. It is plain data so it can be kept in any
// DraftStore.
type Flow struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Source    string        `json:"source,omitempty"`
	Drafts    []model.Draft `json:"drafts"`
	Error     string        `json:"error,omitempty"`
	Result    *Result       `json:"result,omitempty"`
	CreatedBy string        `json:"createdBy"`
	CreatedAt time.Time     `json:"createdAt"`
}

// NewFlow starts a flow in the input state.
func NewFlow(id, by string, now time.Time) *Flow {
	return &Flow{ID: id, State: StateInput, Drafts: []model.Draft{}, CreatedBy: by, CreatedAt: now.UTC()}
}

// Extract sends src to the extractor and moves the flow to review. A
// transport failure leaves the flow in input. Malformed model output still
// moves to review, with no drafts and the error recorded.
func (f *Flow) Extract(ctx context.Context, ex extract.Extractor, src Source) error {
	if f.State != StateInput {
		return ErrWrongState
	}

	drafts, err := extractDrafts(ctx, ex, src)
	switch {
	case err == nil:
		f.Error = ""
	case errors.Is(err, extract.ErrMalformedResponse):
		f.Error = err.Error()
		drafts = []model.Draft{}
	default:
		f.Error = err.Error()
		return err
	}

	f.Source = src.Name
	f.Drafts = drafts
	f.State = StateReview
	metrics.ImportDraftsTotal.Add(float64(len(drafts)))
	if f.Error != "" {
		return err
	}
	return nil
}

func extractDrafts(ctx context.Context, ex extract.Extractor, src Source) ([]model.Draft, error) {
	if src.IsImage() {
		return ex.ExtractImage(ctx, src.Data, src.ContentType())
	}
	rows, err := extract.ReadTable(src.Name, bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.Name, err)
	}
	return ex.ExtractTable(ctx, rows)
}

// Revise replaces the drafts under review.
func (f *Flow) Revise(drafts []model.Draft) error {
	if f.State != StateReview {
		return ErrWrongState
	}
	if drafts == nil {
		drafts = []model.Draft{}
	}
	f.Drafts = drafts
	return nil
}

// Cancel discards the drafts and returns to input.
func (f *Flow) Cancel() error {
	if f.State == StateCommitted {
		return ErrWrongState
	}
	f.State = StateInput
	f.Drafts = []model.Draft{}
	f.Error = ""
	f.Source = ""
	return nil
}

// Confirm creates one item per draft in list order. It keeps going past
// failures and never removes what it created; a *PartialError lists the
// drafts that failed.
func (f *Flow) Confirm(ctx context.Context, c Creator, by string) (*Result, error) {
	if f.State != StateReview {
		return nil, ErrWrongState
	}

	res := &Result{Created: []int64{}}
	for i, d := range f.Drafts {
		item, err := c.Create(ctx, d.ToInput(), by)
		if err != nil {
			slog.Warn("import draft failed", "import", f.ID, "index", i, "title", d.Title, "error", err)
			res.Failures = append(res.Failures, Failure{Index: i, Title: d.Title, Error: err.Error()})
			continue
		}
		res.Created = append(res.Created, item.ID)
	}

	f.State = StateCommitted
	f.Result = res
	metrics.ImportFailuresTotal.Add(float64(len(res.Failures)))
	slog.Info("import confirmed", "import", f.ID, "created", len(res.Created), "failed", len(res.Failures), "by", by)

	if len(res.Failures) > 0 {
		return res, &PartialError{Failures: res.Failures}
	}
	return res, nil
}
