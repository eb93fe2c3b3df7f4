package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/model"
)

type fakeExtractor struct {
	drafts []model.Draft
	err    error
	rows   []extract.Row
	images int
}

func (f *fakeExtractor) AnalyzeImage(context.Context, []byte, string) (model.Suggestion, error) {
	return model.DefaultSuggestion(), nil
}

func (f *fakeExtractor) ExtractImage(context.Context, []byte, string) ([]model.Draft, error) {
	f.images++
	return f.drafts, f.err
}

func (f *fakeExtractor) ExtractTable(_ context.Context, rows []extract.Row) ([]model.Draft, error) {
	f.rows = rows
	return f.drafts, f.err
}

// fakeCreator fails every draft whose title is in fail.
type fakeCreator struct {
	fail    map[string]bool
	created []model.ItemInput
}

func (c *fakeCreator) Create(_ context.Context, in model.ItemInput, _ string) (*model.Item, error) {
	if c.fail[in.Title] {
		return nil, fmt.Errorf("rejected %s", in.Title)
	}
	c.created = append(c.created, in)
	return &model.Item{ID: int64(len(c.created)), Title: in.Title}, nil
}

var csvSource = Source{Name: "itens.csv", MIME: "text/csv", Data: []byte("Nome,Preço\nCadeira,80\n")}

func TestExtractTableMovesToReview(t *testing.T) {
	ex := &fakeExtractor{drafts: []model.Draft{{Title: "Cadeira", Price: 80}}}
	f := NewFlow("f1", "ana@example.com", testNow)

	require.NoError(t, f.Extract(context.Background(), ex, csvSource))
	assert.Equal(t, StateReview, f.State)
	assert.Len(t, f.Drafts, 1)
	assert.Equal(t, []extract.Row{{"Nome": "Cadeira", "Preço": "80"}}, ex.rows)
	assert.Zero(t, ex.images)
}

func TestExtractImageSource(t *testing.T) {
	ex := &fakeExtractor{drafts: []model.Draft{}}
	f := NewFlow("f1", "", testNow)

	// PNG signature, detected without a declared type.
	src := Source{Name: "foto", Data: []byte("\x89PNG\r\n\x1a\n0000")}
	require.NoError(t, f.Extract(context.Background(), ex, src))
	assert.Equal(t, 1, ex.images)
	assert.Equal(t, StateReview, f.State, "an empty result still moves to review")
	assert.Empty(t, f.Drafts)
}

func TestExtractTransportErrorStaysInInput(t *testing.T) {
	boom := errors.New("connection reset")
	f := NewFlow("f1", "", testNow)

	err := f.Extract(context.Background(), &fakeExtractor{err: boom}, csvSource)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateInput, f.State)
	assert.NotEmpty(t, f.Error)
}

func TestExtractMalformedMovesToReviewEmpty(t *testing.T) {
	ex := &fakeExtractor{drafts: []model.Draft{}, err: fmt.Errorf("%w: eof", extract.ErrMalformedResponse)}
	f := NewFlow("f1", "", testNow)

	err := f.Extract(context.Background(), ex, csvSource)
	assert.ErrorIs(t, err, extract.ErrMalformedResponse)
	assert.Equal(t, StateReview, f.State)
	assert.Empty(t, f.Drafts)
	assert.NotEmpty(t, f.Error)
}

func TestExtractUnreadableTable(t *testing.T) {
	f := NewFlow("f1", "", testNow)
	err := f.Extract(context.Background(), &fakeExtractor{}, Source{Name: "lista.pdf", Data: []byte("%PDF-1.4")})
	assert.ErrorIs(t, err, extract.ErrUnsupportedTable)
	assert.Equal(t, StateInput, f.State)
}

func TestExtractOnlyFromInput(t *testing.T) {
	f := NewFlow("f1", "", testNow)
	f.State = StateReview
	assert.ErrorIs(t, f.Extract(context.Background(), &fakeExtractor{}, csvSource), ErrWrongState)
}

func TestCancelDiscardsDrafts(t *testing.T) {
	f := &Flow{State: StateReview, Drafts: []model.Draft{{Title: "x"}}, Source: "a.csv"}
	require.NoError(t, f.Cancel())
	assert.Equal(t, StateInput, f.State)
	assert.Empty(t, f.Drafts)

	f.State = StateCommitted
	assert.ErrorIs(t, f.Cancel(), ErrWrongState)
}

func TestConfirmCreatesInOrder(t *testing.T) {
	c := &fakeCreator{}
	f := &Flow{State: StateReview, Drafts: []model.Draft{
		{Title: "A", Price: 1},
		{Title: "B", Price: 2, Quantity: 4},
	}}

	res, err := f.Confirm(context.Background(), c, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.Created)
	assert.Equal(t, StateCommitted, f.State)
	require.Len(t, c.created, 2)
	assert.Equal(t, "A", c.created[0].Title)
	assert.Equal(t, 1, c.created[0].Quantity, "missing quantity means one unit")
	assert.Equal(t, 4, c.created[1].Quantity)
}

func TestConfirmContinuesPastFailures(t *testing.T) {
	c := &fakeCreator{fail: map[string]bool{"B": true}}
	f := &Flow{State: StateReview, Drafts: []model.Draft{{Title: "A"}, {Title: "B"}, {Title: "C"}}}

	res, err := f.Confirm(context.Background(), c, "")

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, 1, partial.Failures[0].Index)
	assert.Contains(t, err.Error(), "indices 1")

	assert.Equal(t, []int64{1, 2}, res.Created, "A and C stay created")
	assert.Equal(t, StateCommitted, f.State)
	assert.Equal(t, res, f.Result)
}

func TestConfirmOnlyFromReview(t *testing.T) {
	f := NewFlow("f1", "", testNow)
	_, err := f.Confirm(context.Background(), &fakeCreator{}, "")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestRevise(t *testing.T) {
	f := &Flow{State: StateReview, Drafts: []model.Draft{{Title: "A"}, {Title: "B"}}}
	require.NoError(t, f.Revise([]model.Draft{{Title: "B"}}))
	assert.Equal(t, []model.Draft{{Title: "B"}}, f.Drafts)

	f.State = StateInput
	assert.ErrorIs(t, f.Revise(nil), ErrWrongState)
}
