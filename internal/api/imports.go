package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/imaging"
	"github.com/erazemk/remarket/internal/importer"
	"github.com/erazemk/remarket/internal/model"
)

// ImportsHandler handles bulk imports and photo analysis.
type ImportsHandler struct {
	Imports   *importer.Registry
	Extractor extract.Extractor
	Imaging   imaging.Options
}

// readSource reads the single uploaded file of an import or analysis.
func readSource(w http.ResponseWriter, r *http.Request, field string) (importer.Source, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return importer.Source{}, false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		jsonError(w, http.StatusBadRequest, field+" file required")
		return importer.Source{}, false
	}

	data, err := readPart(files[0])
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return importer.Source{}, false
	}
	return importer.Source{
		Name: files[0].Filename,
		MIME: files[0].Header.Get("Content-Type"),
		Data: data,
	}, true
}

// writeFlow answers an extraction. Malformed model output is not a request
// failure: the flow is in review with its error set.
func writeFlow(w http.ResponseWriter, status int, f *importer.Flow, err error) {
	switch {
	case err == nil, errors.Is(err, extract.ErrMalformedResponse):
		jsonResponse(w, status, f)
	case errors.Is(err, extract.ErrUnavailable):
		jsonError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, extract.ErrUnsupportedTable):
		jsonResponse(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "import": f})
	case f != nil:
		jsonResponse(w, http.StatusBadGateway, map[string]any{"error": "extraction failed: " + err.Error(), "import": f})
	default:
		writeError(w, err, "failed to start import")
	}
}

// Start handles POST /api/imports with a "file" spreadsheet or photo.
func (h *ImportsHandler) Start(w http.ResponseWriter, r *http.Request) {
	src, ok := readSource(w, r, "file")
	if !ok {
		return
	}
	f, err := h.Imports.Start(r.Context(), src, GetClaims(r.Context()).Email)
	writeFlow(w, http.StatusCreated, f, err)
}

// Retry handles POST /api/imports/{id}/retry after a failed extraction.
func (h *ImportsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	src, ok := readSource(w, r, "file")
	if !ok {
		return
	}
	f, err := h.Imports.Retry(r.Context(), r.PathValue("id"), src)
	if f == nil {
		writeError(w, err, "failed to retry import")
		return
	}
	writeFlow(w, http.StatusOK, f, err)
}

// Get handles GET /api/imports/{id}.
func (h *ImportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.Imports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, "failed to get import")
		return
	}
	jsonResponse(w, http.StatusOK, f)
}

type reviseRequest struct {
	Drafts []model.Draft `json:"drafts"`
}

// Revise handles PUT /api/imports/{id} with the edited drafts.
func (h *ImportsHandler) Revise(w http.ResponseWriter, r *http.Request) {
	var req reviseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := h.Imports.Revise(r.Context(), r.PathValue("id"), req.Drafts)
	if err != nil {
		writeError(w, err, "failed to update import")
		return
	}
	jsonResponse(w, http.StatusOK, f)
}

// Confirm handles POST /api/imports/{id}/confirm. A partial import answers
// 207 with the failed drafts in the result.
func (h *ImportsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	f, err := h.Imports.Confirm(r.Context(), r.PathValue("id"), GetClaims(r.Context()).Email)

	var partial *importer.PartialError
	switch {
	case err == nil:
		jsonResponse(w, http.StatusOK, f)
	case errors.As(err, &partial):
		jsonResponse(w, http.StatusMultiStatus, f)
	default:
		writeError(w, err, "failed to confirm import")
	}
}

// Cancel handles DELETE /api/imports/{id}.
func (h *ImportsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Imports.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err, "failed to cancel import")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "import cancelled"})
}

// Analyze handles POST /api/ai/analyze with a "photo" and answers the
// suggested form values.
func (h *ImportsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	src, ok := readSource(w, r, "photo")
	if !ok {
		return
	}

	img, err := imaging.Process(bytes.NewReader(src.Data), h.Imaging)
	if err != nil {
		writeError(w, err, "failed to read photo")
		return
	}

	s, err := h.Extractor.AnalyzeImage(r.Context(), img.Data, img.MIME)
	if errors.Is(err, extract.ErrUnavailable) {
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadGateway, "analysis failed: "+err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, s)
}
