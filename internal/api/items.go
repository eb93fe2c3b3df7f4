package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/catalog"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/upload"
)

// maxFormBytes bounds a multipart item form with all its photos.
const maxFormBytes = 64 << 20

// ItemsHandler handles catalog endpoints.
type ItemsHandler struct {
	Catalog       *catalog.Catalog
	Uploads       *upload.Orchestrator
	Admins        auth.AllowList
	ContactNumber string
}

// List handles GET /api/items?q=&category=&status=. Callers that are not
// admins only see available items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Catalog.Feed().Current(r.Context())
	if err != nil {
		writeError(w, err, "failed to list items")
		return
	}

	q := r.URL.Query()
	f := catalog.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Status:   catalog.ParseStatus(q.Get("status")),
	}
	items := catalog.ApplyFilter(snap.Items, f, isAdmin(r, h.Admins))
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Categories handles GET /api/categories.
func (h *ItemsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Catalog.Feed().Current(r.Context())
	if err != nil {
		writeError(w, err, "failed to list categories")
		return
	}
	jsonResponse(w, http.StatusOK, catalog.Categories(snap.Items))
}

// visibleItem loads an item the caller may see, writing 404 otherwise.
func (h *ItemsHandler) visibleItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}

	item, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get item")
		return nil, false
	}
	if item == nil || (item.IsSold && !isAdmin(r, h.Admins)) {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Contact handles GET /api/items/{id}/contact.
func (h *ItemsHandler) Contact(w http.ResponseWriter, r *http.Request) {
	if h.ContactNumber == "" {
		jsonError(w, http.StatusNotFound, "contact number not configured")
		return
	}
	item, ok := h.visibleItem(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"url": catalog.ContactURL(h.ContactNumber, item)})
}

// readItemForm reads an item from either a JSON body or a multipart form
// with an "item" JSON field and "photos" files.
func readItemForm(w http.ResponseWriter, r *http.Request) (model.ItemInput, []upload.File, error) {
	var in model.ItemInput
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSON(r, &in); err != nil {
			return in, nil, fmt.Errorf("invalid request body: %w", err)
		}
		return in, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		return in, nil, fmt.Errorf("file too large or invalid multipart form: %w", err)
	}
	if raw := r.FormValue("item"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return in, nil, fmt.Errorf("invalid item field: %w", err)
		}
	}

	var files []upload.File
	for _, fh := range r.MultipartForm.File["photos"] {
		data, err := readPart(fh)
		if err != nil {
			return in, nil, err
		}
		files = append(files, upload.File{Name: fh.Filename, Data: data})
	}
	return in, files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	return data, nil
}

// logProgress reports upload progress to the log at quarter steps.
func logProgress(item string) func(int) {
	return func(p int) {
		if p%25 == 0 {
			slog.Debug("photo upload progress", "item", item, "percent", p)
		}
	}
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, files, err := readItemForm(w, r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	in.Normalize()
	if err := in.Validate(h.Catalog.MaxImages()); err != nil {
		writeError(w, err, "failed to create item")
		return
	}

	urls, err := h.Uploads.Upload(r.Context(), in.ImageURLs, files, logProgress(in.Title))
	if err != nil {
		writeError(w, err, "failed to upload photos")
		return
	}
	in.ImageURLs = urls

	item, err := h.Catalog.Create(r.Context(), in, GetClaims(r.Context()).Email)
	if err != nil {
		writeError(w, err, "failed to create item")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id}. image_urls lists the photos to keep;
// new photos are appended after them.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	in, files, err := readItemForm(w, r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	in.Normalize()
	if err := in.Validate(h.Catalog.MaxImages()); err != nil {
		writeError(w, err, "failed to update item")
		return
	}

	urls, err := h.Uploads.Upload(r.Context(), in.ImageURLs, files, logProgress(in.Title))
	if err != nil {
		writeError(w, err, "failed to upload photos")
		return
	}
	in.ImageURLs = urls

	item, err := h.Catalog.Update(r.Context(), id, in, GetClaims(r.Context()).Email)
	if err != nil {
		writeError(w, err, "failed to update item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Sell handles POST /api/items/{id}/sale.
func (h *ItemsHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var details model.SaleDetails
	if err := decodeJSON(r, &details); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Catalog.RecordSale(r.Context(), id, details, GetClaims(r.Context()).Email)
	if err != nil {
		writeError(w, err, "failed to record sale")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// SetStatus handles PUT /api/items/{id}/status.
func (h *ItemsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	change, err := model.DecodeStatusChange(body, time.Now())
	if err != nil {
		if errors.Is(err, model.ErrInvalidRestock) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Catalog.ChangeStatus(r.Context(), id, change, GetClaims(r.Context()).Email)
	if err != nil {
		writeError(w, err, "failed to change status")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Photos stay in the blob store.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.Catalog.Delete(r.Context(), id, GetClaims(r.Context()).Email); err != nil {
		writeError(w, err, "failed to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Clear handles DELETE /api/items?confirm=true.
func (h *ItemsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		jsonError(w, http.StatusBadRequest, "confirm=true required to delete every item")
		return
	}

	n, err := h.Catalog.Clear(r.Context(), GetClaims(r.Context()).Email)
	if err != nil {
		writeError(w, err, "failed to clear catalog")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Sales handles GET /api/items/{id}/sales.
func (h *ItemsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	sales, err := h.Catalog.Sales(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to list sales")
		return
	}
	jsonResponse(w, http.StatusOK, sales)
}

// AllSales handles GET /api/sales.
func (h *ItemsHandler) AllSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Catalog.Sales(r.Context(), 0)
	if err != nil {
		writeError(w, err, "failed to list sales")
		return
	}
	jsonResponse(w, http.StatusOK, sales)
}

// Stats handles GET /api/stats.
func (h *ItemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Catalog.Stats(r.Context())
	if err != nil {
		writeError(w, err, "failed to compute stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
