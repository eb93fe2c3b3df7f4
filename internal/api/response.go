package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/remarket/internal/extract"
	"github.com/erazemk/remarket/internal/imaging"
	"github.com/erazemk/remarket/internal/importer"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/store"
	"github.com/erazemk/remarket/internal/upload"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

var badRequestErrors = []error{
	model.ErrTitleRequired,
	model.ErrNegativePrice,
	model.ErrNegativeQuantity,
	model.ErrTooManyImages,
	model.ErrInvalidSaleQuantity,
	model.ErrInvalidRestock,
	imaging.ErrUnsupportedFormat,
	extract.ErrUnsupportedTable,
}

// writeError maps domain errors to HTTP statuses. Anything unrecognized is
// logged and reported as msg with a 500.
func writeError(w http.ResponseWriter, err error, msg string) {
	var slotErr *upload.SlotError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, importer.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientQuantity), errors.Is(err, importer.ErrWrongState):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, extract.ErrUnavailable):
		jsonError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &slotErr):
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":    err.Error(),
			"accepted": slotErr.Accepted,
		})
	default:
		for _, target := range badRequestErrors {
			if errors.Is(err, target) {
				jsonError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		slog.Error(msg, "error", err)
		jsonError(w, http.StatusInternalServerError, msg)
	}
}
