package api

import (
	"net/http"

	"github.com/ayusman/smilecast/internal/store"
)

// UploadsHandler lists files recorded in the upload ledger.
type UploadsHandler struct {
	store *store.Store
}

// NewUploadsHandler creates a new UploadsHandler with the given store.
func NewUploadsHandler(s *store.Store) *UploadsHandler {
	return &UploadsHandler{store: s}
}

type listUploadsResponse struct {
	Uploads []*store.UploadRecord `json:"uploads"`
}

// List handles GET /api/uploads?limit=N.
func (h *UploadsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	records, err := h.store.Uploads().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if records == nil {
		records = []*store.UploadRecord{}
	}
	writeJSON(w, http.StatusOK, listUploadsResponse{Uploads: records})
}
