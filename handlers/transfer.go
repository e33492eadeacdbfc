package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"showlog/models"
	"showlog/services/transfer"
)

// importBodyLimit caps import payloads at 10 MiB.
const importBodyLimit = 10 << 20

type transferService interface {
	Export(profileID string) (models.ExportDocument, error)
	Import(ctx context.Context, profileID string, payload []byte) (models.ImportSummary, error)
}

var _ transferService = (*transfer.Service)(nil)

type TransferHandler struct {
	auth
	Service transferService
}

func NewTransferHandler(service transferService, sessions sessionService, profiles profileDirectory) *TransferHandler {
	return &TransferHandler{auth: auth{Sessions: sessions, Profiles: profiles}, Service: service}
}

// Export streams the profile's portable library document.
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.Export(profileID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="showlog-export.json"`)
	json.NewEncoder(w).Encode(doc)
}

// Import applies an uploaded document, id array or newline-delimited id list.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, importBodyLimit))
	if err != nil {
		http.Error(w, "failed to read import payload", http.StatusBadRequest)
		return
	}

	summary, err := h.Service.Import(r.Context(), profileID, payload)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, transfer.ErrUnrecognizedPayload) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
