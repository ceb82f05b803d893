package access

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/sealvault-go/logging"
)

// Handler serves a Checker:
//
//	GET /api/validate-wallet/{address} -> ValidateResponse
//	GET /api/health
type Handler struct {
	mux     *http.ServeMux
	checker Checker
	log     *logrus.Logger
}

// NewHandler returns the HTTP handler for checker.
func NewHandler(checker Checker, log *logrus.Logger) *Handler {
	h := &Handler{mux: http.NewServeMux(), checker: checker, log: logging.OrDiscard(log)}
	h.mux.HandleFunc("GET /api/validate-wallet/{address}", h.handleValidate)
	h.mux.HandleFunc("GET /api/health", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	ok, err := h.checker.Check(r.Context(), addr)
	if err != nil {
		h.log.WithError(err).WithField("address", addr).Error("access: check failed")
		writeJSON(w, http.StatusInternalServerError, ValidateResponse{Error: "internal server error"})
		return
	}
	h.log.WithFields(logrus.Fields{"address": addr, "authorized": ok}).Debug("access: checked")
	writeJSON(w, http.StatusOK, ValidateResponse{Authorized: ok, Address: addr})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
