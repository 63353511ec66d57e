package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/facegate/internal/detector"
)

// OptionsStore reads and replaces the detector options.
type OptionsStore interface {
	Options() detector.Options
	SetOptions(detector.Options) error
}

// OptionsHandler handles /api/detector/options.
type OptionsHandler struct {
	options OptionsStore
}

// NewOptionsHandler creates a new OptionsHandler.
func NewOptionsHandler(o OptionsStore) *OptionsHandler {
	return &OptionsHandler{options: o}
}

// ServeHTTP returns the current options on GET. PUT merges the body over the
// current options, so omitted fields keep their values.
func (h *OptionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.options.Options())
	case http.MethodPut:
		opts := h.options.Options()
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if err := opts.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.options.SetOptions(opts); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opts)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
