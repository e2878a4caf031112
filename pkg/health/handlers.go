package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler always answers 200 {"status":"alive"}.
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadinessHandler answers 200 with the check results when every checker
// passes and 503 otherwise.
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.Check(r.Context())
		code := http.StatusOK
		if result.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, result)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
