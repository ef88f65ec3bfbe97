package http

import "net/http"

// Health answers liveness probes. Readiness beyond process-up is not
// tracked separately; the session store degrades to 503s on its own
// endpoints when unavailable.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
