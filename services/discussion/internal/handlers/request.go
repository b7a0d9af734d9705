package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/experience-platform/internal/platform/api"
	"github.com/example/experience-platform/internal/platform/httpserver"
	"github.com/example/experience-platform/services/discussion/internal/ledger"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	return true
}

// pathID returns the trimmed {id} URL parameter, writing a 400 when it is empty.
func pathID(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		api.BadRequest(w, "MISSING_ID", "id is required", rid, nil)
		return "", false
	}
	return id, true
}

// parsePage reads ?start= and ?limit=. Absent values take the defaults;
// anything non-numeric or outside [1, maxLimit] / [0, inf) is a 422.
func parsePage(w http.ResponseWriter, r *http.Request, rid string, maxLimit int) (ledger.Page, bool) {
	p := ledger.Page{Offset: 0, Limit: ledger.DefaultLimit}
	q := r.URL.Query()

	if s := strings.TrimSpace(q.Get("start")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			api.Unprocessable(w, "INVALID_START", "start must be a non-negative integer", rid, nil)
			return p, false
		}
		p.Offset = n
	}
	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			api.Unprocessable(w, "INVALID_LIMIT", "limit must be between 1 and "+strconv.Itoa(maxLimit), rid, nil)
			return p, false
		}
		p.Limit = n
	}
	return p, true
}

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}
