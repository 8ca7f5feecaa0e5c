package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"prism-gw/prism/pkg/dispatch"
	"prism-gw/prism/pkg/keypool"
	"prism-gw/prism/pkg/upstream"
)

type handlers struct {
	dispatcher Dispatcher
	store      *keypool.Store
	usage      UsageReader
	logger     *slog.Logger
}

// generateRequest is the relay endpoint's body. The payload is forwarded
// upstream untouched.
type generateRequest struct {
	Model   string          `json:"model"`
	Payload json.RawMessage `json:"payload"`
}

// keyStatus is one key's entry in the status listing. The identifier is
// masked; full credentials never leave the process.
type keyStatus struct {
	Key         string `json:"key"`
	Position    int    `json:"position"`
	Status      string `json:"status"`
	Failures    int    `json:"consecutive_failures"`
	WindowUsage *int   `json:"window_usage,omitempty"`
	DisabledAt  string `json:"disabled_at,omitempty"`
	LastUsedAt  string `json:"last_used_at,omitempty"`
}

type keyListResponse struct {
	Total    int         `json:"total"`
	Valid    []keyStatus `json:"valid"`
	Disabled []keyStatus `json:"disabled"`
}

type resetRequest struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	ctx := r.Context()
	if id := r.Header.Get("X-Request-ID"); id != "" {
		ctx = dispatch.WithRequestID(ctx, id)
	}

	result, err := h.dispatcher.Dispatch(ctx, &upstream.Request{
		Model:   req.Model,
		Payload: req.Payload,
	})
	if err != nil {
		h.writeDispatchError(w, r, err)
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Body)
}

// writeDispatchError maps the dispatch error taxonomy onto gateway status
// codes. A client error carries the upstream's own status through.
func (h *handlers) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case upstream.IsClient(err):
		var statusErr *upstream.StatusError
		code := http.StatusBadRequest
		if errors.As(err, &statusErr) {
			code = statusErr.StatusCode
		}
		writeError(w, code, "upstream rejected the request")
	case errors.Is(err, keypool.ErrPoolExhausted):
		writeError(w, http.StatusServiceUnavailable, "no upstream credential available")
	case errors.Is(err, dispatch.ErrRetriesExhausted):
		writeError(w, http.StatusBadGateway, "upstream unavailable after retries")
	case r.Context().Err() != nil:
		// Client went away; the status is for the access log only.
		writeError(w, statusClientClosedRequest, "request canceled")
	default:
		writeError(w, http.StatusBadGateway, "relay failed")
	}
}

// statusClientClosedRequest is the de facto status for a request abandoned
// by the client.
const statusClientClosedRequest = 499

func (h *handlers) listKeys(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()

	resp := keyListResponse{
		Total:    len(snapshot),
		Valid:    []keyStatus{},
		Disabled: []keyStatus{},
	}
	for _, rec := range snapshot {
		entry := keyStatus{
			Key:      keypool.MaskKey(rec.Identifier),
			Position: rec.Position,
			Status:   rec.Status.String(),
			Failures: rec.ConsecutiveFailures,
		}
		if h.usage != nil {
			use := h.usage.Usage(rec.Identifier)
			entry.WindowUsage = &use
		}
		if !rec.DisabledAt.IsZero() {
			entry.DisabledAt = rec.DisabledAt.UTC().Format(timeLayout)
		}
		if !rec.LastUsedAt.IsZero() {
			entry.LastUsedAt = rec.LastUsedAt.UTC().Format(timeLayout)
		}

		if rec.Status == keypool.StatusDisabled {
			resp.Disabled = append(resp.Disabled, entry)
		} else {
			resp.Valid = append(resp.Valid, entry)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// resetKeys reactivates the named key, or every key when the body names
// none. The body must name keys in full; masked identifiers are not
// accepted.
func (h *handlers) resetKeys(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if req.Key != "" {
		if err := h.store.Reactivate(r.Context(), req.Key); err != nil {
			if errors.Is(err, keypool.ErrUnknownKey) {
				writeError(w, http.StatusNotFound, "unknown key")
				return
			}
			writeError(w, http.StatusInternalServerError, "reset failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"keys_reset": 1})
		return
	}

	count := h.store.ResetAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"keys_reset": count})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"keys":   h.store.Len(),
	})
}

// authMiddleware enforces bearer token access when tokens are configured.
func authMiddleware(tokens []string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(tokens) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !tokenAccepted(tokens, presented) {
				logger.Warn("request rejected", slog.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "invalid or missing access token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenAccepted(tokens []string, presented string) bool {
	accepted := false
	for _, token := range tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(presented)) == 1 {
			accepted = true
		}
	}
	return accepted
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}
