package taintgate

import (
	"encoding/json"
	"net/http"
)

// TaintHeader carries the caller-declared taint context for a request:
// either a bare level string or a JSON object with level and
// sanitizations. Requests without it carry no provenance and the gate
// does not enforce.
const TaintHeader = "X-Taint-Context"

// Middleware returns an http.Handler that evaluates the flow gate on
// each request before passing to the next handler. Blocked requests
// receive a 403 with a JSON body that names the parameter and the rule,
// never the value.
func (c *Client) Middleware(action string, next http.Handler, opts ...WrapOption) http.Handler {
	wcfg := wrapConfig{}
	for _, o := range opts {
		o(&wcfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := callFromRequest(r)
		outcome, err := c.evaluate(action, call, wcfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if !outcome.OK() {
			c.emitter.Blocked(action, outcome)
			result := toResult(c.tags, outcome)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"blocked":   true,
				"status":    result.Status,
				"parameter": result.Parameter,
				"missing":   result.Missing,
				"reason":    result.Reason,
			})
			return
		}

		c.emitter.Audited(action, outcome.Audited)
		next.ServeHTTP(w, r)
	})
}

// callFromRequest maps an HTTP request to a gate call. The request
// path, method and query become the parameter values; the taint comes
// from the TaintHeader if present.
func callFromRequest(r *http.Request) Call {
	call := Call{
		Params: map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
			"query":  r.URL.RawQuery,
		},
	}

	if raw := r.Header.Get(TaintHeader); raw != "" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Not JSON: treat the header as a bare level string.
			v = raw
		}
		call.Taint = v
	}

	return call
}
