package upstream

import (
	"context"
	"encoding/json"
)

// Request is one content-generation call to relay upstream. The payload is
// passed through opaque; the gateway routes and meters requests, it does
// not interpret them.
type Request struct {
	// Model is the upstream model name the request addresses.
	Model string

	// Payload is the request body, forwarded verbatim.
	Payload json.RawMessage
}

// Result is a successful upstream response.
type Result struct {
	// StatusCode is the upstream HTTP status (2xx).
	StatusCode int

	// Body is the response body, forwarded verbatim.
	Body []byte

	// ContentType is the upstream response content type.
	ContentType string
}

// Caller issues requests against the upstream API on behalf of one
// credential at a time.
//
// Call errors are classified: a *StatusError for non-success HTTP
// responses, a *TransportError for faults below HTTP. The classification
// helpers in this package branch on them.
type Caller interface {
	// Call relays the request upstream authenticated with key.
	Call(ctx context.Context, key string, req *Request) (*Result, error)

	// Probe performs a minimal call that validates the key without
	// generating content. Used by recovery checks.
	Probe(ctx context.Context, key string) error
}
