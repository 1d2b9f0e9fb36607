package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is a single utterance submitted to the assistant endpoint.
type Request struct {
	// UserID identifies the banking customer the utterance belongs to.
	UserID int64 `json:"user_id"`

	// Message is the captured or typed utterance text.
	Message string `json:"message"`

	// Password carries the credential during a password-challenge
	// resubmission. nil on the wire ("password": null) for ordinary requests.
	Password *string `json:"password"`
}

// Response is the assistant endpoint's parsed reply. Optional wire fields
// resolve to their zero values: no navigation, no password required, not
// successful.
type Response struct {
	// Reply is the text to display and speak. Always present.
	Reply string

	// Page is a navigation hint; empty means no navigation. The value is an
	// opaque page identifier forwarded to the host's navigation callback.
	Page string

	// RequirePassword signals that the action is sensitive and must be
	// resubmitted with a credential before it is executed.
	RequirePassword bool

	// Success signals that an action (e.g., a transfer) completed.
	Success bool
}

// ErrNetwork indicates a transport-level failure reaching the assistant
// endpoint (no connection, timeout). Surfaced to the user as a generic
// connection-error message; retries are manual.
var ErrNetwork = errors.New("assistant: connection failed")

// ProtocolError indicates the endpoint was reachable but rejected the
// request or returned a body the client cannot use.
type ProtocolError struct {
	// Status is the HTTP status code, or 0 for a malformed success body.
	Status int

	// Detail is the human-readable message, taken from the error body when
	// one was parseable and a generic fallback otherwise.
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("assistant: backend error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("assistant: invalid response: %s", e.Detail)
}

// GenericBackendDetail is the fallback detail string used when an error body
// carries no usable "detail" field.
const GenericBackendDetail = "The assistant backend returned an error."

// ---- wire parsing -----------------------------------------------------------

// wireResponse mirrors the endpoint's success body. Pointer fields
// distinguish absent from zero so defaults can be applied explicitly.
type wireResponse struct {
	Reply *string   `json:"reply"`
	Page  *string   `json:"page"`
	Data  *wireData `json:"data"`
}

// wireData is the optional structured payload attached to a reply.
type wireData struct {
	RequirePassword *bool `json:"require_password"`
	Success         *bool `json:"success"`
}

// parseResponse decodes a success body. Missing optional fields default; a
// body that is not a JSON object or lacks the mandatory reply field is a
// ProtocolError.
func parseResponse(body []byte) (Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Response{}, &ProtocolError{Detail: "response body is not a JSON object"}
	}
	if wire.Reply == nil {
		return Response{}, &ProtocolError{Detail: "response is missing the reply field"}
	}

	resp := Response{Reply: *wire.Reply}
	if wire.Page != nil {
		resp.Page = *wire.Page
	}
	if wire.Data != nil {
		if wire.Data.RequirePassword != nil {
			resp.RequirePassword = *wire.Data.RequirePassword
		}
		if wire.Data.Success != nil {
			resp.Success = *wire.Data.Success
		}
	}
	return resp, nil
}

// errorDetail extracts the "detail" string from a non-2xx body, falling back
// to [GenericBackendDetail] when the body is absent or unparseable.
func errorDetail(body []byte) string {
	var eb struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &eb); err != nil || eb.Detail == "" {
		return GenericBackendDetail
	}
	return eb.Detail
}
