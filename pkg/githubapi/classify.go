package githubapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// RequestIDHeader carries the server-side correlation id of a request.
const RequestIDHeader = "X-GitHub-Request-Id"

// Error ids attached to classified records.
const (
	IDNetworkFailure   = "NetworkFailure"
	IDHTTPFailure      = "HTTPFailure"
	IDUnknownFailure   = "UnknownFailure"
	IDInvalidResponse  = "InvalidResponse"
	IDInvalidQuery     = "InvalidQuery"
	IDUnspecifiedError = "UnspecifiedError"
	IDNotFound         = "NOT_FOUND"
)

// ErrorKind is the coarse category of an ErrorRecord.
type ErrorKind int

const (
	KindUnspecified ErrorKind = iota
	KindNotFound
	KindInvalidOperation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unspecified"
	}
}

var (
	// ErrNotFound matches records of kind KindNotFound.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidOperation matches records of kind KindInvalidOperation.
	ErrInvalidOperation = errors.New("invalid operation")
)

// ErrorRecord is the normalized form of every failed request.
type ErrorRecord struct {
	Messages      []string
	Kind          ErrorKind
	ID            string
	CorrelationID string
	Target        string
	StatusCode    int

	cause error
}

func (e *ErrorRecord) Error() string {
	return strings.Join(e.Messages, "\n")
}

func (e *ErrorRecord) Unwrap() error {
	return e.cause
}

// Is reports kind equivalence with ErrNotFound and ErrInvalidOperation.
func (e *ErrorRecord) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidOperation:
		return e.Kind == KindInvalidOperation
	}
	return false
}

// Classify turns a Failure into an ErrorRecord. It never panics and always
// produces at least one message.
func Classify(f Failure, target string) *ErrorRecord {
	record := &ErrorRecord{Kind: KindUnspecified, Target: target}

	switch typed := f.(type) {
	case NetworkFailure:
		record.ID = IDNetworkFailure
		record.cause = typed.Err
		if typed.Err != nil {
			record.add(typed.Err.Error())
		}
	case HTTPFailure:
		record.ID = IDHTTPFailure
		record.StatusCode = typed.StatusCode
		record.cause = typed.Err
		record.addBody(typed.Body)
		if len(record.Messages) == 0 {
			record.add(statusLine(typed.StatusCode, typed.Status))
		}
		record.addHints(typed.StatusCode, typed.Header)
		record.addCorrelation(typed.Header)
	case UnknownFailure:
		record.ID = IDUnknownFailure
		record.cause = typed.Err
		if typed.Err != nil {
			record.add(firstLine(typed.Err.Error()))
		}
	default:
		record.ID = IDUnknownFailure
	}

	if len(record.Messages) == 0 {
		record.add(fmt.Sprintf("request to %s failed", target))
	}
	return record
}

func (e *ErrorRecord) add(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment != "" {
		e.Messages = append(e.Messages, fragment)
	}
}

// addBody renders a response body. Invalid JSON is kept as plain text.
func (e *ErrorRecord) addBody(body []byte) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !utf8.Valid(body) {
		return
	}

	var payload struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Details          []json.RawMessage `json:"details"`
		Errors           []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		e.add(string(body))
		return
	}
	if payload.Message == "" {
		e.add(string(body))
		return
	}

	e.add(payload.Message)
	e.add(payload.DocumentationURL)
	details := payload.Details
	if len(details) == 0 {
		details = payload.Errors
	}
	if len(details) > 0 {
		e.add("Details: " + renderDetails(details))
	}
}

func (e *ErrorRecord) addHints(status int, header http.Header) {
	switch status {
	case http.StatusUnauthorized:
		e.add("Authentication failed. Ensure a valid token is configured (GITHUB_TOKEN).")
	case http.StatusForbidden:
		sso := headerValue(header, "X-GitHub-SSO")
		switch {
		case sso != "" && strings.Contains(strings.ToLower(sso), "required"):
			e.add("The token must be authorized for SSO in this organization.")
		case headerValue(header, "X-RateLimit-Remaining") == "0":
			e.add("API rate limit reached. Wait for the reset or use a token with a higher limit.")
		default:
			if scopes := headerValue(header, "X-Accepted-OAuth-Scopes"); scopes != "" {
				e.add("Required scopes (server hint): " + scopes)
			}
		}
	case http.StatusNotFound:
		e.add("Not found. On private repositories a 404 can mean the token lacks access.")
	}
}

func (e *ErrorRecord) addCorrelation(header http.Header) {
	id := headerValue(header, RequestIDHeader)
	if id == "" {
		return
	}
	e.CorrelationID = id
	e.add("RequestId: " + id)
}

// headerValue looks a header up by its exact key first, then ignoring case.
// Header maps built outside net/http may not use canonical keys.
func headerValue(header http.Header, name string) string {
	if header == nil {
		return ""
	}
	if values, ok := header[name]; ok && len(values) > 0 {
		return values[0]
	}
	for key, values := range header {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func renderDetails(details []json.RawMessage) string {
	parts := make([]string, 0, len(details))
	for _, raw := range details {
		var entry struct {
			Message  string `json:"message"`
			Resource string `json:"resource"`
			Field    string `json:"field"`
			Code     string `json:"code"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			parts = append(parts, strings.Trim(string(raw), `"`))
			continue
		}
		switch {
		case entry.Message != "":
			parts = append(parts, entry.Message)
		case entry.Field != "" || entry.Code != "":
			parts = append(parts, strings.TrimLeft(fmt.Sprintf("%s.%s %s", entry.Resource, entry.Field, entry.Code), "."))
		default:
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "; ")
}

func statusLine(code int, status string) string {
	if status != "" {
		return "HTTP " + status
	}
	if code == 0 {
		return ""
	}
	return fmt.Sprintf("HTTP %d %s", code, http.StatusText(code))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
