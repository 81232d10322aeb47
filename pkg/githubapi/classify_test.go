package githubapi

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v67/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNeverEmpty(t *testing.T) {
	failures := []Failure{
		nil,
		NetworkFailure{},
		NetworkFailure{Err: errors.New("dial tcp: connection refused")},
		HTTPFailure{},
		HTTPFailure{StatusCode: 500},
		HTTPFailure{StatusCode: 502, Body: []byte("   ")},
		HTTPFailure{StatusCode: 400, Body: []byte{0xff, 0xfe}},
		UnknownFailure{},
		UnknownFailure{Err: errors.New("boom\nstack")},
	}

	for _, f := range failures {
		var record *ErrorRecord
		assert.NotPanics(t, func() { record = Classify(f, "https://api.github.com/graphql") })
		require.NotNil(t, record)
		assert.NotEmpty(t, record.Messages, "%#v", f)
		assert.Equal(t, KindUnspecified, record.Kind)
		for _, m := range record.Messages {
			assert.NotEmpty(t, m)
		}
	}
}

func TestClassifyIDs(t *testing.T) {
	assert.Equal(t, IDNetworkFailure, Classify(NetworkFailure{Err: errors.New("x")}, "t").ID)
	assert.Equal(t, IDHTTPFailure, Classify(HTTPFailure{StatusCode: 500}, "t").ID)
	assert.Equal(t, IDUnknownFailure, Classify(UnknownFailure{Err: errors.New("x")}, "t").ID)
	assert.Equal(t, IDUnknownFailure, Classify(nil, "t").ID)
}

func TestClassifyFallbackMessage(t *testing.T) {
	record := Classify(NetworkFailure{}, "https://example.com/api")
	assert.Equal(t, []string{"request to https://example.com/api failed"}, record.Messages)
}

func TestClassifyUnknownUsesFirstLine(t *testing.T) {
	record := Classify(UnknownFailure{Err: errors.New("first\nsecond")}, "t")
	assert.Equal(t, []string{"first"}, record.Messages)
}

func TestClassifyInvalidJSONBodyIsRawText(t *testing.T) {
	record := Classify(HTTPFailure{StatusCode: 502, Status: "502 Bad Gateway", Body: []byte("<html>bad gateway</html>")}, "t")
	assert.Equal(t, []string{"<html>bad gateway</html>"}, record.Messages)
	assert.Equal(t, 502, record.StatusCode)
}

func TestClassifyEmptyBodyUsesStatus(t *testing.T) {
	record := Classify(HTTPFailure{StatusCode: 500, Status: "500 Internal Server Error"}, "t")
	assert.Equal(t, []string{"HTTP 500 Internal Server Error"}, record.Messages)

	record = Classify(HTTPFailure{StatusCode: 503}, "t")
	assert.Equal(t, []string{"HTTP 503 Service Unavailable"}, record.Messages)
}

func TestClassifyStructuredBody(t *testing.T) {
	body := `{"message":"Validation Failed","documentation_url":"https://docs.github.com/rest","errors":[{"resource":"Issue","field":"title","code":"missing_field"},{"message":"body too long"}]}`
	record := Classify(HTTPFailure{StatusCode: 422, Body: []byte(body)}, "t")

	assert.Equal(t, []string{
		"Validation Failed",
		"https://docs.github.com/rest",
		"Details: Issue.title missing_field; body too long",
	}, record.Messages)
}

func TestClassifyDetailsArray(t *testing.T) {
	body := `{"message":"bad","details":["one","two"]}`
	record := Classify(HTTPFailure{StatusCode: 400, Body: []byte(body)}, "t")
	assert.Equal(t, []string{"bad", "Details: one; two"}, record.Messages)
}

func TestClassifyJSONWithoutMessageIsRawText(t *testing.T) {
	record := Classify(HTTPFailure{StatusCode: 400, Body: []byte(`{"error":"nope"}`)}, "t")
	assert.Equal(t, []string{`{"error":"nope"}`}, record.Messages)
}

func TestClassifyCorrelationIDIsLast(t *testing.T) {
	header := http.Header{}
	header.Set(RequestIDHeader, "ABCD:1234")
	record := Classify(HTTPFailure{StatusCode: 500, Header: header, Body: []byte(`{"message":"oops"}`)}, "t")

	require.NotEmpty(t, record.Messages)
	assert.Equal(t, "RequestId: ABCD:1234", record.Messages[len(record.Messages)-1])
	assert.Equal(t, "ABCD:1234", record.CorrelationID)
}

func TestClassifyCorrelationIDCaseInsensitive(t *testing.T) {
	header := http.Header{"x-github-request-id": []string{"lower-case-id"}}
	record := Classify(HTTPFailure{StatusCode: 500, Header: header}, "t")
	assert.Equal(t, "lower-case-id", record.CorrelationID)
	assert.Contains(t, record.Messages, "RequestId: lower-case-id")
}

func TestClassifyNoCorrelationWithoutHeader(t *testing.T) {
	record := Classify(HTTPFailure{StatusCode: 500, Body: []byte(`{"message":"oops"}`)}, "t")
	assert.Empty(t, record.CorrelationID)
	for _, m := range record.Messages {
		assert.NotContains(t, m, "RequestId")
	}
}

func TestClassifyHints(t *testing.T) {
	record := Classify(HTTPFailure{StatusCode: 401, Body: []byte(`{"message":"Bad credentials"}`)}, "t")
	assert.Len(t, record.Messages, 2)
	assert.Contains(t, record.Messages[1], "Authentication failed")

	sso := http.Header{}
	sso.Set("X-GitHub-SSO", "required; url=https://github.com/orgs/acme/sso")
	record = Classify(HTTPFailure{StatusCode: 403, Header: sso}, "t")
	assert.Contains(t, record.Error(), "SSO")

	limited := http.Header{}
	limited.Set("X-RateLimit-Remaining", "0")
	limited.Set(RequestIDHeader, "req-1")
	record = Classify(HTTPFailure{StatusCode: 403, Header: limited}, "t")
	assert.Contains(t, record.Error(), "rate limit")
	assert.Equal(t, "RequestId: req-1", record.Messages[len(record.Messages)-1])

	record = Classify(HTTPFailure{StatusCode: 404, Body: []byte(`{"message":"Not Found"}`)}, "t")
	assert.Equal(t, "Not Found", record.Messages[0])
	assert.Contains(t, record.Messages[1], "private repositories")
}

func TestErrorRecordKinds(t *testing.T) {
	notFound := &ErrorRecord{Kind: KindNotFound, Messages: []string{"gone"}}
	invalid := &ErrorRecord{Kind: KindInvalidOperation, Messages: []string{"bad"}}
	plain := &ErrorRecord{Messages: []string{"x"}}

	assert.True(t, errors.Is(notFound, ErrNotFound))
	assert.False(t, errors.Is(notFound, ErrInvalidOperation))
	assert.True(t, errors.Is(invalid, ErrInvalidOperation))
	assert.False(t, errors.Is(plain, ErrNotFound))

	wrapped := errors.Wrap(notFound, "fetching codespace")
	var record *ErrorRecord
	require.True(t, errors.As(wrapped, &record))
	assert.Equal(t, KindNotFound, record.Kind)

	assert.Equal(t, "NotFound", KindNotFound.String())
	assert.Equal(t, "InvalidOperation", KindInvalidOperation.String())
	assert.Equal(t, "Unspecified", KindUnspecified.String())
}

func TestErrorRecordUnwrapsCause(t *testing.T) {
	record := Classify(NetworkFailure{Err: context.DeadlineExceeded}, "t")
	assert.True(t, errors.Is(record, context.DeadlineExceeded))
}

func TestFailureFromError(t *testing.T) {
	t.Run("url error", func(t *testing.T) {
		err := &url.Error{Op: "Post", URL: "https://api.github.com/graphql", Err: errors.New("connection refused")}
		assert.IsType(t, NetworkFailure{}, FailureFromError(err))
	})

	t.Run("net error", func(t *testing.T) {
		var err net.Error = &net.DNSError{Err: "no such host", Name: "github.invalid"}
		assert.IsType(t, NetworkFailure{}, FailureFromError(err))
	})

	t.Run("context", func(t *testing.T) {
		assert.IsType(t, NetworkFailure{}, FailureFromError(context.Canceled))
		assert.IsType(t, NetworkFailure{}, FailureFromError(errors.Wrap(context.DeadlineExceeded, "waiting")))
	})

	t.Run("response error", func(t *testing.T) {
		err := &ResponseError{StatusCode: 500, Status: "500 Internal Server Error", Body: []byte("oops")}
		f, ok := FailureFromError(errors.Wrap(err, "graphql")).(HTTPFailure)
		require.True(t, ok)
		assert.Equal(t, 500, f.StatusCode)
		assert.Equal(t, []byte("oops"), f.Body)
	})

	t.Run("go-github error response", func(t *testing.T) {
		header := http.Header{}
		header.Set(RequestIDHeader, "gh-req")
		resp := &http.Response{
			StatusCode: 404,
			Status:     "404 Not Found",
			Header:     header,
			Body:       io.NopCloser(bytes.NewBufferString(`{"message":"Not Found","documentation_url":"https://docs.github.com"}`)),
		}
		err := &github.ErrorResponse{Response: resp, Message: "Not Found"}

		f, ok := FailureFromError(err).(HTTPFailure)
		require.True(t, ok)
		assert.Equal(t, 404, f.StatusCode)

		record := Classify(f, "https://api.github.com/user/codespaces/x")
		assert.Equal(t, "Not Found", record.Messages[0])
		assert.Equal(t, "https://docs.github.com", record.Messages[1])
		assert.Equal(t, "gh-req", record.CorrelationID)
	})

	t.Run("go-github error without body uses decoded fields", func(t *testing.T) {
		resp := &http.Response{StatusCode: 422, Status: "422 Unprocessable Entity", Header: http.Header{}}
		err := &github.ErrorResponse{
			Response: resp,
			Message:  "Validation Failed",
			Errors:   []github.Error{{Resource: "Codespace", Field: "name", Code: "invalid"}},
		}
		record := Classify(FailureFromError(err), "t")
		assert.Equal(t, []string{"Validation Failed", "Details: Codespace.name invalid"}, record.Messages)
	})

	t.Run("go-github rate limit", func(t *testing.T) {
		resp := &http.Response{StatusCode: 403, Status: "403 Forbidden", Header: http.Header{}}
		err := &github.RateLimitError{Response: resp, Message: "API rate limit exceeded"}
		record := Classify(FailureFromError(err), "t")
		assert.Equal(t, IDHTTPFailure, record.ID)
		assert.Equal(t, "API rate limit exceeded", record.Messages[0])
	})

	t.Run("go-github error without response", func(t *testing.T) {
		assert.IsType(t, UnknownFailure{}, FailureFromError(&github.ErrorResponse{Message: "x"}))
	})

	t.Run("other", func(t *testing.T) {
		assert.IsType(t, UnknownFailure{}, FailureFromError(errors.New("weird")))
		assert.IsType(t, UnknownFailure{}, FailureFromError(nil))
	})
}
