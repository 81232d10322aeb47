package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v67/github"
)

// Failure is the transport-independent description of a failed call. It is one
// of NetworkFailure, HTTPFailure or UnknownFailure.
type Failure interface {
	failure()
}

// NetworkFailure is a failure with no response attached: DNS, connection,
// TLS or timeout errors.
type NetworkFailure struct {
	Err error
}

// HTTPFailure is a failure that carries an HTTP response.
type HTTPFailure struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Err        error
}

// UnknownFailure is anything the transport adapter could not recognize.
type UnknownFailure struct {
	Err error
}

func (NetworkFailure) failure() {}
func (HTTPFailure) failure()    {}
func (UnknownFailure) failure() {}

// FailureFromError maps an error raised by an HTTP client into a Failure.
// go-github response errors and this package's *ResponseError carry the
// response; url, net and context errors are network failures.
func FailureFromError(err error) Failure {
	if err == nil {
		return UnknownFailure{}
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return HTTPFailure{
			StatusCode: respErr.StatusCode,
			Status:     respErr.Status,
			Header:     respErr.Header,
			Body:       respErr.Body,
			Err:        err,
		}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return fromGitHubResponse(ghErr.Response, githubErrorBody(ghErr), err)
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fromGitHubResponse(rateErr.Response, messageBody(rateErr.Message), err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fromGitHubResponse(abuseErr.Response, messageBody(abuseErr.Message), err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NetworkFailure{Err: err}
	}

	return UnknownFailure{Err: err}
}

// ResponseError is returned by the raw transport for non-2xx responses.
type ResponseError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

func (e *ResponseError) Error() string {
	return "unexpected response status " + e.Status
}

func newResponseError(resp *http.Response) *ResponseError {
	body, _ := io.ReadAll(resp.Body)
	return &ResponseError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}
}

func fromGitHubResponse(resp *http.Response, fallback []byte, err error) Failure {
	if resp == nil {
		return UnknownFailure{Err: err}
	}
	body := fallback
	// go-github re-populates the body after decoding the error.
	if resp.Body != nil {
		if data, readErr := io.ReadAll(resp.Body); readErr == nil && len(bytes.TrimSpace(data)) > 0 {
			body = data
		}
	}
	return HTTPFailure{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		Err:        err,
	}
}

func githubErrorBody(e *github.ErrorResponse) []byte {
	payload := map[string]any{"message": e.Message}
	if e.DocumentationURL != "" {
		payload["documentation_url"] = e.DocumentationURL
	}
	if len(e.Errors) > 0 {
		payload["errors"] = e.Errors
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return []byte(e.Message)
	}
	return data
}

func messageBody(message string) []byte {
	data, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return []byte(message)
	}
	return data
}
