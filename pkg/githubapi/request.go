package githubapi

import (
	"net/http"
	"strings"
	"time"
)

// DefaultHost is the public GitHub host.
const DefaultHost = "github.com"

// Request is a fully assembled call handed to the executor.
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Header  http.Header
	Timeout time.Duration
	// Event names the usage event recorded for this call. Empty disables
	// telemetry for the request.
	Event string
}

type requestSettings struct {
	accept  []string
	header  http.Header
	timeout time.Duration
	event   string
}

// RequestOption customizes a single call.
type RequestOption func(*requestSettings)

// WithAccept sets the Accept header. Several media types are comma-joined,
// which some preview endpoints require.
func WithAccept(mediaTypes ...string) RequestOption {
	return func(s *requestSettings) {
		s.accept = append(s.accept, mediaTypes...)
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(s *requestSettings) {
		if s.header == nil {
			s.header = http.Header{}
		}
		s.header.Add(key, value)
	}
}

// WithTimeout overrides the client timeout for one call.
func WithTimeout(d time.Duration) RequestOption {
	return func(s *requestSettings) {
		s.timeout = d
	}
}

// WithEvent records a named usage event and duration for the call.
func WithEvent(name string) RequestOption {
	return func(s *requestSettings) {
		s.event = name
	}
}

func applyRequestOptions(opts []RequestOption) requestSettings {
	var s requestSettings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// GraphQLEndpoint returns the GraphQL URL for a host.
func GraphQLEndpoint(host string) string {
	host = normalizeHost(host)
	if host == DefaultHost {
		return "https://api.github.com/graphql"
	}
	return "https://" + host + "/api/v3/graphql"
}

// RESTBaseURL returns the REST API root for a host, with a trailing slash.
func RESTBaseURL(host string) string {
	host = normalizeHost(host)
	if host == DefaultHost {
		return "https://api.github.com/"
	}
	return "https://" + host + "/api/v3/"
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	host = strings.TrimPrefix(host, "api.")
	if host == "" || host == "www.github.com" {
		return DefaultHost
	}
	return host
}
