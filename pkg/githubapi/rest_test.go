package githubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTDecodesResponse(t *testing.T) {
	var gotPath, gotAccept, gotAuth string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"name":"octo-space","state":"Available"}`))
	})
	client := newTestClient(server)

	var out struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	err := client.REST(context.Background(), http.MethodGet, "/user/codespaces/octo-space", nil, &out,
		WithAccept("application/vnd.github.v3+json", "application/vnd.github.codespaces-preview"))
	require.NoError(t, err)

	assert.Equal(t, "/api/v3/user/codespaces/octo-space", gotPath)
	assert.Equal(t, "application/vnd.github.v3+json, application/vnd.github.codespaces-preview", gotAccept)
	assert.Equal(t, "token test-token", gotAuth)
	assert.Equal(t, "Available", out.State)
}

func TestRESTSendsBody(t *testing.T) {
	var got map[string]any
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})
	client := newTestClient(server)

	err := client.REST(context.Background(), http.MethodPost, "user/codespaces/x/start", map[string]string{"reason": "test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"reason": "test"}, got)
}

func TestRESTClassifiesErrors(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(RequestIDHeader, "F00D:1")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found","documentation_url":"https://docs.github.com/rest/codespaces"}`))
	})
	client := newTestClient(server)

	err := client.REST(context.Background(), http.MethodGet, "user/codespaces/missing", nil, nil)

	var record *ErrorRecord
	require.True(t, errors.As(err, &record))
	assert.Equal(t, IDHTTPFailure, record.ID)
	assert.Equal(t, http.StatusNotFound, record.StatusCode)
	assert.Equal(t, "Not Found", record.Messages[0])
	assert.Equal(t, "https://docs.github.com/rest/codespaces", record.Messages[1])
	assert.Equal(t, "RequestId: F00D:1", record.Messages[len(record.Messages)-1])
	assert.Equal(t, "F00D:1", record.CorrelationID)
}

func TestRESTInvalidResponse(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	client := newTestClient(server)

	var out map[string]any
	err := client.REST(context.Background(), http.MethodGet, "user", nil, &out)

	var record *ErrorRecord
	require.True(t, errors.As(err, &record))
	assert.Equal(t, IDInvalidResponse, record.ID)
}

func TestRESTConsultsVersionChecker(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	checker := &countingChecker{}
	client := newTestClient(server, WithVersionChecker(checker))

	require.NoError(t, client.REST(context.Background(), http.MethodGet, "user", nil, nil))
	assert.Equal(t, int32(1), checker.calls.Load())
}
