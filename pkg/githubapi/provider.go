package githubapi

import (
	"context"
)

// GitHubProvider is the part of *Client that resource packages depend on.
type GitHubProvider interface {
	GraphQL(ctx context.Context, query string, variables map[string]any, opts ...RequestOption) (Response, error)
	REST(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error
}

var _ GitHubProvider = (*Client)(nil)
