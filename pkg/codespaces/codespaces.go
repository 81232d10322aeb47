// Package codespaces exposes codespace lifecycle operations on top of the
// REST executor.
package codespaces

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v67/github"
	"github.com/rs/zerolog"

	"github.com/stefanpenner/ghclient/pkg/githubapi"
	"github.com/stefanpenner/ghclient/pkg/lifecycle"
)

const mediaType = "application/vnd.github+json"

// Codespace is the REST representation. State reports the lifecycle status
// used by the poller.
type Codespace struct {
	github.Codespace
}

func (c *Codespace) State() string {
	if c == nil {
		return ""
	}
	return c.GetState()
}

type listResponse struct {
	TotalCount int          `json:"total_count"`
	Codespaces []*Codespace `json:"codespaces"`
}

// Options controls start and stop.
type Options struct {
	// Wait polls until the codespace leaves its transitional states.
	Wait bool
}

type Service struct {
	api    githubapi.GitHubProvider
	poller *lifecycle.Poller
	logger zerolog.Logger
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPoller(poller *lifecycle.Poller) Option {
	return func(s *Service) {
		s.poller = poller
	}
}

func NewService(api githubapi.GitHubProvider, opts ...Option) *Service {
	s := &Service{api: api, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.poller == nil {
		s.poller = lifecycle.NewPoller(lifecycle.Config{}, lifecycle.WithLogger(s.logger))
	}
	return s
}

func (s *Service) Get(ctx context.Context, name string) (*Codespace, error) {
	var cs Codespace
	err := s.api.REST(ctx, http.MethodGet, codespacePath(name), nil, &cs,
		githubapi.WithAccept(mediaType), githubapi.WithEvent("codespace.get"))
	if err != nil {
		return nil, errors.Wrapf(err, "getting codespace %s", name)
	}
	return &cs, nil
}

// List returns every codespace of the authenticated user.
func (s *Service) List(ctx context.Context) ([]*Codespace, error) {
	const perPage = 100

	var all []*Codespace
	for page := 1; ; page++ {
		var resp listResponse
		path := fmt.Sprintf("user/codespaces?per_page=%d&page=%d", perPage, page)
		if err := s.api.REST(ctx, http.MethodGet, path, nil, &resp,
			githubapi.WithAccept(mediaType), githubapi.WithEvent("codespace.list")); err != nil {
			return nil, errors.Wrap(err, "listing codespaces")
		}
		all = append(all, resp.Codespaces...)
		if len(resp.Codespaces) < perPage || len(all) >= resp.TotalCount {
			return all, nil
		}
	}
}

func (s *Service) Start(ctx context.Context, name string, opts Options) (*Codespace, error) {
	return s.transition(ctx, name, "start", opts)
}

func (s *Service) Stop(ctx context.Context, name string, opts Options) (*Codespace, error) {
	return s.transition(ctx, name, "stop", opts)
}

func (s *Service) transition(ctx context.Context, name, action string, opts Options) (*Codespace, error) {
	var cs Codespace
	err := s.api.REST(ctx, http.MethodPost, codespacePath(name)+"/"+action, nil, &cs,
		githubapi.WithAccept(mediaType), githubapi.WithEvent("codespace."+action))
	if err != nil {
		return nil, errors.Wrapf(err, "%s codespace %s", action, name)
	}
	s.logger.Info().Str("codespace", name).Str("state", cs.State()).Msgf("%s requested", action)

	if !opts.Wait {
		return &cs, nil
	}
	return lifecycle.WaitUntilStable(ctx, s.poller, name, s.Get)
}

func codespacePath(name string) string {
	return "user/codespaces/" + url.PathEscape(name)
}
