package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v67/github"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/stefanpenner/ghclient/pkg/telemetry"
)

var tracer = otel.Tracer("githubapi")

const (
	DefaultUserAgent = "ghclient"
	DefaultTimeout   = 60 * time.Second
)

// Context carries what every call needs to reach the host.
type Context struct {
	GitHubToken string
	Host        string
	UserAgent   string
	CacheDir    string
}

func NewContext(token string) Context {
	return Context{GitHubToken: token, Host: DefaultHost, UserAgent: DefaultUserAgent}
}

// VersionChecker is consulted before every call. It must return promptly.
type VersionChecker interface {
	CheckIfDue(ctx context.Context)
}

// Response is a decoded JSON object returned by the API.
type Response map[string]any

type Client struct {
	context    Context
	httpClient *http.Client
	transport  *http.Transport
	rest       *github.Client
	graphqlURL string
	restURL    string
	semaphore  chan struct{}
	limiter    *rateLimiter
	perHour    int
	tls        *tlsGuard
	timeout    time.Duration
	logger     zerolog.Logger
	recorder   telemetry.Recorder
	checker    VersionChecker
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the whole transport stack. The token, when set, is
// still applied on top of the given client's transport. The TLS floor is
// enforced only when the client's Transport is an *http.Transport; a nil
// Transport (the shared http.DefaultTransport) or a wrapping RoundTripper is
// left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseTransport sets the innermost transport of the default stack.
func WithBaseTransport(transport *http.Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

func WithCacheDir(dir string) Option {
	return func(c *Client) {
		c.context.CacheDir = dir
	}
}

func WithMaxConcurrency(max int) Option {
	return func(c *Client) {
		if max < 1 {
			max = 1
		}
		c.semaphore = make(chan struct{}, max)
	}
}

// WithRequestsPerHour paces requests client-side.
func WithRequestsPerHour(n int) Option {
	return func(c *Client) {
		c.perHour = n
	}
}

func WithHost(host string) Option {
	return func(c *Client) {
		c.context.Host = normalizeHost(host)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.context.UserAgent = ua
		}
	}
}

// WithDefaultTimeout sets the per-call timeout used when a request has none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEndpoints overrides the GraphQL endpoint and REST root derived from the
// host. Empty values keep the derived ones.
func WithEndpoints(graphqlURL, restBaseURL string) Option {
	return func(c *Client) {
		c.graphqlURL = graphqlURL
		c.restURL = restBaseURL
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithRecorder(recorder telemetry.Recorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

func WithVersionChecker(checker VersionChecker) Option {
	return func(c *Client) {
		c.checker = checker
	}
}

func NewClient(context Context, opts ...Option) *Client {
	client := &Client{
		context: context,
		limiter: &rateLimiter{},
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}

	client.context.Host = normalizeHost(client.context.Host)
	if client.context.UserAgent == "" {
		client.context.UserAgent = DefaultUserAgent
	}
	if client.semaphore == nil {
		client.semaphore = make(chan struct{}, 10)
	}

	if client.httpClient == nil {
		if client.transport == nil {
			client.transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		client.tls = newTLSGuard(client.transport)

		var base http.RoundTripper = client.transport

		// Rate limiting must sit behind the cache.
		base = &RateLimitedTransport{
			Base:      base,
			Limiter:   client.limiter,
			Semaphore: client.semaphore,
			Pacer:     newPacer(client.perHour),
		}

		if client.context.CacheDir != "" {
			base = NewCachedTransport(base, client.context.CacheDir)
		}

		base = otelhttp.NewTransport(base)
		client.httpClient = &http.Client{Transport: base}
	}

	if client.tls == nil {
		if transport, ok := client.httpClient.Transport.(*http.Transport); ok {
			client.tls = newTLSGuard(transport)
		}
	}

	client.httpClient = authorize(client.httpClient, client.context.GitHubToken)

	if client.graphqlURL == "" {
		client.graphqlURL = GraphQLEndpoint(client.context.Host)
	}
	if client.restURL == "" {
		client.restURL = RESTBaseURL(client.context.Host)
	}
	if !strings.HasSuffix(client.restURL, "/") {
		client.restURL += "/"
	}

	client.rest = github.NewClient(client.httpClient)
	client.rest.UserAgent = client.context.UserAgent
	if baseURL, err := url.Parse(client.restURL); err == nil {
		client.rest.BaseURL = baseURL
	}

	return client
}

// authorize wraps the client's transport so that every request carries
// "Authorization: token <value>".
func authorize(hc *http.Client, token string) *http.Client {
	if token == "" {
		return hc
	}
	wrapped := *hc
	wrapped.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "token"}),
		Base:   hc.Transport,
	}
	return &wrapped
}

// Host returns the normalized host this client talks to.
func (c *Client) Host() string {
	return c.context.Host
}

// Execute sends one request and decodes the JSON object it returns. Transport
// and HTTP failures, unparsable bodies and GraphQL errors in a 200 response are
// all returned as *ErrorRecord.
func (c *Client) Execute(ctx context.Context, req Request) (Response, error) {
	c.checkVersion(ctx)

	ctx, span := tracer.Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("github.target", req.URL),
	))
	defer span.End()

	start := c.now()
	payload, err := c.execute(ctx, req)
	c.record(ctx, req.Event, req.Method, req.URL, c.now().Sub(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, firstLine(err.Error()))
		return nil, err
	}
	return payload, nil
}

func (c *Client) execute(ctx context.Context, req Request) (Response, error) {
	header, data, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := decodeResponse(data)
	if err != nil {
		record := &ErrorRecord{Kind: KindUnspecified, ID: IDInvalidResponse, Target: req.URL, cause: err}
		record.add(fmt.Sprintf("response from %s is not a JSON object: %v", req.URL, err))
		record.addCorrelation(header)
		c.logRecord(record)
		return nil, record
	}

	if record := apiError(data, header, req.URL); record != nil {
		c.logRecord(record)
		return nil, record
	}
	return payload, nil
}

// decodeResponse parses a JSON object body. Numbers are kept as json.Number
// so large integers survive unchanged.
func decodeResponse(data []byte) (Response, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload Response
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("body is null")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the JSON object")
	}
	return payload, nil
}

// send performs the HTTP exchange and returns the headers and body of a 2xx
// response.
func (c *Client) send(ctx context.Context, req Request) (http.Header, []byte, error) {
	release := c.tls.acquire()
	defer release()

	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(req.Timeout))
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, nil, c.fail(UnknownFailure{Err: errors.Wrap(err, "building request")}, req.URL)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.context.UserAgent)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, c.fail(FailureFromError(err), req.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, c.fail(FailureFromError(newResponseError(resp)), req.URL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, c.fail(FailureFromError(err), req.URL)
	}
	return resp.Header, data, nil
}

func (c *Client) timeoutFor(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return c.timeout
}

func (c *Client) checkVersion(ctx context.Context) {
	if c.checker != nil {
		c.checker.CheckIfDue(ctx)
	}
}

func (c *Client) fail(f Failure, target string) *ErrorRecord {
	record := Classify(f, target)
	c.logRecord(record)
	return record
}

func (c *Client) logRecord(record *ErrorRecord) {
	c.logger.Error().
		Str("error_id", record.ID).
		Stringer("kind", record.Kind).
		Str("request_id", record.CorrelationID).
		Int("status", record.StatusCode).
		Str("target", record.Target).
		Msg(firstLine(record.Error()))
}

// record emits the duration metric and usage event for named requests.
// Recorder failures are logged and otherwise ignored.
func (c *Client) record(ctx context.Context, event, method, target string, d time.Duration, err error) {
	if event == "" || c.recorder == nil {
		return
	}

	rec := telemetry.RequestRecord{
		Event:    event,
		Method:   method,
		Target:   target,
		Duration: d,
		Outcome:  telemetry.OutcomeSuccess,
	}
	if err != nil {
		rec.Outcome = telemetry.OutcomeError
		var record *ErrorRecord
		if errors.As(err, &record) {
			rec.ErrorID = record.ID
		}
	}

	if emitErr := emit(ctx, c.recorder, rec); emitErr != nil {
		c.logger.Debug().Err(emitErr).Str("event", event).Msg("usage event not recorded")
	}
}

func emit(ctx context.Context, recorder telemetry.Recorder, rec telemetry.RequestRecord) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("recorder panicked: %v", p)
		}
	}()
	return recorder.RecordRequest(ctx, rec)
}
