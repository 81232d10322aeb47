package githubapi

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// REST calls a REST endpoint relative to the host's API root, e.g.
// "user/codespaces". A non-nil body is JSON-encoded and a non-nil out receives
// the decoded response. Errors are classified like Execute's.
func (c *Client) REST(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	c.checkVersion(ctx)

	path = strings.TrimPrefix(path, "/")
	settings := applyRequestOptions(opts)
	target := c.restURL + path

	ctx, span := tracer.Start(ctx, "REST", trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("github.target", target),
	))
	defer span.End()

	start := c.now()
	err := c.doREST(ctx, method, path, target, body, out, settings)
	c.record(ctx, settings.event, method, target, c.now().Sub(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, firstLine(err.Error()))
	}
	return err
}

func (c *Client) doREST(ctx context.Context, method, path, target string, body, out any, settings requestSettings) error {
	release := c.tls.acquire()
	defer release()

	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(settings.timeout))
	defer cancel()

	req, err := c.rest.NewRequest(method, path, body)
	if err != nil {
		return c.fail(UnknownFailure{Err: errors.Wrap(err, "building request")}, target)
	}
	for key, values := range settings.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if len(settings.accept) > 0 {
		req.Header.Set("Accept", strings.Join(settings.accept, ", "))
	}

	resp, err := c.rest.BareDo(ctx, req)
	if err != nil {
		return c.fail(FailureFromError(err), target)
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		record := &ErrorRecord{Kind: KindUnspecified, ID: IDInvalidResponse, Target: target, StatusCode: resp.StatusCode, cause: err}
		record.add("response from " + target + " could not be decoded: " + err.Error())
		record.addCorrelation(resp.Header)
		c.logRecord(record)
		return record
	}
	return nil
}
