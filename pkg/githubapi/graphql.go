package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type graphQLPayload struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// GraphQL posts a query document to the host's GraphQL endpoint. Documents
// that do not parse are rejected locally with KindInvalidOperation.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any, opts ...RequestOption) (Response, error) {
	doc, parseErr := parser.ParseQuery(&ast.Source{Name: "query", Input: query})
	if parseErr != nil {
		record := &ErrorRecord{
			Kind:   KindInvalidOperation,
			ID:     IDInvalidQuery,
			Target: c.graphqlURL,
			cause:  errors.Newf("%s", parseErr.Error()),
		}
		record.add("invalid GraphQL document: " + parseErr.Error())
		c.logRecord(record)
		return nil, record
	}

	var operation, kind string
	if len(doc.Operations) > 0 {
		operation = doc.Operations[0].Name
		kind = string(doc.Operations[0].Operation)
	}

	ctx, span := tracer.Start(ctx, "GraphQL", trace.WithAttributes(
		attribute.String("graphql.operation.name", operation),
		attribute.String("graphql.operation.type", kind),
	))
	defer span.End()

	body, err := json.Marshal(graphQLPayload{Query: query, Variables: variables, OperationName: operation})
	if err != nil {
		return nil, errors.Wrap(err, "encoding GraphQL payload")
	}

	settings := applyRequestOptions(opts)
	header := http.Header{}
	for key, values := range settings.header {
		header[key] = append([]string(nil), values...)
	}
	if len(settings.accept) > 0 {
		header.Set("Accept", strings.Join(settings.accept, ", "))
	}

	return c.Execute(ctx, Request{
		Method:  http.MethodPost,
		URL:     c.graphqlURL,
		Body:    body,
		Header:  header,
		Timeout: settings.timeout,
		Event:   settings.event,
	})
}

type apiErrorEnvelope struct {
	Errors json.RawMessage `json:"errors"`
}

// apiError inspects a successful response for an application-level errors
// array. Any non-empty value is an error regardless of its shape; only the
// first entry decides the kind and message.
func apiError(data []byte, header http.Header, target string) *ErrorRecord {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil
	}
	first, ok := firstAPIError(envelope.Errors)
	if !ok {
		return nil
	}

	errType, message := describeAPIError(first)
	record := &ErrorRecord{Target: target}
	switch errType {
	case "":
		record.Kind = KindUnspecified
		record.ID = IDUnspecifiedError
	case IDNotFound:
		record.Kind = KindNotFound
		record.ID = IDNotFound
	default:
		record.Kind = KindInvalidOperation
		record.ID = errType
	}

	record.add(message)
	if len(record.Messages) == 0 {
		record.add("GraphQL request failed")
	}
	record.addCorrelation(header)
	return record
}

// firstAPIError returns the first entry of an errors value. A non-array value
// counts as a single entry.
func firstAPIError(raw json.RawMessage) (json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return raw, true
	}
	if len(entries) == 0 {
		return nil, false
	}
	return entries[0], true
}

// describeAPIError reads type and message from one errors entry. A type that
// is not a string is kept as its JSON text; a bare string entry is the message.
func describeAPIError(entry json.RawMessage) (errType, message string) {
	var text string
	if err := json.Unmarshal(entry, &text); err == nil {
		return "", text
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return "", string(bytes.TrimSpace(entry))
	}
	return jsonText(fields["type"]), jsonText(fields["message"])
}

func jsonText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
