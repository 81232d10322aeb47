package versioncheck

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/mod/semver"
)

const maxFeedSize = 4 << 20

type packageFeed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Properties struct {
			Version      string `xml:"Version"`
			VersionLower string `xml:"version"`
		} `xml:"properties"`
	} `xml:"entry"`
}

// LatestVersion returns the highest valid version listed in a package index
// feed. Only the first document is read; some index servers append a second
// copy after it. Entries that are not semantic versions are ignored.
func LatestVersion(body []byte) (string, error) {
	var feed packageFeed
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&feed); err != nil {
		return "", errors.Wrap(err, "decoding version feed")
	}

	var latest string
	for _, entry := range feed.Entries {
		version := strings.TrimSpace(entry.Properties.Version)
		if version == "" {
			version = strings.TrimSpace(entry.Properties.VersionLower)
		}
		canonical := canonicalVersion(version)
		if !semver.IsValid(canonical) {
			continue
		}
		if latest == "" || semver.Compare(canonical, canonicalVersion(latest)) > 0 {
			latest = version
		}
	}
	if latest == "" {
		return "", errors.Newf("version feed lists no valid versions (%d entries)", len(feed.Entries))
	}
	return latest, nil
}

// Compare orders two versions like semver.Compare. A leading "v" is optional.
func Compare(running, published string) (int, error) {
	a, b := canonicalVersion(running), canonicalVersion(published)
	if !semver.IsValid(a) {
		return 0, errors.Newf("running version %q is not a semantic version", running)
	}
	if !semver.IsValid(b) {
		return 0, errors.Newf("published version %q is not a semantic version", published)
	}
	return semver.Compare(a, b), nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	return "v" + strings.TrimPrefix(v, "v")
}

// NewHTTPFetcher queries <indexURL>/api/v2/FindPackagesById()?id='<name>'.
// A nil client gets an instrumented default with a 30s timeout.
func NewHTTPFetcher(client *http.Client, indexURL string) FetchFunc {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}
	}
	base := strings.TrimSuffix(indexURL, "/")

	return func(ctx context.Context, moduleName string) ([]byte, error) {
		target := fmt.Sprintf("%s/api/v2/FindPackagesById()?id='%s'", base, url.QueryEscape(moduleName))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building version index request")
		}
		req.Header.Set("Accept", "application/atom+xml, application/xml")

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "querying version index")
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Newf("version index returned %s", resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return nil, errors.Wrap(err, "reading version index response")
		}
		return body, nil
	}
}
