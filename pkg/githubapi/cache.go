package githubapi

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// CachedTransport caches successful REST GET responses on disk as
// zstd-compressed response dumps. Other methods pass through.
type CachedTransport struct {
	Base     http.RoundTripper
	CacheDir string

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewCachedTransport(base http.RoundTripper, cacheDir string) *CachedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	// Both constructors only fail on invalid options.
	encoder, _ := zstd.NewWriter(nil)
	decoder, _ := zstd.NewReader(nil)
	return &CachedTransport{
		Base:     base,
		CacheDir: cacheDir,
		encoder:  encoder,
		decoder:  decoder,
	}
}

func (t *CachedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.Base.RoundTrip(req)
	}

	cachePath := filepath.Join(t.CacheDir, t.getCacheKey(req))

	if cachedResp := t.getFromCache(cachePath, req); cachedResp != nil {
		return cachedResp, nil
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		t.saveToCache(cachePath, resp)
	}

	return resp, nil
}

func (t *CachedTransport) getCacheKey(req *http.Request) string {
	// Authorization is left out of the key on purpose.
	h := sha256.New()
	h.Write([]byte(req.URL.String()))
	h.Write([]byte(req.Header.Get("Accept")))
	return hex.EncodeToString(h.Sum(nil)) + ".zst"
}

func (t *CachedTransport) getFromCache(path string, req *http.Request) *http.Response {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	dump, err := t.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), req)
	if err != nil {
		return nil
	}

	return resp
}

func (t *CachedTransport) saveToCache(path string, resp *http.Response) {
	if err := os.MkdirAll(t.CacheDir, 0o755); err != nil {
		return
	}

	// DumpResponse consumes the body; it is restored from the dump below.
	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return
	}

	_ = os.WriteFile(path, t.encoder.EncodeAll(dump, nil), 0o600)

	restored, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), resp.Request)
	if err == nil {
		resp.Body = restored.Body
	}
}

// ClearCache removes all cached files.
func (t *CachedTransport) ClearCache() error {
	return os.RemoveAll(t.CacheDir)
}

func (t *CachedTransport) IsCached(req *http.Request) bool {
	_, err := os.Stat(filepath.Join(t.CacheDir, t.getCacheKey(req)))
	return err == nil
}
