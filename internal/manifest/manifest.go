package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/otaflow/ota-agent/api"
)

// MaxSize is the largest manifest body accepted.
const MaxSize = 16 * 1024

// Fetcher retrieves manifests over a caller-provided HTTP client.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher returns a Fetcher using the provided client and client label.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch retrieves and parses the manifest at manifestURL.
func (f *Fetcher) Fetch(ctx context.Context, manifestURL string) (api.Manifest, error) {
	body, err := f.FetchRaw(ctx, manifestURL)
	if err != nil {
		return api.Manifest{}, err
	}

	return Parse(body)
}

// FetchRaw performs a single GET request for the manifest and returns the raw body.
//
// The request isn't retried, retries are up to whoever triggered the update.
func (f *Fetcher) FetchRaw(ctx context.Context, manifestURL string) ([]byte, error) {
	// Prepare the request.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	// Ask for the body as-is so sizes and hashes match what was published.
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	if len(body) > MaxSize {
		return nil, &FetchError{Err: fmt.Errorf("manifest larger than %d bytes", MaxSize)}
	}

	slog.DebugContext(ctx, "Manifest downloaded", slog.String("url", manifestURL), slog.Int("size", len(body)))

	return body, nil
}

// Parse decodes a flat JSON manifest and checks that all required fields are set.
func Parse(body []byte) (api.Manifest, error) {
	fields := map[string]json.RawMessage{}

	err := json.Unmarshal(body, &fields)
	if err != nil {
		return api.Manifest{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m := api.Manifest{}

	required := []struct {
		name   string
		target *string
	}{
		{"version", &m.Version},
		{"hash", &m.Hash},
		{"signature", &m.Signature},
	}

	for _, field := range required {
		name := field.name
		target := field.target

		raw, ok := fields[name]
		if !ok {
			return api.Manifest{}, fmt.Errorf("%w: missing field %q", ErrInvalid, name)
		}

		err := json.Unmarshal(raw, target)
		if err != nil {
			return api.Manifest{}, fmt.Errorf("%w: field %q isn't a string", ErrInvalid, name)
		}

		if *target == "" {
			return api.Manifest{}, fmt.Errorf("%w: empty field %q", ErrInvalid, name)
		}
	}

	return m, nil
}
