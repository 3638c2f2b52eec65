package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testHash      = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	testSignature = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		invalid bool
	}{
		{
			name: "Valid",
			body: `{"version":"1.2.0-build-20240101","hash":"` + testHash + `","signature":"` + testSignature + `"}`,
		},
		{
			name: "Extra fields ignored",
			body: `{"version":"1.2.0-build-20240101","hash":"` + testHash + `","signature":"` + testSignature + `","size":1234}`,
		},
		{
			name:    "Missing signature",
			body:    `{"version":"1.2.0-build-20240101","hash":"` + testHash + `"}`,
			invalid: true,
		},
		{
			name:    "Missing version",
			body:    `{"hash":"` + testHash + `","signature":"` + testSignature + `"}`,
			invalid: true,
		},
		{
			name:    "Empty hash",
			body:    `{"version":"1.2.0-build-20240101","hash":"","signature":"` + testSignature + `"}`,
			invalid: true,
		},
		{
			name:    "Null hash",
			body:    `{"version":"1.2.0-build-20240101","hash":null,"signature":"` + testSignature + `"}`,
			invalid: true,
		},
		{
			name:    "Numeric version",
			body:    `{"version":120,"hash":"` + testHash + `","signature":"` + testSignature + `"}`,
			invalid: true,
		},
		{
			name:    "Not an object",
			body:    `["version","hash","signature"]`,
			invalid: true,
		},
		{
			name:    "Truncated",
			body:    `{"version":"1.2.0-build-20240101","hash":"`,
			invalid: true,
		},
		{
			name:    "Empty body",
			body:    ``,
			invalid: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := Parse([]byte(tc.body))
			if tc.invalid {
				require.ErrorIs(t, err, ErrInvalid)
				require.Empty(t, m.Version)

				return
			}

			require.NoError(t, err)
			require.Equal(t, "1.2.0-build-20240101", m.Version)
			require.Equal(t, testHash, m.Hash)
			require.Equal(t, testSignature, m.Signature)
		})
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check the request headers.
		if r.Header.Get("Accept-Encoding") != "identity" || r.Header.Get("User-Agent") != "ota-agent/test" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		_, _ = w.Write([]byte(`{"version":"1.2.0-build-20240101","hash":"` + testHash + `","signature":"` + testSignature + `"}`))
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "ota-agent/test")

	m, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, "1.2.0-build-20240101", m.Version)
}

func TestFetchStatus(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "ota-agent/test")

	_, err := f.FetchRaw(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrFetch)

	var fetchErr *FetchError

	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "503 Service Unavailable", fetchErr.Status)
	require.Contains(t, err.Error(), "503")

	// No internal retries.
	require.Equal(t, int32(1), requests.Load())
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := NewFetcher(http.DefaultClient, "ota-agent/test")

	_, err := f.FetchRaw(context.Background(), url)
	require.ErrorIs(t, err, ErrFetch)
	require.NotErrorIs(t, err, ErrInvalid)

	var fetchErr *FetchError

	require.ErrorAs(t, err, &fetchErr)
	require.Error(t, errors.Unwrap(fetchErr))
}

func TestFetchTooLarge(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat(" ", MaxSize+1)))
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "ota-agent/test")

	_, err := f.FetchRaw(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrFetch)
}
