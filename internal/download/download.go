package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/machinebox/progress"
)

// DefaultBufferSize is the default size of each chunk read from the transport.
const DefaultBufferSize = 4 * 1024

// ErrDownload is matched by every error returned by Download.
var ErrDownload = errors.New("firmware download failed")

// Digest is the SHA-256 digest of a complete payload.
type Digest [sha256.Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Result describes a completed download.
type Result struct {
	Digest Digest
	Size   int64
}

// Sink receives the payload as it is downloaded.
type Sink interface {
	io.Writer

	// Discard drops whatever was written so far.
	Discard() error
}

// Downloader streams a payload into a Sink while hashing it.
type Downloader struct {
	// BufferSize is the size of each read. Defaults to DefaultBufferSize.
	BufferSize int

	// ProgressInterval controls how often progress is logged. Zero disables progress logging.
	ProgressInterval time.Duration

	// UserAgent is sent with the request when set.
	UserAgent string
}

// Download retrieves payloadURL into sink and returns the digest of everything written.
//
// If the transport reports a size, exactly that many bytes must be received.
// Otherwise the download ends when the transport reports no more data. On any
// error the sink is discarded.
func (d *Downloader) Download(ctx context.Context, client *http.Client, payloadURL string, sink Sink) (Result, error) {
	res, err := d.download(ctx, client, payloadURL, sink)
	if err != nil {
		discardErr := sink.Discard()
		if discardErr != nil {
			slog.WarnContext(ctx, "Failed to discard partial download", slog.Any("error", discardErr))
		}

		return Result{}, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	return res, nil
}

func (d *Downloader) download(ctx context.Context, client *http.Client, payloadURL string, sink Sink) (Result, error) {
	// Prepare the request.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payloadURL, nil)
	if err != nil {
		return Result{}, errors.New("unable to create http request: " + err.Error())
	}

	req.Header.Set("Accept-Encoding", "identity")

	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	// Get a reader for the payload.
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, errors.New("unable to get http response: " + err.Error())
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.New("unexpected HTTP status: " + resp.Status)
	}

	size := resp.ContentLength

	// Log progress when the total size is known.
	pr := progress.NewReader(resp.Body)

	if size > 0 && d.ProgressInterval > 0 {
		tickerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			for p := range progress.NewTicker(tickerCtx, pr, size, d.ProgressInterval) {
				slog.InfoContext(ctx, "Downloading firmware", slog.Int("percent", int(p.Percent())), slog.Duration("remaining", p.Remaining().Round(time.Second)))
			}
		}()
	}

	var body io.Reader = pr
	if size >= 0 {
		body = io.LimitReader(pr, size)
	}

	bufSize := d.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	// Setup a sha256 hasher.
	h := sha256.New()
	buf := make([]byte, bufSize)
	total := int64(0)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			// Persist the chunk before folding it into the digest.
			_, err := sink.Write(buf[:n])
			if err != nil {
				return Result{}, errors.New("unable to write payload: " + err.Error())
			}

			_, _ = h.Write(buf[:n])
			total += int64(n)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}

			return Result{}, fmt.Errorf("read failed after %d bytes: %w", total, readErr)
		}

		runtime.Gosched()
	}

	if size >= 0 && total != size {
		return Result{}, fmt.Errorf("payload truncated: got %d of %d bytes", total, size)
	}

	res := Result{Size: total}
	copy(res.Digest[:], h.Sum(nil))

	slog.InfoContext(ctx, "Firmware download complete", slog.Int64("size", total))

	return res, nil
}
