package update

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/codec"
	"github.com/otaflow/ota-agent/internal/download"
	"github.com/otaflow/ota-agent/internal/flash"
	"github.com/otaflow/ota-agent/internal/manifest"
	"github.com/otaflow/ota-agent/internal/telemetry"
	"github.com/otaflow/ota-agent/internal/verify"
	"github.com/otaflow/ota-agent/internal/version"
)

// Config holds the static settings of the update pipeline.
type Config struct {
	ManifestURL    string
	FirmwareURL    string
	CurrentVersion string
	StagingDir     string
	UserAgent      string
}

// ClientFactory returns a new HTTP client for each stage that talks to the network.
type ClientFactory interface {
	NewClient() *http.Client
}

// Precondition decides whether a cycle may start.
type Precondition interface {
	Check(ctx context.Context) error
}

// OutcomeSink receives the record of every completed cycle.
type OutcomeSink interface {
	PublishOutcome(ctx context.Context, record api.OutcomeRecord) error
}

// Restarter activates an applied image.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	Clients      ClientFactory
	Precondition Precondition
	PublicKey    verify.PublicKey
	Downloader   *download.Downloader
	Flasher      flash.Flasher

	// Optional.
	Restarter Restarter
	Recorder  *telemetry.Recorder
	Outcomes  []OutcomeSink
}

// Orchestrator runs update cycles.
type Orchestrator struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

// New returns an Orchestrator.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if deps.Clients == nil || deps.Precondition == nil || deps.Flasher == nil {
		return nil, errors.New("update orchestrator needs a client factory, a precondition check and a flasher")
	}

	if len(deps.PublicKey) != verify.PublicKeySize {
		return nil, fmt.Errorf("invalid firmware signing key size %d", len(deps.PublicKey))
	}

	if deps.Downloader == nil {
		deps.Downloader = &download.Downloader{}
	}

	if deps.Recorder == nil {
		deps.Recorder = telemetry.NewRecorder()
	}

	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}, nil
}

// CurrentVersion returns the version of the running firmware.
func (o *Orchestrator) CurrentVersion() string {
	return o.cfg.CurrentVersion
}

// Run performs one update cycle and returns its outcome.
//
// Run must not be called concurrently; callers serialize cycles.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	cycleID := uuid.NewString()
	ctx = telemetry.WithCycleID(ctx, cycleID)

	slog.InfoContext(ctx, "Checking for updates", slog.String("cycle", cycleID), slog.String("current_version", o.cfg.CurrentVersion))

	out := o.run(ctx)

	o.report(ctx, cycleID, out)

	// Activate the new image.
	if out.Kind == api.OutcomeApplied && o.deps.Restarter != nil {
		err := o.deps.Restarter.Restart(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to restart after update", slog.Any("error", err))
		}
	}

	return out
}

func (o *Orchestrator) run(ctx context.Context) Outcome {
	rec := o.deps.Recorder

	// Refuse to start without network or a trustworthy clock.
	err := o.deps.Precondition.Check(ctx)
	if err != nil {
		return failed(api.ReasonPreconditionNotMet, fmt.Errorf("%w: %w", ErrPreconditionNotMet, err), "")
	}

	// Fetch the manifest.
	mark := rec.Start()

	body, err := o.fetchManifest(ctx)
	if err != nil {
		return failed(api.ReasonManifestFetchError, fmt.Errorf("%w: %w", ErrManifestFetch, err), "")
	}

	rec.End(ctx, mark, telemetry.StageDownloadManifest)

	// Parse the manifest.
	mark = rec.Start()

	m, err := manifest.Parse(body)
	if err != nil {
		return failed(api.ReasonManifestInvalid, fmt.Errorf("%w: %w", ErrManifestInvalid, err), "")
	}

	rec.End(ctx, mark, telemetry.StageParseManifest)

	slog.InfoContext(ctx, "Manifest retrieved", slog.String("version", m.Version), slog.String("hash", m.Hash))

	// Only a strictly newer version gets downloaded.
	switch version.Compare(o.cfg.CurrentVersion, m.Version) {
	case version.Newer:
	case version.Undefined:
		slog.WarnContext(ctx, "Unable to compare versions, skipping update", slog.String("current_version", o.cfg.CurrentVersion), slog.String("version", m.Version))

		return noUpdate(api.ReasonVersionUndefined, ErrVersionUndefined, m.Version)
	default:
		return noUpdate(api.ReasonNone, nil, m.Version)
	}

	// Stage the payload. It never outlives the cycle.
	sink, err := download.NewFileSink(o.cfg.StagingDir)
	if err != nil {
		return failed(api.ReasonDownloadError, fmt.Errorf("%w: %w", ErrDownload, err), m.Version)
	}

	defer func() {
		err := sink.Discard()
		if err != nil {
			slog.WarnContext(ctx, "Failed to remove staged firmware", slog.String("path", sink.Path()), slog.Any("error", err))
		}
	}()

	// Download and hash the firmware.
	mark = rec.Start()

	res, err := o.downloadFirmware(ctx, sink)
	if err != nil {
		return failed(api.ReasonDownloadError, fmt.Errorf("%w: %w", ErrDownload, err), m.Version)
	}

	rec.End(ctx, mark, telemetry.StageStreamFirmware)

	// Check the digest against the manifest.
	mark = rec.Start()

	err = checkHash(m.Hash, res.Digest)
	if err != nil {
		return failed(api.ReasonHashMismatch, fmt.Errorf("%w: %w", ErrHashMismatch, err), m.Version)
	}

	rec.End(ctx, mark, telemetry.StageVerifyHash)

	// Check the signature over the digest.
	mark = rec.Start()

	err = checkSignature(m.Signature, res.Digest, o.deps.PublicKey)
	if err != nil {
		return failed(api.ReasonSignatureInvalid, fmt.Errorf("%w: %w", ErrSignatureInvalid, err), m.Version)
	}

	rec.End(ctx, mark, telemetry.StageVerifySignature)

	// Hand the verified image over.
	mark = rec.Start()

	result, err := o.deps.Flasher.Apply(ctx, flash.Payload{
		Path:    sink.Path(),
		Version: m.Version,
		Digest:  res.Digest.String(),
		Size:    res.Size,
	})
	if err != nil {
		return failed(api.ReasonFlashError, fmt.Errorf("%w: %w", ErrFlash, err), m.Version)
	}

	if result == flash.NoUpdate {
		return noUpdate(api.ReasonNone, nil, m.Version)
	}

	rec.End(ctx, mark, telemetry.StageFinalize)

	return Outcome{Kind: api.OutcomeApplied, CandidateVersion: m.Version}
}

func (o *Orchestrator) fetchManifest(ctx context.Context) ([]byte, error) {
	client := o.deps.Clients.NewClient()
	defer client.CloseIdleConnections()

	return manifest.NewFetcher(client, o.cfg.UserAgent).FetchRaw(ctx, o.cfg.ManifestURL)
}

func (o *Orchestrator) downloadFirmware(ctx context.Context, sink *download.FileSink) (download.Result, error) {
	client := o.deps.Clients.NewClient()
	defer client.CloseIdleConnections()

	res, err := o.deps.Downloader.Download(ctx, client, o.cfg.FirmwareURL, sink)
	if err != nil {
		return download.Result{}, err
	}

	err = sink.Close()
	if err != nil {
		return download.Result{}, err
	}

	return res, nil
}

func checkHash(expectedHex string, digest download.Digest) error {
	expected, err := codec.DecodeHexExact(expectedHex, sha256.Size)
	if err != nil {
		return fmt.Errorf("unusable manifest hash: %w", err)
	}

	if subtle.ConstantTimeCompare(expected, digest[:]) != 1 {
		return fmt.Errorf("expected %s, got %s", codec.EncodeHex(expected), digest)
	}

	return nil
}

func checkSignature(signatureHex string, digest download.Digest, key verify.PublicKey) error {
	signature, err := codec.DecodeHexExact(signatureHex, verify.SignatureSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureDecode, err)
	}

	if !verify.Verify(digest[:], signature, key) {
		return errors.New("ed25519 verification failed")
	}

	return nil
}

func (o *Orchestrator) report(ctx context.Context, cycleID string, out Outcome) {
	record := api.OutcomeRecord{
		CycleID:          cycleID,
		Outcome:          out.Kind,
		Reason:           out.Reason,
		CurrentVersion:   o.cfg.CurrentVersion,
		CandidateVersion: out.CandidateVersion,
		Timestamp:        o.now(),
	}

	if out.Err != nil {
		record.Detail = out.Err.Error()
	}

	switch out.Kind {
	case api.OutcomeFailed:
		slog.ErrorContext(ctx, "Update cycle failed", slog.String("cycle", cycleID), slog.String("reason", string(out.Reason)), slog.Any("error", out.Err))
	case api.OutcomeApplied:
		slog.InfoContext(ctx, "Update applied", slog.String("cycle", cycleID), slog.String("version", out.CandidateVersion))
	default:
		slog.InfoContext(ctx, "No update needed", slog.String("cycle", cycleID), slog.String("version", out.CandidateVersion))
	}

	for _, sink := range o.deps.Outcomes {
		err := sink.PublishOutcome(ctx, record)
		if err != nil {
			slog.WarnContext(ctx, "Failed to deliver update outcome", slog.Any("error", err))
		}
	}
}
