package update

import (
	"errors"
)

// ErrPreconditionNotMet is returned when the network or clock isn't ready.
var ErrPreconditionNotMet = errors.New("update precondition not met")

// ErrManifestFetch is returned when the manifest couldn't be retrieved.
var ErrManifestFetch = errors.New("manifest fetch error")

// ErrManifestInvalid is returned when the manifest can't be parsed.
var ErrManifestInvalid = errors.New("manifest invalid")

// ErrVersionUndefined is set on no-update outcomes caused by an unparseable version.
var ErrVersionUndefined = errors.New("version comparison undefined")

// ErrDownload is returned when the firmware couldn't be downloaded or staged.
var ErrDownload = errors.New("firmware download error")

// ErrHashMismatch is returned when the firmware digest doesn't match the manifest.
var ErrHashMismatch = errors.New("firmware hash mismatch")

// ErrSignatureDecode is returned when the manifest signature isn't valid hex of the right size.
var ErrSignatureDecode = errors.New("signature decode error")

// ErrSignatureInvalid is returned when the firmware signature doesn't verify.
var ErrSignatureInvalid = errors.New("firmware signature invalid")

// ErrFlash is returned when the flashing collaborator fails.
var ErrFlash = errors.New("flash error")
