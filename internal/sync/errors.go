package sync

import "errors"

// Error taxonomy surfaced by the engine. Callers match with errors.Is; the
// presentation layer decides user-visible messaging. Nothing is retried
// silently inside the engine beyond the single-flight merge.
var (
	// ErrManifestUnavailable: the manifest endpoint could not be reached or
	// answered with a non-success status.
	ErrManifestUnavailable = errors.New("manifest unavailable")

	// ErrManifestMalformed: the manifest payload could not be parsed into
	// the expected shape (missing keys, empty version tokens).
	ErrManifestMalformed = errors.New("manifest malformed")

	// ErrManifestStale: the manifest snapshot passed to an install no longer
	// matches what the backend publishes. The caller should re-fetch the
	// manifest and retry.
	ErrManifestStale = errors.New("manifest stale")

	// ErrDownloadNetwork: a content-package fetch failed or timed out.
	ErrDownloadNetwork = errors.New("download network error")

	// ErrDownloadParse: a content package could not be decoded into
	// normalized rows. Nothing is written to the store.
	ErrDownloadParse = errors.New("download parse error")

	// ErrStorageWrite: a store transaction failed and was rolled back.
	ErrStorageWrite = errors.New("storage write error")
)
