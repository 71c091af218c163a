package sync

import "context"

// ManifestClient retrieves the remote manifest describing every installable
// content unit. Failures map to ErrManifestUnavailable (network / non-2xx)
// or ErrManifestMalformed (payload shape).
type ManifestClient interface {
	FetchManifest(ctx context.Context) (*Manifest, error)
}

// PackageClient retrieves and decodes one content package. Failures map to
// ErrDownloadNetwork (transport, timeout, unexpected status),
// ErrManifestStale (the backend no longer publishes the unit), or
// ErrDownloadParse (payload shape).
type PackageClient interface {
	FetchPackage(ctx context.Context, t ContentType, key string) (*Package, error)
}
