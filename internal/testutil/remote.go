package testutil

import (
	"context"
	gosync "sync"
	"time"

	"versemate-sync/internal/sync"
)

// FakeManifestClient serves a fixed manifest snapshot and counts fetches.
type FakeManifestClient struct {
	mu       gosync.Mutex
	Manifest *sync.Manifest
	Err      error
	Fetches  int
}

func (c *FakeManifestClient) FetchManifest(_ context.Context) (*sync.Manifest, error) {
	c.mu.Lock()
	c.Fetches++
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Manifest, nil
}

// FetchCount returns how many manifest fetches were issued.
func (c *FakeManifestClient) FetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Fetches
}

// FakePackageClient serves canned packages by record key and counts
// fetches. Delay, when set, makes fetches slow enough for concurrency
// tests to overlap. Errs, when set for a key, fails that fetch.
type FakePackageClient struct {
	mu       gosync.Mutex
	Packages map[string]*sync.Package
	Errs     map[string]error
	Delay    time.Duration
	Fetches  int
}

func NewFakePackageClient() *FakePackageClient {
	return &FakePackageClient{
		Packages: map[string]*sync.Package{},
		Errs:     map[string]error{},
	}
}

// Add registers a package, served under its record key.
func (c *FakePackageClient) Add(pkg *sync.Package) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Packages[sync.RecordKey(pkg.ContentType, pkg.Key)] = pkg
}

// Fail makes fetches of one unit return err.
func (c *FakePackageClient) Fail(t sync.ContentType, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errs[sync.RecordKey(t, key)] = err
}

func (c *FakePackageClient) FetchPackage(_ context.Context, t sync.ContentType, key string) (*sync.Package, error) {
	rk := sync.RecordKey(t, key)

	c.mu.Lock()
	c.Fetches++
	delay := c.Delay
	err := c.Errs[rk]
	pkg := c.Packages[rk]
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, sync.ErrManifestStale
	}
	return pkg, nil
}

// FetchCount returns how many package fetches were issued.
func (c *FakePackageClient) FetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Fetches
}

// Compile-time interface checks.
var (
	_ sync.ManifestClient = (*FakeManifestClient)(nil)
	_ sync.PackageClient  = (*FakePackageClient)(nil)
)
