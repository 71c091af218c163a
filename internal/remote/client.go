// Package remote implements the HTTP clients for the published-content
// API: the manifest endpoint and the per-unit content-package endpoints.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"versemate-sync/internal/sync"
)

// DefaultTimeout bounds every request; a timed-out package fetch surfaces
// as ErrDownloadNetwork.
const DefaultTimeout = 30 * time.Second

// Client fetches the manifest and content packages from the backend.
// Package fetches are paced by a rate limiter so a sync pass over many
// units does not hammer the API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client for the given API base URL. timeout <= 0
// selects DefaultTimeout; requestsPerSecond <= 0 disables pacing.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Manifest payload, as published by GET /offline/manifest.

type manifestPayload struct {
	BibleVersions       []manifestItem `json:"bible_versions"`
	CommentaryLanguages []manifestItem `json:"commentary_languages"`
	TopicLanguages      []manifestItem `json:"topic_languages"`
}

type manifestItem struct {
	Key       string `json:"key"`  // Bible versions
	Code      string `json:"code"` // commentary / topic languages
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
	SizeBytes int64  `json:"size_bytes"`
}

// FetchManifest retrieves the full manifest. There is no pagination; a new
// snapshot replaces the previous one entirely.
func (c *Client) FetchManifest(ctx context.Context) (*sync.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/offline/manifest", nil)
	if err != nil {
		return nil, fmt.Errorf("building manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w: %w", sync.ErrManifestUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching manifest: %w: unexpected status %s", sync.ErrManifestUnavailable, resp.Status)
	}

	var payload manifestPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w: %w", sync.ErrManifestMalformed, err)
	}

	m := &sync.Manifest{FetchedAt: time.Now()}
	m.BibleVersions, err = toEntries(payload.BibleVersions, sync.BibleVersion)
	if err != nil {
		return nil, err
	}
	m.CommentaryLanguages, err = toEntries(payload.CommentaryLanguages, sync.Commentary)
	if err != nil {
		return nil, err
	}
	m.TopicLanguages, err = toEntries(payload.TopicLanguages, sync.Topics)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func toEntries(items []manifestItem, t sync.ContentType) ([]sync.ManifestEntry, error) {
	entries := make([]sync.ManifestEntry, 0, len(items))
	for _, item := range items {
		key := item.Key
		lang := ""
		if t != sync.BibleVersion {
			key = item.Code
			lang = item.Code
		}
		if key == "" || item.UpdatedAt == "" {
			return nil, fmt.Errorf("%w: %s entry missing key or version", sync.ErrManifestMalformed, t)
		}
		entries = append(entries, sync.ManifestEntry{
			Key:          key,
			DisplayName:  item.Name,
			ContentType:  t,
			LanguageCode: lang,
			Version:      item.UpdatedAt,
			SizeEstimate: item.SizeBytes,
		})
	}
	return entries, nil
}

// Content-package payloads.

type versePayload struct {
	BookID        int    `json:"book_id"`
	ChapterNumber int    `json:"chapter_number"`
	VerseNumber   int    `json:"verse_number"`
	Text          string `json:"text"`
}

type explanationPayload struct {
	ExplanationID int    `json:"explanation_id"`
	BookID        int    `json:"book_id"`
	ChapterNumber int    `json:"chapter_number"`
	VerseStart    *int   `json:"verse_start"`
	VerseEnd      *int   `json:"verse_end"`
	Type          string `json:"type"`
	Explanation   string `json:"explanation"`
}

type topicsPayload struct {
	Topics []struct {
		TopicID   string `json:"topic_id"`
		Name      string `json:"name"`
		Content   string `json:"content"`
		Category  string `json:"category"`
		SortOrder *int   `json:"sort_order"`
	} `json:"topics"`
	References []struct {
		TopicID          string `json:"topic_id"`
		ReferenceContent string `json:"reference_content"`
	} `json:"references"`
	Explanations []struct {
		TopicID     string `json:"topic_id"`
		Type        string `json:"type"`
		Explanation string `json:"explanation"`
	} `json:"explanations"`
}

// FetchPackage retrieves one content package and decodes it into the
// normalized rows the store persists. A 404 or 410 means the manifest
// snapshot that named this unit is stale.
func (c *Client) FetchPackage(ctx context.Context, t sync.ContentType, key string) (*sync.Package, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w: %w", sync.ErrDownloadNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.packageURL(t, key), nil)
	if err != nil {
		return nil, fmt.Errorf("building package request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w: %w", sync.RecordKey(t, key), sync.ErrDownloadNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("fetching %s: %w: no longer published", sync.RecordKey(t, key), sync.ErrManifestStale)
	default:
		return nil, fmt.Errorf("fetching %s: %w: unexpected status %s", sync.RecordKey(t, key), sync.ErrDownloadNetwork, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", sync.RecordKey(t, key), sync.ErrDownloadNetwork, err)
	}

	pkg, err := parsePackage(t, key, body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %w", sync.RecordKey(t, key), sync.ErrDownloadParse, err)
	}
	return pkg, nil
}

func (c *Client) packageURL(t sync.ContentType, key string) string {
	var path string
	switch t {
	case sync.BibleVersion:
		path = "/offline/bible/"
	case sync.Commentary:
		path = "/offline/commentaries/"
	default:
		path = "/offline/topics/"
	}
	return c.baseURL + path + url.PathEscape(key)
}

// parsePackage decodes a package body. The measured package size is the
// byte length of the body, which is what the record's size accounting
// stores.
func parsePackage(t sync.ContentType, key string, body []byte) (*sync.Package, error) {
	pkg := &sync.Package{
		ContentType: t,
		Key:         key,
		SizeBytes:   int64(len(body)),
	}
	if t != sync.BibleVersion {
		pkg.LanguageCode = key
	}

	switch t {
	case sync.BibleVersion:
		var verses []versePayload
		if err := json.Unmarshal(body, &verses); err != nil {
			return nil, err
		}
		pkg.Verses = make([]sync.Verse, len(verses))
		for i, v := range verses {
			pkg.Verses[i] = sync.Verse(v)
		}

	case sync.Commentary:
		var entries []explanationPayload
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, err
		}
		pkg.Explanations = make([]sync.Explanation, len(entries))
		for i, e := range entries {
			pkg.Explanations[i] = sync.Explanation(e)
		}

	default:
		var payload topicsPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		pkg.Topics = make([]sync.Topic, len(payload.Topics))
		for i, tp := range payload.Topics {
			pkg.Topics[i] = sync.Topic(tp)
		}
		pkg.TopicReferences = make([]sync.TopicReference, len(payload.References))
		for i, r := range payload.References {
			pkg.TopicReferences[i] = sync.TopicReference(r)
		}
		pkg.TopicExplanations = make([]sync.TopicExplanation, len(payload.Explanations))
		for i, e := range payload.Explanations {
			pkg.TopicExplanations[i] = sync.TopicExplanation(e)
		}
	}

	return pkg, nil
}

// Compile-time checks that Client implements the engine's client interfaces.
var (
	_ sync.ManifestClient = (*Client)(nil)
	_ sync.PackageClient  = (*Client)(nil)
)
