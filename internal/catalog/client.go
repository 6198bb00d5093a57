// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package catalog is the typed client for the remote manga catalog (MangaDex).

It wraps the catalog's HTTP+JSON surface behind Go types and funnels every
outbound call through a sliding-window [RateLimiter] so the service as a whole
honors the published request caps, no matter how many goroutines ask.

Failure philosophy: the catalog is an availability-best-effort upstream.
Non-2xx responses and transport hiccups degrade to nil results with a WARN
log; only context cancellation surfaces as an error, because it means the
caller itself is going away.
*/
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/08shiro80/komga-enhanced-sub000/internal/metadata"
	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
	"github.com/08shiro80/komga-enhanced-sub000/pkg/query"
)

const (
	defaultBaseURL    = "https://api.mangadex.org"
	defaultUploadsURL = "https://uploads.mangadex.org"

	titleBaseURL   = "https://mangadex.org/title/"
	chapterBaseURL = "https://mangadex.org/chapter/"
)

// CoverQuality selects which rendition of a cover image to download.
type CoverQuality string

const (
	CoverOriginal  CoverQuality = "ORIGINAL"
	CoverMedium    CoverQuality = "MEDIUM"
	CoverThumbnail CoverQuality = "THUMBNAIL"
)

// suffix returns the upstream filename suffix for the quality.
func (q CoverQuality) suffix() string {
	switch q {
	case CoverMedium:
		return ".512.jpg"
	case CoverThumbnail:
		return ".256.jpg"
	default:
		return ""
	}
}

// ClientOptions tunes a [Client]. Zero values select production defaults.
type ClientOptions struct {
	// BaseURL overrides the API endpoint. Tests point this at a local server.
	BaseURL string

	// UploadsURL overrides the cover-image host.
	UploadsURL string

	// PreferredLanguage drives title and description selection ("en" default).
	PreferredLanguage string

	// HTTPClient overrides the transport. The default applies
	// [constants.CatalogHTTPTimeout].
	HTTPClient *http.Client
}

// Client is the typed catalog client. All methods are safe for concurrent
// use; rate limiting is shared across callers by construction.
type Client struct {
	baseURL           string
	uploadsURL        string
	preferredLanguage string
	httpClient        *http.Client
	limiter           *RateLimiter
	logger            *slog.Logger
}

// NewClient builds a catalog client around a shared rate limiter.
func NewClient(limiter *RateLimiter, logger *slog.Logger, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.UploadsURL == "" {
		opts.UploadsURL = defaultUploadsURL
	}
	if opts.PreferredLanguage == "" {
		opts.PreferredLanguage = "en"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: constants.CatalogHTTPTimeout}
	}

	return &Client{
		baseURL:           opts.BaseURL,
		uploadsURL:        opts.UploadsURL,
		preferredLanguage: opts.PreferredLanguage,
		httpClient:        opts.HTTPClient,
		limiter:           limiter,
		logger:            logger.With(slog.String("component", "catalog")),
	}
}

// PreferredLanguage exposes the configured language for callers that build
// chapter filters.
func (c *Client) PreferredLanguage() string {
	return c.preferredLanguage
}

// Stats reports the limiter's window occupancy, for diagnostics endpoints.
func (c *Client) Stats() RateStats {
	return c.limiter.Stats()
}

// # Operations

// GetManga fetches one manga with author, artist and cover art resolved.
// It returns (nil, nil) when the catalog declines or the id is unknown.
func (c *Client) GetManga(ctx context.Context, mangaID string) (*metadata.MangaMetadata, error) {
	params := url.Values{}
	params.Add("includes[]", "cover_art")
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")

	var response mangaResponse
	ok, err := c.get(ctx, "/manga/"+mangaID, params, &response)
	if err != nil || !ok {
		return nil, err
	}

	manga := toMangaMetadata(response.Data, c.preferredLanguage)
	return &manga, nil
}

// GetChapterFeed fetches one page of a manga's chapter feed, ordered
// ascending by chapter number. lang may be a single code or a
// comma-separated list; empty means no language filter.
func (c *Client) GetChapterFeed(ctx context.Context, mangaID, lang string, limit, offset int) ([]metadata.ChapterDescriptor, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("order[chapter]", "asc")
	params.Add("includes[]", "scanlation_group")
	for _, code := range query.Langs(lang) {
		params.Add("translatedLanguage[]", code)
	}

	var response chapterListResponse
	ok, err := c.get(ctx, fmt.Sprintf("/manga/%s/feed", mangaID), params, &response)
	if err != nil || !ok {
		return nil, err
	}

	chapters := make([]metadata.ChapterDescriptor, 0, len(response.Data))
	for _, data := range response.Data {
		chapters = append(chapters, toChapterDescriptor(data))
	}

	return chapters, nil
}

// GetAllChapters walks the whole feed in pages of
// [constants.CatalogPageSize] until a short page signals the end. The
// catalog's per-request cap makes single-shot fetches silently lossy, hence
// the explicit pagination.
func (c *Client) GetAllChapters(ctx context.Context, mangaID, lang string) ([]metadata.ChapterDescriptor, error) {
	var all []metadata.ChapterDescriptor

	for offset := 0; ; offset += constants.CatalogPageSize {
		page, err := c.GetChapterFeed(ctx, mangaID, lang, constants.CatalogPageSize, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < constants.CatalogPageSize {
			return all, nil
		}
	}
}

// GetAggregate counts the manga's translated chapters by summing the
// chapter maps of every volume in the aggregate endpoint response. It
// returns (0, nil) when the catalog declines.
func (c *Client) GetAggregate(ctx context.Context, mangaID, lang string) (int, error) {
	params := url.Values{}
	for _, code := range query.Langs(lang) {
		params.Add("translatedLanguage[]", code)
	}

	var response aggregateResponse
	ok, err := c.get(ctx, fmt.Sprintf("/manga/%s/aggregate", mangaID), params, &response)
	if err != nil || !ok {
		return 0, err
	}

	total := 0
	for _, volume := range response.Volumes {
		total += len(volume.Chapters)
	}

	return total, nil
}

// GetChapter fetches a single chapter by id, or (nil, nil) when unknown.
func (c *Client) GetChapter(ctx context.Context, chapterID string) (*metadata.ChapterDescriptor, error) {
	params := url.Values{}
	params.Add("includes[]", "scanlation_group")

	var response chapterResponse
	ok, err := c.get(ctx, "/chapter/"+chapterID, params, &response)
	if err != nil || !ok {
		return nil, err
	}

	descriptor := toChapterDescriptor(response.Data)
	return &descriptor, nil
}

// SearchManga runs a free-text title search.
func (c *Client) SearchManga(ctx context.Context, search string, limit int) ([]metadata.MangaMetadata, error) {
	params := url.Values{}
	params.Set("title", search)
	params.Set("limit", strconv.Itoa(limit))
	params.Add("includes[]", "cover_art")
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")

	var response mangaListResponse
	ok, err := c.get(ctx, "/manga", params, &response)
	if err != nil || !ok {
		return nil, err
	}

	results := make([]metadata.MangaMetadata, 0, len(response.Data))
	for _, data := range response.Data {
		results = append(results, toMangaMetadata(data, c.preferredLanguage))
	}

	return results, nil
}

// DownloadCover fetches a cover image at the requested quality. It returns
// (nil, nil) on upstream failure; the caller treats covers as optional.
func (c *Client) DownloadCover(ctx context.Context, mangaID, coverFilename string, quality CoverQuality) ([]byte, error) {
	if err := c.limiter.WaitIfNeeded(ctx); err != nil {
		return nil, err
	}

	coverURL := fmt.Sprintf("%s/covers/%s/%s%s", c.uploadsURL, mangaID, coverFilename, quality.suffix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("catalog_cover_request_failed",
			slog.String("manga_id", mangaID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("catalog_cover_rejected",
			slog.String("manga_id", mangaID),
			slog.Int("status", resp.StatusCode),
		)
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("catalog_cover_read_failed",
			slog.String("manga_id", mangaID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	return data, nil
}

// # Transport

// get performs one rate-limited GET and decodes the JSON body into out.
//
// The bool result reports whether out was populated. A false result with a
// nil error is the "upstream declined" case, already logged at WARN.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) (bool, error) {
	if err := c.limiter.WaitIfNeeded(ctx); err != nil {
		return false, err
	}

	requestURL := c.baseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("catalog_request_failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("catalog_request_rejected",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
		)
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("catalog_response_malformed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return false, nil
	}

	return true, nil
}

// userAgent identifies this service to the catalog, which rejects anonymous
// default agents.
func userAgent() string {
	return constants.AppName + "/" + constants.AppVersion
}
