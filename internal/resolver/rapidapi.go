package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"reelbot/internal/domain"

	"github.com/tidwall/gjson"
)

const (
	DefaultHost = "instagram-scraper-api3.p.rapidapi.com"
	DefaultPath = "/reel_download"

	// Bodies are read up to this size; anything longer is truncated and
	// classifies as a decode error.
	maxResponseBytes = 4 << 20

	// mediaURLPath names the expected media URL location for log output.
	mediaURLPath = "0.urls.0.url"
)

// RapidAPI implements domain.MediaResolver against a RapidAPI-hosted
// Instagram media lookup. Each Resolve issues exactly one POST; there are no retries.
type RapidAPI struct {
	host     string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type RapidAPIConfig struct {
	Host string // x-rapidapi-host value and request host
	Path string
	// BaseURL overrides scheme and host of the request URL (tests, proxies).
	// The x-rapidapi-host header still carries Host.
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewRapidAPI(cfg RapidAPIConfig) *RapidAPI {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &RapidAPI{
		host:     cfg.Host,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		client:   cfg.Client,
		logger:   cfg.Logger,
	}
}

func (r *RapidAPI) Name() string { return "rapidapi" }

// Endpoint returns the full request URL.
func (r *RapidAPI) Endpoint() string { return r.endpoint }

type shortcodeRequest struct {
	Shortcode string `json:"shortcode"`
}

// Resolve looks up the direct media URL for reelID.
func (r *RapidAPI) Resolve(ctx context.Context, reelID, apiKey string) (res domain.Resolution) {
	if apiKey == "" {
		return domain.Failed(domain.FailureNotConfigured)
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("rapidapi resolve panicked", "reel_id", reelID, "panic", p)
			res = domain.Failed(domain.FailureUnexpectedError)
		}
	}()

	body, status, err := r.post(ctx, reelID, apiKey)
	if err != nil {
		r.logger.Error("error fetching data from rapidapi", "reel_id", reelID, "err", err)
		return domain.Failed(domain.FailureUnexpectedError)
	}
	if status < 200 || status > 299 {
		r.logger.Warn("rapidapi returned non-2xx status", "reel_id", reelID, "status", status)
	}

	res = classify(body)
	switch res.Failure {
	case domain.FailureNone:
		r.logger.Info("reel resolved", "reel_id", reelID)
	case domain.FailureDecodeError:
		r.logger.Error("error decoding rapidapi response", "reel_id", reelID, "status", status, "body_len", len(body))
	case domain.FailureMissingField:
		r.logger.Error("unexpected rapidapi response shape", "reel_id", reelID, "status", status, "path", mediaURLPath)
	}
	return res
}

func (r *RapidAPI) post(ctx context.Context, reelID, apiKey string) ([]byte, int, error) {
	payload, err := json.Marshal(shortcodeRequest{Shortcode: reelID})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", apiKey)
	req.Header.Set("x-rapidapi-host", r.host)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// classify maps a response body onto a Resolution. The expected shape is
// [{"urls": [{"url": "<media url>"}]}]; every level must have exactly that type.
func classify(body []byte) domain.Resolution {
	if !gjson.ValidBytes(body) {
		return domain.Failed(domain.FailureDecodeError)
	}
	first := element(gjson.ParseBytes(body), 0)
	entry := element(member(first, "urls"), 0)
	v := member(entry, "url")
	if v.Type != gjson.String {
		return domain.Failed(domain.FailureMissingField)
	}
	return domain.Resolved(v.String())
}

// element returns item i of a JSON array. Anything else yields an empty result.
func element(r gjson.Result, i int) gjson.Result {
	if !r.IsArray() {
		return gjson.Result{}
	}
	items := r.Array()
	if i >= len(items) {
		return gjson.Result{}
	}
	return items[i]
}

// member returns key of a JSON object; a repeated key resolves to its last value.
func member(r gjson.Result, key string) gjson.Result {
	var v gjson.Result
	if !r.IsObject() {
		return v
	}
	r.ForEach(func(k, val gjson.Result) bool {
		if k.String() == key {
			v = val
		}
		return true
	})
	return v
}
