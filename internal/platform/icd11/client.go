// Package icd11 is a small client for the WHO ICD-11 search API using the
// OAuth2 client-credentials flow.
package icd11

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/metrics"
)

// ErrNotConfigured is returned when client credentials are missing.
var ErrNotConfigured = errors.New("ICD-11 client credentials are not configured")

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	SearchURL    string
	Timeout      time.Duration
}

// Entity is one search hit.
type Entity struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type searchResponse struct {
	DestinationEntities []struct {
		TheCode          string `json:"theCode"`
		Title            string `json:"title"`
		LinearizationURI string `json:"linearizationUri"`
	} `json:"destinationEntities"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

var tagPattern = regexp.MustCompile(`<.*?>`)

// Client searches the ICD-11 MMS linearization.
type Client struct {
	cfg    Config
	http   *resty.Client
	tokens *TokenCache
	logger zerolog.Logger
}

// New builds a client. shared may be nil. Missing credentials are reported on
// first use so the server can start without them.
func New(cfg Config, shared SharedCache, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("User-Agent", "careconnect-clinic")

	c := &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With().Str("component", "icd11").Logger(),
	}
	c.tokens = NewTokenCache(c.fetchToken, shared, c.logger)
	return c
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", 0, ErrNotConfigured
	}

	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      "icdapi_access",
		}).
		SetResult(&out).
		Post(c.cfg.TokenURL)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("token endpoint returned %d", resp.StatusCode())
	}
	if err == nil && out.AccessToken == "" {
		err = errors.New("token endpoint returned no access_token")
	}
	metrics.RecordICD11TokenFetch(err)
	if err != nil {
		return "", 0, fmt.Errorf("fetch ICD-11 token: %w", err)
	}

	c.logger.Debug().Int("expires_in", out.ExpiresIn).Msg("fetched ICD-11 token")
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

// Search queries the API for q. A rejected token is refreshed once.
func (c *Client) Search(ctx context.Context, q string) ([]Entity, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Entity{}, nil
	}

	entities, err := c.search(ctx, q, true)
	metrics.RecordICD11Lookup(err)
	return entities, err
}

func (c *Client) search(ctx context.Context, q string, retryAuth bool) ([]Entity, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeaders(map[string]string{
			"Accept":          "application/json",
			"Accept-Language": "en",
			"API-Version":     "v2",
		}).
		SetQueryParams(map[string]string{
			"q":            q,
			"include":      "precoord",
			"replacements": "true",
		}).
		SetResult(&out).
		Get(c.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("ICD-11 search: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized && retryAuth {
		c.tokens.Invalidate()
		return c.search(ctx, q, false)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ICD-11 search returned %d", resp.StatusCode())
	}
	if out.Error {
		return nil, fmt.Errorf("ICD-11 search error: %s", out.ErrorMessage)
	}

	return parseEntities(out), nil
}

func parseEntities(out searchResponse) []Entity {
	entities := make([]Entity, 0, len(out.DestinationEntities))
	for _, d := range out.DestinationEntities {
		title := strings.TrimSpace(tagPattern.ReplaceAllString(d.Title, ""))
		if d.TheCode == "" || title == "" {
			continue
		}
		entities = append(entities, Entity{Code: d.TheCode, Title: title, URI: d.LinearizationURI})
	}
	return entities
}
