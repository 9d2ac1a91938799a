// Package scoreboard captures the live scoreboard document and lands it in the
// snapshot store.
package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arencloud/courtside/internal/logging"
	"github.com/arencloud/courtside/internal/retry"
	"github.com/arencloud/courtside/internal/snapshot"

	"github.com/go-resty/resty/v2"
)

// StatusError is a non-2xx answer from the scoreboard endpoint.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scoreboard %s: HTTP %d", e.URL, e.Code)
}

// Retryable reports whether a fetch error is worth another attempt: network
// failures, 429 and 5xx are; other HTTP statuses and bad payloads are not.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return !errors.Is(err, ErrInvalidPayload)
}

var ErrInvalidPayload = errors.New("scoreboard payload is not valid JSON")

type Fetcher struct {
	client *resty.Client
	url    string
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "courtside")
	return &Fetcher{client: c, url: url}
}

// Fetch returns the raw scoreboard document.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	res, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("fetch scoreboard: %w", err)
	}
	if res.IsError() {
		return nil, &StatusError{Code: res.StatusCode(), URL: f.url}
	}
	body := res.Body()
	if !json.Valid(body) {
		return nil, ErrInvalidPayload
	}
	return body, nil
}

type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Capturer fetches one snapshot and saves it under <prefix>/<source>_<ts>.json.
// Fetch and save each run under their own retry policy.
type Capturer struct {
	Source     Source
	Store      snapshot.Store
	Prefix     string
	SourceName string
	Fetch      retry.Policy
	Save       retry.Policy
	Log        logging.Logger
	Now        func() time.Time
}

// Capture returns the key the snapshot was written to.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	if snapshot.NormalizePrefix(c.Prefix) == "" {
		return "", snapshot.ErrEmptyPrefix
	}
	var body []byte
	err := c.Fetch.Do(ctx, c.Log, "fetch scoreboard", func(ctx context.Context) error {
		b, err := c.Source.Fetch(ctx)
		body = b
		return err
	})
	if err != nil {
		c.Log.Error("error fetching scoreboard", "error", err)
		return "", err
	}
	c.Log.Info("fetched live scoreboard", "bytes", len(body))
	c.Log.Debug("scoreboard payload", "payload", string(body))

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	key := snapshot.Key(c.Prefix, c.SourceName, now())
	err = c.Save.Do(ctx, c.Log, "save snapshot", func(ctx context.Context) error {
		return c.Store.Put(ctx, key, body)
	})
	if err != nil {
		c.Log.Error("error saving snapshot", "key", key, "error", err)
		return "", err
	}
	c.Log.Info("snapshot saved", "key", key)
	return key, nil
}
