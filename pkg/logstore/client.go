// Package logstore provides a client for the Loki-style log backend that
// holds raw NSM telemetry and receives detection output for audit and
// visualization.
package logstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	queryRangePath = "/loki/api/v1/query_range"
	pushPath       = "/loki/api/v1/push"

	defaultQueryLimit = 5000
)

// Client talks to the log backend over its HTTP API. It is safe for
// concurrent use by multiple pipeline tasks.
type Client struct {
	baseURL    string
	httpClient *http.Client
	queryLimit int
	maxRetries uint64
	logger     zerolog.Logger
}

// NewClient creates a log store client. queryLimit <= 0 selects the default.
func NewClient(baseURL string, timeout time.Duration, queryLimit int, logger zerolog.Logger) *Client {
	if queryLimit <= 0 {
		queryLimit = defaultQueryLimit
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		queryLimit: queryLimit,
		maxRetries: 2,
		logger:     logger.With().Str("component", "logstore").Logger(),
	}
}

// Selector renders a set of key=value label constraints as a stream selector,
// with keys in sorted order so the same constraints always produce the same
// query string.
func Selector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type queryRangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// QueryRange executes a range query and returns the matching records in
// ascending timestamp order. An empty result is not an error.
func (c *Client) QueryRange(ctx context.Context, selector string, start, end time.Time) ([]RawRecord, error) {
	params := url.Values{}
	params.Set("query", selector)
	params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(c.queryLimit))

	reqURL := c.baseURL + queryRangePath + "?" + params.Encode()

	var body []byte
	op := func() error {
		var err error
		body, err = c.get(ctx, reqURL)
		return err
	}
	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return nil, fmt.Errorf("query range %s: %w", selector, err)
	}

	var resp queryRangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("query returned status %q", resp.Status)
	}

	var records []RawRecord
	for _, stream := range resp.Data.Result {
		for _, value := range stream.Values {
			ts, err := strconv.ParseInt(value[0], 10, 64)
			if err != nil {
				c.logger.Warn().Str("ts", value[0]).Msg("Skipping entry with bad timestamp")
				continue
			}
			records = append(records, RawRecord{
				Timestamp: time.Unix(0, ts),
				Labels:    stream.Stream,
				Line:      value[1],
			})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })

	c.logger.Debug().Str("selector", selector).Int("records", len(records)).Msg("Range query complete")
	return records, nil
}

type pushRequest struct {
	Streams []pushStream `json:"streams"`
}

type pushStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Push writes a batch of log lines under one label set.
func (c *Client) Push(ctx context.Context, labels map[string]string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	values := make([][2]string, 0, len(lines))
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	for _, line := range lines {
		values = append(values, [2]string{now, line})
	}

	payload, err := json.Marshal(pushRequest{
		Streams: []pushStream{{Stream: labels, Values: values}},
	})
	if err != nil {
		return fmt.Errorf("encoding push request: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushPath, strings.NewReader(string(payload)))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("push returned status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("push returned status %d", resp.StatusCode))
		}
		return nil
	}
	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return fmt.Errorf("pushing %d lines: %w", len(lines), err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)
}
