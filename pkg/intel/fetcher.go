package intel

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Feed is one plain-text blocklist source: one domain per line, comments
// starting with #.
type Feed struct {
	Name string
	URL  string
}

// Fetcher pulls the configured feeds and upserts their indicators into
// the store. One feed's failure never blocks the others.
type Fetcher struct {
	feeds      []Feed
	store      Store
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewFetcher creates a feed fetcher.
func NewFetcher(feeds []Feed, store Store, timeout time.Duration, logger zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		feeds:      feeds,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "intel").Logger(),
	}
}

// FetchAll pulls every enabled feed once.
func (f *Fetcher) FetchAll(ctx context.Context) {
	for _, feed := range f.feeds {
		iocs, err := f.fetch(ctx, feed)
		if err != nil {
			f.logger.Error().Err(err).Str("feed", feed.Name).Msg("Feed fetch failed")
			continue
		}
		if err := f.store.Upsert(ctx, iocs); err != nil {
			f.logger.Error().Err(err).Str("feed", feed.Name).Msg("Failed to store indicators")
			continue
		}
		f.logger.Info().Str("feed", feed.Name).Int("indicators", len(iocs)).Msg("Feed ingested")
	}
}

func (f *Fetcher) fetch(ctx context.Context, feed Feed) ([]IOC, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feed.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feed.Name, resp.StatusCode)
	}

	now := time.Now().UTC()
	var iocs []IOC
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Hosts-file style feeds prefix entries with an address.
		if fields := strings.Fields(line); len(fields) == 2 && (fields[0] == "0.0.0.0" || fields[0] == "127.0.0.1") {
			line = fields[1]
		}
		if !strings.Contains(line, ".") {
			continue
		}
		iocs = append(iocs, IOC{
			Value:      strings.ToLower(line),
			Source:     feed.Name,
			Confidence: 0.8,
			FetchedAt:  now,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feed %s: %w", feed.Name, err)
	}
	return iocs, nil
}
