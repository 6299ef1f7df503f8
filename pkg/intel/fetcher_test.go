package intel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAll(t *testing.T) {
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "# comment line\nevil.tk\nBAD.example.com\n\nnotadomain\n")
	}))
	defer plain.Close()

	hosts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "0.0.0.0 tracker.xyz\n127.0.0.1 ads.example.net\n")
	}))
	defer hosts.Close()

	store := NewMemoryStore(time.Hour)
	f := NewFetcher([]Feed{
		{Name: "plain", URL: plain.URL},
		{Name: "hosts", URL: hosts.URL},
	}, store, time.Second, zerolog.Nop())

	f.FetchAll(context.Background())

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	for _, domain := range []string{"evil.tk", "bad.example.com", "tracker.xyz", "ads.example.net"} {
		matched, err := store.MatchDomain(context.Background(), domain)
		require.NoError(t, err)
		assert.True(t, matched, "expected %s in store", domain)
	}

	matched, _ := store.MatchDomain(context.Background(), "notadomain")
	assert.False(t, matched, "lines without a dot are not domains")
}

func TestFetchAllFeedIsolation(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "evil.tk\n")
	}))
	defer working.Close()

	store := NewMemoryStore(time.Hour)
	f := NewFetcher([]Feed{
		{Name: "broken", URL: broken.URL},
		{Name: "working", URL: working.URL},
	}, store, time.Second, zerolog.Nop())

	f.FetchAll(context.Background())

	// The broken feed's failure does not block the working one.
	matched, err := store.MatchDomain(context.Background(), "evil.tk")
	require.NoError(t, err)
	assert.True(t, matched)
}
