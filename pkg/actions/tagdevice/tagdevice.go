// Package tagdevice attaches tags to device records by writing tag
// entries into the log backend, where the inventory view picks them up.
package tagdevice

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
)

// TagDeviceAction implements the actions.Provider interface for device
// tagging.
type TagDeviceAction struct {
	store  *logstore.Client
	logger zerolog.Logger
}

// New creates the provider over the shared log store client.
func New(store *logstore.Client, logger zerolog.Logger) *TagDeviceAction {
	return &TagDeviceAction{
		store:  store,
		logger: logger.With().Str("action", "tag_device").Logger(),
	}
}

// Type implements actions.Provider.
func (a *TagDeviceAction) Type() string { return "tag_device" }

// SimulateOnly implements actions.Provider.
func (a *TagDeviceAction) SimulateOnly() bool { return a.store == nil }

type tagRecord struct {
	DeviceIP  string    `json:"device_ip"`
	Tag       string    `json:"tag"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Execute tags params["device"] with params["tag"].
func (a *TagDeviceAction) Execute(ctx context.Context, params map[string]string) (string, error) {
	device := params["device"]
	tag := params["tag"]
	if device == "" || tag == "" {
		return "", backoff.Permanent(fmt.Errorf("tag_device requires device and tag parameters"))
	}

	line, err := json.Marshal(tagRecord{
		DeviceIP:  device,
		Tag:       tag,
		Reason:    params["reason"],
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	labels := map[string]string{
		"service": "orion-ai",
		"kind":    "device_tag",
	}
	if err := a.store.Push(ctx, labels, []string{string(line)}); err != nil {
		return "", fmt.Errorf("writing device tag: %w", err)
	}

	a.logger.Info().Str("device", device).Str("tag", tag).Msg("Device tagged")
	return fmt.Sprintf("tagged %s as %s", device, tag), nil
}
