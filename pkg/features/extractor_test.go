package features

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
)

func rec(line string) logstore.RawRecord {
	return logstore.RawRecord{Line: line}
}

func TestDevices(t *testing.T) {
	flows := []logstore.RawRecord{
		rec(`{"src_ip": "10.0.0.1", "dest_ip": "1.1.1.1"}`),
		rec(`{"src_ip": "10.0.0.2", "dest_ip": "1.1.1.1"}`),
		rec(`{"src_ip": "10.0.0.1", "dest_ip": "8.8.8.8"}`),
		rec(`not json`),
		rec(`{"dest_ip": "1.1.1.1"}`),
	}

	devices := Devices(flows)
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, devices)
}

func TestDomainCounts(t *testing.T) {
	dns := []logstore.RawRecord{
		rec(`{"dns": {"type": "query", "rrname": "Example.COM"}}`),
		rec(`{"dns": {"type": "query", "rrname": "example.com"}}`),
		rec(`{"dns": {"type": "query", "rrname": "evil.tk"}}`),
		rec(`{"dns": {"type": "answer", "rrname": "ignored.com"}}`),
		rec(`{"dns": {"type": "query"}}`),
		rec(`not json`),
	}

	counts := DomainCounts(dns)
	assert.Equal(t, map[string]int{
		"example.com": 2,
		"evil.tk":     1,
	}, counts)
}

func TestFilterBySubject(t *testing.T) {
	records := []logstore.RawRecord{
		rec(`{"src_ip": "10.0.0.1"}`),
		rec(`{"src_ip": "10.0.0.2"}`),
		rec(`{"src_ip": "10.0.0.1"}`),
	}

	filtered := FilterBySubject(records, "src_ip", "10.0.0.1")
	assert.Len(t, filtered, 2)
	assert.Empty(t, FilterBySubject(records, "src_ip", "10.0.0.9"))
}

func TestDeviceFeaturesAggregation(t *testing.T) {
	e := NewExtractor(zerolog.Nop())
	device := "10.0.0.5"
	windowStart := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(15 * time.Minute)

	flows := []logstore.RawRecord{
		rec(`{"src_ip": "10.0.0.5", "dest_ip": "1.1.1.1", "dest_port": 443, "proto": "TCP",
			"flow": {"bytes_toserver": 100, "bytes_toclient": 200, "age": 10}}`),
		rec(`{"src_ip": "10.0.0.5", "dest_ip": "2.2.2.2", "dest_port": 8080, "proto": "TCP",
			"flow": {"bytes_toserver": 100, "bytes_toclient": 200, "age": 20}}`),
		rec(`{"src_ip": "10.0.0.5", "dest_ip": "8.8.8.8", "dest_port": 53, "proto": "UDP",
			"flow": {"bytes_toserver": 100, "bytes_toclient": 200, "age": 30}}`),
		rec(`{"src_ip": "9.9.9.9", "dest_ip": "10.0.0.5", "dest_port": 22, "proto": "TCP"}`),
	}
	dns := []logstore.RawRecord{
		rec(`{"dns": {"type": "query", "rrname": "example.com"}}`),
		rec(`{"dns": {"type": "query", "rrname": "example.com"}}`),
		rec(`{"dns": {"type": "query", "rrname": "cdn.example.net"}}`),
		rec(`{"dns": {"type": "answer", "rcode": "NXDOMAIN"}}`),
	}
	alerts := []logstore.RawRecord{
		rec(`{"alert": {"signature": "ET SCAN Nmap"}}`),
		rec(`{"alert": {"signature": "ET SCAN Nmap"}}`),
	}

	f := e.DeviceFeatures(device, flows, dns, alerts, windowStart, windowEnd)

	assert.Equal(t, 3, f.ConnectionCountOut)
	assert.Equal(t, 1, f.ConnectionCountIn)
	assert.Equal(t, int64(300), f.BytesSent)
	assert.Equal(t, int64(600), f.BytesReceived)
	assert.Equal(t, 3, f.UniqueDestIPs)
	assert.Equal(t, 3, f.UniqueDestPorts)

	assert.InDelta(t, 2.0/3.0, f.ProtocolTCPRatio, 1e-9)
	assert.InDelta(t, 1.0/3.0, f.ProtocolUDPRatio, 1e-9)
	assert.Zero(t, f.ProtocolICMPRatio)

	// 443 and 53 are common; 8080 is rare (above 1024).
	assert.InDelta(t, 2.0/3.0, f.CommonPortRatio, 1e-9)
	assert.Equal(t, 1, f.RarePortCount)

	assert.InDelta(t, 20.0, f.AvgConnectionDuration, 1e-9)
	assert.InDelta(t, 0.2, f.ConnectionRatePerMinute, 1e-9)
	assert.InDelta(t, 300.0, f.AvgBytesPerConnection, 1e-9)
	assert.InDelta(t, 0.5, f.UploadDownloadRatio, 1e-9)

	// The answer record contributes the NXDOMAIN but is not a query.
	assert.Equal(t, 3, f.DNSQueryCount)
	assert.Equal(t, 2, f.UniqueDomains)
	assert.InDelta(t, 1.0/3.0, f.NXDomainRatio, 1e-9)

	assert.Equal(t, 2, f.AlertCount)
	assert.Equal(t, 1, f.UniqueAlertSignatures)
}

func TestDeviceFeaturesShapeIsInvariant(t *testing.T) {
	e := NewExtractor(zerolog.Nop())
	now := time.Now()

	empty := e.DeviceFeatures("10.0.0.1", nil, nil, nil, now.Add(-time.Hour), now)
	assert.Len(t, empty.Vector().Values, len(DeviceFeatureNames))

	many := make([]logstore.RawRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		many = append(many, rec(`{"src_ip": "10.0.0.1", "dest_ip": "1.1.1.1", "dest_port": 443, "proto": "TCP"}`))
	}
	full := e.DeviceFeatures("10.0.0.1", many, nil, nil, now.Add(-time.Hour), now)
	assert.Len(t, full.Vector().Values, len(DeviceFeatureNames))

	// Name order is part of the model contract.
	assert.Equal(t, DeviceFeatureNames, empty.Vector().Names)
}

func TestDeviceFeaturesSkipsMalformedRecords(t *testing.T) {
	e := NewExtractor(zerolog.Nop())
	now := time.Now()

	flows := []logstore.RawRecord{
		rec(`garbage`),
		rec(`{"src_ip": "10.0.0.1", "dest_ip": "1.1.1.1", "dest_port": 80, "proto": "TCP"}`),
	}
	f := e.DeviceFeatures("10.0.0.1", flows, nil, nil, now.Add(-time.Hour), now)
	assert.Equal(t, 1, f.ConnectionCountOut)
}

func TestDeviceDNSQueryCountIgnoresAnswers(t *testing.T) {
	e := NewExtractor(zerolog.Nop())
	now := time.Now()

	dns := []logstore.RawRecord{
		rec(`{"dns": {"type": "query", "rrname": "example.com"}}`),
		rec(`{"dns": {"type": "answer", "rrname": "example.com", "rcode": "NOERROR"}}`),
		rec(`{"dns": {"type": "answer", "rrname": "example.com", "rcode": "NOERROR"}}`),
	}
	f := e.DeviceFeatures("10.0.0.1", nil, dns, nil, now.Add(-time.Hour), now)

	assert.Equal(t, 1, f.DNSQueryCount)
	assert.Equal(t, 1, f.UniqueDomains)
	assert.Zero(t, f.NXDomainRatio)
}

func TestDeviceAnomalies(t *testing.T) {
	f := &DeviceFeatures{UniqueDestIPs: 60, NXDomainRatio: 0.5, RarePortCount: 25}
	notes := f.Anomalies()
	require.Len(t, notes, 3)
	assert.Contains(t, notes[0], "unique_dest_ips")

	quiet := &DeviceFeatures{UniqueDestIPs: 40}
	assert.Empty(t, quiet.Anomalies())
}

func TestDomainFeatures(t *testing.T) {
	e := NewExtractor(zerolog.Nop())
	f := e.DomainFeatures("ab3f91x.tk", 7)

	assert.Equal(t, "ab3f91x.tk", f.Domain)
	assert.Equal(t, 10, f.DomainLength)
	assert.Equal(t, 0, f.SubdomainCount)
	assert.Equal(t, "tk", f.TLD)
	assert.Equal(t, "suspicious", f.TLDCategory)
	assert.Equal(t, 7, f.QueryCount)
	assert.InDelta(t, 0.3, f.DigitRatio, 1e-9)
	assert.False(t, f.HasIPPattern)

	assert.Contains(t, f.Reasons(), "suspicious TLD")

	vec := f.Vector()
	assert.Len(t, vec.Values, len(DomainFeatureNames))
	assert.Equal(t, "ab3f91x.tk", vec.Subject)
}

func TestDomainFeaturesSubdomains(t *testing.T) {
	e := NewExtractor(zerolog.Nop())

	f := e.DomainFeatures("a.b.example.com", 1)
	assert.Equal(t, 2, f.SubdomainCount)
	assert.Equal(t, "com", f.TLD)
	assert.Equal(t, "common", f.TLDCategory)
	assert.Empty(t, f.Reasons())
}

func TestDomainFeaturesDGAReasons(t *testing.T) {
	e := NewExtractor(zerolog.Nop())

	f := e.DomainFeatures("xkcdqwrtplmn.com", 1)
	assert.Contains(t, f.Reasons(), "DGA-like pattern")
}

func TestDomainFeaturesMap(t *testing.T) {
	e := NewExtractor(zerolog.Nop())
	m := e.DomainFeatures("evil.tk", 3).Map()

	assert.Equal(t, "tk", m["tld"])
	assert.Equal(t, "suspicious", m["tld_category"])
	assert.Equal(t, 3.0, m["query_count"])
}
