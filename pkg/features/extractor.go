package features

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
)

// Ports counted toward common_port_ratio.
var commonPorts = map[int]bool{
	80: true, 443: true, 22: true, 53: true, 25: true,
	110: true, 143: true, 993: true, 995: true,
}

// Extractor turns raw flow, DNS and alert records into feature vectors.
// Extraction never fails: unparsable records are dropped with a counter
// and missing fields are treated as absent, so the output vector always
// has the full pipeline shape.
type Extractor struct {
	logger zerolog.Logger
}

// NewExtractor creates a feature extractor.
func NewExtractor(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger.With().Str("component", "features").Logger()}
}

// Devices returns the unique source IPs seen across the given flow records.
func Devices(flows []logstore.RawRecord) []string {
	seen := make(map[string]bool)
	var devices []string
	for _, rec := range flows {
		fields := rec.Fields()
		ip := logstore.StringField(fields, "src_ip")
		if ip != "" && !seen[ip] {
			seen[ip] = true
			devices = append(devices, ip)
		}
	}
	return devices
}

// DomainCounts returns the unique queried domains and their query counts
// across the given DNS records.
func DomainCounts(dnsQueries []logstore.RawRecord) map[string]int {
	counts := make(map[string]int)
	for _, rec := range dnsQueries {
		fields := rec.Fields()
		if fields == nil {
			continue
		}
		if kind, _ := logstore.NestedField(fields, "dns", "type").(string); kind != "query" {
			continue
		}
		domain, _ := logstore.NestedField(fields, "dns", "rrname").(string)
		if domain != "" {
			counts[strings.ToLower(domain)]++
		}
	}
	return counts
}

// FilterBySubject keeps only the records whose given top-level field equals
// the subject value.
func FilterBySubject(records []logstore.RawRecord, field, subject string) []logstore.RawRecord {
	var out []logstore.RawRecord
	for _, rec := range records {
		if logstore.StringField(rec.Fields(), field) == subject {
			out = append(out, rec)
		}
	}
	return out
}

// DeviceFeatures aggregates the per-device statistics for one time window.
// Zero input records yield a vector of defaults, never a short vector.
func (e *Extractor) DeviceFeatures(deviceIP string, flows, dnsQueries, alerts []logstore.RawRecord, windowStart, windowEnd time.Time) *DeviceFeatures {
	f := &DeviceFeatures{
		DeviceIP:    deviceIP,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	destIPs := make(map[string]bool)
	destPorts := make(map[float64]bool)
	protocolCounts := make(map[string]int)
	var durations []float64
	commonPortCount := 0
	outbound := 0

	for _, rec := range flows {
		fields := rec.Fields()
		if fields == nil {
			e.drop("device_anomaly")
			continue
		}

		switch {
		case logstore.StringField(fields, "src_ip") == deviceIP:
			f.ConnectionCountOut++
			outbound++

			f.BytesSent += int64(asFloat(logstore.NestedField(fields, "flow", "bytes_toserver")))
			f.BytesReceived += int64(asFloat(logstore.NestedField(fields, "flow", "bytes_toclient")))

			if dest := logstore.StringField(fields, "dest_ip"); dest != "" {
				destIPs[dest] = true
			}
			port := logstore.NumberField(fields, "dest_port")
			destPorts[port] = true
			protocolCounts[strings.ToUpper(logstore.StringField(fields, "proto"))]++

			if age := logstore.NestedField(fields, "flow", "age"); age != nil {
				durations = append(durations, asFloat(age))
			}

			if commonPorts[int(port)] {
				commonPortCount++
			} else if port > 1024 {
				f.RarePortCount++
			}
		case logstore.StringField(fields, "dest_ip") == deviceIP:
			f.ConnectionCountIn++
		}
	}

	f.UniqueDestIPs = len(destIPs)
	f.UniqueDestPorts = len(destPorts)

	if outbound > 0 {
		total := float64(outbound)
		f.ProtocolTCPRatio = float64(protocolCounts["TCP"]) / total
		f.ProtocolUDPRatio = float64(protocolCounts["UDP"]) / total
		f.ProtocolICMPRatio = float64(protocolCounts["ICMP"]) / total
		f.CommonPortRatio = float64(commonPortCount) / total
		f.AvgBytesPerConnection = float64(f.BytesSent+f.BytesReceived) / total
	}
	if len(durations) > 0 {
		f.AvgConnectionDuration = mean(durations)
	}
	if minutes := windowEnd.Sub(windowStart).Minutes(); minutes > 0 {
		f.ConnectionRatePerMinute = float64(outbound) / minutes
	}
	if f.BytesReceived > 0 {
		f.UploadDownloadRatio = float64(f.BytesSent) / float64(f.BytesReceived)
	}

	domains := make(map[string]bool)
	var domainLengths, domainEntropies []float64
	nxdomainCount := 0

	// Only type "query" records count as queries, consistent with the
	// per-domain counting. NXDOMAIN rcodes arrive on the answer records
	// and are related back to the query volume.
	for _, rec := range dnsQueries {
		fields := rec.Fields()
		if fields == nil {
			e.drop("device_anomaly")
			continue
		}

		if kind, _ := logstore.NestedField(fields, "dns", "type").(string); kind == "query" {
			f.DNSQueryCount++
			if domain, _ := logstore.NestedField(fields, "dns", "rrname").(string); domain != "" {
				domains[domain] = true
				domainLengths = append(domainLengths, float64(len(domain)))
				domainEntropies = append(domainEntropies, shannonEntropy(domain))
			}
		}
		if rcode, _ := logstore.NestedField(fields, "dns", "rcode").(string); rcode == "NXDOMAIN" {
			nxdomainCount++
		}
	}

	f.UniqueDomains = len(domains)
	if len(domainLengths) > 0 {
		f.AvgDomainLength = mean(domainLengths)
		f.AvgDomainEntropy = mean(domainEntropies)
	}
	if f.DNSQueryCount > 0 {
		f.NXDomainRatio = float64(nxdomainCount) / float64(f.DNSQueryCount)
	}

	signatures := make(map[string]bool)
	for _, rec := range alerts {
		fields := rec.Fields()
		if fields == nil {
			e.drop("device_anomaly")
			continue
		}
		f.AlertCount++
		if sig, _ := logstore.NestedField(fields, "alert", "signature").(string); sig != "" {
			signatures[sig] = true
		}
	}
	f.UniqueAlertSignatures = len(signatures)

	return f
}

// DomainFeatures computes the lexical features for one domain name.
func (e *Extractor) DomainFeatures(domain string, queryCount int) *DomainFeatures {
	f := &DomainFeatures{
		Domain:       domain,
		DomainLength: len(domain),
		QueryCount:   queryCount,
	}

	parts := strings.Split(domain, ".")
	if len(parts) >= 2 {
		f.SubdomainCount = len(parts) - 2
	}
	if len(parts) > 0 {
		f.TLD = parts[len(parts)-1]
	}
	f.TLDLength = len(f.TLD)
	f.TLDCategory = categorizeTLD(f.TLD)

	f.CharEntropy = shannonEntropy(domain)

	lower := strings.ToLower(domain)
	vowelCount, consonantCount, digitCount, hexCount := 0, 0, 0, 0
	for _, c := range lower {
		switch {
		case strings.ContainsRune("aeiou", c):
			vowelCount++
		case c >= 'a' && c <= 'z':
			consonantCount++
		}
		if c >= '0' && c <= '9' {
			digitCount++
		}
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			hexCount++
		}
	}

	if alpha := vowelCount + consonantCount; alpha > 0 {
		f.VowelRatio = float64(vowelCount) / float64(alpha)
		f.ConsonantRatio = float64(consonantCount) / float64(alpha)
	}
	if len(domain) > 0 {
		f.DigitRatio = float64(digitCount) / float64(len(domain))
		f.HexRatio = float64(hexCount) / float64(len(domain))
	}

	f.SpecialCharCount = strings.Count(domain, "-") + strings.Count(domain, "_")
	f.HasIPPattern = hasIPPattern(domain)
	f.MaxConsonantStreak = maxConsonantStreak(lower)

	return f
}

func (e *Extractor) drop(pipeline string) {
	metrics.RecordsDropped.WithLabelValues(pipeline).Inc()
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
