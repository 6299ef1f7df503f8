package features

import (
	"fmt"
	"time"
)

// DeviceFeatureNames is the fixed feature order for the device anomaly
// pipeline. Models for this pipeline are trained against exactly this
// layout.
var DeviceFeatureNames = []string{
	"connection_count_in",
	"connection_count_out",
	"bytes_sent",
	"bytes_received",
	"unique_dest_ips",
	"unique_dest_ports",
	"protocol_tcp_ratio",
	"protocol_udp_ratio",
	"protocol_icmp_ratio",
	"dns_query_count",
	"unique_domains",
	"avg_domain_length",
	"avg_domain_entropy",
	"nxdomain_ratio",
	"avg_connection_duration",
	"connection_rate_per_minute",
	"common_port_ratio",
	"rare_port_count",
	"avg_bytes_per_connection",
	"upload_download_ratio",
	"alert_count",
	"unique_alert_signatures",
}

// DeviceFeatures holds the aggregated network behavior of a single device
// over one time window.
type DeviceFeatures struct {
	DeviceIP    string    `json:"device_ip"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	ConnectionCountIn  int   `json:"connection_count_in"`
	ConnectionCountOut int   `json:"connection_count_out"`
	BytesSent          int64 `json:"bytes_sent"`
	BytesReceived      int64 `json:"bytes_received"`
	UniqueDestIPs      int   `json:"unique_dest_ips"`
	UniqueDestPorts    int   `json:"unique_dest_ports"`

	ProtocolTCPRatio  float64 `json:"protocol_tcp_ratio"`
	ProtocolUDPRatio  float64 `json:"protocol_udp_ratio"`
	ProtocolICMPRatio float64 `json:"protocol_icmp_ratio"`

	DNSQueryCount    int     `json:"dns_query_count"`
	UniqueDomains    int     `json:"unique_domains"`
	AvgDomainLength  float64 `json:"avg_domain_length"`
	AvgDomainEntropy float64 `json:"avg_domain_entropy"`
	NXDomainRatio    float64 `json:"nxdomain_ratio"`

	AvgConnectionDuration   float64 `json:"avg_connection_duration"`
	ConnectionRatePerMinute float64 `json:"connection_rate_per_minute"`

	CommonPortRatio float64 `json:"common_port_ratio"`
	RarePortCount   int     `json:"rare_port_count"`

	AvgBytesPerConnection float64 `json:"avg_bytes_per_connection"`
	UploadDownloadRatio   float64 `json:"upload_download_ratio"`

	AlertCount             int `json:"alert_count"`
	UniqueAlertSignatures  int `json:"unique_alert_signatures"`
}

// Vector returns the device features in the fixed pipeline order.
func (f *DeviceFeatures) Vector() FeatureVector {
	return FeatureVector{
		Subject: f.DeviceIP,
		Names:   DeviceFeatureNames,
		Values: []float64{
			float64(f.ConnectionCountIn),
			float64(f.ConnectionCountOut),
			float64(f.BytesSent),
			float64(f.BytesReceived),
			float64(f.UniqueDestIPs),
			float64(f.UniqueDestPorts),
			f.ProtocolTCPRatio,
			f.ProtocolUDPRatio,
			f.ProtocolICMPRatio,
			float64(f.DNSQueryCount),
			float64(f.UniqueDomains),
			f.AvgDomainLength,
			f.AvgDomainEntropy,
			f.NXDomainRatio,
			f.AvgConnectionDuration,
			f.ConnectionRatePerMinute,
			f.CommonPortRatio,
			float64(f.RarePortCount),
			f.AvgBytesPerConnection,
			f.UploadDownloadRatio,
			float64(f.AlertCount),
			float64(f.UniqueAlertSignatures),
		},
	}
}

// Map returns the features keyed by name, for event metadata and for the
// training data collector.
func (f *DeviceFeatures) Map() map[string]interface{} {
	vec := f.Vector()
	m := make(map[string]interface{}, len(vec.Names))
	for i, name := range vec.Names {
		m[name] = vec.Values[i]
	}
	return m
}

// Anomalies returns human-readable notes on features that stand out, used
// as explanation strings in event metadata.
func (f *DeviceFeatures) Anomalies() []string {
	var notes []string
	if f.UniqueDestIPs > 50 {
		notes = append(notes, fmt.Sprintf("high unique_dest_ips (%d)", f.UniqueDestIPs))
	}
	if f.NXDomainRatio > 0.2 {
		notes = append(notes, fmt.Sprintf("high nxdomain_ratio (%.2f)", f.NXDomainRatio))
	}
	if f.RarePortCount > 20 {
		notes = append(notes, fmt.Sprintf("high rare_port_count (%d)", f.RarePortCount))
	}
	return notes
}
