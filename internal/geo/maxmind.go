package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider resolves a client IP to an ISO country code. Implementations
// return "" when the IP cannot be resolved; session enrichment is best
// effort and must never fail a write.
type Provider interface {
	Country(ip string) string
	Close() error
}

// MaxMindProvider implements Provider using a MaxMind GeoLite2 database.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// NewMaxMindProvider opens the GeoLite2 country database at dbPath.
func NewMaxMindProvider(dbPath string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	return &MaxMindProvider{reader: reader}, nil
}

// Country returns the ISO country code for an IP address, or "" when the
// address is invalid or unknown.
func (m *MaxMindProvider) Country(ip string) string {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return ""
	}

	record, err := m.reader.Country(parsedIP)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// Close closes the GeoIP database.
func (m *MaxMindProvider) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}
