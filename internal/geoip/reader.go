package geoip

import (
	"net"
	"net/netip"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver maps an address to an ISO 3166 country code, or "" when unknown.
type Resolver interface {
	CountryCode(addr netip.Addr) string
}

// Provider resolves countries from a GeoLite2 database.
type Provider struct {
	db *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// CountryCode returns the upper-case ISO code of addr. Private, invalid and
// unknown addresses resolve to "".
func (p *Provider) CountryCode(addr netip.Addr) string {
	addr = addr.Unmap()
	if !addr.IsValid() || addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() {
		return ""
	}

	record, err := p.db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return ""
	}

	return strings.ToUpper(record.Country.IsoCode)
}

// Static is a fixed lookup table, used when no database is configured.
type Static map[netip.Addr]string

// CountryCode implements Resolver.
func (s Static) CountryCode(addr netip.Addr) string {
	return s[addr.Unmap()]
}
