package master

import (
	"fmt"
	"strings"
)

// Region is the geographic filter byte of a master server query.
type Region byte

// Regions understood by the Steam master server.
const (
	RegionUSEast       Region = 0x00
	RegionUSWest       Region = 0x01
	RegionSouthAmerica Region = 0x02
	RegionEurope       Region = 0x03
	RegionAsia         Region = 0x04
	RegionAustralia    Region = 0x05
	RegionMiddleEast   Region = 0x06
	RegionAfrica       Region = 0x07
	RegionAll          Region = 0xFF
)

var regionNames = map[Region]string{
	RegionUSEast:       "us-east",
	RegionUSWest:       "us-west",
	RegionSouthAmerica: "south-america",
	RegionEurope:       "europe",
	RegionAsia:         "asia",
	RegionAustralia:    "australia",
	RegionMiddleEast:   "middle-east",
	RegionAfrica:       "africa",
	RegionAll:          "all",
}

// Regions lists every valid region.
func Regions() []Region {
	return []Region{
		RegionUSEast, RegionUSWest, RegionSouthAmerica, RegionEurope,
		RegionAsia, RegionAustralia, RegionMiddleEast, RegionAfrica, RegionAll,
	}
}

func (r Region) String() string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("region(%#02x)", byte(r))
}

// Valid reports whether r is one of the nine defined regions.
func (r Region) Valid() bool {
	_, ok := regionNames[r]
	return ok
}

// ParseRegion accepts a region name such as "europe" (case and '_' insensitive).
func ParseRegion(s string) (Region, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for r, n := range regionNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown region %q", s)
}

// UnmarshalFlag lets go-flags parse a Region option.
func (r *Region) UnmarshalFlag(value string) error {
	v, err := ParseRegion(value)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
