package master

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterWire(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   string
	}{
		{
			name:   "nil",
			filter: nil,
			want:   "\x00",
		},
		{
			name:   "empty",
			filter: NewFilter(),
			want:   "\x00",
		},
		{
			name:   "flag and string",
			filter: NewFilter().Set("dedicated", Bool(true)).Set("map", String("de_dust2")),
			want:   "\\dedicated\\1\\map\\de_dust2\x00",
		},
		{
			name:   "nor group",
			filter: NewFilter().Nor(NewFilter().Set("empty", Bool(true))),
			want:   "\\nor\\1\\empty\\1\x00",
		},
		{
			name: "nand group with several keys",
			filter: NewFilter().
				Set("appid", Int(221100)).
				Nand(NewFilter().Set("password", Bool(false)).Set("linux", Bool(true))),
			want: "\\appid\\221100\\nand\\2\\password\\0\\linux\\1\x00",
		},
		{
			name:   "nor set directly is not a group",
			filter: NewFilter().Set("nor", String("raw")),
			want:   "\\nor\\raw\x00",
		},
		{
			name:   "list",
			filter: NewFilter().Set("gametype", List{"coop", "hardcore"}),
			want:   "\\gametype\\coop,hardcore\x00",
		},
		{
			name:   "negative int",
			filter: NewFilter().Set("napp", Int(-1)),
			want:   "\\napp\\-1\x00",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, []byte(tc.want), tc.filter.AppendWire(nil))
		})
	}
}

func TestFilterIsNotAValue(t *testing.T) {
	_, ok := any(NewFilter()).(Value)
	require.False(t, ok, "groups are only reachable through Nor and Nand")
}

func TestFilterSetKeepsPosition(t *testing.T) {
	f := NewFilter().
		Set("a", Int(1)).
		Set("b", Int(2)).
		Set("a", Int(3))

	require.Equal(t, []string{"a", "b"}, f.Keys())
	require.Equal(t, "\\a\\3\\b\\2", f.String())
}

func TestRegion(t *testing.T) {
	r, err := ParseRegion("Europe")
	require.NoError(t, err)
	require.Equal(t, RegionEurope, r)

	r, err = ParseRegion("us_east")
	require.NoError(t, err)
	require.Equal(t, RegionUSEast, r)

	_, err = ParseRegion("mars")
	require.Error(t, err)

	require.Len(t, Regions(), 9)
	seen := map[Region]bool{}
	for _, r := range Regions() {
		require.True(t, r.Valid())
		require.False(t, seen[r])
		seen[r] = true
	}
	require.Equal(t, byte(0xFF), byte(RegionAll))
	require.False(t, Region(0x08).Valid())
}
