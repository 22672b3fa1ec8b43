package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainBlocklist(t *testing.T) {
	t.Parallel()

	bl := NewDomainBlocklist([]string{"Ads.Shop.example", "*.tracker.net", ".cdn.io", "*.tracker.net", "blog.shop.example."})
	require.Equal(t, 4, bl.Len())

	cases := map[string]bool{
		"ads.shop.example":     true,
		"ADS.shop.example.":    true,
		"img.ads.shop.example": false,
		"blog.shop.example":    true,
		"shop.example":         false,
		"pixel.tracker.net":    true,
		"a.b.tracker.net":      true,
		"tracker.net":          true,
		"nottracker.net":       false,
		"static.cdn.io":        true,
		"cdn.io.shop.example":  false,
		"":                     false,
	}
	for host, blocked := range cases {
		require.Equal(t, blocked, bl.IsBlocked(host), host)
	}
}

func TestDomainBlocklistEmpty(t *testing.T) {
	t.Parallel()

	bl := NewDomainBlocklist([]string{" ", "*.", "."})
	require.Nil(t, bl)
	require.Zero(t, bl.Len())
	require.False(t, bl.IsBlocked("anything.example"))
}
