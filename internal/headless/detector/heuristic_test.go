package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

func page(body string) crawler.Page {
	return crawler.Page{Status: 200, Content: []byte(body)}
}

func TestLooksLikeShell(t *testing.T) {
	t.Parallel()

	richText := strings.Repeat("Durable canvas sneaker with rubber sole. ", 20)
	cases := []struct {
		name string
		page crawler.Page
		want bool
	}{
		{
			name: "empty body",
			page: page(""),
			want: true,
		},
		{
			name: "next.js mount point without text",
			page: page(`<html><body><div id="__next"></div></body></html>`),
			want: true,
		},
		{
			name: "script heavy",
			page: page(`<html><body><script>` + strings.Repeat("var a=1;", 50) + `</script><p>hi</p></body></html>`),
			want: true,
		},
		{
			name: "server rendered with marker",
			page: page(`<html><body><div id="root"><p>` + richText + `</p></div></body></html>`),
			want: false,
		},
		{
			name: "plain server rendered",
			page: page(`<html><body><main>` + richText + `</main></body></html>`),
			want: false,
		},
		{
			name: "already rendered",
			page: crawler.Page{Status: 200, Rendered: true},
			want: false,
		},
		{
			name: "error status",
			page: crawler.Page{Status: 404, Content: []byte(`<div id="app"></div>`)},
			want: false,
		},
	}

	h := NewHeuristic(0, 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, h.LooksLikeShell(tc.page))
		})
	}
}
