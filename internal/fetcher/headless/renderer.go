package headless

import (
	"context"

	"github.com/JakeFAU/ecom-product-crawler/internal/browserpool"
	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// Renderer leases a pooled browser for each render.
type Renderer struct {
	pool *browserpool.Pool[*Browser]
}

// NewRenderer wraps a pool of browsers.
func NewRenderer(pool *browserpool.Pool[*Browser]) *Renderer {
	return &Renderer{pool: pool}
}

// Render leases a browser, renders url, and returns the browser to the pool
// whether or not rendering succeeded.
func (r *Renderer) Render(ctx context.Context, url string, attempt int) (crawler.Page, error) {
	var page crawler.Page
	err := r.pool.With(ctx, func(b *Browser) error {
		var rerr error
		page, rerr = b.Render(ctx, url, attempt)
		return rerr
	})
	return page, err
}
