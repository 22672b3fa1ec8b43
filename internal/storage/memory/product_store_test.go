package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

func TestProductStoreIgnoresDuplicateURLs(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	ctx := context.Background()
	first := []crawler.ProductRecord{
		{URL: "https://shop.example/p/a-123456", Domain: "shop.example"},
		{URL: "https://shop.example/p/b-654321", Domain: "shop.example"},
	}
	if err := store.BulkInsert(ctx, first); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if err := store.BulkInsert(ctx, first[:1]); err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}

	rows := store.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].URL != first[0].URL || rows[1].URL != first[1].URL {
		t.Fatalf("unexpected row order %+v", rows)
	}
}

func TestProductStoreClose(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	if err := store.CreateSchemaIfAbsent(context.Background()); err != nil {
		t.Fatalf("CreateSchemaIfAbsent() error = %v", err)
	}
	store.Close()
	if !store.Closed() {
		t.Fatal("expected store to report closed")
	}
}
