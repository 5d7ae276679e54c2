package memory

import (
	"context"
	"errors"
	"testing"

	"budget/internal/core"
)

func TestMemoryStoreInsertListGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	sess, err := s.OpenSession(ctx)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer sess.Close()

	for i, cat := range []string{"rent", "food", "salary"} {
		item, err := sess.Insert(ctx, core.ItemInput{Category: cat, Amount: float64(i), Currency: "USD", Type: core.Expense})
		if err != nil || item.ID != int64(i+1) {
			t.Fatalf("unexpected insert: item=%+v err=%v", item, err)
		}
		if item.CreatedAt.IsZero() {
			t.Fatalf("created_at not stamped")
		}
	}

	items, _ := sess.List(ctx, 1, 10)
	if len(items) != 2 || items[0].Category != "food" || items[1].Category != "salary" {
		t.Fatalf("unexpected list: %+v", items)
	}

	if err := sess.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := sess.Get(ctx, 2); !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := sess.Delete(ctx, 2); !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	got, err := sess.Get(ctx, 3)
	if err != nil || got.Category != "salary" {
		t.Fatalf("unexpected get: %+v %v", got, err)
	}

	next, _ := sess.Insert(ctx, core.ItemInput{Category: "new", Type: core.Income})
	if next.ID != 4 {
		t.Fatalf("expected id 4 after delete, got %d", next.ID)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", s.Len())
	}
}

func TestMemoryStoreListBounds(t *testing.T) {
	s := New()
	ctx := context.Background()
	sess, _ := s.OpenSession(ctx)

	items, err := sess.List(ctx, 0, 100)
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v %v", items, err)
	}

	for i := 0; i < 3; i++ {
		sess.Insert(ctx, core.ItemInput{Category: "c", Type: core.Expense})
	}
	if items, _ := sess.List(ctx, 0, 0); len(items) != 0 {
		t.Fatalf("limit 0 should return nothing, got %d", len(items))
	}
	if items, _ := sess.List(ctx, 5, 10); len(items) != 0 {
		t.Fatalf("skip past end should return nothing, got %d", len(items))
	}
	if items, _ := sess.List(ctx, 0, 2); len(items) != 2 {
		t.Fatalf("limit 2 should return 2, got %d", len(items))
	}
}
