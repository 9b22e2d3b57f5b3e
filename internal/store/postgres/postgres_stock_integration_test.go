package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
)

func newIntegrationStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	databaseURL := os.Getenv("TOKOKU_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOKU_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s, ctx
}

func seedIntegrationStock(t *testing.T, s *Store, ctx context.Context, amount int) (productID, inventoryID string) {
	t.Helper()
	stamp := time.Now().UnixNano()
	productID = fmt.Sprintf("prod-it-%d", stamp)
	inventoryID = fmt.Sprintf("inv-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE inventory_id = $1`, inventoryID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventories WHERE id = $1`, inventoryID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:        productID,
		Name:      "Integration Beans " + productID,
		SalePrice: decimal.NewFromInt(15),
		CostPrice: decimal.NewFromInt(9),
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.CreateInventory(ctx, domain.Inventory{
		ID:   inventoryID,
		Name: "Integration Warehouse " + inventoryID,
	}); err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	if amount > 0 {
		if _, err := s.UpsertInventoryItem(ctx, domain.InventoryItem{
			InventoryID: inventoryID,
			ProductID:   productID,
			Amount:      amount,
		}); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
	return productID, inventoryID
}

func TestUpsertInventoryItemConflictKeepsIdentity(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	productID, inventoryID := seedIntegrationStock(t, s, ctx, 0)

	first, err := s.UpsertInventoryItem(ctx, domain.InventoryItem{
		InventoryID: inventoryID,
		ProductID:   productID,
		Amount:      5,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := s.UpsertInventoryItem(ctx, domain.InventoryItem{
		InventoryID: inventoryID,
		ProductID:   productID,
		Amount:      8,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("conflict upsert changed record id: %s -> %s", first.ID, second.ID)
	}
	if second.Amount != 8 {
		t.Fatalf("amount after conflict upsert: got %d, want 8", second.Amount)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM inventory_items
		WHERE inventory_id = $1 AND product_id = $2
	`, inventoryID, productID).Scan(&count); err != nil {
		t.Fatalf("count stock records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single stock record, got %d", count)
	}
}

func TestUpsertInventoryItemUnknownInventoryIsNotFound(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	productID, _ := seedIntegrationStock(t, s, ctx, 0)

	_, err := s.UpsertInventoryItem(ctx, domain.InventoryItem{
		InventoryID: "inv-it-ghost",
		ProductID:   productID,
		Amount:      1,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown inventory, got %v", err)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	productID, inventoryID := seedIntegrationStock(t, s, ctx, 10)

	boom := errors.New("abort batch")
	err := s.RunInTransaction(ctx, func(tx store.Repository) error {
		item, err := tx.GetInventoryItem(ctx, inventoryID, productID)
		if err != nil {
			return err
		}
		item.Amount += 5
		if _, err := tx.UpsertInventoryItem(ctx, *item); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	item, err := s.GetInventoryItem(ctx, inventoryID, productID)
	if err != nil {
		t.Fatalf("get stock record: %v", err)
	}
	if item.Amount != 10 {
		t.Fatalf("rolled-back write is visible: got %d, want 10", item.Amount)
	}
}

// Two serializable transactions read-modify-write the same stock record
// concurrently; one of them is expected to hit SQLSTATE 40001 and succeed on
// retry, so both increments must land.
func TestRunInTransactionRetriesSerializationFailure(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	productID, inventoryID := seedIntegrationStock(t, s, ctx, 10)

	increments := []int{3, 4}
	errs := make([]error, len(increments))
	var wg sync.WaitGroup
	for i, delta := range increments {
		wg.Add(1)
		go func(i, delta int) {
			defer wg.Done()
			errs[i] = s.RunInTransaction(ctx, func(tx store.Repository) error {
				item, err := tx.GetInventoryItem(ctx, inventoryID, productID)
				if err != nil {
					return err
				}
				item.Amount += delta
				_, err = tx.UpsertInventoryItem(ctx, *item)
				return err
			})
		}(i, delta)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("transaction %d: %v", i, err)
		}
	}

	item, err := s.GetInventoryItem(ctx, inventoryID, productID)
	if err != nil {
		t.Fatalf("get stock record: %v", err)
	}
	if item.Amount != 17 {
		t.Fatalf("lost update under concurrency: got %d, want 17", item.Amount)
	}
}
