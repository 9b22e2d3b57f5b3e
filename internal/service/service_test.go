package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokoku/backend/internal/cache"
	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopSaleSummaryCache{}, 5*time.Second)
}

func ownerContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "owner", Role: domain.RoleOwner})
}

func staffContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})
}

func createTestProduct(t *testing.T, svc *Service, name, salePrice, costPrice string) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(ownerContext(), domain.ProductCreateRequest{
		Name:      name,
		SalePrice: salePrice,
		CostPrice: costPrice,
		Unit:      "piece",
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func createTestInventory(t *testing.T, svc *Service, name string) domain.Inventory {
	t.Helper()
	inventory, err := svc.CreateInventory(staffContext(), domain.InventoryCreateRequest{Name: name})
	if err != nil {
		t.Fatalf("create inventory %s: %v", name, err)
	}
	return inventory
}

func TestCreateProductRequiresOwner(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(staffContext(), domain.ProductCreateRequest{
		Name:      "Espresso Beans",
		SalePrice: "15",
		CostPrice: "9",
	})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for staff product creation, got %v", err)
	}
}

func TestCreateProductRejectsMalformedPrice(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(ownerContext(), domain.ProductCreateRequest{
		Name:      "Espresso Beans",
		SalePrice: "fifteen",
		CostPrice: "9",
	})
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSaleLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	mug := createTestProduct(t, svc, "Ceramic Mug", "12", "5.75")

	created, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineItemInput{
			{ProductID: beans.ID, Quantity: 2},
			{ProductID: mug.ID, Quantity: 1},
		},
		DiscountType:  "PERCENTAGE",
		DiscountValue: "10",
		Shipping:      "3",
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(created.Sale.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(created.Sale.LineItems))
	}
	// subtotal 41, minus 10% discount, plus shipping 3.
	if !created.Summary.Total.Equal(decimal.RequireFromString("39.9")) {
		t.Fatalf("total: got %s, want 39.9", created.Summary.Total)
	}

	fetched, err := svc.GetSale(ctx, created.Sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !fetched.Summary.Total.Equal(created.Summary.Total) {
		t.Fatalf("fetched total %s differs from created total %s", fetched.Summary.Total, created.Summary.Total)
	}

	if err := svc.DeleteSaleWithItems(ctx, created.Sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if _, err := svc.GetSale(ctx, created.Sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateSaleRejectsEmptyItems(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()

	_, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{})
	if !errors.Is(err, store.ErrEmptyLineItems) {
		t.Fatalf("expected ErrEmptyLineItems, got %v", err)
	}

	list, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(list.Sales) != 0 {
		t.Fatalf("rejected sale was persisted: %+v", list.Sales)
	}
}

func TestCreateSaleRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")

	for _, qty := range []int{0, -3} {
		_, err := svc.CreateSaleWithItems(staffContext(), domain.SaleCreateRequest{
			Items: []domain.SaleLineItemInput{{ProductID: beans.ID, Quantity: qty}},
		})
		if !errors.Is(err, store.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestCreateSaleUnknownProductPersistsNothing(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")

	_, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineItemInput{
			{ProductID: beans.ID, Quantity: 1},
			{ProductID: "prod-ghost", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(list.Sales) != 0 {
		t.Fatalf("failed sale left partial writes: %+v", list.Sales)
	}
}

func TestUpdateSaleReplacesWholeItemSet(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	mug := createTestProduct(t, svc, "Ceramic Mug", "12", "5.75")

	created, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineItemInput{
			{ProductID: beans.ID, Quantity: 2},
			{ProductID: mug.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	oldIDs := make(map[string]bool, len(created.Sale.LineItems))
	for _, item := range created.Sale.LineItems {
		oldIDs[item.ID] = true
	}

	updated, err := svc.UpdateSaleWithItems(ctx, created.Sale.ID, domain.SaleUpdateRequest{
		Items: []domain.SaleLineItemInput{{ProductID: mug.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("update sale: %v", err)
	}
	if len(updated.Sale.LineItems) != 1 {
		t.Fatalf("expected exactly 1 line item after update, got %d", len(updated.Sale.LineItems))
	}
	if oldIDs[updated.Sale.LineItems[0].ID] {
		t.Fatalf("line item id %s survived the full replace", updated.Sale.LineItems[0].ID)
	}
	if !updated.Summary.Subtotal.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("subtotal: got %s, want 36", updated.Summary.Subtotal)
	}
}

func TestSalePricesCapturedAtCreation(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "10", "6")

	created, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineItemInput{{ProductID: beans.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	newPrice := "99"
	if _, err := svc.UpdateProduct(ownerContext(), beans.ID, domain.ProductUpdateRequest{SalePrice: &newPrice}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	fetched, err := svc.GetSale(ctx, created.Sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !fetched.Summary.Subtotal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("subtotal changed with the product edit: got %s, want 10", fetched.Summary.Subtotal)
	}
}

func TestStockAdjustLazyCreateAndRemove(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	warehouse := createTestInventory(t, svc, "Main Warehouse")

	added, err := svc.AddInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 5},
	})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if len(added.Items) != 1 || added.Items[0].Amount != 5 {
		t.Fatalf("expected lazily created record with amount 5, got %+v", added.Items)
	}

	removed, err := svc.RemoveInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("remove stock: %v", err)
	}
	if removed.Items[0].Amount != 2 {
		t.Fatalf("amount after remove: got %d, want 2", removed.Items[0].Amount)
	}

	_, err = svc.RemoveInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 3},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestStockAddToExistingRecordSumsAmounts(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	warehouse := createTestInventory(t, svc, "Main Warehouse")

	seeded, err := svc.AddInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 5},
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	topped, err := svc.AddInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("add to existing record: %v", err)
	}
	if len(topped.Items) != 1 || topped.Items[0].Amount != 8 {
		t.Fatalf("amount after second add: got %+v, want 8", topped.Items)
	}
	if topped.Items[0].ID != seeded.Items[0].ID {
		t.Fatalf("second add created a new record %s instead of updating %s",
			topped.Items[0].ID, seeded.Items[0].ID)
	}
}

func TestStockRemoveWithoutRecordIsInsufficient(t *testing.T) {
	svc := newTestService()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	warehouse := createTestInventory(t, svc, "Main Warehouse")

	_, err := svc.RemoveInventoryStock(staffContext(), warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 1},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for missing record, got %v", err)
	}
}

func TestStockBatchIsAllOrNothing(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	mug := createTestProduct(t, svc, "Ceramic Mug", "12", "5.75")
	warehouse := createTestInventory(t, svc, "Main Warehouse")

	if _, err := svc.AddInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 5},
		{ProductID: mug.ID, Quantity: 1},
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	_, err := svc.RemoveInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 2},
		{ProductID: mug.ID, Quantity: 10},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The first line would have succeeded on its own; the batch failure must
	// leave it untouched too.
	inventory, err := svc.GetInventory(ctx, warehouse.ID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	for _, item := range inventory.Items {
		switch item.ProductID {
		case beans.ID:
			if item.Amount != 5 {
				t.Fatalf("beans amount after aborted batch: got %d, want 5", item.Amount)
			}
		case mug.ID:
			if item.Amount != 1 {
				t.Fatalf("mug amount after aborted batch: got %d, want 1", item.Amount)
			}
		}
	}
}

func TestStockBatchRejectsDuplicateProduct(t *testing.T) {
	svc := newTestService()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	warehouse := createTestInventory(t, svc, "Main Warehouse")

	_, err := svc.AddInventoryStock(staffContext(), warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 2},
		{ProductID: beans.ID, Quantity: 3},
	})
	if !errors.Is(err, store.ErrDuplicateProduct) {
		t.Fatalf("expected ErrDuplicateProduct, got %v", err)
	}
}

func TestSellingDoesNotTouchInventory(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")
	warehouse := createTestInventory(t, svc, "Main Warehouse")

	if _, err := svc.AddInventoryStock(ctx, warehouse.ID, []domain.StockAdjustmentLine{
		{ProductID: beans.ID, Quantity: 5},
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	if _, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleLineItemInput{{ProductID: beans.ID, Quantity: 3}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	inventory, err := svc.GetInventory(ctx, warehouse.ID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if len(inventory.Items) != 1 || inventory.Items[0].Amount != 5 {
		t.Fatalf("selling changed inventory stock: %+v", inventory.Items)
	}
}

func TestDeleteProductRefusedWhileReferenced(t *testing.T) {
	svc := newTestService()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")

	if _, err := svc.CreateSaleWithItems(staffContext(), domain.SaleCreateRequest{
		Items: []domain.SaleLineItemInput{{ProductID: beans.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	err := svc.DeleteProduct(ownerContext(), beans.ID)
	if !errors.Is(err, store.ErrProductInUse) {
		t.Fatalf("expected ErrProductInUse, got %v", err)
	}
	if _, err := svc.GetProduct(context.Background(), beans.ID); err != nil {
		t.Fatalf("refused delete removed the product anyway: %v", err)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()

	created, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{
		Name:      "Monthly Rent",
		Cost:      "850.000",
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	newCost := "900"
	updated, err := svc.UpdateExpense(ctx, created.ID, domain.ExpenseUpdateRequest{Cost: &newCost})
	if err != nil {
		t.Fatalf("update expense: %v", err)
	}
	if !updated.Cost.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("cost: got %s, want 900", updated.Cost)
	}

	if err := svc.DeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if _, err := svc.GetExpense(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCustomerSaleAssociation(t *testing.T) {
	svc := newTestService()
	ctx := staffContext()
	beans := createTestProduct(t, svc, "House Blend Beans", "14.5", "9.25")

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Ada Lovelace"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	created, err := svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		CustomerID: customer.ID,
		Items:      []domain.SaleLineItemInput{{ProductID: beans.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.Sale.CustomerID != customer.ID {
		t.Fatalf("customer id not recorded: %+v", created.Sale)
	}

	_, err = svc.CreateSaleWithItems(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-ghost",
		Items:      []domain.SaleLineItemInput{{ProductID: beans.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
}
