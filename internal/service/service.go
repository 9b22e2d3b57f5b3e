package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tokoku/backend/internal/cache"
	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/pricing"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	summaries  cache.SaleSummaryCache
	summaryTTL time.Duration
}

func New(repo store.Repository, summaries cache.SaleSummaryCache, summaryTTL time.Duration) *Service {
	if summaries == nil {
		summaries = cache.NoopSaleSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}

	return &Service{
		repo:       repo,
		summaries:  summaries,
		summaryTTL: summaryTTL,
	}
}

func requireOwner(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return fmt.Errorf("%w: owner role required", store.ErrForbidden)
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrInvalidInput)
	}
	salePrice, err := pricing.ParseMoney(req.SalePrice)
	if err != nil {
		return domain.Product{}, err
	}
	costPrice, err := pricing.ParseMoney(req.CostPrice)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:        xid.New("prod"),
		Name:      req.Name,
		SalePrice: salePrice,
		CostPrice: costPrice,
		Unit:      strings.TrimSpace(req.Unit),
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.SalePrice != nil {
		salePrice, err := pricing.ParseMoney(*req.SalePrice)
		if err != nil {
			return domain.Product{}, err
		}
		updated.SalePrice = salePrice
	}
	if req.CostPrice != nil {
		costPrice, err := pricing.ParseMoney(*req.CostPrice)
		if err != nil {
			return domain.Product{}, err
		}
		updated.CostPrice = costPrice
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	result, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *result, nil
}

// DeleteProduct refuses to remove a product that any sale line item or
// inventory stock record still references.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}

	return s.repo.RunInTransaction(ctx, func(tx store.Repository) error {
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return err
		}
		inUse, err := tx.ProductInUse(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: product %s is referenced by sales or inventory", store.ErrProductInUse, id)
		}
		return tx.DeleteProduct(ctx, id)
	})
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}

	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      req.Name,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		ZipCode:   req.ZipCode,
		Country:   strings.TrimSpace(req.Country),
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.City != nil {
		updated.City = strings.TrimSpace(*req.City)
	}
	if req.State != nil {
		updated.State = strings.TrimSpace(*req.State)
	}
	if req.ZipCode != nil {
		updated.ZipCode = *req.ZipCode
	}
	if req.Country != nil {
		updated.Country = strings.TrimSpace(*req.Country)
	}

	result, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *result, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	expense, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return domain.Expense{}, err
	}
	return *expense, nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense name is required", store.ErrInvalidInput)
	}
	cost, err := pricing.ParseMoney(req.Cost)
	if err != nil {
		return domain.Expense{}, err
	}

	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		Name:        req.Name,
		Cost:        cost,
		Description: strings.TrimSpace(req.Description),
		Timestamp:   timestamp,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	return *created, nil
}

func (s *Service) UpdateExpense(ctx context.Context, id string, req domain.ExpenseUpdateRequest) (domain.Expense, error) {
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return domain.Expense{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Expense{}, fmt.Errorf("%w: expense name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Cost != nil {
		cost, err := pricing.ParseMoney(*req.Cost)
		if err != nil {
			return domain.Expense{}, err
		}
		updated.Cost = cost
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Timestamp != nil {
		updated.Timestamp = *req.Timestamp
	}

	result, err := s.repo.UpdateExpense(ctx, updated)
	if err != nil {
		return domain.Expense{}, err
	}
	return *result, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	return s.repo.DeleteExpense(ctx, id)
}

func (s *Service) ListInventories(ctx context.Context) ([]domain.Inventory, error) {
	return s.repo.ListInventories(ctx)
}

func (s *Service) GetInventory(ctx context.Context, id string) (domain.Inventory, error) {
	inventory, err := s.repo.GetInventory(ctx, id)
	if err != nil {
		return domain.Inventory{}, err
	}
	return *inventory, nil
}

func (s *Service) CreateInventory(ctx context.Context, req domain.InventoryCreateRequest) (domain.Inventory, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Inventory{}, fmt.Errorf("%w: inventory name is required", store.ErrInvalidInput)
	}

	inventory := domain.Inventory{
		ID:        xid.New("inv"),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.CreateInventory(ctx, inventory)
	if err != nil {
		return domain.Inventory{}, err
	}
	return *created, nil
}

func (s *Service) UpdateInventory(ctx context.Context, id string, req domain.InventoryUpdateRequest) (domain.Inventory, error) {
	existing, err := s.repo.GetInventory(ctx, id)
	if err != nil {
		return domain.Inventory{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Inventory{}, fmt.Errorf("%w: inventory name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}

	result, err := s.repo.UpdateInventory(ctx, updated)
	if err != nil {
		return domain.Inventory{}, err
	}
	return *result, nil
}

func (s *Service) DeleteInventory(ctx context.Context, id string) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}
	return s.repo.DeleteInventory(ctx, id)
}

// AddInventoryStock and RemoveInventoryStock are convenience wrappers around
// AdjustStock for single-direction batches.
func (s *Service) AddInventoryStock(ctx context.Context, inventoryID string, items []domain.StockAdjustmentLine) (domain.StockAdjustmentResponse, error) {
	return s.AdjustStock(ctx, inventoryID, withDirection(items, domain.StockAdd))
}

func (s *Service) RemoveInventoryStock(ctx context.Context, inventoryID string, items []domain.StockAdjustmentLine) (domain.StockAdjustmentResponse, error) {
	return s.AdjustStock(ctx, inventoryID, withDirection(items, domain.StockRemove))
}

func withDirection(items []domain.StockAdjustmentLine, direction domain.StockDirection) []domain.StockAdjustmentLine {
	adjusted := make([]domain.StockAdjustmentLine, 0, len(items))
	for _, item := range items {
		item.Direction = direction
		adjusted = append(adjusted, item)
	}
	return adjusted
}

// AdjustStock applies a batch of stock movements to one inventory
// all-or-nothing: if any line fails validation or would drive a stock record
// below zero, the whole batch is rejected and nothing is written.
func (s *Service) AdjustStock(ctx context.Context, inventoryID string, items []domain.StockAdjustmentLine) (domain.StockAdjustmentResponse, error) {
	if len(items) == 0 {
		return domain.StockAdjustmentResponse{}, fmt.Errorf("%w: no stock adjustments given", store.ErrEmptyLineItems)
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return domain.StockAdjustmentResponse{}, fmt.Errorf("%w: product id is required", store.ErrInvalidInput)
		}
		if item.Quantity < 1 {
			return domain.StockAdjustmentResponse{}, fmt.Errorf("%w: quantity for product %s must be positive", store.ErrInvalidQuantity, item.ProductID)
		}
		if item.Direction != domain.StockAdd && item.Direction != domain.StockRemove {
			return domain.StockAdjustmentResponse{}, fmt.Errorf("%w: unknown stock direction %q", store.ErrInvalidInput, item.Direction)
		}
		if seen[item.ProductID] {
			return domain.StockAdjustmentResponse{}, fmt.Errorf("%w: product %s appears more than once", store.ErrDuplicateProduct, item.ProductID)
		}
		seen[item.ProductID] = true
	}

	var applied []domain.InventoryItem
	err := s.repo.RunInTransaction(ctx, func(tx store.Repository) error {
		if _, err := tx.GetInventory(ctx, inventoryID); err != nil {
			return fmt.Errorf("inventory %s: %w", inventoryID, err)
		}

		applied = applied[:0]
		for _, line := range items {
			item, err := s.applyAdjustment(ctx, tx, inventoryID, line)
			if err != nil {
				return err
			}
			applied = append(applied, *item)
		}
		return nil
	})
	if err != nil {
		return domain.StockAdjustmentResponse{}, err
	}

	return domain.StockAdjustmentResponse{InventoryID: inventoryID, Items: applied}, nil
}

func (s *Service) applyAdjustment(ctx context.Context, tx store.Repository, inventoryID string, line domain.StockAdjustmentLine) (*domain.InventoryItem, error) {
	if _, err := tx.GetProduct(ctx, line.ProductID); err != nil {
		return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
	}

	existing, err := tx.GetInventoryItem(ctx, inventoryID, line.ProductID)
	switch {
	case err == nil:
		amount := existing.Amount
		if line.Direction == domain.StockAdd {
			amount += line.Quantity
		} else {
			amount -= line.Quantity
		}
		if amount < 0 {
			return nil, fmt.Errorf("%w: product %s has %d on hand, cannot remove %d",
				store.ErrInsufficientStock, line.ProductID, existing.Amount, line.Quantity)
		}
		existing.Amount = amount
		return tx.UpsertInventoryItem(ctx, *existing)

	case isNotFound(err):
		// No stock record yet. Adding creates one lazily; removing from
		// nothing is a stock shortage, not a missing row.
		if line.Direction == domain.StockRemove {
			return nil, fmt.Errorf("%w: product %s has no stock record in inventory %s",
				store.ErrInsufficientStock, line.ProductID, inventoryID)
		}
		return tx.UpsertInventoryItem(ctx, domain.InventoryItem{
			InventoryID: inventoryID,
			ProductID:   line.ProductID,
			Amount:      line.Quantity,
		})

	default:
		return nil, err
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (s *Service) ListSales(ctx context.Context) (domain.SaleListResponse, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	responses := make([]domain.SaleResponse, 0, len(sales))
	for _, sale := range sales {
		responses = append(responses, domain.SaleResponse{
			Sale:    sale,
			Summary: s.summaryFor(ctx, sale),
		})
	}
	return domain.SaleListResponse{Sales: responses}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale, Summary: s.summaryFor(ctx, *sale)}, nil
}

func (s *Service) summaryFor(ctx context.Context, sale domain.Sale) domain.SaleSummary {
	if cached, found, err := s.summaries.Get(ctx, sale.ID); err == nil && found {
		return *cached
	} else if err != nil {
		log.Printf("[service] WARN: summary cache read for sale %s: %v", sale.ID, err)
	}

	summary := pricing.Summarize(sale)
	if err := s.summaries.Set(ctx, sale.ID, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write for sale %s: %v", sale.ID, err)
	}
	return summary
}

// CreateSaleWithItems validates the request, captures the referenced
// products' current prices, and persists the sale header together with its
// line items in one transaction. Selling never changes inventory stock.
func (s *Service) CreateSaleWithItems(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	header, err := s.saleHeaderFromRequest(req.Timestamp, req.CustomerID, req.DiscountType, req.DiscountValue,
		req.TaxType, req.TaxValue, req.Shipping, req.Note)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if err := validateLineInputs(req.Items); err != nil {
		return domain.SaleResponse{}, err
	}

	header.ID = xid.New("sale")
	header.CreatedAt = time.Now().UTC()

	var created *domain.Sale
	err = s.repo.RunInTransaction(ctx, func(tx store.Repository) error {
		if header.CustomerID != "" {
			if _, err := tx.GetCustomer(ctx, header.CustomerID); err != nil {
				return fmt.Errorf("customer %s: %w", header.CustomerID, err)
			}
		}

		lineItems, err := s.captureLineItems(ctx, tx, header.ID, req.Items)
		if err != nil {
			return err
		}
		header.LineItems = lineItems

		created, err = tx.CreateSale(ctx, header)
		return err
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	summary := pricing.Summarize(*created)
	if err := s.summaries.Set(ctx, created.ID, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write for sale %s: %v", created.ID, err)
	}
	return domain.SaleResponse{Sale: *created, Summary: summary}, nil
}

// UpdateSaleWithItems replaces the sale wholesale: the header fields are
// overwritten and the submitted items become the entire new item set with
// freshly captured prices. Previous line items and their ids do not survive.
func (s *Service) UpdateSaleWithItems(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.SaleResponse, error) {
	header, err := s.saleHeaderFromRequest(req.Timestamp, req.CustomerID, req.DiscountType, req.DiscountValue,
		req.TaxType, req.TaxValue, req.Shipping, req.Note)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if err := validateLineInputs(req.Items); err != nil {
		return domain.SaleResponse{}, err
	}

	header.ID = id

	var updated domain.Sale
	err = s.repo.RunInTransaction(ctx, func(tx store.Repository) error {
		existing, err := tx.GetSale(ctx, id)
		if err != nil {
			return fmt.Errorf("sale %s: %w", id, err)
		}
		if header.CustomerID != "" {
			if _, err := tx.GetCustomer(ctx, header.CustomerID); err != nil {
				return fmt.Errorf("customer %s: %w", header.CustomerID, err)
			}
		}
		header.CreatedAt = existing.CreatedAt

		result, err := tx.UpdateSale(ctx, header)
		if err != nil {
			return err
		}

		lineItems, err := s.captureLineItems(ctx, tx, id, req.Items)
		if err != nil {
			return err
		}
		replaced, err := tx.ReplaceLineItems(ctx, id, lineItems)
		if err != nil {
			return err
		}

		updated = *result
		updated.LineItems = replaced
		return nil
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if err := s.summaries.Invalidate(ctx, id); err != nil {
		log.Printf("[service] WARN: summary cache invalidate for sale %s: %v", id, err)
	}
	summary := pricing.Summarize(updated)
	if err := s.summaries.Set(ctx, id, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: summary cache write for sale %s: %v", id, err)
	}
	return domain.SaleResponse{Sale: updated, Summary: summary}, nil
}

func (s *Service) DeleteSaleWithItems(ctx context.Context, id string) error {
	err := s.repo.RunInTransaction(ctx, func(tx store.Repository) error {
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}
	if err := s.summaries.Invalidate(ctx, id); err != nil {
		log.Printf("[service] WARN: summary cache invalidate for sale %s: %v", id, err)
	}
	return nil
}

func (s *Service) saleHeaderFromRequest(timestamp int64, customerID, discountType, discountValue,
	taxType, taxValue, shipping, note string) (domain.Sale, error) {
	parsedDiscountType, err := pricing.ParseDeductionType(discountType)
	if err != nil {
		return domain.Sale{}, err
	}
	parsedTaxType, err := pricing.ParseDeductionType(taxType)
	if err != nil {
		return domain.Sale{}, err
	}
	parsedDiscountValue, err := pricing.ParseOptionalMoney(discountValue)
	if err != nil {
		return domain.Sale{}, err
	}
	parsedTaxValue, err := pricing.ParseOptionalMoney(taxValue)
	if err != nil {
		return domain.Sale{}, err
	}
	parsedShipping, err := pricing.ParseOptionalMoney(shipping)
	if err != nil {
		return domain.Sale{}, err
	}

	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	return domain.Sale{
		Timestamp:     timestamp,
		CustomerID:    strings.TrimSpace(customerID),
		DiscountType:  parsedDiscountType,
		DiscountValue: parsedDiscountValue,
		TaxType:       parsedTaxType,
		TaxValue:      parsedTaxValue,
		Shipping:      parsedShipping,
		Note:          strings.TrimSpace(note),
	}, nil
}

func validateLineInputs(items []domain.SaleLineItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: a sale needs at least one line item", store.ErrEmptyLineItems)
	}
	for _, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: product id is required", store.ErrInvalidInput)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for product %s must be positive", store.ErrInvalidQuantity, item.ProductID)
		}
	}
	return nil
}

// captureLineItems resolves each product and snapshots its current sale and
// cost price into the line item, so later product edits never change the
// recorded sale.
func (s *Service) captureLineItems(ctx context.Context, tx store.Repository, saleID string, items []domain.SaleLineItemInput) ([]domain.SaleLineItem, error) {
	now := time.Now().UTC()
	lineItems := make([]domain.SaleLineItem, 0, len(items))
	for _, input := range items {
		product, err := tx.GetProduct(ctx, input.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", input.ProductID, err)
		}
		salePrice := product.SalePrice
		costPrice := product.CostPrice
		lineItems = append(lineItems, domain.SaleLineItem{
			ID:        xid.New("saleitem"),
			SaleID:    saleID,
			ProductID: product.ID,
			Quantity:  input.Quantity,
			SalePrice: &salePrice,
			CostPrice: &costPrice,
			CreatedAt: now,
		})
	}
	return lineItems, nil
}
