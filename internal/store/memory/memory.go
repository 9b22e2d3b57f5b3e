package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/xid"
)

// state is the whole dataset behind a memory Store. Transactions clone it,
// mutate the clone, and swap it back in on success, so a failed transaction
// leaves the published state untouched.
type state struct {
	products       map[string]domain.Product
	customers      map[string]domain.Customer
	expenses       map[string]domain.Expense
	inventories    map[string]domain.Inventory
	inventoryItems map[string]map[string]domain.InventoryItem
	sales          map[string]domain.Sale
	saleItems      map[string][]domain.SaleLineItem
	users          map[string]domain.UserAccount
}

func newState() *state {
	return &state{
		products:       make(map[string]domain.Product),
		customers:      make(map[string]domain.Customer),
		expenses:       make(map[string]domain.Expense),
		inventories:    make(map[string]domain.Inventory),
		inventoryItems: make(map[string]map[string]domain.InventoryItem),
		sales:          make(map[string]domain.Sale),
		saleItems:      make(map[string][]domain.SaleLineItem),
		users:          make(map[string]domain.UserAccount),
	}
}

func (st *state) clone() *state {
	next := &state{
		products:       make(map[string]domain.Product, len(st.products)),
		customers:      make(map[string]domain.Customer, len(st.customers)),
		expenses:       make(map[string]domain.Expense, len(st.expenses)),
		inventories:    make(map[string]domain.Inventory, len(st.inventories)),
		inventoryItems: make(map[string]map[string]domain.InventoryItem, len(st.inventoryItems)),
		sales:          make(map[string]domain.Sale, len(st.sales)),
		saleItems:      make(map[string][]domain.SaleLineItem, len(st.saleItems)),
		users:          make(map[string]domain.UserAccount, len(st.users)),
	}
	for id, p := range st.products {
		next.products[id] = p
	}
	for id, c := range st.customers {
		next.customers[id] = c
	}
	for id, e := range st.expenses {
		next.expenses[id] = e
	}
	for id, inv := range st.inventories {
		next.inventories[id] = inv
	}
	for invID, items := range st.inventoryItems {
		copied := make(map[string]domain.InventoryItem, len(items))
		for productID, item := range items {
			copied[productID] = item
		}
		next.inventoryItems[invID] = copied
	}
	for id, sale := range st.sales {
		next.sales[id] = sale
	}
	for saleID, items := range st.saleItems {
		next.saleItems[saleID] = slices.Clone(items)
	}
	for username, u := range st.users {
		next.users[username] = u
	}
	return next
}

type Store struct {
	mu   sync.RWMutex
	st   *state
	inTx bool
}

func New() *Store {
	return &Store{st: newState()}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	st := newState()
	now := time.Now().UTC()

	seed := []struct {
		name      string
		salePrice string
		costPrice string
		unit      string
	}{
		{"House Blend Beans 250g", "14.500", "9.250", "bag"},
		{"Single Origin Beans 250g", "18.000", "12.400", "bag"},
		{"Cold Brew Bottle", "6.500", "3.100", "bottle"},
		{"Ceramic Mug", "12.000", "5.750", "piece"},
		{"Paper Cup 12oz", "0.180", "0.095", "piece"},
		{"Oat Milk 1L", "4.200", "2.900", "carton"},
	}

	warehouse := domain.Inventory{
		ID:        xid.New("inv"),
		Name:      "Main Warehouse",
		CreatedAt: now,
	}
	st.inventories[warehouse.ID] = warehouse
	st.inventoryItems[warehouse.ID] = make(map[string]domain.InventoryItem)

	for _, p := range seed {
		salePrice, _ := decimal.NewFromString(p.salePrice)
		costPrice, _ := decimal.NewFromString(p.costPrice)
		product := domain.Product{
			ID:        xid.New("prod"),
			Name:      p.name,
			SalePrice: salePrice,
			CostPrice: costPrice,
			Unit:      p.unit,
			CreatedAt: now,
		}
		st.products[product.ID] = product
		st.inventoryItems[warehouse.ID][product.ID] = domain.InventoryItem{
			ID:          xid.New("invitem"),
			InventoryID: warehouse.ID,
			ProductID:   product.ID,
			Amount:      50,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	st.users = seedUsers()
	return &Store{st: st}
}

// RunInTransaction runs fn against a clone of the current state and swaps
// the clone in only if fn succeeds. Nested calls reuse the same clone.
func (s *Store) RunInTransaction(_ context.Context, fn func(store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := s.st.clone()
	child := &Store{st: scratch, inTx: true}
	if err := fn(child); err != nil {
		return err
	}
	s.st = scratch
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.st.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.st.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.st.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.st.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.st.products, id)
	return nil
}

func (s *Store) ProductInUse(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, items := range s.st.saleItems {
		for _, item := range items {
			if item.ProductID == id {
				return true, nil
			}
		}
	}
	for _, items := range s.st.inventoryItems {
		if _, exists := items[id]; exists {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.st.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := customer
	return &copied, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.st.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.st.customers[customer.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.st.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.customers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.st.customers, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.st.expenses))
	for _, e := range s.st.expenses {
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	return expenses, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, exists := s.st.expenses[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := expense
	return &copied, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" || expense.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.st.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" || expense.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.st.expenses[expense.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.st.expenses[expense.ID] = expense
	updated := expense
	return &updated, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.expenses[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.st.expenses, id)
	return nil
}

func (s *Store) ListInventories(_ context.Context) ([]domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inventories := make([]domain.Inventory, 0, len(s.st.inventories))
	for _, inv := range s.st.inventories {
		inv.Items = s.itemsForInventoryLocked(inv.ID)
		inventories = append(inventories, inv)
	}
	slices.SortFunc(inventories, func(a, b domain.Inventory) int {
		return strings.Compare(a.Name, b.Name)
	})
	return inventories, nil
}

func (s *Store) GetInventory(_ context.Context, id string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inventory, exists := s.st.inventories[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	inventory.Items = s.itemsForInventoryLocked(id)
	return &inventory, nil
}

func (s *Store) CreateInventory(_ context.Context, inventory domain.Inventory) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inventory.ID == "" || inventory.Name == "" {
		return nil, store.ErrInvalidInput
	}
	inventory.Items = nil
	s.st.inventories[inventory.ID] = inventory
	s.st.inventoryItems[inventory.ID] = make(map[string]domain.InventoryItem)
	created := inventory
	return &created, nil
}

func (s *Store) UpdateInventory(_ context.Context, inventory domain.Inventory) (*domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inventory.ID == "" || inventory.Name == "" {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.st.inventories[inventory.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing.Name = inventory.Name
	s.st.inventories[inventory.ID] = existing
	updated := existing
	return &updated, nil
}

// DeleteInventory removes the inventory and every stock record it owns.
func (s *Store) DeleteInventory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.inventories[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.st.inventories, id)
	delete(s.st.inventoryItems, id)
	return nil
}

func (s *Store) GetInventoryItem(_ context.Context, inventoryID string, productID string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, exists := s.st.inventoryItems[inventoryID]
	if !exists {
		return nil, store.ErrNotFound
	}
	item, exists := items[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := item
	return &copied, nil
}

// UpsertInventoryItem inserts or replaces the stock record for the item's
// (inventory, product) pair. The inventory must already exist.
func (s *Store) UpsertInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.InventoryID == "" || item.ProductID == "" || item.Amount < 0 {
		return nil, store.ErrInvalidInput
	}
	items, exists := s.st.inventoryItems[item.InventoryID]
	if !exists {
		return nil, store.ErrNotFound
	}

	now := time.Now().UTC()
	if existing, found := items[item.ProductID]; found {
		existing.Amount = item.Amount
		existing.UpdatedAt = now
		items[item.ProductID] = existing
		copied := existing
		return &copied, nil
	}

	if item.ID == "" {
		item.ID = xid.New("invitem")
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	items[item.ProductID] = item
	copied := item
	return &copied, nil
}

func (s *Store) ListInventoryItems(_ context.Context, inventoryID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.st.inventories[inventoryID]; !exists {
		return nil, store.ErrNotFound
	}
	return s.itemsForInventoryLocked(inventoryID), nil
}

func (s *Store) itemsForInventoryLocked(inventoryID string) []domain.InventoryItem {
	items := make([]domain.InventoryItem, 0, len(s.st.inventoryItems[inventoryID]))
	for _, item := range s.st.inventoryItems[inventoryID] {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		return strings.Compare(a.ID, b.ID)
	})
	return items
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.st.sales))
	for _, sale := range s.st.sales {
		sale.LineItems = slices.Clone(s.st.saleItems[sale.ID])
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.st.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale.LineItems = slices.Clone(s.st.saleItems[id])
	return &sale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		return nil, store.ErrInvalidInput
	}
	items := slices.Clone(sale.LineItems)
	sale.LineItems = nil
	s.st.sales[sale.ID] = sale
	s.st.saleItems[sale.ID] = items

	created := sale
	created.LineItems = slices.Clone(items)
	return &created, nil
}

// UpdateSale rewrites the sale header only; line items are handled by
// ReplaceLineItems.
func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.st.sales[sale.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale.CreatedAt = existing.CreatedAt
	sale.LineItems = nil
	s.st.sales[sale.ID] = sale

	updated := sale
	updated.LineItems = slices.Clone(s.st.saleItems[sale.ID])
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.sales[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.st.saleItems, id)
	delete(s.st.sales, id)
	return nil
}

// ReplaceLineItems discards the sale's current item set and stores the given
// one. Previous item ids are gone after this call.
func (s *Store) ReplaceLineItems(_ context.Context, saleID string, items []domain.SaleLineItem) ([]domain.SaleLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.sales[saleID]; !exists {
		return nil, store.ErrNotFound
	}
	replaced := slices.Clone(items)
	for i := range replaced {
		replaced[i].SaleID = saleID
	}
	s.st.saleItems[saleID] = replaced
	return slices.Clone(replaced), nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.st.users[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	s.st.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.st.users))
	for _, u := range s.st.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.st.users[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.st.users[user.Username] = user
	return nil
}
