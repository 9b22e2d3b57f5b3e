package store

import (
	"context"
	"errors"

	"tokoku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyLineItems    = errors.New("empty line items")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrDuplicateProduct  = errors.New("duplicate product in request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductInUse      = errors.New("product in use")
	ErrForbidden         = errors.New("forbidden")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ProductInUse(ctx context.Context, id string) (bool, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	ListInventories(ctx context.Context) ([]domain.Inventory, error)
	GetInventory(ctx context.Context, id string) (*domain.Inventory, error)
	CreateInventory(ctx context.Context, inventory domain.Inventory) (*domain.Inventory, error)
	UpdateInventory(ctx context.Context, inventory domain.Inventory) (*domain.Inventory, error)
	DeleteInventory(ctx context.Context, id string) error
	GetInventoryItem(ctx context.Context, inventoryID string, productID string) (*domain.InventoryItem, error)
	UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	ListInventoryItems(ctx context.Context, inventoryID string) ([]domain.InventoryItem, error)

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	ReplaceLineItems(ctx context.Context, saleID string, items []domain.SaleLineItem) ([]domain.SaleLineItem, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	// RunInTransaction executes fn against a transactional view of the
	// repository. If fn returns an error nothing it wrote is visible.
	RunInTransaction(ctx context.Context, fn func(Repository) error) error
}
