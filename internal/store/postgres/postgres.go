package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tokoku/backend/internal/domain"
	"tokoku/backend/internal/store"
	"tokoku/backend/internal/xid"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every query method works both directly and inside RunInTransaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, q: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const txMaxAttempts = 3

// RunInTransaction runs fn against a serializable transaction and retries a
// bounded number of times when postgres aborts it with a serialization
// failure. fn must therefore be safe to re-run.
func (s *Store) RunInTransaction(ctx context.Context, fn func(store.Repository) error) error {
	if s.db == nil {
		return fn(s)
	}

	var lastErr error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}

		child := &Store{q: tx}
		if err := fn(child); err != nil {
			_ = tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, sale_price, cost_price, unit, notes, created_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		var unit, notes sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.SalePrice, &p.CostPrice, &unit, &notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Unit = unit.String
		p.Notes = notes.String
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	var unit, notes sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, sale_price, cost_price, unit, notes, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.SalePrice, &p.CostPrice, &unit, &notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Unit = unit.String
	p.Notes = notes.String
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO products (id, name, sale_price, cost_price, unit, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, product.ID, product.Name, product.SalePrice, product.CostPrice, nullString(product.Unit), nullString(product.Notes))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE products
		SET name = $2, sale_price = $3, cost_price = $4, unit = $5, notes = $6
		WHERE id = $1
	`, product.ID, product.Name, product.SalePrice, product.CostPrice, nullString(product.Unit), nullString(product.Notes))
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ProductInUse(ctx context.Context, id string) (bool, error) {
	var inUse bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sale_items WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM inventory_items WHERE product_id = $1)
	`, id).Scan(&inUse)
	if err != nil {
		return false, err
	}
	return inUse, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, email, phone, city, state, zip_code, country, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, city, state, zip_code, country, created_at
		FROM customers
		WHERE id = $1
	`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, city, state, zip_code, country, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, customer.ID, customer.Name, nullString(customer.Email), nullString(customer.Phone),
		nullString(customer.City), nullString(customer.State), nullInt(customer.ZipCode), nullString(customer.Country))
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, city = $5, state = $6, zip_code = $7, country = $8
		WHERE id = $1
	`, customer.ID, customer.Name, nullString(customer.Email), nullString(customer.Phone),
		nullString(customer.City), nullString(customer.State), nullInt(customer.ZipCode), nullString(customer.Country))
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, cost, description, ts, created_at
		FROM expenses
		ORDER BY ts DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Cost, &description, &e.Timestamp, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Description = description.String
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	var e domain.Expense
	var description sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, cost, description, ts, created_at
		FROM expenses
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.Cost, &description, &e.Timestamp, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	e.Description = description.String
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || expense.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO expenses (id, name, cost, description, ts, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, expense.ID, expense.Name, expense.Cost, nullString(expense.Description), expense.Timestamp)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || expense.Name == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE expenses
		SET name = $2, cost = $3, description = $4, ts = $5
		WHERE id = $1
	`, expense.ID, expense.Name, expense.Cost, nullString(expense.Description), expense.Timestamp)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	updated := expense
	return &updated, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListInventories(ctx context.Context) ([]domain.Inventory, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM inventories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inventories := make([]domain.Inventory, 0, 16)
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.ID, &inv.Name, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.CreatedAt = inv.CreatedAt.UTC()
		inventories = append(inventories, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range inventories {
		items, err := s.ListInventoryItems(ctx, inventories[i].ID)
		if err != nil {
			return nil, err
		}
		inventories[i].Items = items
	}
	return inventories, nil
}

func (s *Store) GetInventory(ctx context.Context, id string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM inventories
		WHERE id = $1
	`, id).Scan(&inv.ID, &inv.Name, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	inv.CreatedAt = inv.CreatedAt.UTC()

	items, err := s.ListInventoryItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return &inv, nil
}

func (s *Store) CreateInventory(ctx context.Context, inventory domain.Inventory) (*domain.Inventory, error) {
	if inventory.ID == "" || inventory.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO inventories (id, name, created_at)
		VALUES ($1,$2,now())
	`, inventory.ID, inventory.Name)
	if err != nil {
		return nil, err
	}
	created := inventory
	created.Items = nil
	return &created, nil
}

func (s *Store) UpdateInventory(ctx context.Context, inventory domain.Inventory) (*domain.Inventory, error) {
	if inventory.ID == "" || inventory.Name == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE inventories SET name = $2 WHERE id = $1
	`, inventory.ID, inventory.Name)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	updated := inventory
	return &updated, nil
}

func (s *Store) DeleteInventory(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM inventory_items WHERE inventory_id = $1`, id); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM inventories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) GetInventoryItem(ctx context.Context, inventoryID string, productID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.q.QueryRowContext(ctx, `
		SELECT id, inventory_id, product_id, amount, created_at, updated_at
		FROM inventory_items
		WHERE inventory_id = $1 AND product_id = $2
	`, inventoryID, productID).Scan(&item.ID, &item.InventoryID, &item.ProductID, &item.Amount, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

// UpsertInventoryItem relies on the unique (inventory_id, product_id) index:
// the insert either creates the stock record or overwrites its amount.
func (s *Store) UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.InventoryID == "" || item.ProductID == "" || item.Amount < 0 {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("invitem")
	}

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO inventory_items (id, inventory_id, product_id, amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
		ON CONFLICT (inventory_id, product_id)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		RETURNING id, created_at, updated_at
	`, item.ID, item.InventoryID, item.ProductID, item.Amount).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context, inventoryID string) ([]domain.InventoryItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, inventory_id, product_id, amount, created_at, updated_at
		FROM inventory_items
		WHERE inventory_id = $1
		ORDER BY id
	`, inventoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 32)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.InventoryID, &item.ProductID, &item.Amount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, ts, customer_id, discount_type, discount_value, tax_type, tax_value, shipping, note, created_at
		FROM sales
		ORDER BY ts DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.listSaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].LineItems = items
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, ts, customer_id, discount_type, discount_value, tax_type, tax_value, shipping, note, created_at
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.listSaleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.LineItems = items
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sales (id, ts, customer_id, discount_type, discount_value, tax_type, tax_value, shipping, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
	`, sale.ID, sale.Timestamp, nullString(sale.CustomerID),
		nullString(string(sale.DiscountType)), nullDecimal(sale.DiscountValue),
		nullString(string(sale.TaxType)), nullDecimal(sale.TaxValue),
		nullDecimal(sale.Shipping), nullString(sale.Note))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	for _, item := range sale.LineItems {
		if err := s.insertSaleItem(ctx, sale.ID, item); err != nil {
			return nil, err
		}
	}

	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE sales
		SET ts = $2, customer_id = $3, discount_type = $4, discount_value = $5,
		    tax_type = $6, tax_value = $7, shipping = $8, note = $9
		WHERE id = $1
	`, sale.ID, sale.Timestamp, nullString(sale.CustomerID),
		nullString(string(sale.DiscountType)), nullDecimal(sale.DiscountValue),
		nullString(string(sale.TaxType)), nullDecimal(sale.TaxValue),
		nullDecimal(sale.Shipping), nullString(sale.Note))
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	updated := sale
	return &updated, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ReplaceLineItems(ctx context.Context, saleID string, items []domain.SaleLineItem) ([]domain.SaleLineItem, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return nil, err
	}
	replaced := make([]domain.SaleLineItem, 0, len(items))
	for _, item := range items {
		item.SaleID = saleID
		if err := s.insertSaleItem(ctx, saleID, item); err != nil {
			return nil, err
		}
		replaced = append(replaced, item)
	}
	return replaced, nil
}

func (s *Store) insertSaleItem(ctx context.Context, saleID string, item domain.SaleLineItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, sale_price, cost_price, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, item.ID, saleID, item.ProductID, item.Quantity, nullDecimal(item.SalePrice), nullDecimal(item.CostPrice))
	return err
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]domain.SaleLineItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, sale_price, cost_price, created_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleLineItem, 0, 8)
	for rows.Next() {
		var item domain.SaleLineItem
		var salePrice, costPrice decimal.NullDecimal
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &salePrice, &costPrice, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.SalePrice = decimalPtr(salePrice)
		item.CostPrice = decimalPtr(costPrice)
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, user.Username, user.Password, user.Role, user.Active)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	var email, phone, city, state, country sql.NullString
	var zipCode sql.NullInt64
	err := row.Scan(&c.ID, &c.Name, &email, &phone, &city, &state, &zipCode, &country, &c.CreatedAt)
	if err != nil {
		return domain.Customer{}, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.City = city.String
	c.State = state.String
	c.ZipCode = int(zipCode.Int64)
	c.Country = country.String
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var customerID, discountType, taxType, note sql.NullString
	var discountValue, taxValue, shipping decimal.NullDecimal
	err := row.Scan(&sale.ID, &sale.Timestamp, &customerID, &discountType, &discountValue,
		&taxType, &taxValue, &shipping, &note, &sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.CustomerID = customerID.String
	sale.DiscountType = domain.DeductionType(discountType.String)
	sale.DiscountValue = decimalPtr(discountValue)
	sale.TaxType = domain.DeductionType(taxType.String)
	sale.TaxValue = decimalPtr(taxValue)
	sale.Shipping = decimalPtr(shipping)
	sale.Note = note.String
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullInt(value int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(value), Valid: value != 0}
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

func decimalPtr(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	copied := value.Decimal
	return &copied
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
