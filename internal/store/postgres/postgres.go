package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"combopos/backend/internal/domain"
	"combopos/backend/internal/store"
	"combopos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
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

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, name, category, price, active
		FROM products
		WHERE active = true
		ORDER BY category, id
	`)
}

func (s *Store) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	products, err := s.queryProducts(ctx, `SELECT id, name, category, price, active FROM products`)
	if err != nil {
		return nil, err
	}
	return domain.NewCatalog(products), nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}
	products, err := s.queryProducts(ctx, `
		SELECT id, name, category, price, active
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	result := make(map[string]domain.Product, len(products))
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreatePromotion(ctx context.Context, rule domain.PromotionRule) (*domain.PromotionRule, error) {
	if strings.TrimSpace(rule.Name) == "" || len(rule.RequiredItems) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if rule.ID == "" {
		rule.ID = xid.New("combo")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.Active = true

	requiredJSON, err := json.Marshal(rule.RequiredItems)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO promotion_rules (id, name, description, required_items, discount_type, discount_value, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`, rule.ID, rule.Name, rule.Description, requiredJSON, string(rule.Discount.Type), rule.Discount.Value, rule.Active, rule.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := store.ClonePromotion(rule)
	return &created, nil
}

const promotionColumns = `id, name, description, required_items, discount_type, discount_value, active, created_at`

func (s *Store) ListPromotions(ctx context.Context, activeOnly bool) ([]domain.PromotionRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+promotionColumns+`
		FROM promotion_rules
		WHERE ($1 = false OR active = true)
		ORDER BY created_at ASC, id ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.PromotionRule, 0, 16)
	for rows.Next() {
		rule, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) GetPromotion(ctx context.Context, id string) (*domain.PromotionRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+promotionColumns+` FROM promotion_rules WHERE id = $1`, id)
	rule, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (s *Store) UpdatePromotionActive(ctx context.Context, id string, active bool) (*domain.PromotionRule, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE promotion_rules
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+promotionColumns, id, active)
	rule, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromotion(row rowScanner) (domain.PromotionRule, error) {
	var (
		rule         domain.PromotionRule
		requiredJSON []byte
		discountType string
	)
	if err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &requiredJSON, &discountType, &rule.Discount.Value, &rule.Active, &rule.CreatedAt); err != nil {
		return domain.PromotionRule{}, err
	}
	if err := json.Unmarshal(requiredJSON, &rule.RequiredItems); err != nil {
		return domain.PromotionRule{}, err
	}
	rule.Discount.Type = domain.DiscountType(discountType)
	rule.CreatedAt = rule.CreatedAt.UTC()
	return rule, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.StoreID) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusOpen
	}
	if order.Items == nil {
		order.Items = []domain.CartLineItem{}
	}
	if order.DismissedCombos == nil {
		order.DismissedCombos = []string{}
	}
	order.Version = 1

	itemsJSON, dismissedJSON, err := marshalCart(order)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, store_id, terminal_id, status, items, dismissed_combos, total_price, version, opened_by, created_at, updated_at, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, order.ID, order.StoreID, order.TerminalID, order.Status, itemsJSON, dismissedJSON, order.TotalPrice,
		order.Version, order.OpenedBy, order.CreatedAt, order.UpdatedAt, nullTime(order.ClosedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := store.CloneOrder(order)
	return &created, nil
}

const orderColumns = `id, store_id, terminal_id, status, items, dismissed_combos, total_price, version, opened_by, created_at, updated_at, closed_at`

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *Store) SaveOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.Items == nil {
		order.Items = []domain.CartLineItem{}
	}
	if order.DismissedCombos == nil {
		order.DismissedCombos = []string{}
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	itemsJSON, dismissedJSON, err := marshalCart(order)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET items = $3, dismissed_combos = $4, total_price = $5, status = $6,
			closed_at = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+orderColumns,
		order.ID, order.Version, itemsJSON, dismissedJSON, order.TotalPrice, order.Status,
		nullTime(order.ClosedAt), order.UpdatedAt)
	saved, err := scanOrder(row)
	if err == nil {
		return &saved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrConflict
}

func (s *Store) ListStaleOrders(ctx context.Context, idleBefore time.Time, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC, id ASC
		LIMIT $3
	`, domain.OrderStatusOpen, idleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		itemsJSON     []byte
		dismissedJSON []byte
		closedAt      sql.NullTime
	)
	err := row.Scan(&order.ID, &order.StoreID, &order.TerminalID, &order.Status, &itemsJSON, &dismissedJSON,
		&order.TotalPrice, &order.Version, &order.OpenedBy, &order.CreatedAt, &order.UpdatedAt, &closedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(dismissedJSON, &order.DismissedCombos); err != nil {
		return domain.Order{}, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		order.ClosedAt = &at
	}
	return order, nil
}

func marshalCart(order domain.Order) ([]byte, []byte, error) {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, nil, err
	}
	dismissedJSON, err := json.Marshal(order.DismissedCombos)
	if err != nil {
		return nil, nil, err
	}
	return itemsJSON, dismissedJSON, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM user_accounts
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// UpsertUser stores an account whose password is already hashed.
func (s *Store) UpsertUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (username)
		DO UPDATE SET password = EXCLUDED.password, role = EXCLUDED.role, active = EXCLUDED.active
	`, username, user.Password, user.Role, user.Active)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
