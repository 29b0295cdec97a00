package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"combopos/backend/internal/domain"
	"combopos/backend/internal/store"
	"combopos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	promotionsByID  map[string]domain.PromotionRule
	ordersByID      map[string]domain.Order
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset, dev defaults are used and a warning is printed.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
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

// SeedProducts is the demo café menu.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{ID: "SP001", Name: "Cà phê sữa đá", Category: "coffee", Price: 40000, Active: true},
		{ID: "SP002", Name: "Bánh croissant", Category: "bakery", Price: 30000, Active: true},
		{ID: "SP003", Name: "Cà phê đen đá", Category: "coffee", Price: 35000, Active: true},
		{ID: "SP004", Name: "Bạc xỉu", Category: "coffee", Price: 45000, Active: true},
		{ID: "SP005", Name: "Trà đào cam sả", Category: "tea", Price: 55000, Active: true},
		{ID: "SP006", Name: "Trà sen vàng", Category: "tea", Price: 50000, Active: true},
		{ID: "SP007", Name: "Bánh mì thịt", Category: "food", Price: 35000, Active: true},
		{ID: "SP008", Name: "Bánh flan", Category: "dessert", Price: 25000, Active: true},
		{ID: "SP009", Name: "Nước cam ép", Category: "juice", Price: 45000, Active: true},
		{ID: "SP010", Name: "Sinh tố bơ", Category: "juice", Price: 50000, Active: false},
	}
}

// SeedPromotions is the demo combo set, in declaration order.
func SeedPromotions() []domain.PromotionRule {
	return []domain.PromotionRule{
		{
			ID:            "combo-coffee-pair",
			Name:          "Đôi cà phê",
			Description:   "Any 2 coffees, 10% off",
			RequiredItems: []domain.RequiredItem{{Category: "coffee", MinQuantity: 2}},
			Discount:      domain.Discount{Type: domain.DiscountPercentage, Value: 10},
			Active:        true,
		},
		{
			ID:          "combo-breakfast",
			Name:        "Bữa sáng",
			Description: "Cà phê sữa đá + Bánh croissant, 5.000₫ off",
			RequiredItems: []domain.RequiredItem{
				{ItemID: "SP001", MinQuantity: 1},
				{ItemID: "SP002", MinQuantity: 1},
			},
			Discount: domain.Discount{Type: domain.DiscountFixed, Value: 5000},
			Active:   true,
		},
		{
			ID:          "combo-tea-dessert",
			Name:        "Trà và bánh flan",
			Description: "Any tea + Bánh flan, 15% off",
			RequiredItems: []domain.RequiredItem{
				{Category: "tea", MinQuantity: 1},
				{ItemID: "SP008", MinQuantity: 1},
			},
			Discount: domain.Discount{Type: domain.DiscountPercentage, Value: 15},
			Active:   true,
		},
	}
}

func NewSeeded() *Store {
	s := New(SeedProducts())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, rule := range SeedPromotions() {
		rule.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.promotionsByID[rule.ID] = rule
	}
	s.usersByUsername = seedUsers()
	return s
}

// New returns a store with the given catalog and nothing else.
func New(products []domain.Product) *Store {
	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	return &Store{
		products:        productMap,
		promotionsByID:  make(map[string]domain.PromotionRule),
		ordersByID:      make(map[string]domain.Order),
		auditLogs:       make([]domain.AuditLog, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

// GetCatalog includes inactive products so lines already in a cart keep their category.
func (s *Store) GetCatalog(_ context.Context) (domain.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	catalog := make(domain.Catalog, len(s.products))
	for id, p := range s.products {
		catalog[id] = p
	}
	return catalog, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreatePromotion(_ context.Context, rule domain.PromotionRule) (*domain.PromotionRule, error) {
	if strings.TrimSpace(rule.Name) == "" || len(rule.RequiredItems) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = xid.New("combo")
	}
	if _, exists := s.promotionsByID[rule.ID]; exists {
		return nil, store.ErrConflict
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.Active = true
	s.promotionsByID[rule.ID] = store.ClonePromotion(rule)
	saved := store.ClonePromotion(rule)
	return &saved, nil
}

// ListPromotions returns rules in creation order, which is their declaration order.
func (s *Store) ListPromotions(_ context.Context, activeOnly bool) ([]domain.PromotionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.PromotionRule, 0, len(s.promotionsByID))
	for _, rule := range s.promotionsByID {
		if activeOnly && !rule.Active {
			continue
		}
		rules = append(rules, store.ClonePromotion(rule))
	}
	slices.SortFunc(rules, func(a, b domain.PromotionRule) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return rules, nil
}

func (s *Store) GetPromotion(_ context.Context, id string) (*domain.PromotionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.promotionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyRule := store.ClonePromotion(rule)
	return &copyRule, nil
}

func (s *Store) UpdatePromotionActive(_ context.Context, id string, active bool) (*domain.PromotionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.promotionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	rule.Active = active
	s.promotionsByID[id] = rule
	copyRule := store.ClonePromotion(rule)
	return &copyRule, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.StoreID) == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrConflict
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

	s.ordersByID[order.ID] = store.CloneOrder(order)
	saved := store.CloneOrder(order)
	return &saved, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := store.CloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) SaveOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.ordersByID[order.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if current.Version != order.Version {
		return nil, store.ErrConflict
	}

	current.Items = order.Items
	if current.Items == nil {
		current.Items = []domain.CartLineItem{}
	}
	current.DismissedCombos = order.DismissedCombos
	if current.DismissedCombos == nil {
		current.DismissedCombos = []string{}
	}
	current.TotalPrice = order.TotalPrice
	current.Status = order.Status
	current.ClosedAt = order.ClosedAt
	current.UpdatedAt = order.UpdatedAt
	if current.UpdatedAt.IsZero() {
		current.UpdatedAt = time.Now().UTC()
	}
	current.Version++

	s.ordersByID[current.ID] = store.CloneOrder(current)
	saved := store.CloneOrder(current)
	return &saved, nil
}

func (s *Store) ListStaleOrders(_ context.Context, idleBefore time.Time, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, 16)
	for _, order := range s.ordersByID {
		if order.Status != domain.OrderStatusOpen || !order.UpdatedAt.Before(idleBefore) {
			continue
		}
		result = append(result, store.CloneOrder(order))
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

// PutUser stores an account whose password is already hashed.
func (s *Store) PutUser(user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}
