package domain

import "time"

// Product is a catalog entry. Price is in minor currency units.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Active   bool   `json:"active"`
}

// Catalog indexes products by ID.
type Catalog map[string]Product

func NewCatalog(products []Product) Catalog {
	catalog := make(Catalog, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return catalog
}

type CartLineItem struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Price         int64          `json:"price"`
	Quantity      int            `json:"quantity"`
	Status        string         `json:"status"`
	IsCombo       bool           `json:"is_combo"`
	ComboID       string         `json:"combo_id,omitempty"`
	ComboExpanded bool           `json:"combo_expanded,omitempty"`
	ComboItems    []CartLineItem `json:"combo_items,omitempty"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Discount struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value"`
}

type RequirementKind int

const (
	RequirementInvalid RequirementKind = iota
	RequirementCategory
	RequirementItem
)

// RequiredItem matches either a product category or an exact product ID.
// Exactly one of Category and ItemID is set.
type RequiredItem struct {
	Category    string `json:"category,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	MinQuantity int    `json:"min_quantity"`
}

func (r RequiredItem) Kind() RequirementKind {
	switch {
	case r.Category != "" && r.ItemID == "":
		return RequirementCategory
	case r.ItemID != "" && r.Category == "":
		return RequirementItem
	default:
		return RequirementInvalid
	}
}

type PromotionRule struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	RequiredItems []RequiredItem `json:"required_items"`
	Discount      Discount       `json:"discount"`
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
}

type PromotionCreateRequest struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	RequiredItems []RequiredItem `json:"required_items"`
	Discount      Discount       `json:"discount"`
}

type PromotionToggleRequest struct {
	Active bool `json:"active"`
}

type ComboSuggestion struct {
	ComboID     string `json:"combo_id"`
	ComboName   string `json:"combo_name"`
	Eligible    bool   `json:"eligible"`
	Description string `json:"description"`
}

type ComboSuggestionResponse struct {
	OrderID     string            `json:"order_id"`
	Suggestions []ComboSuggestion `json:"suggestions"`
	Visible     []ComboSuggestion `json:"visible"`
}

type Order struct {
	ID              string         `json:"id"`
	StoreID         string         `json:"store_id"`
	TerminalID      string         `json:"terminal_id"`
	Status          string         `json:"status"`
	Items           []CartLineItem `json:"items"`
	DismissedCombos []string       `json:"dismissed_combos"`
	TotalPrice      int64          `json:"total_price"`
	Version         int64          `json:"version"`
	OpenedBy        string         `json:"opened_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
}

type OrderOpenRequest struct {
	StoreID    string `json:"store_id"`
	TerminalID string `json:"terminal_id"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ApplyComboRequest struct {
	ComboID string `json:"combo_id"`
}

type ApplyComboResponse struct {
	Order         Order        `json:"order"`
	Combo         CartLineItem `json:"combo"`
	OriginalPrice int64        `json:"original_price"`
	FinalPrice    int64        `json:"final_price"`
}

type CustomizeComboItemRequest struct {
	ProductID string `json:"product_id"`
}

type ComboCustomizationOptions struct {
	LineID      string       `json:"line_id"`
	Index       int          `json:"index"`
	Current     CartLineItem `json:"current"`
	Substitutes []Product    `json:"substitutes"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	LineStatusPending = "pending"
)

const (
	OrderStatusOpen      = "open"
	OrderStatusFinalized = "finalized"
	OrderStatusAbandoned = "abandoned"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
