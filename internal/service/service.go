package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"combopos/backend/internal/combo"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/logging"
	"combopos/backend/internal/notify"
	"combopos/backend/internal/recommendation"
	"combopos/backend/internal/store"
	"combopos/backend/internal/xid"
)

var (
	ErrForbidden   = errors.New("permission denied")
	ErrOrderClosed = errors.New("order is closed")
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
	repo           store.Repository
	carts          CartAccessor
	recommender    *recommendation.Engine
	notifier       notify.Notifier
	logger         *zap.Logger
	defaultStoreID string
	newSuffix      func() string
	now            func() time.Time
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(logger) }
}

// WithComboSuffix overrides how combo line ids are made unique.
func WithComboSuffix(fn func() string) Option {
	return func(s *Service) { s.newSuffix = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithCartAccessor(carts CartAccessor) Option {
	return func(s *Service) {
		if carts != nil {
			s.carts = carts
		}
	}
}

func New(repo store.Repository, recommender *recommendation.Engine, defaultStoreID string, opts ...Option) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if recommender == nil {
		recommender = recommendation.NewEngine(nil, 0, nil)
	}

	s := &Service{
		repo:           repo,
		recommender:    recommender,
		notifier:       notify.Noop{},
		logger:         zap.NewNop(),
		defaultStoreID: defaultStoreID,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.carts == nil {
		s.carts = NewRepositoryCarts(repo, s.now)
	}
	return s
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListPromotions(ctx context.Context, activeOnly bool) ([]domain.PromotionRule, error) {
	return s.repo.ListPromotions(ctx, activeOnly)
}

func (s *Service) CreatePromotion(ctx context.Context, req domain.PromotionCreateRequest) (domain.PromotionRule, error) {
	if err := s.authorize(ctx, PermManagePromotions); err != nil {
		return domain.PromotionRule{}, err
	}

	rule := domain.PromotionRule{
		ID:            strings.TrimSpace(req.ID),
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		RequiredItems: make([]domain.RequiredItem, 0, len(req.RequiredItems)),
		Discount:      req.Discount,
	}
	for _, item := range req.RequiredItems {
		rule.RequiredItems = append(rule.RequiredItems, domain.RequiredItem{
			Category:    strings.TrimSpace(item.Category),
			ItemID:      strings.TrimSpace(item.ItemID),
			MinQuantity: item.MinQuantity,
		})
	}
	if rule.ID == "" {
		rule.ID = xid.New("combo")
	}
	if rule.Name == "" {
		return domain.PromotionRule{}, fmt.Errorf("%w: name is required", store.ErrInvalidTransaction)
	}
	if err := combo.ValidateRule(rule); err != nil {
		return domain.PromotionRule{}, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	if rule.Discount.Type == domain.DiscountPercentage && rule.Discount.Value > 100 {
		return domain.PromotionRule{}, fmt.Errorf("%w: percentage discount above 100", store.ErrInvalidTransaction)
	}

	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return domain.PromotionRule{}, err
	}
	for _, item := range rule.RequiredItems {
		if item.Kind() != domain.RequirementItem {
			continue
		}
		if _, ok := catalog[item.ItemID]; !ok {
			return domain.PromotionRule{}, fmt.Errorf("%w: unknown product %s", store.ErrInvalidTransaction, item.ItemID)
		}
	}

	created, err := s.repo.CreatePromotion(ctx, rule)
	if err != nil {
		return domain.PromotionRule{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "promotion_create", "promotion", created.ID, fmt.Sprintf("name=%s,requires=%s,discount=%s:%g", created.Name, combo.Describe(*created), created.Discount.Type, created.Discount.Value))
	return *created, nil
}

func (s *Service) SetPromotionActive(ctx context.Context, promotionID string, active bool) (domain.PromotionRule, error) {
	if err := s.authorize(ctx, PermManagePromotions); err != nil {
		return domain.PromotionRule{}, err
	}
	promotionID = strings.TrimSpace(promotionID)
	if promotionID == "" {
		return domain.PromotionRule{}, store.ErrInvalidTransaction
	}

	rule, err := s.repo.UpdatePromotionActive(ctx, promotionID, active)
	if err != nil {
		return domain.PromotionRule{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "promotion_toggle", "promotion", rule.ID, fmt.Sprintf("active=%t", rule.Active))
	return *rule, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if err := s.authorize(ctx, PermViewAudit); err != nil {
		return nil, err
	}
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)
	if strings.TrimSpace(date) == "" {
		to = s.now().Add(time.Second)
	}

	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func (s *Service) authorize(ctx context.Context, perm Permission) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: %s requires an authenticated actor", ErrForbidden, perm)
	}
	if !HasPermission(actor.Role, perm) {
		return fmt.Errorf("%w: role %s lacks %s", ErrForbidden, actor.Role, perm)
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, order domain.Order, kind string, rule domain.PromotionRule, line domain.CartLineItem, originalPrice int64) {
	event := notify.Event{
		Kind:          kind,
		StoreID:       order.StoreID,
		OrderID:       order.ID,
		ComboID:       rule.ID,
		ComboName:     rule.Name,
		LineID:        line.ID,
		OriginalPrice: originalPrice,
		FinalPrice:    line.Price,
		Message:       notify.Message(kind, rule.Name),
		OccurredAt:    s.now(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("failed to deliver combo notification",
			zap.String("kind", kind),
			zap.String("order_id", order.ID),
			zap.String("combo_id", rule.ID),
			zap.Error(err))
	}
}
