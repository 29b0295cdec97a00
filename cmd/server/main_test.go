package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"combopos/backend/internal/config"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/recommendation"
	"combopos/backend/internal/service"
	"combopos/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	assert.Error(t, err)
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	assert.NoError(t, err)
}

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	svc := service.New(memory.New(memory.SeedProducts()), nil, "main-store")

	_, err := newSweeper(config.Config{StaleOrderSweep: "every now and then", OrderIdleMinutes: 60}, svc, zap.NewNop())
	assert.Error(t, err)

	c, err := newSweeper(config.Config{StaleOrderSweep: "@every 1m", OrderIdleMinutes: 60}, svc, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}

func TestSweepStaleOrdersRunsAsSystem(t *testing.T) {
	repo := memory.New(memory.SeedProducts())
	now := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	svc := service.New(repo, recommendation.NewEngine(nil, 0, nil), "main-store",
		service.WithClock(func() time.Time { return now }))

	cashier := service.WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
	order, err := svc.OpenOrder(cashier, domain.OrderOpenRequest{})
	require.NoError(t, err)

	now = now.Add(3 * time.Hour)
	assert.Equal(t, 1, sweepStaleOrders(context.Background(), svc, time.Hour, zap.NewNop()))

	reloaded, err := svc.GetOrder(cashier, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAbandoned, reloaded.Status)
}

type accountRecorder struct {
	users []domain.UserAccount
}

func (r *accountRecorder) UpsertUser(_ context.Context, user domain.UserAccount) error {
	r.users = append(r.users, user)
	return nil
}

func TestSeedAccountsHashesConfiguredPasswords(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "s3cret-admin")
	t.Setenv("SEED_CASHIER_PASSWORD", "")

	rec := &accountRecorder{}
	require.NoError(t, seedAccounts(context.Background(), rec))

	require.Len(t, rec.users, 1)
	assert.Equal(t, "admin", rec.users[0].Username)
	assert.Equal(t, domain.RoleAdmin, rec.users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.users[0].Password), []byte("s3cret-admin")))
}
