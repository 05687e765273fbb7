package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestStockDepletedCreatesNotification(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	product := &models.Product{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Code:     "C100",
		Name:     "Vestido floral",
		Price:    decimal.RequireFromString("89.90"),
	}

	require.NoError(t, svc.StockDepleted(ctx, product))

	result, err := svc.List(ctx, ListParams{TenantID: product.TenantID})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	got := result.Items[0]
	require.Equal(t, enums.NotificationTypeStockDepleted, got.Type)
	require.NotNil(t, got.ProductID)
	require.Equal(t, product.ID, *got.ProductID)
	require.Contains(t, got.Message, "C100")
	require.Empty(t, result.Cursor)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		n := &models.Notification{
			TenantID:  tenantID,
			Type:      enums.NotificationTypeStockDepleted,
			Title:     "t",
			Message:   "m",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, n))
		ids[i] = n.ID
	}

	first, err := svc.List(ctx, ListParams{TenantID: tenantID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, ids[2], first.Items[0].ID)
	require.Equal(t, ids[1], first.Items[1].ID)
	require.NotEmpty(t, first.Cursor)

	decoded, err := pagination.ParseCursor(first.Cursor)
	require.NoError(t, err)
	require.Equal(t, ids[1], decoded.ID)

	second, err := svc.List(ctx, ListParams{TenantID: tenantID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, ids[0], second.Items[0].ID)
	require.Empty(t, second.Cursor)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), ListParams{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{TenantID: uuid.New(), Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkRead(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	n := &models.Notification{TenantID: tenantID, Type: enums.NotificationTypeStockDepleted, Title: "t", Message: "m"}
	require.NoError(t, repo.Create(ctx, n))

	require.NoError(t, svc.MarkRead(ctx, tenantID, n.ID))
	// second call is a no-op but the row still exists
	require.NoError(t, svc.MarkRead(ctx, tenantID, n.ID))

	err := svc.MarkRead(ctx, uuid.New(), n.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	unread, err := svc.List(ctx, ListParams{TenantID: tenantID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread.Items)
}

func TestMarkAllReadScopesToTenant(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tenantID, other := uuid.New(), uuid.New()
	for _, owner := range []uuid.UUID{tenantID, tenantID, other} {
		require.NoError(t, repo.Create(ctx, &models.Notification{TenantID: owner, Type: enums.NotificationTypeStockDepleted, Title: "t", Message: "m"}))
	}

	count, err := svc.MarkAllRead(ctx, tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	unread, err := svc.List(ctx, ListParams{TenantID: other, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)

	_, err = svc.MarkAllRead(ctx, uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeleteReadBefore(t *testing.T) {
	_, repo := newTestService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	read := &models.Notification{TenantID: tenantID, Type: enums.NotificationTypeStockDepleted, Title: "a", Message: "a", CreatedAt: old}
	unread := &models.Notification{TenantID: tenantID, Type: enums.NotificationTypeStockDepleted, Title: "b", Message: "b", CreatedAt: old}
	require.NoError(t, repo.Create(ctx, read))
	require.NoError(t, repo.Create(ctx, unread))
	_, err := repo.MarkRead(ctx, tenantID, read.ID, old.Add(time.Hour))
	require.NoError(t, err)

	deleted, err := repo.DeleteReadBefore(ctx, old.Add(24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}
