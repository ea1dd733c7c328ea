package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/order-service/internal/domain"
)

func TestRestoreOrderResetsFailedOrder(t *testing.T) {
	e := newEnv(t)
	order := seedOrder(t, e, domain.StatusProcessing)
	require.NoError(t, e.svc.OnPaymentFailed(context.Background(), outcomeEvent(order.ID)))

	restored, err := e.svc.RestoreOrder(context.Background(), "user-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, restored.Status)
	assert.Nil(t, restored.PaymentDetails, "payment details are cleared for retry")

	stored, err := e.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, stored.Status)
}

func TestRestoreOrderRejectsForeignOrder(t *testing.T) {
	e := newEnv(t)
	order := seedOrder(t, e, domain.StatusPendingPayment)

	_, err := e.svc.RestoreOrder(context.Background(), "someone-else", order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRestoreOrderRejectsSettledOrder(t *testing.T) {
	e := newEnv(t)
	order := seedOrder(t, e, domain.StatusProcessing)
	require.NoError(t, e.svc.OnPaymentSucceeded(context.Background(), outcomeEvent(order.ID)))

	_, err := e.svc.RestoreOrder(context.Background(), "user-1", order.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestRestoreOrderOnCreatedIsNoOp(t *testing.T) {
	e := newEnv(t)
	order := seedOrder(t, e, domain.StatusCreated)
	saves := e.orders.saves

	restored, err := e.svc.RestoreOrder(context.Background(), "user-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, restored.Status)
	assert.Equal(t, saves, e.orders.saves)
}
