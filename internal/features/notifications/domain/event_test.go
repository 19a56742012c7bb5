package domain

import (
	"encoding/json"
	"testing"
	"time"

	orderdomain "storefront-orders/internal/features/orders/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusChanged(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))
	o := &orderdomain.Order{ID: 42, CustomerID: "c-9", Status: orderdomain.StatusReturned}

	e := NewStatusChanged(o, at)
	_, err := uuid.Parse(e.EventID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), e.OrderID)
	assert.Equal(t, "RETURNED", e.Status)
	assert.Equal(t, "42", e.Key())
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.True(t, at.Equal(e.OccurredAt))

	other := NewStatusChanged(o, at)
	assert.NotEqual(t, e.EventID, other.EventID)

	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"order.status_changed"`)
	assert.Contains(t, string(b), `"occurred_at":"2026-04-01T08:00:00Z"`)
}
