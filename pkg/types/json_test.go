package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapScanAndMerge(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"payment_status":"paid","n":1}`)))
	assert.Equal(t, "paid", m.String("payment_status"))
	assert.Equal(t, "", m.String("n"))

	merged := m.Merge(map[string]any{"payment_status": "unpaid", "pickup_code": "ABC234"})
	assert.Equal(t, "unpaid", merged.String("payment_status"))
	assert.Equal(t, "ABC234", merged.String("pickup_code"))
	assert.Equal(t, "paid", m.String("payment_status"), "merge must not mutate receiver")

	require.Error(t, m.Scan(42))
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestOrderItemsValueAndSubtotal(t *testing.T) {
	var empty OrderItems
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	items := OrderItems{
		{ID: "p1", Name: "Tomatoes", Quantity: 2, Price: decimal.RequireFromString("3.50")},
		{ID: "p2", Name: "Basil", Quantity: 1, Price: decimal.RequireFromString("2.25")},
	}
	assert.True(t, items.Subtotal().Equal(decimal.RequireFromString("9.25")))

	raw, err := items.Value()
	require.NoError(t, err)

	var decoded OrderItems
	require.NoError(t, decoded.Scan(raw))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Basil", decoded[1].Name)
	assert.True(t, decoded[0].Price.Equal(decimal.RequireFromString("3.5")))
}
