package bonds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCallableBond(t *testing.T) {
	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	b := ToCallableBond(
		[]CashflowCents{{Date: d1, CouponCents: 275}, {Date: d2, CouponCents: 275, PrincipalCents: 10000}},
		[]StrikeCents{{Date: d2, PriceCents: 10150}},
		nil,
	)

	require.Len(t, b.Cashflows, 2)
	assert.Equal(t, 2.75, b.Cashflows[0].Coupon)
	assert.Equal(t, 102.75, b.Cashflows[1].Amount())
	require.Len(t, b.Calls, 1)
	assert.Equal(t, 101.5, b.Calls[0].Price)
	assert.Nil(t, b.Puts)
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(10275), ToCents(102.75))
	assert.Equal(t, int64(10), ToCents(0.095))
	assert.Equal(t, int64(-10), ToCents(-0.095))
	assert.Equal(t, int64(0), ToCents(0.004))
}
