package offers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shamar-morrison/show-seek-sub003/pkg/offers"
)

func TestSortByPriority(t *testing.T) {
	t.Parallel()

	priority := offers.ProductPriority{
		"showseek_premium_yearly":  0,
		"showseek_premium_monthly": 1,
	}

	t.Run("yearly outranks monthly", func(t *testing.T) {
		t.Parallel()
		purchases := []offers.Purchase{
			{ProductID: "showseek_premium_monthly", PurchaseToken: "m"},
			{ProductID: "showseek_premium_yearly", PurchaseToken: "y"},
		}
		sorted := offers.SortByPriority(purchases, priority)
		assert.Equal(t, "y", sorted[0].PurchaseToken)
		assert.Equal(t, "m", sorted[1].PurchaseToken)
	})

	t.Run("unrecognized product ids sort last", func(t *testing.T) {
		t.Parallel()
		purchases := []offers.Purchase{
			{ProductID: "mystery_sku", PurchaseToken: "x"},
			{ProductID: "showseek_premium_monthly", PurchaseToken: "m"},
		}
		sorted := offers.SortByPriority(purchases, priority)
		assert.Equal(t, "m", sorted[0].PurchaseToken)
		assert.Equal(t, "x", sorted[1].PurchaseToken)
	})

	t.Run("stable for equal ranks", func(t *testing.T) {
		t.Parallel()
		purchases := []offers.Purchase{
			{ProductID: "unknown_a", PurchaseToken: "1"},
			{ProductID: "unknown_b", PurchaseToken: "2"},
			{ProductID: "unknown_c", PurchaseToken: "3"},
		}
		sorted := offers.SortByPriority(purchases, priority)
		assert.Equal(t, purchases, sorted)
	})

	t.Run("does not modify the input", func(t *testing.T) {
		t.Parallel()
		purchases := []offers.Purchase{
			{ProductID: "showseek_premium_monthly", PurchaseToken: "m"},
			{ProductID: "showseek_premium_yearly", PurchaseToken: "y"},
		}
		_ = offers.SortByPriority(purchases, priority)
		assert.Equal(t, "m", purchases[0].PurchaseToken)
	})
}
