package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quill-ai-api/internal/config"
)

func TestPricingCredits(t *testing.T) {
	pricing := NewPricing(&config.BillingConfig{})

	t.Run("zero usage costs nothing", func(t *testing.T) {
		assert.Equal(t, int64(0), pricing.Credits(0, 0, "claude-opus-4-6"))
	})

	t.Run("any nonzero usage costs at least one credit", func(t *testing.T) {
		assert.Equal(t, int64(1), pricing.Credits(1, 0, "claude-opus-4-6"))
		assert.Equal(t, int64(1), pricing.Credits(0, 1, "claude-opus-4-6"))
	})

	t.Run("weighted sum rounds up per thousand tokens", func(t *testing.T) {
		// 500*1 + 200*3 = 1100 加权 token
		assert.Equal(t, int64(2), pricing.Credits(500, 200, "claude-opus-4-6"))
		// 恰好整除时不加一
		assert.Equal(t, int64(1), pricing.Credits(1000, 0, "claude-opus-4-6"))
		assert.Equal(t, int64(2), pricing.Credits(1001, 0, "claude-opus-4-6"))
	})

	t.Run("output tokens cost more than input for opus", func(t *testing.T) {
		inHeavy := pricing.Credits(10000, 0, "claude-opus-4-6")
		outHeavy := pricing.Credits(0, 10000, "claude-opus-4-6")
		assert.Equal(t, int64(10), inHeavy)
		assert.Equal(t, int64(30), outHeavy)
	})

	t.Run("unknown model falls back to default tier", func(t *testing.T) {
		// 兜底费率与 opus 相同
		assert.Equal(t, pricing.Credits(500, 200, "claude-opus-4-6"), pricing.Credits(500, 200, "some-future-model"))
	})

	t.Run("negative token counts are clamped", func(t *testing.T) {
		assert.Equal(t, int64(0), pricing.Credits(-5, -10, "claude-opus-4-6"))
		assert.Equal(t, int64(1), pricing.Credits(-5, 100, "claude-opus-4-6"))
	})

	t.Run("monotonic in both token counts", func(t *testing.T) {
		prev := int64(0)
		for tokens := 0; tokens <= 5000; tokens += 250 {
			got := pricing.Credits(tokens, tokens, "claude-sonnet-4-5")
			assert.GreaterOrEqual(t, got, prev)
			prev = got
		}
	})
}

func TestPricingConfigOverride(t *testing.T) {
	pricing := NewPricing(&config.BillingConfig{
		DefaultTier: config.PricingTierConfig{InputWeight: 2, OutputWeight: 5},
		Tiers: map[string]config.PricingTierConfig{
			"claude-opus-4-6": {InputWeight: 10, OutputWeight: 10},
		},
	})

	t.Run("config tier overrides builtin", func(t *testing.T) {
		// 10*1000 加权 token = 10 积分
		assert.Equal(t, int64(10), pricing.Credits(1000, 0, "claude-opus-4-6"))
	})

	t.Run("config default tier applies to unknown models", func(t *testing.T) {
		// 2*1000 = 2000 加权 token
		assert.Equal(t, int64(2), pricing.Credits(1000, 0, "unknown-model"))
	})

	t.Run("builtin tiers survive partial override", func(t *testing.T) {
		// sonnet 未被覆盖，仍是 {1,2}
		assert.Equal(t, int64(3), pricing.Credits(1000, 1000, "claude-sonnet-4-5"))
	})
}
