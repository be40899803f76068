// Package billing 提供积分计价与记账能力
package billing

import (
	"quill-ai-api/internal/config"
)

// creditUnit 每多少加权 token 折算 1 积分
const creditUnit = 1000

// PricingTier 单个模型的费率权重
type PricingTier struct {
	InputWeight  int64
	OutputWeight int64
}

// builtinTiers 内置费率表，可被配置覆盖
var builtinTiers = map[string]PricingTier{
	"claude-opus-4-6":   {InputWeight: 1, OutputWeight: 3},
	"claude-sonnet-4-5": {InputWeight: 1, OutputWeight: 2},
	"claude-haiku-4-5":  {InputWeight: 1, OutputWeight: 1},
	"gpt-5.2":           {InputWeight: 1, OutputWeight: 2},
	"gpt-5-mini":        {InputWeight: 1, OutputWeight: 1},
}

// defaultTier 未知模型的兜底费率
var defaultTier = PricingTier{InputWeight: 1, OutputWeight: 3}

// Pricing 将 token 用量折算为积分
type Pricing struct {
	defaultTier PricingTier
	tiers       map[string]PricingTier
}

// NewPricing 创建计价器，配置中的费率覆盖内置费率
func NewPricing(cfg *config.BillingConfig) *Pricing {
	p := &Pricing{
		defaultTier: defaultTier,
		tiers:       make(map[string]PricingTier, len(builtinTiers)),
	}
	for model, tier := range builtinTiers {
		p.tiers[model] = tier
	}

	if cfg == nil {
		return p
	}
	if cfg.DefaultTier.InputWeight > 0 || cfg.DefaultTier.OutputWeight > 0 {
		p.defaultTier = PricingTier{
			InputWeight:  cfg.DefaultTier.InputWeight,
			OutputWeight: cfg.DefaultTier.OutputWeight,
		}
	}
	for model, tier := range cfg.Tiers {
		p.tiers[model] = PricingTier{
			InputWeight:  tier.InputWeight,
			OutputWeight: tier.OutputWeight,
		}
	}
	return p
}

// Tier 返回模型费率，未知模型使用兜底费率（刻意策略，非缺陷）
func (p *Pricing) Tier(model string) PricingTier {
	if tier, ok := p.tiers[model]; ok {
		return tier
	}
	return p.defaultTier
}

// Credits 将 token 用量折算为积分，向上取整。
// 对两个入参单调不减；全零用量返回 0；非零加权用量至少 1 积分。
func (p *Pricing) Credits(promptTokens, completionTokens int, model string) int64 {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}

	tier := p.Tier(model)
	weighted := int64(promptTokens)*tier.InputWeight + int64(completionTokens)*tier.OutputWeight
	return (weighted + creditUnit - 1) / creditUnit
}
