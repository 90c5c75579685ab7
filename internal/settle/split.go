package settle

import (
	"fmt"

	decimal "github.com/shopspring/decimal"
)

// Breakdown 一局完成后的分账结果（全部保留两位小数）
// 恒等式：Prize + AdminProfit + SuperCommission + Referral == TotalCollected
type Breakdown struct {
	TotalCollected  decimal.Decimal
	Prize           decimal.Decimal // 奖金 = total - shopShare
	ShopShare       decimal.Decimal // 店铺留存 = round2(total * margin%)
	SuperCommission decimal.Decimal // 超管佣金 = round2(shopShare * rate%)
	AdminProfit     decimal.Decimal // 店铺利润 = shopShare - superCommission - referral
	Referral        decimal.Decimal // 推荐佣金 = round2(adminProfit * rate%)，从利润中切出
}

var hundred = decimal.NewFromInt(100)

// Split 计算分账。
// 分位的舍入余数不做事后校验，而是由构造保证：所有派生份额均为
// “舍入份额 + 精确差额”成对出现，求和天然回到 totalCollected。
// referralRate 为 0 表示该店铺无推荐人。
func Split(totalCollected, shopMarginPct, superCommissionPct, referralPct decimal.Decimal) (Breakdown, error) {
	var b Breakdown

	if totalCollected.IsNegative() {
		return b, fmt.Errorf("negative total collected: %s", totalCollected)
	}
	for _, p := range []decimal.Decimal{shopMarginPct, superCommissionPct, referralPct} {
		if p.IsNegative() || p.GreaterThan(hundred) {
			return b, fmt.Errorf("percentage out of [0,100]: %s", p)
		}
	}

	b.TotalCollected = totalCollected.Round(2)

	b.ShopShare = b.TotalCollected.Mul(shopMarginPct).Div(hundred).Round(2)
	b.Prize = b.TotalCollected.Sub(b.ShopShare)

	b.SuperCommission = b.ShopShare.Mul(superCommissionPct).Div(hundred).Round(2)
	b.AdminProfit = b.ShopShare.Sub(b.SuperCommission)

	if referralPct.IsPositive() {
		b.Referral = b.AdminProfit.Mul(referralPct).Div(hundred).Round(2)
		b.AdminProfit = b.AdminProfit.Sub(b.Referral)
	} else {
		b.Referral = decimal.Zero
	}
	return b, nil
}
