package settle

import (
	"testing"

	decimal "github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSplitBreakdown(t *testing.T) {
	// 50 入场费总额，店铺留存 20%，超管佣金 25%，无推荐人
	b, err := Split(d("50"), d("20"), d("25"), decimal.Zero)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"prize", b.Prize, "40"},
		{"shop_share", b.ShopShare, "10"},
		{"super_commission", b.SuperCommission, "2.5"},
		{"admin_profit", b.AdminProfit, "7.5"},
		{"referral", b.Referral, "0"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Fatalf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestSplitWithReferral(t *testing.T) {
	b, err := Split(d("50"), d("20"), d("25"), d("5"))
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	// referral = round2(7.5 * 5%) = 0.38，从店铺利润中切出
	if !b.Referral.Equal(d("0.38")) {
		t.Fatalf("referral = %s, want 0.38", b.Referral)
	}
	if !b.AdminProfit.Equal(d("7.12")) {
		t.Fatalf("admin_profit = %s, want 7.12", b.AdminProfit)
	}
}

func TestSplitSumsExactly(t *testing.T) {
	totals := []string{"0", "0.01", "1", "33.33", "50", "99.99", "12345.67"}
	margins := []string{"0", "7.77", "20", "33.33", "100"}
	supers := []string{"0", "12.5", "25", "100"}
	referrals := []string{"0", "3", "5.55", "100"}

	for _, total := range totals {
		for _, margin := range margins {
			for _, sup := range supers {
				for _, ref := range referrals {
					b, err := Split(d(total), d(margin), d(sup), d(ref))
					if err != nil {
						t.Fatalf("split(%s,%s,%s,%s): %v", total, margin, sup, ref, err)
					}
					sum := b.Prize.Add(b.SuperCommission).Add(b.AdminProfit).Add(b.Referral)
					if !sum.Equal(b.TotalCollected) {
						t.Fatalf("split(%s,%s,%s,%s): shares sum %s != total %s",
							total, margin, sup, ref, sum, b.TotalCollected)
					}
					if b.Prize.IsNegative() || b.SuperCommission.IsNegative() ||
						b.AdminProfit.IsNegative() || b.Referral.IsNegative() {
						t.Fatalf("split(%s,%s,%s,%s): negative share %+v", total, margin, sup, ref, b)
					}
				}
			}
		}
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	if _, err := Split(d("-1"), d("20"), d("25"), decimal.Zero); err == nil {
		t.Fatalf("expected error for negative total")
	}
	if _, err := Split(d("50"), d("101"), d("25"), decimal.Zero); err == nil {
		t.Fatalf("expected error for margin > 100")
	}
	if _, err := Split(d("50"), d("20"), d("-0.01"), decimal.Zero); err == nil {
		t.Fatalf("expected error for negative commission rate")
	}
}
