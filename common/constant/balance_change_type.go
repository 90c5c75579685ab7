package constant

// 账变类型常量定义（wallet_ledger.biz_type）
const (
	BizEntryFee             = 1 // 场次入场费归集
	BizPrizePayout          = 2 // 奖金派发
	BizAdminProfit          = 3 // 店铺利润
	BizSuperAdminCommission = 4 // 超管佣金
	BizReferralCommission   = 5 // 推荐佣金（转余额时入账）
	BizCreditLoad           = 6 // 充值
	BizCreditTransfer       = 7 // 转账
	BizWithdrawal           = 8 // 提现
)

// 账变类型描述映射
var BalanceChangeTypeDesc = map[int]string{
	BizEntryFee:             "entry_fee",
	BizPrizePayout:          "prize_payout",
	BizAdminProfit:          "admin_profit",
	BizSuperAdminCommission: "super_admin_commission",
	BizReferralCommission:   "referral_commission",
	BizCreditLoad:           "credit_load",
	BizCreditTransfer:       "credit_transfer",
	BizWithdrawal:           "withdrawal",
}

// GetBalanceChangeTypeDesc 获取账变类型描述
func GetBalanceChangeTypeDesc(changeType int) string {
	if desc, exists := BalanceChangeTypeDesc[changeType]; exists {
		return desc
	}
	return "未知类型"
}

// IsValidBalanceChangeType 验证账变类型是否有效
func IsValidBalanceChangeType(changeType int) bool {
	_, exists := BalanceChangeTypeDesc[changeType]
	return exists
}

// 常用账变类型分组
var (
	// 收入类型
	IncomeTypes = []int{BizEntryFee, BizAdminProfit, BizSuperAdminCommission, BizReferralCommission, BizCreditLoad}

	// 支出类型
	ExpenseTypes = []int{BizPrizePayout, BizWithdrawal}

	// 奖励类型
	RewardTypes = []int{BizAdminProfit, BizSuperAdminCommission, BizReferralCommission}
)

// IsIncomeType 判断是否为收入类型
func IsIncomeType(changeType int) bool {
	for _, t := range IncomeTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsExpenseType 判断是否为支出类型
func IsExpenseType(changeType int) bool {
	for _, t := range ExpenseTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsRewardType 判断是否为奖励类型
func IsRewardType(changeType int) bool {
	for _, t := range RewardTypes {
		if t == changeType {
			return true
		}
	}
	return false
}
