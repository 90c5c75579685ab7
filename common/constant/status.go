package constant

// account status
const (
	StatusNormal  = 1 // 状态：正常
	StatusDeleted = 2 // 状态：已删除
)

// 角色（闭合枚举，能力表见 internal/auth/capability.go）
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEmployee   = "employee"
	RoleCollector  = "collector"
)

// IsValidRole 验证角色是否在闭合枚举内
func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee, RoleCollector:
		return true
	}
	return false
}

// cartela 预订状态
const (
	CartelaFree   = 1 // 空闲
	CartelaBooked = 2 // 已被预订
)

// 请求终态流转状态（充值/提现）
const (
	ReqPending   = 1 // 待处理
	ReqConfirmed = 2 // 已确认（充值）/ 已批准（提现）
	ReqRejected  = 3 // 已拒绝
)

// 推荐佣金终态
const (
	CommissionPending   = 1 // 待处理
	CommissionWithdrawn = 2 // 已提取
	CommissionConverted = 3 // 已转为余额
)

// 提现来源
const (
	WithdrawSourceCredit     = "credit"     // 余额提现
	WithdrawSourceCommission = "commission" // 推荐佣金提现
)
