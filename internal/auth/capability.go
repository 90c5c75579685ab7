package auth

// 角色能力表：哪个角色可以调用哪个操作，统一在操作入口处校验一次。
// 操作名与路由/服务方法一一对应，避免在各处散落字符串角色判断。

import "bingo-server/common/constant"

// 操作标识
const (
	OpBookCartela    = "cartela.book"
	OpUnbookCartela  = "cartela.unbook"
	OpForceUnbook    = "cartela.force_unbook"
	OpResetShop      = "cartela.reset_shop"
	OpImportCartelas = "cartela.import"
	OpListCartelas   = "cartela.list"

	OpCreateSession  = "session.create"
	OpRegisterPlayer = "session.register"
	OpStartSession   = "session.start"
	OpCallNumber     = "session.call"
	OpPauseSession   = "session.pause"
	OpResumeSession  = "session.resume"
	OpDeclareWinner  = "session.declare_winner"
	OpCancelSession  = "session.cancel"
	OpViewSession    = "session.view"
	OpViewHistory    = "session.history"

	OpCreateAccount     = "account.create"
	OpViewLedger        = "ledger.view"
	OpTransferCredit    = "ledger.transfer"
	OpRequestCreditLoad = "ledger.credit_load.request"
	OpProcessCreditLoad = "ledger.credit_load.process"
	OpRequestWithdrawal = "ledger.withdrawal.request"
	OpProcessWithdrawal = "ledger.withdrawal.process"
	OpConvertCommission = "ledger.commission.convert"
)

// capabilities 角色 -> 可执行操作集合。
// 层级：super_admin > admin > employee > collector，高层覆盖低层的运营操作；
// 财务审批（credit load / withdrawal 审批）只归 super_admin，
// 佣金转余额归 admin（佣金属于推荐人 admin 本人）。
var capabilities = map[string]map[string]struct{}{
	constant.RoleSuperAdmin: opSet(
		OpBookCartela, OpUnbookCartela, OpForceUnbook, OpResetShop, OpImportCartelas, OpListCartelas,
		OpCreateSession, OpRegisterPlayer, OpStartSession, OpCallNumber, OpPauseSession, OpResumeSession,
		OpDeclareWinner, OpCancelSession, OpViewSession, OpViewHistory,
		OpCreateAccount, OpViewLedger, OpTransferCredit,
		OpProcessCreditLoad, OpProcessWithdrawal,
	),
	constant.RoleAdmin: opSet(
		OpBookCartela, OpUnbookCartela, OpForceUnbook, OpResetShop, OpImportCartelas, OpListCartelas,
		OpCreateSession, OpRegisterPlayer, OpStartSession, OpCallNumber, OpPauseSession, OpResumeSession,
		OpDeclareWinner, OpCancelSession, OpViewSession, OpViewHistory,
		OpCreateAccount, OpViewLedger, OpTransferCredit,
		OpRequestCreditLoad, OpRequestWithdrawal, OpConvertCommission,
	),
	constant.RoleEmployee: opSet(
		OpBookCartela, OpUnbookCartela, OpForceUnbook, OpListCartelas,
		OpCreateSession, OpRegisterPlayer, OpStartSession, OpCallNumber, OpPauseSession, OpResumeSession,
		OpDeclareWinner, OpCancelSession, OpViewSession, OpViewHistory,
	),
	constant.RoleCollector: opSet(
		OpBookCartela, OpUnbookCartela, OpListCartelas, OpViewSession,
	),
}

func opSet(ops ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		m[op] = struct{}{}
	}
	return m
}

// Can 判断角色是否可以执行操作
func Can(role, op string) bool {
	ops, ok := capabilities[role]
	if !ok {
		return false
	}
	_, ok = ops[op]
	return ok
}

// Require 校验角色能力，失败返回授权错误
func Require(role, op string) error {
	if _, ok := capabilities[role]; !ok {
		return ErrUnknownRole
	}
	if !Can(role, op) {
		return ErrNotPermitted
	}
	return nil
}
