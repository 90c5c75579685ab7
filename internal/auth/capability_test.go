package auth

import (
	"errors"
	"testing"

	"bingo-server/common/constant"
)

func TestCapabilityMatrix(t *testing.T) {
	cases := []struct {
		role string
		op   string
		want bool
	}{
		{constant.RoleCollector, OpBookCartela, true},
		{constant.RoleCollector, OpUnbookCartela, true},
		{constant.RoleCollector, OpForceUnbook, false},
		{constant.RoleCollector, OpCreateSession, false},
		{constant.RoleCollector, OpViewSession, true},
		{constant.RoleCollector, OpTransferCredit, false},

		{constant.RoleEmployee, OpCreateSession, true},
		{constant.RoleEmployee, OpDeclareWinner, true},
		{constant.RoleEmployee, OpForceUnbook, true},
		{constant.RoleEmployee, OpResetShop, false},
		{constant.RoleEmployee, OpTransferCredit, false},
		{constant.RoleEmployee, OpCreateAccount, false},

		{constant.RoleAdmin, OpResetShop, true},
		{constant.RoleAdmin, OpImportCartelas, true},
		{constant.RoleAdmin, OpTransferCredit, true},
		{constant.RoleAdmin, OpRequestCreditLoad, true},
		{constant.RoleAdmin, OpRequestWithdrawal, true},
		{constant.RoleAdmin, OpConvertCommission, true},
		{constant.RoleAdmin, OpProcessCreditLoad, false},
		{constant.RoleAdmin, OpProcessWithdrawal, false},

		{constant.RoleSuperAdmin, OpProcessCreditLoad, true},
		{constant.RoleSuperAdmin, OpProcessWithdrawal, true},
		{constant.RoleSuperAdmin, OpCreateAccount, true},
		{constant.RoleSuperAdmin, OpRequestCreditLoad, false},
		{constant.RoleSuperAdmin, OpRequestWithdrawal, false},
	}
	for _, c := range cases {
		if got := Can(c.role, c.op); got != c.want {
			t.Fatalf("Can(%s, %s) = %v, want %v", c.role, c.op, got, c.want)
		}
	}
}

func TestRequireErrors(t *testing.T) {
	if err := Require("ghost", OpBookCartela); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("unknown role: got %v, want ErrUnknownRole", err)
	}
	if err := Require(constant.RoleCollector, OpCreateSession); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("forbidden op: got %v, want ErrNotPermitted", err)
	}
	if err := Require(constant.RoleAdmin, OpCreateSession); err != nil {
		t.Fatalf("allowed op returned error: %v", err)
	}
}
