package api

import (
	"errors"

	helper "bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/service"
	"bingo-server/internal/store"

	beego "github.com/beego/beego/v2/server/web"
)

// 账务接口：转账、充值审批、提现审批、佣金转余额、账本查询。
// 所有余额变动均原子落账，审批类操作单次生效。

var ledgerSvc = service.Ledger

type LedgerController struct{ beego.Controller }

func mapLedgerErr(c *beego.Controller, err error, traceID string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.NotFound(c, "记录不存在", traceID)
	case errors.Is(err, store.ErrInsufficientBalance):
		response.Conflict(c, response.CodeInsufficientBalance, traceID)
	case errors.Is(err, store.ErrAlreadyProcessed):
		response.Conflict(c, response.CodeAlreadyProcessed, traceID)
	case errors.Is(err, service.ErrInvalidAmount):
		response.BadRequest(c, "金额必须为正数且至多两位小数", traceID)
	case errors.Is(err, service.ErrSelfTransfer):
		response.BadRequest(c, "不能给自己转账", traceID)
	case errors.Is(err, service.ErrNotOwner):
		response.Error(c, 403, response.CodeForbidden, traceID)
	default:
		response.InternalError(c, traceID)
	}
}

// Transfer 信用额度转账：POST /api/ledger/transfer
func (c *LedgerController) Transfer() {
	tp, ok, msg := helper.ParseAndValidateTransfer(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	err := ledgerSvc().Transfer(c.Ctx.Request.Context(), service.TransferInput{
		FromAccountID: helper.GetActorID(c.Ctx),
		ToAccountID:   tp.ToAccountID,
		Amount:        tp.Amount,
		Remark:        tp.Remark,
		TraceID:       traceID,
	})
	if err != nil {
		mapLedgerErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"to_account_id": tp.ToAccountID,
		"amount":        tp.Amount,
	}, traceID)
}

// RequestCreditLoad 发起充值请求：POST /api/ledger/credit-load/request
func (c *LedgerController) RequestCreditLoad() {
	ap, ok, msg := helper.ParseAndValidateAmount(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	r, err := ledgerSvc().RequestCreditLoad(c.Ctx.Request.Context(), service.AmountRequestInput{
		AccountID: helper.GetActorID(c.Ctx),
		Amount:    ap.Amount,
		TraceID:   traceID,
	})
	if err != nil {
		mapLedgerErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"request_id": r.RequestID,
		"amount":     r.Amount,
		"status":     "pending",
	}, traceID)
}

// ProcessCreditLoad 审批充值：POST /api/ledger/credit-load/process
func (c *LedgerController) ProcessCreditLoad() {
	pp, ok, msg := helper.ParseAndValidateProcess(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	r, err := ledgerSvc().ProcessCreditLoad(c.Ctx.Request.Context(), service.ProcessInput{
		RequestID: pp.RequestID,
		Approve:   pp.Approve,
		By:        helper.GetActorID(c.Ctx),
		Reason:    pp.Reason,
		TraceID:   traceID,
	})
	if err != nil {
		mapLedgerErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"request_id": r.RequestID,
		"approved":   pp.Approve,
	}, traceID)
}

// RequestWithdrawal 发起提现请求：POST /api/ledger/withdrawal/request
// source=credit 从余额提现；source=commission 提取推荐佣金
func (c *LedgerController) RequestWithdrawal() {
	ap, ok, msg := helper.ParseAndValidateAmount(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	r, err := ledgerSvc().RequestWithdrawal(c.Ctx.Request.Context(), service.AmountRequestInput{
		AccountID:    helper.GetActorID(c.Ctx),
		Amount:       ap.Amount,
		Source:       ap.Source,
		CommissionID: ap.CommissionID,
		TraceID:      traceID,
	})
	if err != nil {
		mapLedgerErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"request_id": r.RequestID,
		"amount":     r.Amount,
		"source":     r.Source,
		"status":     "pending",
	}, traceID)
}

// ProcessWithdrawal 审批提现：POST /api/ledger/withdrawal/process
func (c *LedgerController) ProcessWithdrawal() {
	pp, ok, msg := helper.ParseAndValidateProcess(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	r, err := ledgerSvc().ProcessWithdrawal(c.Ctx.Request.Context(), service.ProcessInput{
		RequestID: pp.RequestID,
		Approve:   pp.Approve,
		By:        helper.GetActorID(c.Ctx),
		Reason:    pp.Reason,
		TraceID:   traceID,
	})
	if err != nil {
		mapLedgerErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"request_id": r.RequestID,
		"approved":   pp.Approve,
		"source":     r.Source,
	}, traceID)
}

// ConvertCommission 佣金转余额：POST /api/ledger/commission/:id/convert
func (c *LedgerController) ConvertCommission() {
	traceID := helper.GetTraceID(c.Ctx)
	id, err := c.GetInt64(":id")
	if err != nil || id <= 0 {
		response.BadRequest(&c.Controller, "invalid commission id", traceID)
		return
	}

	out, err := ledgerSvc().ConvertCommission(c.Ctx.Request.Context(), id, helper.GetActorID(c.Ctx), traceID)
	if err != nil {
		mapLedgerErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"commission_id": out.ID,
		"amount":        out.Amount,
		"status":        "converted_to_credit",
	}, traceID)
}

// Entries 账本查询：GET /api/ledger/entries
func (c *LedgerController) Entries() {
	traceID := helper.GetTraceID(c.Ctx)
	limit, _ := c.GetInt("limit", 100)

	rows, err := ledgerSvc().ListEntries(c.Ctx.Request.Context(), helper.GetActorID(c.Ctx), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, e := range rows {
		items = append(items, map[string]interface{}{
			"id":            e.ID,
			"biz_type":      e.BizTypeStr,
			"amount":        e.Amount,
			"before_amount": e.BeforeAmount,
			"after_amount":  e.AfterAmount,
			"ref":           e.Ref,
			"remark":        e.Remark,
			"created_at":    e.CreatedAt,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{
		"items": items,
	}, traceID)
}
