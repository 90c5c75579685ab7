package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bingo-server/common/constant"
	"bingo-server/common/logger"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"
	"bingo-server/internal/store"

	"github.com/google/uuid"
	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 处理账务业务逻辑：转账、充值审批、提现审批、佣金转余额。
// 所有余额变动都经由 store 的原子批次落账，余额恒等于账本之和。

// CreateAccountInput 开户入参
type CreateAccountInput struct {
	Username           string
	Role               string
	ShopID             int64
	ReferrerID         int64
	ProfitMarginPct    string
	SuperCommissionPct string
	ReferralRatePct    string
	TraceID            string
}

// TransferInput 信用额度转账入参
type TransferInput struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        string
	Remark        string
	TraceID       string
}

// AmountRequestInput 金额类请求入参（充值/提现）
type AmountRequestInput struct {
	AccountID    int64
	Amount       string
	Source       string // 提现来源：credit | commission
	CommissionID int64
	TraceID      string
}

// ProcessInput 审批入参
type ProcessInput struct {
	RequestID string
	Approve   bool
	By        int64
	Reason    string
	TraceID   string
}

type LedgerService interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	// ListEntries 账本分页（新到旧）
	ListEntries(ctx context.Context, accountID int64, limit int) ([]model.WalletLedger, error)
	// Transfer 原子转账：两账号按ID升序加锁，余额不足整体回滚
	Transfer(ctx context.Context, in TransferInput) error
	// RequestCreditLoad 店铺 admin 发起充值请求（待超管确认）
	RequestCreditLoad(ctx context.Context, in AmountRequestInput) (*model.CreditLoadRequest, error)
	// ProcessCreditLoad 超管确认/拒绝充值；单次处理，重复处理被拒绝
	ProcessCreditLoad(ctx context.Context, in ProcessInput) (*model.CreditLoadRequest, error)
	// RequestWithdrawal 发起提现请求（余额或推荐佣金）
	RequestWithdrawal(ctx context.Context, in AmountRequestInput) (*model.WithdrawalRequest, error)
	// ProcessWithdrawal 批准/拒绝提现；恰好一次，不会重复扣款
	ProcessWithdrawal(ctx context.Context, in ProcessInput) (*model.WithdrawalRequest, error)
	// ConvertCommission 推荐佣金转余额（与提现互斥的终态）
	ConvertCommission(ctx context.Context, commissionID, actorID int64, traceID string) (*model.ReferralCommission, error)
}

type ledgerService struct {
	st store.Store
}

func NewLedgerService(st store.Store) LedgerService {
	return &ledgerService{st: st}
}

func parseAmount(s string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || amt.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amt.Round(2), nil
}

func (s *ledgerService) CreateAccount(ctx context.Context, in CreateAccountInput) (*model.Account, error) {
	if !constant.IsValidRole(in.Role) {
		return nil, fmt.Errorf("invalid role: %s", in.Role)
	}

	parsePct := func(v string) (decimal.Decimal, error) {
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		p, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil || p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, fmt.Errorf("percentage out of [0,100]: %s", v)
		}
		return p, nil
	}

	margin, err := parsePct(in.ProfitMarginPct)
	if err != nil {
		return nil, err
	}
	superPct, err := parsePct(in.SuperCommissionPct)
	if err != nil {
		return nil, err
	}
	refPct, err := parsePct(in.ReferralRatePct)
	if err != nil {
		return nil, err
	}

	a := &model.Account{
		Username:           strings.TrimSpace(in.Username),
		Role:               in.Role,
		ShopID:             in.ShopID,
		Balance:            decimal.Zero,
		ReferrerID:         in.ReferrerID,
		ProfitMarginPct:    margin,
		SuperCommissionPct: superPct,
		ReferralRatePct:    refPct,
		Status:             1,
	}
	if a.Username == "" {
		return nil, fmt.Errorf("username required")
	}
	if err := s.st.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "account created",
		zap.Int64("account_id", a.ID),
		zap.String("username", a.Username),
		zap.String("role", a.Role),
		zap.Int64("shop_id", a.ShopID))
	return a, nil
}

func (s *ledgerService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.st.GetAccount(ctx, id)
}

func (s *ledgerService) ListEntries(ctx context.Context, accountID int64, limit int) ([]model.WalletLedger, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.st.ListEntries(ctx, accountID, limit)
}

// Transfer 转账主流程：
// 借贷成对记账，两条记录与两边余额更新同批原子生效；
// 并发对向转账依赖后端按账号ID升序加锁，不会死锁也不会丢失更新。
func (s *ledgerService) Transfer(ctx context.Context, in TransferInput) error {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordLedgerOp(result, "transfer", startAt) }()

	amt, err := parseAmount(in.Amount)
	if err != nil {
		return err
	}
	if in.FromAccountID == in.ToAccountID {
		return ErrSelfTransfer
	}
	// 收款方存在性前置校验
	if _, err := s.st.GetAccount(ctx, in.ToAccountID); err != nil {
		return err
	}

	ref := uuid.NewString()
	entries := []model.WalletLedger{
		{
			AccountID: in.FromAccountID,
			BizType:   constant.BizCreditTransfer,
			Amount:    amt.Neg(),
			Ref:       ref,
			Remark:    in.Remark,
			TraceID:   in.TraceID,
		},
		{
			AccountID: in.ToAccountID,
			BizType:   constant.BizCreditTransfer,
			Amount:    amt,
			Ref:       ref,
			Remark:    in.Remark,
			TraceID:   in.TraceID,
		},
	}
	if err := s.st.ApplyEntries(ctx, entries); err != nil {
		logger.WarnCtx(ctx, "transfer failed",
			zap.Int64("from", in.FromAccountID),
			zap.Int64("to", in.ToAccountID),
			zap.String("amount", amt.String()),
			zap.Error(err))
		return err
	}

	result = "success"
	logger.InfoCtx(ctx, "transfer done",
		zap.Int64("from", in.FromAccountID),
		zap.Int64("to", in.ToAccountID),
		zap.String("amount", amt.String()))
	return nil
}

func (s *ledgerService) RequestCreditLoad(ctx context.Context, in AmountRequestInput) (*model.CreditLoadRequest, error) {
	amt, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	r := &model.CreditLoadRequest{
		RequestID: uuid.NewString(),
		AccountID: in.AccountID,
		Amount:    amt,
		Status:    constant.ReqPending,
	}
	if err := s.st.CreateCreditLoad(ctx, r); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "credit load requested",
		zap.String("request_id", r.RequestID),
		zap.Int64("account_id", r.AccountID),
		zap.String("amount", amt.String()))
	return r, nil
}

func (s *ledgerService) ProcessCreditLoad(ctx context.Context, in ProcessInput) (*model.CreditLoadRequest, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordLedgerOp(result, "credit_load", startAt) }()

	r, err := s.st.GetCreditLoad(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	var entry *model.WalletLedger
	if in.Approve {
		entry = &model.WalletLedger{
			AccountID: r.AccountID,
			BizType:   constant.BizCreditLoad,
			Amount:    r.Amount,
			Ref:       r.RequestID,
			TraceID:   in.TraceID,
		}
	}
	out, err := s.st.ProcessCreditLoad(ctx, in.RequestID, in.Approve, in.By, in.Reason, entry)
	if err != nil {
		return nil, err
	}

	result = "success"
	logger.InfoCtx(ctx, "credit load processed",
		zap.String("request_id", in.RequestID),
		zap.Bool("approved", in.Approve),
		zap.Int64("by", in.By))
	return out, nil
}

func (s *ledgerService) RequestWithdrawal(ctx context.Context, in AmountRequestInput) (*model.WithdrawalRequest, error) {
	amt, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = constant.WithdrawSourceCredit
	}
	if source == constant.WithdrawSourceCommission {
		if in.CommissionID <= 0 {
			return nil, fmt.Errorf("commission_id required for commission withdrawal")
		}
		// 请求金额必须与佣金记录完全一致，受理时即拒绝虚报
		cm, err := s.st.GetCommission(ctx, in.CommissionID)
		if err != nil {
			return nil, err
		}
		if cm.AccountID != in.AccountID {
			return nil, ErrNotOwner
		}
		if cm.Status != constant.CommissionPending {
			return nil, store.ErrAlreadyProcessed
		}
		if !amt.Equal(cm.Amount) {
			return nil, ErrInvalidAmount
		}
	}

	r := &model.WithdrawalRequest{
		RequestID:    uuid.NewString(),
		AccountID:    in.AccountID,
		Amount:       amt,
		Source:       source,
		CommissionID: in.CommissionID,
		Status:       constant.ReqPending,
	}
	if err := s.st.CreateWithdrawal(ctx, r); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "withdrawal requested",
		zap.String("request_id", r.RequestID),
		zap.Int64("account_id", r.AccountID),
		zap.String("source", source),
		zap.String("amount", amt.String()))
	return r, nil
}

func (s *ledgerService) ProcessWithdrawal(ctx context.Context, in ProcessInput) (*model.WithdrawalRequest, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordLedgerOp(result, "withdrawal", startAt) }()

	r, err := s.st.GetWithdrawal(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	// 余额提现扣减余额；佣金提现只翻转佣金终态（佣金从未入账）
	var entry *model.WalletLedger
	if in.Approve && r.Source == constant.WithdrawSourceCredit {
		entry = &model.WalletLedger{
			AccountID: r.AccountID,
			BizType:   constant.BizWithdrawal,
			Amount:    r.Amount.Neg(),
			Ref:       r.RequestID,
			TraceID:   in.TraceID,
		}
	}
	out, err := s.st.ProcessWithdrawal(ctx, in.RequestID, in.Approve, in.By, in.Reason, entry)
	if err != nil {
		return nil, err
	}

	result = "success"
	logger.InfoCtx(ctx, "withdrawal processed",
		zap.String("request_id", in.RequestID),
		zap.Bool("approved", in.Approve),
		zap.String("source", r.Source),
		zap.Int64("by", in.By))
	return out, nil
}

func (s *ledgerService) ConvertCommission(ctx context.Context, commissionID, actorID int64, traceID string) (*model.ReferralCommission, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordLedgerOp(result, "commission_convert", startAt) }()

	c, err := s.st.GetCommission(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	// 只有佣金归属人可以转余额
	if c.AccountID != actorID {
		return nil, ErrNotOwner
	}

	entry := &model.WalletLedger{
		AccountID: c.AccountID,
		BizType:   constant.BizReferralCommission,
		Amount:    c.Amount,
		Ref:       c.SessionID,
		SessionID: c.SessionID,
		TraceID:   traceID,
	}
	out, err := s.st.ConvertCommission(ctx, commissionID, entry)
	if err != nil {
		return nil, err
	}

	result = "success"
	logger.InfoCtx(ctx, "commission converted to credit",
		zap.Int64("commission_id", commissionID),
		zap.Int64("account_id", c.AccountID),
		zap.String("amount", c.Amount.String()))
	return out, nil
}
