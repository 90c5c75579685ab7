package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bingo-server/common/constant"
	"bingo-server/internal/bingo"
	"bingo-server/internal/model"
	"bingo-server/internal/notify"
	"bingo-server/internal/store"
	"bingo-server/internal/store/memory"
)

// loadBalance 走完整充值审批链路给账号注入余额
func loadBalance(t *testing.T, svc LedgerService, accountID int64, amount string) {
	t.Helper()
	ctx := context.Background()
	req, err := svc.RequestCreditLoad(ctx, AmountRequestInput{AccountID: accountID, Amount: amount})
	if err != nil {
		t.Fatalf("request credit load: %v", err)
	}
	if _, err := svc.ProcessCreditLoad(ctx, ProcessInput{RequestID: req.RequestID, Approve: true, By: testSuperID}); err != nil {
		t.Fatalf("approve credit load: %v", err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewLedgerService(st)

	a, err := svc.CreateAccount(ctx, CreateAccountInput{
		Username: "shop9", Role: constant.RoleAdmin, ShopID: 9,
		ProfitMarginPct: "20", SuperCommissionPct: "25", ReferralRatePct: "5",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if !a.Balance.IsZero() || a.Status != constant.StatusNormal {
		t.Fatalf("new account state: balance=%s status=%d", a.Balance, a.Status)
	}

	if _, err := svc.CreateAccount(ctx, CreateAccountInput{Username: "x", Role: "owner"}); err == nil {
		t.Fatalf("unknown role must be rejected")
	}
	if _, err := svc.CreateAccount(ctx, CreateAccountInput{Username: "x", Role: constant.RoleAdmin, ProfitMarginPct: "120"}); err == nil {
		t.Fatalf("percentage over 100 must be rejected")
	}
}

func TestTransferMovesBalanceAtomically(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	loadBalance(t, svc, testAdminID, "100")

	if err := svc.Transfer(ctx, TransferInput{FromAccountID: testAdminID, ToAccountID: testReferrerID, Amount: "30"}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, st, testAdminID); !got.Equal(mustDec(t, "70")) {
		t.Fatalf("sender balance = %s, want 70", got)
	}
	if got := balance(t, st, testReferrerID); !got.Equal(mustDec(t, "30")) {
		t.Fatalf("recipient balance = %s, want 30", got)
	}

	// 双向账本可追溯
	entries, err := svc.ListEntries(ctx, testAdminID, 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.BizType == constant.BizCreditTransfer && e.Amount.Equal(mustDec(t, "-30")) {
			found = true
		}
	}
	if !found {
		t.Fatalf("sender side transfer entry missing: %+v", entries)
	}
}

func TestTransferRejections(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	loadBalance(t, svc, testAdminID, "10")

	// 余额不足：整体回滚，两边余额都不动
	err := svc.Transfer(ctx, TransferInput{FromAccountID: testAdminID, ToAccountID: testReferrerID, Amount: "10.01"})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if got := balance(t, st, testAdminID); !got.Equal(mustDec(t, "10")) {
		t.Fatalf("sender balance changed on failed transfer: %s", got)
	}
	if got := balance(t, st, testReferrerID); !got.IsZero() {
		t.Fatalf("recipient balance changed on failed transfer: %s", got)
	}

	if err := svc.Transfer(ctx, TransferInput{FromAccountID: testAdminID, ToAccountID: testAdminID, Amount: "1"}); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("self transfer: want ErrSelfTransfer, got %v", err)
	}
	if err := svc.Transfer(ctx, TransferInput{FromAccountID: testAdminID, ToAccountID: testReferrerID, Amount: "-5"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: want ErrInvalidAmount, got %v", err)
	}
	if err := svc.Transfer(ctx, TransferInput{FromAccountID: testAdminID, ToAccountID: 404, Amount: "1"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing recipient: want ErrNotFound, got %v", err)
	}
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	loadBalance(t, svc, testAdminID, "50")
	loadBalance(t, svc, testReferrerID, "50")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := int64(testAdminID), int64(testReferrerID)
			if i%2 == 1 {
				from, to = to, from
			}
			// 余额不足是合法结果，但不允许其它错误
			if err := svc.Transfer(ctx, TransferInput{FromAccountID: from, ToAccountID: to, Amount: "7"}); err != nil && !errors.Is(err, store.ErrInsufficientBalance) {
				t.Errorf("transfer: %v", err)
			}
		}(i)
	}
	wg.Wait()

	total := balance(t, st, testAdminID).Add(balance(t, st, testReferrerID))
	if !total.Equal(mustDec(t, "100")) {
		t.Fatalf("total balance = %s, want 100", total)
	}
}

func TestCreditLoadSingleApproval(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)

	req, err := svc.RequestCreditLoad(ctx, AmountRequestInput{AccountID: testAdminID, Amount: "200"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != constant.ReqPending {
		t.Fatalf("new request status = %d, want pending", req.Status)
	}

	got, err := svc.ProcessCreditLoad(ctx, ProcessInput{RequestID: req.RequestID, Approve: true, By: testSuperID})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != constant.ReqConfirmed {
		t.Fatalf("status = %d, want confirmed", got.Status)
	}
	if b := balance(t, st, testAdminID); !b.Equal(mustDec(t, "200")) {
		t.Fatalf("balance = %s, want 200", b)
	}

	// 恰好一次：重复审批被拒绝且不再记账
	if _, err := svc.ProcessCreditLoad(ctx, ProcessInput{RequestID: req.RequestID, Approve: true, By: testSuperID}); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("second approve: want ErrAlreadyProcessed, got %v", err)
	}
	if b := balance(t, st, testAdminID); !b.Equal(mustDec(t, "200")) {
		t.Fatalf("balance after replay = %s, want 200", b)
	}
}

func TestCreditLoadRejectLeavesBalance(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)

	req, err := svc.RequestCreditLoad(ctx, AmountRequestInput{AccountID: testAdminID, Amount: "200"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	got, err := svc.ProcessCreditLoad(ctx, ProcessInput{RequestID: req.RequestID, Approve: false, By: testSuperID, Reason: "manual review failed"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != constant.ReqRejected {
		t.Fatalf("status = %d, want rejected", got.Status)
	}
	if b := balance(t, st, testAdminID); !b.IsZero() {
		t.Fatalf("rejected load must not move balance: %s", b)
	}
}

func TestWithdrawalFromCredit(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	loadBalance(t, svc, testAdminID, "100")

	req, err := svc.RequestWithdrawal(ctx, AmountRequestInput{AccountID: testAdminID, Amount: "60", Source: constant.WithdrawSourceCredit})
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if _, err := svc.ProcessWithdrawal(ctx, ProcessInput{RequestID: req.RequestID, Approve: true, By: testSuperID}); err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}
	if b := balance(t, st, testAdminID); !b.Equal(mustDec(t, "40")) {
		t.Fatalf("balance = %s, want 40", b)
	}
	if _, err := svc.ProcessWithdrawal(ctx, ProcessInput{RequestID: req.RequestID, Approve: true, By: testSuperID}); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("second approve: want ErrAlreadyProcessed, got %v", err)
	}

	// 批准时余额不足：请求保持待处理，余额不动
	req2, err := svc.RequestWithdrawal(ctx, AmountRequestInput{AccountID: testAdminID, Amount: "500", Source: constant.WithdrawSourceCredit})
	if err != nil {
		t.Fatalf("request oversized withdrawal: %v", err)
	}
	if _, err := svc.ProcessWithdrawal(ctx, ProcessInput{RequestID: req2.RequestID, Approve: true, By: testSuperID}); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("oversized approve: want ErrInsufficientBalance, got %v", err)
	}
	w, err := st.GetWithdrawal(ctx, req2.RequestID)
	if err != nil {
		t.Fatalf("get withdrawal: %v", err)
	}
	if w.Status != constant.ReqPending {
		t.Fatalf("failed approval must leave request pending, got %d", w.Status)
	}
	if b := balance(t, st, testAdminID); !b.Equal(mustDec(t, "40")) {
		t.Fatalf("balance = %s, want 40", b)
	}
}

// winCommission 跑一局有推荐人的完整胜局，返回挂账佣金
func winCommission(t *testing.T, st store.Store) *model.ReferralCommission {
	t.Helper()
	ctx := context.Background()
	sessSvc := NewSessionService(st, notify.Noop{})
	sid := startedSession(t, st, sessSvc, "25")

	card := bingo.CardFor(1)
	sess, err := st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	sess.CalledNumbers = model.EncodeCalls(card[0][:])
	if err := st.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	if _, err := sessSvc.DeclareWinner(ctx, DeclareInput{SessionID: sid, CartelaNo: 1, ActorID: testAdminID}); err != nil {
		t.Fatalf("declare winner: %v", err)
	}
	c, err := st.GetCommission(ctx, 1)
	if err != nil {
		t.Fatalf("get commission: %v", err)
	}
	return c
}

func TestConvertCommission(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	comm := winCommission(t, st)

	// 只有佣金归属人能转余额
	if _, err := svc.ConvertCommission(ctx, comm.ID, testAdminID, ""); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("convert by non-owner: want ErrNotOwner, got %v", err)
	}

	got, err := svc.ConvertCommission(ctx, comm.ID, testReferrerID, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Status != constant.CommissionConverted {
		t.Fatalf("status = %d, want converted", got.Status)
	}
	if b := balance(t, st, testReferrerID); !b.Equal(comm.Amount) {
		t.Fatalf("referrer balance = %s, want %s", b, comm.Amount)
	}

	// 终态互斥：已转余额的佣金不能再转也不能再提
	if _, err := svc.ConvertCommission(ctx, comm.ID, testReferrerID, ""); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("second convert: want ErrAlreadyProcessed, got %v", err)
	}
}

func TestWithdrawCommission(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	comm := winCommission(t, st)

	req, err := svc.RequestWithdrawal(ctx, AmountRequestInput{
		AccountID: testReferrerID, Amount: comm.Amount.String(),
		Source: constant.WithdrawSourceCommission, CommissionID: comm.ID,
	})
	if err != nil {
		t.Fatalf("request commission withdrawal: %v", err)
	}
	if _, err := svc.ProcessWithdrawal(ctx, ProcessInput{RequestID: req.RequestID, Approve: true, By: testSuperID}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// 佣金从未入账，提取不产生余额变动
	if b := balance(t, st, testReferrerID); !b.IsZero() {
		t.Fatalf("commission withdrawal must not touch balance, got %s", b)
	}
	got, err := st.GetCommission(ctx, comm.ID)
	if err != nil {
		t.Fatalf("get commission: %v", err)
	}
	if got.Status != constant.CommissionWithdrawn {
		t.Fatalf("status = %d, want withdrawn", got.Status)
	}

	// 已提取的佣金不能再转余额
	if _, err := svc.ConvertCommission(ctx, comm.ID, testReferrerID, ""); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("convert withdrawn commission: want ErrAlreadyProcessed, got %v", err)
	}
}

func TestWithdrawCommissionRequestValidation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewLedgerService(st)
	comm := winCommission(t, st)

	// 请求金额与佣金记录不符，受理时即拒绝
	inflated := comm.Amount.Add(mustDec(t, "100"))
	if _, err := svc.RequestWithdrawal(ctx, AmountRequestInput{
		AccountID: testReferrerID, Amount: inflated.String(),
		Source: constant.WithdrawSourceCommission, CommissionID: comm.ID,
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("inflated amount: want ErrInvalidAmount, got %v", err)
	}

	// 非归属人不能发起佣金提现
	if _, err := svc.RequestWithdrawal(ctx, AmountRequestInput{
		AccountID: testAdminID, Amount: comm.Amount.String(),
		Source: constant.WithdrawSourceCommission, CommissionID: comm.ID,
	}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner request: want ErrNotOwner, got %v", err)
	}

	// 金额一致才受理
	req, err := svc.RequestWithdrawal(ctx, AmountRequestInput{
		AccountID: testReferrerID, Amount: comm.Amount.String(),
		Source: constant.WithdrawSourceCommission, CommissionID: comm.ID,
	})
	if err != nil {
		t.Fatalf("exact amount request: %v", err)
	}
	if req.Status != constant.ReqPending {
		t.Fatalf("request status = %d, want pending", req.Status)
	}

	// 已终态的佣金不能再次发起
	if _, err := svc.ConvertCommission(ctx, comm.ID, testReferrerID, ""); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, AmountRequestInput{
		AccountID: testReferrerID, Amount: comm.Amount.String(),
		Source: constant.WithdrawSourceCommission, CommissionID: comm.ID,
	}); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("request on converted commission: want ErrAlreadyProcessed, got %v", err)
	}
}
