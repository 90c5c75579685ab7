package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bingo-server/common/constant"
	"bingo-server/internal/bingo"
	"bingo-server/internal/model"
	"bingo-server/internal/notify"
	"bingo-server/internal/state"
	"bingo-server/internal/store"
	"bingo-server/internal/store/memory"
)

// 测试账号体系：1=超管 2=推荐人(admin) 3=店铺1 admin(带推荐人) 5=collector
const (
	testSuperID     = 1
	testReferrerID  = 2
	testAdminID     = 3
	testCollectorID = 5
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// seedAccounts 注入分账所需的账号层级：
// 店铺1 admin 让利 20%，上缴超管 25%，推荐抽成 5%
func seedAccounts(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	accounts := []*model.Account{
		{ID: testSuperID, Username: "root", Role: constant.RoleSuperAdmin, Status: constant.StatusNormal},
		{ID: testReferrerID, Username: "ref", Role: constant.RoleAdmin, ShopID: 2, Status: constant.StatusNormal},
		{
			ID: testAdminID, Username: "shop1", Role: constant.RoleAdmin, ShopID: 1,
			ReferrerID:         testReferrerID,
			ProfitMarginPct:    mustDec(t, "20"),
			SuperCommissionPct: mustDec(t, "25"),
			ReferralRatePct:    mustDec(t, "5"),
			Status:             constant.StatusNormal,
		},
		{ID: testCollectorID, Username: "runner", Role: constant.RoleCollector, ShopID: 1, Status: constant.StatusNormal},
	}
	for _, a := range accounts {
		if err := st.CreateAccount(ctx, a); err != nil {
			t.Fatalf("seed account %s: %v", a.Username, err)
		}
	}
}

// startedSession 建一个店铺1的场次，登记两张卡并开局，返回 session_id
func startedSession(t *testing.T, st store.Store, svc SessionService, fee string) string {
	t.Helper()
	ctx := context.Background()
	ids := seedCartelas(t, st, 1, 1, 2)

	sess, err := svc.Create(ctx, CreateSessionInput{ShopID: 1, OperatorID: testAdminID, EntryFee: fee})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, no := range []int{1, 2} {
		if _, err := svc.Register(ctx, RegisterInput{
			SessionID: sess.SessionID, CartelaID: ids[no],
			PlayerName: "p", ActorID: testCollectorID,
		}); err != nil {
			t.Fatalf("register cartela %d: %v", no, err)
		}
	}
	if _, err := svc.Start(ctx, sess.SessionID, testAdminID); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return sess.SessionID
}

func balance(t *testing.T, st store.Store, id int64) decimal.Decimal {
	t.Helper()
	a, err := st.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}
	return a.Balance
}

func TestSessionCreateRegisterStart(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	ids := seedCartelas(t, st, 1, 1, 2)

	sess, err := svc.Create(ctx, CreateSessionInput{ShopID: 1, OperatorID: testAdminID, EntryFee: "25"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.StatusStr != state.StateWaiting {
		t.Fatalf("new session status = %s, want waiting", sess.StatusStr)
	}

	if _, err := svc.Register(ctx, RegisterInput{SessionID: sess.SessionID, CartelaID: ids[1], ActorID: testCollectorID}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// 人数不足不能开局
	if _, err := svc.Start(ctx, sess.SessionID, testAdminID); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("start with 1 player: want ErrNotEnoughPlayers, got %v", err)
	}

	// 同一张卡不能重复登记
	if _, err := svc.Register(ctx, RegisterInput{SessionID: sess.SessionID, CartelaID: ids[1], ActorID: testCollectorID}); !errors.Is(err, store.ErrCartelaBooked) {
		t.Fatalf("duplicate register: want ErrCartelaBooked, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterInput{SessionID: sess.SessionID, CartelaID: ids[2], ActorID: testCollectorID}); err != nil {
		t.Fatalf("register second: %v", err)
	}
	got, err := svc.Start(ctx, sess.SessionID, testAdminID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.StatusStr != state.StateActive {
		t.Fatalf("status = %s, want active", got.StatusStr)
	}
	if !got.TotalCollected.Equal(mustDec(t, "50")) {
		t.Fatalf("total collected = %s, want 50", got.TotalCollected)
	}

	// 开局后不能重复开局
	if _, err := svc.Start(ctx, sess.SessionID, testAdminID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double start: want ErrInvalidState, got %v", err)
	}
}

func TestRegisterRejectsCrossShopCartela(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	otherIDs := seedCartelas(t, st, 2, 9)

	sess, err := svc.Create(ctx, CreateSessionInput{ShopID: 1, OperatorID: testAdminID, EntryFee: "25"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 店铺2的卡片不得登记进店铺1的场次
	if _, err := svc.Register(ctx, RegisterInput{SessionID: sess.SessionID, CartelaID: otherIDs[9], ActorID: testCollectorID}); !errors.Is(err, store.ErrWrongShop) {
		t.Fatalf("cross-shop register: want ErrWrongShop, got %v", err)
	}

	c, err := st.GetCartela(ctx, otherIDs[9])
	if err != nil {
		t.Fatalf("get cartela: %v", err)
	}
	if c.Status != constant.CartelaFree {
		t.Fatalf("rejected cartela status = %d, want free", c.Status)
	}
	cur, err := st.GetSession(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !cur.TotalCollected.IsZero() {
		t.Fatalf("total collected = %s, want 0", cur.TotalCollected)
	}
	players, err := st.ListSessionPlayers(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 0 {
		t.Fatalf("player rows = %d, want 0", len(players))
	}
}

func TestRegisterFailureLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	ids := seedCartelas(t, st, 1, 1)

	sess, err := svc.Create(ctx, CreateSessionInput{ShopID: 1, OperatorID: testAdminID, EntryFee: "25"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{SessionID: sess.SessionID, CartelaID: ids[1], ActorID: testCollectorID}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// 强制释放卡片但保留玩家行，构造"卡片空闲 + 玩家已在局"的冲突现场
	if err := st.UnbookCartela(ctx, ids[1], 0, true); err != nil {
		t.Fatalf("force unbook: %v", err)
	}

	// 重试必须整体失败：不得重新预订卡片，不得二次累计票款
	if _, err := svc.Register(ctx, RegisterInput{SessionID: sess.SessionID, CartelaID: ids[1], ActorID: testCollectorID}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("retry register: want ErrDuplicate, got %v", err)
	}

	c, err := st.GetCartela(ctx, ids[1])
	if err != nil {
		t.Fatalf("get cartela: %v", err)
	}
	if c.Status != constant.CartelaFree {
		t.Fatalf("cartela status = %d, want free after failed retry", c.Status)
	}
	cur, err := st.GetSession(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !cur.TotalCollected.Equal(mustDec(t, "25")) {
		t.Fatalf("total collected = %s, want 25", cur.TotalCollected)
	}
	players, err := st.ListSessionPlayers(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("player rows = %d, want 1", len(players))
	}
}

func TestCallNoRepeatUntilExhaustion(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	sid := startedSession(t, st, svc, "25")

	seen := make(map[int]bool, 75)
	for i := 1; i <= 75; i++ {
		out, err := svc.Call(ctx, sid, testAdminID)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if out.Number < 1 || out.Number > 75 {
			t.Fatalf("call %d: number %d out of range", i, out.Number)
		}
		if seen[out.Number] {
			t.Fatalf("call %d: number %d repeated", i, out.Number)
		}
		seen[out.Number] = true
		if out.CalledCount != i {
			t.Fatalf("call %d: called_count = %d", i, out.CalledCount)
		}
		if (i == 75) != out.Completed {
			t.Fatalf("call %d: completed = %v", i, out.Completed)
		}
	}

	// 号池叫尽自动完成并以未派发方式结算
	sess, err := st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.StatusStr != state.StateCompleted || sess.IsSettled != 1 {
		t.Fatalf("session after exhaustion: status=%s settled=%d", sess.StatusStr, sess.IsSettled)
	}
	hist, err := st.ListGameHistory(ctx, 1, 10)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history: %v (%d rows)", err, len(hist))
	}
	if hist[0].Undistributed != 1 {
		t.Fatalf("exhausted session must record undistributed history")
	}
	// 奖金留在清算账户：50 - 2.5(超管) - 0.38(推荐) = 47.12
	if got := balance(t, st, testAdminID); !got.Equal(mustDec(t, "47.12")) {
		t.Fatalf("admin balance = %s, want 47.12", got)
	}
	if got := balance(t, st, testSuperID); !got.Equal(mustDec(t, "2.5")) {
		t.Fatalf("super balance = %s, want 2.5", got)
	}

	// 终态后不能继续叫号
	if _, err := svc.Call(ctx, sid, testAdminID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("call after completion: want ErrInvalidState, got %v", err)
	}
}

func TestDeclareWinnerSettles(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	sid := startedSession(t, st, svc, "25")

	// 把卡1第一行写入叫号序列，构造确定的中奖局面
	card := bingo.CardFor(1)
	row := card[0][:]
	sess, err := st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	sess.CalledNumbers = model.EncodeCalls(row)
	if err := st.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update session: %v", err)
	}

	out, err := svc.DeclareWinner(ctx, DeclareInput{SessionID: sid, CartelaNo: 1, ActorID: testAdminID})
	if err != nil {
		t.Fatalf("declare winner: %v", err)
	}
	if out.Pattern != "row_0" {
		t.Fatalf("pattern = %s, want row_0", out.Pattern)
	}
	if !out.PrizeAmount.Equal(mustDec(t, "40")) {
		t.Fatalf("prize = %s, want 40", out.PrizeAmount)
	}
	if !out.TotalCollected.Equal(mustDec(t, "50")) {
		t.Fatalf("total = %s, want 50", out.TotalCollected)
	}

	// 分账落账：admin = 50-40-2.5-0.38，超管 = 2.5，推荐佣金挂账不入余额
	if got := balance(t, st, testAdminID); !got.Equal(mustDec(t, "7.12")) {
		t.Fatalf("admin balance = %s, want 7.12", got)
	}
	if got := balance(t, st, testSuperID); !got.Equal(mustDec(t, "2.5")) {
		t.Fatalf("super balance = %s, want 2.5", got)
	}
	if got := balance(t, st, testReferrerID); !got.IsZero() {
		t.Fatalf("referrer balance = %s, want 0 until conversion", got)
	}
	comm, err := st.GetCommission(ctx, 1)
	if err != nil {
		t.Fatalf("get commission: %v", err)
	}
	if comm.AccountID != testReferrerID || comm.Status != constant.CommissionPending || !comm.Amount.Equal(mustDec(t, "0.38")) {
		t.Fatalf("unexpected commission: %+v", comm)
	}

	sess, err = st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.StatusStr != state.StateCompleted || sess.IsSettled != 1 {
		t.Fatalf("session after win: status=%s settled=%d", sess.StatusStr, sess.IsSettled)
	}
	if sess.WinnerCartela != 1 || sess.WinnerAccount != testCollectorID {
		t.Fatalf("winner fields: cartela=%d account=%d", sess.WinnerCartela, sess.WinnerAccount)
	}

	// 终态后不能重复宣告
	if _, err := svc.DeclareWinner(ctx, DeclareInput{SessionID: sid, CartelaNo: 1, ActorID: testAdminID}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("declare after completion: want ErrInvalidState, got %v", err)
	}
}

func TestDeclareNotVerifiedKeepsSessionActive(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	sid := startedSession(t, st, svc, "25")
	ids := seedCartelas(t, st, 1, 9)

	// 尚无叫号，任何卡都不可能成牌
	if _, err := svc.DeclareWinner(ctx, DeclareInput{SessionID: sid, CartelaNo: 1, ActorID: testAdminID}); !errors.Is(err, ErrWinNotVerified) {
		t.Fatalf("declare without calls: want ErrWinNotVerified, got %v", err)
	}

	sess, err := st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.StatusStr != state.StateActive {
		t.Fatalf("failed declare must keep session active, got %s", sess.StatusStr)
	}
	if sess.WinChecked != 1 {
		t.Fatalf("first declare must set win_checked")
	}

	// 首次核验后关闭补位
	if _, err := svc.Register(ctx, RegisterInput{SessionID: sid, CartelaID: ids[9], ActorID: testCollectorID}); !errors.Is(err, ErrLateRegistration) {
		t.Fatalf("register after win check: want ErrLateRegistration, got %v", err)
	}

	// 未登记的卡不能宣告
	if _, err := svc.DeclareWinner(ctx, DeclareInput{SessionID: sid, CartelaNo: 9, ActorID: testAdminID}); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("declare unregistered: want ErrNotRegistered, got %v", err)
	}

	// 叫号可以继续
	if _, err := svc.Call(ctx, sid, testAdminID); err != nil {
		t.Fatalf("call after failed declare: %v", err)
	}
}

func TestCancelReleasesCartelas(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	sid := startedSession(t, st, svc, "25")

	if err := svc.Cancel(ctx, sid, testAdminID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	sess, err := st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.StatusStr != state.StateCancelled {
		t.Fatalf("status = %s, want cancelled", sess.StatusStr)
	}

	avail, err := st.ListAvailableCartelas(ctx, 1)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(avail) != 2 {
		t.Fatalf("cancel must release booked cartelas, %d available", len(avail))
	}

	// 取消不触发分账
	if got := balance(t, st, testAdminID); !got.IsZero() {
		t.Fatalf("admin balance after cancel = %s, want 0", got)
	}

	if err := svc.Cancel(ctx, sid, testAdminID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel terminal session: want ErrInvalidState, got %v", err)
	}
}

func TestSettlementAppliesOnlyOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedAccounts(t, st)
	svc := NewSessionService(st, notify.Noop{})
	sid := startedSession(t, st, svc, "25")

	card := bingo.CardFor(1)
	sess, err := st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	sess.CalledNumbers = model.EncodeCalls(card[0][:])
	if err := st.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	if _, err := svc.DeclareWinner(ctx, DeclareInput{SessionID: sid, CartelaNo: 1, ActorID: testAdminID}); err != nil {
		t.Fatalf("declare: %v", err)
	}

	// 结算批次带去重保护，直接重放同一批次必须被拒绝
	sess, err = st.GetSession(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	err = st.ApplySettlement(ctx, &store.SettlementBatch{
		Session: sess,
		History: &model.GameHistory{SessionID: sid, ShopID: 1},
	})
	if !errors.Is(err, store.ErrAlreadySettled) {
		t.Fatalf("replayed settlement: want ErrAlreadySettled, got %v", err)
	}
	if got := balance(t, st, testAdminID); !got.Equal(mustDec(t, "7.12")) {
		t.Fatalf("balance changed by replay: %s", got)
	}
}
