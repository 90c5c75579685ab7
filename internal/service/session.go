package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bingo-server/common/logger"
	"bingo-server/internal/bingo"
	"bingo-server/internal/config"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"
	"bingo-server/internal/notify"
	"bingo-server/internal/state"
	"bingo-server/internal/store"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

// 处理场次生命周期业务逻辑

// 默认开局最少登记人数（可被配置覆盖）
const defaultMinPlayers = 2

// CreateSessionInput 创建场次入参
type CreateSessionInput struct {
	ShopID     int64
	OperatorID int64
	EntryFee   string
	TraceID    string
}

// RegisterInput 登记玩家入参：登记同时完成卡片预订
type RegisterInput struct {
	SessionID  string
	CartelaID  int64
	PlayerName string
	ActorID    int64
	TraceID    string
}

// CallOutput 叫号结果
type CallOutput struct {
	Number      int    `json:"number"`
	CalledCount int    `json:"called_count"`
	Completed   bool   `json:"completed"` // 号池叫尽自动完成
	Status      string `json:"status"`
}

// DeclareInput 宣告中奖入参
type DeclareInput struct {
	SessionID string
	CartelaNo int
	ActorID   int64
	TraceID   string
}

// DeclareOutput 宣告中奖结果（含分账摘要）
type DeclareOutput struct {
	Pattern        string          `json:"pattern"`
	Cells          []bingo.Coord   `json:"cells"`
	WinnerCartela  int64           `json:"winner_cartela"`
	PrizeAmount    decimal.Decimal `json:"prize_amount"`
	TotalCollected decimal.Decimal `json:"total_collected"`
}

type SessionService interface {
	// Create 创建场次：created 随即进入 waiting
	Create(ctx context.Context, in CreateSessionInput) (*model.GameSession, error)
	// Register 登记一张已预订卡片入局并累计入场费；
	// waiting 期间随时可登记，active 后仅在首次核验前允许补位
	Register(ctx context.Context, in RegisterInput) (*model.SessionPlayer, error)
	// Start 开局：waiting -> active，要求最少登记人数
	Start(ctx context.Context, sessionID string, actorID int64) (*model.GameSession, error)
	// Call 叫号：无重复均匀抽取；号池叫尽自动完成（奖金未派发）
	Call(ctx context.Context, sessionID string, actorID int64) (*CallOutput, error)
	// DeclareWinner 核验宣告：命中则完成并结算；未命中保持 active 可继续叫号
	DeclareWinner(ctx context.Context, in DeclareInput) (*DeclareOutput, error)
	// Cancel 取消：任意非终态可达；释放该局全部已预订卡片
	Cancel(ctx context.Context, sessionID string, actorID int64) error
	Get(ctx context.Context, sessionID string) (*model.GameSession, []model.SessionPlayer, error)
	// History 店铺结算快照报表
	History(ctx context.Context, shopID int64, limit int) ([]model.GameHistory, error)
}

type sessionService struct {
	st store.Store
	nt notify.Notifier

	// 同场次操作串行化（进程内第一道闸，数据库行锁为第二道）
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand

	auto *AutoCaller
}

func NewSessionService(st store.Store, nt notify.Notifier) SessionService {
	return &sessionService{
		st:    st,
		nt:    nt,
		locks: make(map[string]*sync.Mutex),
		rng:   rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
}

// BindAutoCaller 绑定自动叫号器，场次离开 active 时同步取消任务
func (s *sessionService) BindAutoCaller(ac *AutoCaller) { s.auto = ac }

func (s *sessionService) sessionLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

func (s *sessionService) dropSessionLock(id string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.locks, id)
}

// newSessionID 生成场次ID：BG + 秒级时间 + 随机后缀
func (s *sessionService) newSessionID() string {
	s.rngMu.Lock()
	n := s.rng.Intn(1_000_000)
	s.rngMu.Unlock()
	return fmt.Sprintf("BG%s%06d", time.Now().Format("20060102150405"), n)
}

func minPlayers() int {
	if cfg := config.GetCurrent(); cfg != nil && cfg.Game.MinPlayers > 0 {
		return cfg.Game.MinPlayers
	}
	return defaultMinPlayers
}

func (s *sessionService) Create(ctx context.Context, in CreateSessionInput) (*model.GameSession, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordSessionOp(result, "create", start) }()

	fee, err := decimal.NewFromString(strings.TrimSpace(in.EntryFee))
	if err != nil || fee.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	sess := &model.GameSession{
		SessionID:      s.newSessionID(),
		ShopID:         in.ShopID,
		OperatorID:     in.OperatorID,
		EntryFee:       fee.Round(2),
		Status:         state.CodeWaiting,
		StatusStr:      state.StateWaiting,
		TotalCollected: decimal.Zero,
		TraceID:        in.TraceID,
	}
	if err := s.st.CreateSession(ctx, sess); err != nil {
		logger.ErrorCtx(ctx, "create session failed", zap.Error(err))
		return nil, err
	}

	result = "success"
	logger.InfoCtx(ctx, "session created",
		zap.String("session_id", sess.SessionID),
		zap.Int64("shop_id", sess.ShopID),
		zap.String("entry_fee", sess.EntryFee.String()))
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventSessionCreated, SessionID: sess.SessionID, ShopID: sess.ShopID,
		Payload: map[string]any{"entry_fee": sess.EntryFee.String()},
	})
	return sess, nil
}

func (s *sessionService) Register(ctx context.Context, in RegisterInput) (*model.SessionPlayer, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordSessionOp(result, "register", start) }()

	mu := s.sessionLock(in.SessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.st.GetSession(ctx, in.SessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	switch sess.StatusStr {
	case state.StateWaiting:
	case state.StateActive:
		// 首次核验后封盘，禁止补位
		if sess.WinChecked == 1 {
			return nil, ErrLateRegistration
		}
	default:
		return nil, ErrInvalidState
	}

	p := &model.SessionPlayer{
		SessionID:  in.SessionID,
		CartelaID:  in.CartelaID,
		BookedBy:   in.ActorID,
		PlayerName: in.PlayerName,
		Fee:        sess.EntryFee,
	}
	// 预订卡片、登记玩家、累计票款由 store 在同一原子单元内完成，
	// 失败不留下已预订卡片或孤儿玩家行
	sess.TotalCollected = sess.TotalCollected.Add(sess.EntryFee)
	if err := s.st.RegisterPlayer(ctx, sess, p); err != nil {
		return nil, err
	}

	result = "success"
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventPlayerJoined, SessionID: sess.SessionID, ShopID: sess.ShopID,
		Payload: map[string]any{
			"cartela_no":      p.CartelaNo,
			"player_name":     in.PlayerName,
			"total_collected": sess.TotalCollected.String(),
		},
	})
	return p, nil
}

func (s *sessionService) Start(ctx context.Context, sessionID string, actorID int64) (*model.GameSession, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordSessionOp(result, "start", startAt) }()

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.st.GetSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	next, err := state.NextState(sess.StatusStr, state.EvtStart)
	if err != nil {
		return nil, ErrInvalidState
	}

	players, err := s.st.ListSessionPlayers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(players) < minPlayers() {
		return nil, ErrNotEnoughPlayers
	}

	sess.Status = state.ToCode(next)
	sess.StatusStr = next
	sess.StartedAt = time.Now().UnixMilli()
	if err := s.st.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	result = "success"
	logger.InfoCtx(ctx, "session started",
		zap.String("session_id", sessionID),
		zap.Int("players", len(players)),
		zap.String("total_collected", sess.TotalCollected.String()))
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventSessionStarted, SessionID: sessionID, ShopID: sess.ShopID,
		Payload: map[string]any{"players": len(players)},
	})
	return sess, nil
}

func (s *sessionService) Call(ctx context.Context, sessionID string, actorID int64) (*CallOutput, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordSessionOp(result, "call", startAt) }()

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.st.GetSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.StatusStr != state.StateActive {
		return nil, ErrInvalidState
	}

	called := model.DecodeCalls(sess.CalledNumbers)
	if len(called) >= 75 {
		return nil, ErrNumberExhausted
	}

	// 无重复均匀抽取：从剩余号码集中等概率取一个
	remaining := make([]int, 0, 75-len(called))
	seen := make(map[int]struct{}, len(called))
	for _, n := range called {
		seen[n] = struct{}{}
	}
	for n := 1; n <= 75; n++ {
		if _, ok := seen[n]; !ok {
			remaining = append(remaining, n)
		}
	}
	s.rngMu.Lock()
	num := remaining[s.rng.Intn(len(remaining))]
	s.rngMu.Unlock()

	called = append(called, num)
	sess.CalledNumbers = model.EncodeCalls(called)

	out := &CallOutput{Number: num, CalledCount: len(called), Status: sess.StatusStr}

	// 号池叫尽且无人中奖：自动完成，奖金按未派发记录
	if len(called) == 75 {
		players, perr := s.st.ListSessionPlayers(ctx, sessionID)
		if perr != nil {
			return nil, perr
		}
		if err := s.completeNoWinner(ctx, sess, len(players)); err != nil {
			return nil, err
		}
		out.Completed = true
		out.Status = state.StateCompleted
		s.stopAuto(sessionID)
		result = "success"
		metrics.RecordNumberCalled()
		s.publishCall(ctx, sess, num, len(called))
		return out, nil
	}

	if err := s.st.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	result = "success"
	metrics.RecordNumberCalled()
	s.publishCall(ctx, sess, num, len(called))
	s.cacheSnapshot(ctx, sess)
	return out, nil
}

func (s *sessionService) publishCall(ctx context.Context, sess *model.GameSession, num, count int) {
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventNumberCalled, SessionID: sess.SessionID, ShopID: sess.ShopID,
		Payload: map[string]any{"number": num, "called_count": count},
	})
}

func (s *sessionService) cacheSnapshot(ctx context.Context, sess *model.GameSession) {
	ttl := 2 * time.Hour
	if cfg := config.GetCurrent(); cfg != nil && cfg.Game.SnapshotTTLSec > 0 {
		ttl = time.Duration(cfg.Game.SnapshotTTLSec) * time.Second
	}
	s.nt.CacheSnapshot(ctx, sess.SessionID, map[string]any{
		"session_id":     sess.SessionID,
		"status":         sess.StatusStr,
		"called_numbers": model.DecodeCalls(sess.CalledNumbers),
	}, ttl)
}

func (s *sessionService) stopAuto(sessionID string) {
	if s.auto != nil {
		s.auto.Stop(sessionID)
	}
}

func (s *sessionService) DeclareWinner(ctx context.Context, in DeclareInput) (*DeclareOutput, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordSessionOp(result, "declare", startAt) }()

	mu := s.sessionLock(in.SessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.st.GetSession(ctx, in.SessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.StatusStr != state.StateActive {
		return nil, ErrInvalidState
	}

	// 首次核验即封盘（不论本次是否命中）
	if sess.WinChecked == 0 {
		sess.WinChecked = 1
		if err := s.st.UpdateSession(ctx, sess); err != nil {
			return nil, err
		}
	}

	players, err := s.st.ListSessionPlayers(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	var winner *model.SessionPlayer
	for i := range players {
		if players[i].CartelaNo == in.CartelaNo {
			winner = &players[i]
			break
		}
	}
	if winner == nil {
		return nil, ErrNotRegistered
	}

	c, err := s.st.GetCartela(ctx, winner.CartelaID)
	if err != nil {
		return nil, err
	}
	card, err := bingo.DecodeCard(c.Card)
	if err != nil {
		return nil, err
	}

	called := model.DecodeCalls(sess.CalledNumbers)
	res := bingo.Verify(card, called)
	if !res.Matched {
		logger.InfoCtx(ctx, "win claim rejected",
			zap.String("session_id", in.SessionID),
			zap.Int("cartela_no", in.CartelaNo),
			zap.Int("called_count", len(called)))
		return nil, ErrWinNotVerified
	}

	// 命中：完成 + 结算，一个原子批次
	sess.WinnerCartela = winner.CartelaID
	sess.WinnerAccount = winner.BookedBy
	sess.WinPattern = res.Pattern
	bd, err := s.settle(ctx, sess, len(players), false)
	if err != nil {
		return nil, err
	}

	result = "success"
	metrics.RecordWin(res.Pattern)
	s.stopAuto(in.SessionID)
	s.dropSessionLock(in.SessionID)
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventWinnerDeclared, SessionID: sess.SessionID, ShopID: sess.ShopID,
		Payload: map[string]any{
			"cartela_no": in.CartelaNo,
			"pattern":    res.Pattern,
			"prize":      bd.Prize.String(),
		},
	})
	s.nt.DropSnapshot(ctx, sess.SessionID)
	return &DeclareOutput{
		Pattern:        res.Pattern,
		Cells:          res.Cells,
		WinnerCartela:  winner.CartelaID,
		PrizeAmount:    bd.Prize,
		TotalCollected: bd.TotalCollected,
	}, nil
}

func (s *sessionService) Cancel(ctx context.Context, sessionID string, actorID int64) error {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordSessionOp(result, "cancel", startAt) }()

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.st.GetSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return ErrSessionNotFound
		}
		return err
	}
	next, err := state.NextState(sess.StatusStr, state.EvtCancel)
	if err != nil {
		return ErrInvalidState
	}

	sess.Status = state.ToCode(next)
	sess.StatusStr = next
	sess.EndedAt = time.Now().UnixMilli()
	if err := s.st.UpdateSession(ctx, sess); err != nil {
		return err
	}

	// 释放该局全部已预订卡片
	players, err := s.st.ListSessionPlayers(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := range players {
		if err := s.st.UnbookCartela(ctx, players[i].CartelaID, players[i].BookedBy, true); err != nil && err != store.ErrCartelaNotBooked {
			logger.WarnCtx(ctx, "release cartela on cancel failed",
				zap.Int64("cartela_id", players[i].CartelaID), zap.Error(err))
		}
	}

	// 终态事件走 outbox 保证可靠投递；失败不回滚取消本身
	if err := s.st.AppendEvents(ctx, []store.Event{{
		Topic:  topicSession(),
		BizKey: sessionID,
		Payload: map[string]any{
			"event":      "session_cancelled",
			"session_id": sessionID,
			"shop_id":    sess.ShopID,
			"actor_id":   actorID,
			"released":   len(players),
		},
	}}); err != nil {
		logger.WarnCtx(ctx, "append cancel event failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	result = "success"
	logger.InfoCtx(ctx, "session cancelled",
		zap.String("session_id", sessionID),
		zap.Int64("actor_id", actorID),
		zap.Int("released", len(players)))
	s.stopAuto(sessionID)
	s.dropSessionLock(sessionID)
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventSessionCanceled, SessionID: sessionID, ShopID: sess.ShopID,
	})
	s.nt.DropSnapshot(ctx, sessionID)
	return nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*model.GameSession, []model.SessionPlayer, error) {
	sess, err := s.st.GetSession(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}
	players, err := s.st.ListSessionPlayers(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, players, nil
}

func (s *sessionService) History(ctx context.Context, shopID int64, limit int) ([]model.GameHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.st.ListGameHistory(ctx, shopID, limit)
}

// completeNoWinner 号池叫尽收尾：完成 + 结算（奖金未派发）
func (s *sessionService) completeNoWinner(ctx context.Context, sess *model.GameSession, playerCount int) error {
	_, err := s.settle(ctx, sess, playerCount, true)
	if err != nil {
		return err
	}
	s.dropSessionLock(sess.SessionID)
	s.nt.Publish(ctx, notify.Event{
		Type: notify.EventSessionDone, SessionID: sess.SessionID, ShopID: sess.ShopID,
		Payload: map[string]any{"undistributed": true},
	})
	s.nt.DropSnapshot(ctx, sess.SessionID)
	return nil
}
