package service

import (
	"context"
	"time"

	"bingo-server/common/constant"
	"bingo-server/common/logger"
	"bingo-server/internal/config"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"
	"bingo-server/internal/settle"
	"bingo-server/internal/state"
	"bingo-server/internal/store"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 结算：一局完成时的分账落库。
// 账务口径：店铺 admin 账号作为该局的清算账户 ——
// 先整笔入账 totalCollected，再依次扣减奖金、超管佣金与推荐佣金，
// 净变动恰为 adminProfit；恒等式由 settle.Split 的构造保证。

const (
	defaultTopicSettle  = "bingo_settle"
	defaultTopicSession = "bingo_session"
)

func topicSettle() string {
	if cfg := config.GetCurrent(); cfg != nil && cfg.RocketMQ.TopicSettle != "" {
		return cfg.RocketMQ.TopicSettle
	}
	return defaultTopicSettle
}

func topicSession() string {
	if cfg := config.GetCurrent(); cfg != nil && cfg.RocketMQ.TopicSession != "" {
		return cfg.RocketMQ.TopicSession
	}
	return defaultTopicSession
}

// settle 组装结算批次并原子落库；undistributed 表示号池叫尽无赢家。
// 调用方已持有场次锁。
func (s *sessionService) settle(ctx context.Context, sess *model.GameSession, playerCount int, undistributed bool) (*settle.Breakdown, error) {
	startAt := time.Now()
	result := "fail"
	defer func() { metrics.RecordSettlement(result, startAt) }()

	admin, err := s.st.ShopAdmin(ctx, sess.ShopID)
	if err != nil {
		return nil, err
	}
	superAdmin, err := s.st.SuperAdmin(ctx)
	if err != nil {
		return nil, err
	}

	// 无推荐人则不产生推荐佣金
	referralPct := decimal.Zero
	if admin.ReferrerID != 0 {
		referralPct = admin.ReferralRatePct
	}

	bd, err := settle.Split(sess.TotalCollected, admin.ProfitMarginPct, admin.SuperCommissionPct, referralPct)
	if err != nil {
		return nil, err
	}

	// 场次终态
	sess.Status = state.CodeCompleted
	sess.StatusStr = state.StateCompleted
	sess.EndedAt = time.Now().UnixMilli()
	sess.IsSettled = 1

	entries := []model.WalletLedger{
		{
			AccountID: admin.ID,
			BizType:   constant.BizEntryFee,
			Amount:    bd.TotalCollected,
			Ref:       sess.SessionID,
			SessionID: sess.SessionID,
			ShopID:    sess.ShopID,
			TraceID:   sess.TraceID,
		},
	}
	if !undistributed {
		// 奖金支出；无赢家时奖金留在清算账户内待退费处理
		entries = append(entries, model.WalletLedger{
			AccountID: admin.ID,
			BizType:   constant.BizPrizePayout,
			Amount:    bd.Prize.Neg(),
			Ref:       sess.SessionID,
			SessionID: sess.SessionID,
			ShopID:    sess.ShopID,
			TraceID:   sess.TraceID,
		})
	}
	if bd.SuperCommission.IsPositive() {
		entries = append(entries,
			model.WalletLedger{
				AccountID: admin.ID,
				BizType:   constant.BizSuperAdminCommission,
				Amount:    bd.SuperCommission.Neg(),
				Ref:       sess.SessionID,
				SessionID: sess.SessionID,
				ShopID:    sess.ShopID,
				TraceID:   sess.TraceID,
			},
			model.WalletLedger{
				AccountID: superAdmin.ID,
				BizType:   constant.BizSuperAdminCommission,
				Amount:    bd.SuperCommission,
				Ref:       sess.SessionID,
				SessionID: sess.SessionID,
				ShopID:    sess.ShopID,
				TraceID:   sess.TraceID,
			},
		)
	}

	var commission *model.ReferralCommission
	if bd.Referral.IsPositive() {
		// 推荐佣金从利润中切出，挂为待处理记录；推荐人转余额时才入账
		entries = append(entries, model.WalletLedger{
			AccountID: admin.ID,
			BizType:   constant.BizReferralCommission,
			Amount:    bd.Referral.Neg(),
			Ref:       sess.SessionID,
			SessionID: sess.SessionID,
			ShopID:    sess.ShopID,
			TraceID:   sess.TraceID,
		})
		commission = &model.ReferralCommission{
			AccountID:     admin.ReferrerID,
			FromAccountID: admin.ID,
			SessionID:     sess.SessionID,
			Amount:        bd.Referral,
			Status:        constant.CommissionPending,
		}
	}

	history := &model.GameHistory{
		SessionID:          sess.SessionID,
		ShopID:             sess.ShopID,
		EntryFee:           sess.EntryFee,
		PlayerCount:        playerCount,
		TotalCollected:     bd.TotalCollected,
		PrizeAmount:        bd.Prize,
		ShopShare:          bd.ShopShare,
		SuperCommission:    bd.SuperCommission,
		AdminProfit:        bd.AdminProfit,
		ReferralCommission: bd.Referral,
		WinnerAccount:      sess.WinnerAccount,
		WinnerCartela:      sess.WinnerCartela,
		WinPattern:         sess.WinPattern,
		CalledCount:        len(model.DecodeCalls(sess.CalledNumbers)),
		TraceID:            sess.TraceID,
	}
	if undistributed {
		history.Undistributed = 1
	}

	batch := &store.SettlementBatch{
		Session:    sess,
		Entries:    entries,
		History:    history,
		Commission: commission,
		Events: []store.Event{{
			Topic:  topicSettle(),
			BizKey: sess.SessionID,
			Payload: map[string]any{
				"session_id":       sess.SessionID,
				"shop_id":          sess.ShopID,
				"total_collected":  bd.TotalCollected.String(),
				"prize":            bd.Prize.String(),
				"admin_profit":     bd.AdminProfit.String(),
				"super_commission": bd.SuperCommission.String(),
				"referral":         bd.Referral.String(),
				"undistributed":    undistributed,
				"win_pattern":      sess.WinPattern,
			},
		}},
	}

	if err := s.st.ApplySettlement(ctx, batch); err != nil {
		if err == store.ErrAlreadySettled {
			result = "duplicate"
		}
		logger.ErrorCtx(ctx, "apply settlement failed",
			zap.String("session_id", sess.SessionID), zap.Error(err))
		return nil, err
	}

	result = "success"
	logger.InfoCtx(ctx, "session settled",
		zap.String("session_id", sess.SessionID),
		zap.String("total_collected", bd.TotalCollected.String()),
		zap.String("prize", bd.Prize.String()),
		zap.String("admin_profit", bd.AdminProfit.String()),
		zap.String("super_commission", bd.SuperCommission.String()),
		zap.String("referral", bd.Referral.String()),
		zap.Bool("undistributed", undistributed))
	return &bd, nil
}
