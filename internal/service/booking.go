package service

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"bingo-server/common/constant"
	"bingo-server/common/logger"
	"bingo-server/internal/bingo"
	"bingo-server/internal/config"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"
	"bingo-server/internal/notify"
	"bingo-server/internal/store"

	"go.uber.org/zap"
)

// 处理彩票卡预订业务逻辑

// BookInput 预订入参
type BookInput struct {
	CartelaID int64
	ActorID   int64 // 操作人账号ID
	TraceID   string
}

// UnbookInput 释放入参
// Force 为管理员强制释放（跳过预订人校验）
type UnbookInput struct {
	CartelaID int64
	ActorID   int64
	Force     bool
	TraceID   string
}

// ImportInput 批量导入入参；Content 为逐行文本
type ImportInput struct {
	ShopID  int64
	Content string
	TraceID string
}

// ImportOutput 导入结果：被拒绝的行不影响已有状态
type ImportOutput struct {
	Imported int
	Rejected []RejectedLine
}

// RejectedLine 单行拒绝原因（行号从 1 开始）
type RejectedLine struct {
	LineNo int    `json:"line_no"`
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

type BookingService interface {
	// Book 预订：free -> booked，已被预订返回 store.ErrCartelaBooked
	Book(ctx context.Context, in BookInput) (*model.Cartela, error)
	// Unbook 释放：仅预订人本人（或 Force）可释放
	Unbook(ctx context.Context, in UnbookInput) error
	// ResetShop 整店强制释放，返回释放数量；不可逆
	ResetShop(ctx context.Context, shopID, actorID int64, traceID string) (int64, error)
	// Import 批量导入卡片：逐行校验，坏行跳过并记录原因
	Import(ctx context.Context, in ImportInput) (*ImportOutput, error)
	// ListAvailable 店铺当前可预订卡片
	ListAvailable(ctx context.Context, shopID int64) ([]model.Cartela, error)
}

type bookingService struct {
	st store.Store
	nt notify.Notifier
}

func NewBookingService(st store.Store, nt notify.Notifier) BookingService {
	return &bookingService{st: st, nt: nt}
}

// Book 预订主流程：
// CAS 改状态（free->booked），并发双抢只有一方成功，另一方收到 Conflict
func (s *bookingService) Book(ctx context.Context, in BookInput) (*model.Cartela, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBooking(result, "book", start) }()

	if err := s.st.BookCartela(ctx, in.CartelaID, in.ActorID); err != nil {
		logger.WarnCtx(ctx, "book cartela failed",
			zap.Int64("cartela_id", in.CartelaID),
			zap.Int64("actor_id", in.ActorID),
			zap.Error(err))
		return nil, err
	}

	c, err := s.st.GetCartela(ctx, in.CartelaID)
	if err != nil {
		return nil, err
	}

	result = "success"
	s.nt.Publish(ctx, notify.Event{
		Type:   notify.EventCartelaBooked,
		ShopID: c.ShopID,
		Payload: map[string]any{
			"cartela_id": c.ID,
			"cartela_no": c.CartelaNo,
			"booked_by":  in.ActorID,
		},
	})
	return c, nil
}

// Unbook 释放主流程：非预订人释放返回 store.ErrNotBooker
func (s *bookingService) Unbook(ctx context.Context, in UnbookInput) error {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBooking(result, "unbook", start) }()

	c, err := s.st.GetCartela(ctx, in.CartelaID)
	if err != nil {
		return err
	}

	if err := s.st.UnbookCartela(ctx, in.CartelaID, in.ActorID, in.Force); err != nil {
		logger.WarnCtx(ctx, "unbook cartela failed",
			zap.Int64("cartela_id", in.CartelaID),
			zap.Int64("actor_id", in.ActorID),
			zap.Bool("force", in.Force),
			zap.Error(err))
		return err
	}

	result = "success"
	s.nt.Publish(ctx, notify.Event{
		Type:   notify.EventCartelaUnbooked,
		ShopID: c.ShopID,
		Payload: map[string]any{
			"cartela_id": c.ID,
			"cartela_no": c.CartelaNo,
		},
	})
	return nil
}

// ResetShop 整店释放（通常在一局结束或管理重置后调用）
func (s *bookingService) ResetShop(ctx context.Context, shopID, actorID int64, traceID string) (int64, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBooking(result, "reset", start) }()

	n, err := s.st.ResetShopCartelas(ctx, shopID)
	if err != nil {
		logger.ErrorCtx(ctx, "reset shop cartelas failed",
			zap.Int64("shop_id", shopID),
			zap.Error(err))
		return 0, err
	}

	logger.InfoCtx(ctx, "shop cartelas reset",
		zap.Int64("shop_id", shopID),
		zap.Int64("actor_id", actorID),
		zap.Int64("released", n))

	result = "success"
	s.nt.Publish(ctx, notify.Event{
		Type:    notify.EventShopReset,
		ShopID:  shopID,
		Payload: map[string]any{"released": n},
	})
	return n, nil
}

// Import 批量导入：
// 每行格式 cartelaNumber: v1,...,v25（行优先），中心格必须为字面量 free，
// 其余取值须落在各列 BINGO 区间内；编号冲突按拒绝处理。
func (s *bookingService) Import(ctx context.Context, in ImportInput) (*ImportOutput, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordBooking(result, "import", start) }()

	maxLines := int(config.GetThreshold("max_import_lines", 10000))

	out := &ImportOutput{}
	sc := bufio.NewScanner(strings.NewReader(in.Content))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo > maxLines {
			return nil, fmt.Errorf("import exceeds %d lines", maxLines)
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		no, card, err := bingo.ParseImportLine(line)
		if err != nil {
			out.Rejected = append(out.Rejected, RejectedLine{LineNo: lineNo, Line: line, Reason: err.Error()})
			continue
		}

		c := &model.Cartela{
			ShopID:    in.ShopID,
			CartelaNo: no,
			Card:      card.Encode(),
			Status:    constant.CartelaFree,
		}
		if err := s.st.InsertCartela(ctx, c); err != nil {
			reason := err.Error()
			if err == store.ErrDuplicate {
				reason = fmt.Sprintf("cartela %d already exists in shop", no)
			}
			out.Rejected = append(out.Rejected, RejectedLine{LineNo: lineNo, Line: line, Reason: reason})
			continue
		}
		out.Imported++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "cartela import finished",
		zap.Int64("shop_id", in.ShopID),
		zap.Int("imported", out.Imported),
		zap.Int("rejected", len(out.Rejected)))

	result = "success"
	return out, nil
}

func (s *bookingService) ListAvailable(ctx context.Context, shopID int64) ([]model.Cartela, error) {
	return s.st.ListAvailableCartelas(ctx, shopID)
}
