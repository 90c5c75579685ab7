package api

import (
	"errors"

	helper "bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/config"
	"bingo-server/internal/model"
	"bingo-server/internal/service"
	"bingo-server/internal/store"

	beego "github.com/beego/beego/v2/server/web"
)

// 场次接口：创建/登记/开局/叫号/核验/暂停/恢复/取消/查询。
// 同一场次的写操作由 service 层按场次互斥串行化。

var sessionSvc = service.Session

type SessionController struct{ beego.Controller }

func mapSessionErr(c *beego.Controller, err error, traceID string) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		response.NotFound(c, "场次不存在", traceID)
	case errors.Is(err, service.ErrInvalidState):
		response.Conflict(c, response.CodeInvalidState, traceID)
	case errors.Is(err, service.ErrNotEnoughPlayers):
		response.Conflict(c, response.CodeNotEnoughPlayers, traceID)
	case errors.Is(err, service.ErrNumberExhausted):
		response.Conflict(c, response.CodeNumberExhausted, traceID)
	case errors.Is(err, service.ErrWinNotVerified):
		response.Conflict(c, response.CodeWinNotVerified, traceID)
	case errors.Is(err, service.ErrLateRegistration):
		response.Conflict(c, response.CodeInvalidState, traceID)
	case errors.Is(err, service.ErrNotRegistered):
		response.NotFound(c, "该卡片未登记入局", traceID)
	case errors.Is(err, store.ErrCartelaBooked):
		response.Conflict(c, response.CodeCartelaBooked, traceID)
	case errors.Is(err, store.ErrWrongShop):
		response.BadRequest(c, "卡片不属于该场次所在店铺", traceID)
	case errors.Is(err, store.ErrAlreadySettled):
		response.Conflict(c, response.CodeAlreadySettled, traceID)
	default:
		response.InternalError(c, traceID)
	}
}

// Create 创建场次：POST /api/session/create
func (c *SessionController) Create() {
	sp, ok, msg := helper.ParseAndValidateSessionCreate(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)
	shopID := sp.ShopID
	if shopID == 0 {
		shopID = helper.GetActorShopID(c.Ctx)
	}

	sess, err := sessionSvc().Create(c.Ctx.Request.Context(), service.CreateSessionInput{
		ShopID:     shopID,
		OperatorID: helper.GetActorID(c.Ctx),
		EntryFee:   sp.EntryFee,
		TraceID:    traceID,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.BadRequest(&c.Controller, "入场费必须为正数", traceID)
			return
		}
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"session_id": sess.SessionID,
		"shop_id":    sess.ShopID,
		"entry_fee":  sess.EntryFee,
		"status":     sess.StatusStr,
	}, traceID)
}

// Register 登记玩家：POST /api/session/register
// 登记即预订卡片并累计入场费；首次核验后禁止补位
func (c *SessionController) Register() {
	rp, ok, msg := helper.ParseAndValidateRegister(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	p, err := sessionSvc().Register(c.Ctx.Request.Context(), service.RegisterInput{
		SessionID:  rp.SessionID,
		CartelaID:  rp.CartelaID,
		PlayerName: rp.PlayerName,
		ActorID:    helper.GetActorID(c.Ctx),
		TraceID:    traceID,
	})
	if err != nil {
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"session_id":  p.SessionID,
		"cartela_id":  p.CartelaID,
		"cartela_no":  p.CartelaNo,
		"player_name": p.PlayerName,
	}, traceID)
}

// Start 开局：POST /api/session/start
func (c *SessionController) Start() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")
	if sessionID == "" {
		response.BadRequest(&c.Controller, "session_id required", traceID)
		return
	}

	sess, err := sessionSvc().Start(c.Ctx.Request.Context(), sessionID, helper.GetActorID(c.Ctx))
	if err != nil {
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"session_id": sess.SessionID,
		"status":     sess.StatusStr,
	}, traceID)
}

// Call 叫号：POST /api/session/call
// 号池叫尽时本次响应即带 completed=true（奖金未派发结算）
func (c *SessionController) Call() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")
	if sessionID == "" {
		response.BadRequest(&c.Controller, "session_id required", traceID)
		return
	}

	out, err := sessionSvc().Call(c.Ctx.Request.Context(), sessionID, helper.GetActorID(c.Ctx))
	if err != nil {
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// AutoStart 开启自动叫号：POST /api/session/:session_id/auto/start
func (c *SessionController) AutoStart() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")
	if sessionID == "" {
		response.BadRequest(&c.Controller, "session_id required", traceID)
		return
	}

	if !config.GetFeatureFlag("auto_call") {
		response.ErrorWithMessage(&c.Controller, 403, response.CodeForbidden, "自动叫号未启用", traceID)
		return
	}

	service.Auto().Start(sessionID, helper.GetActorID(c.Ctx))
	response.Success(&c.Controller, map[string]interface{}{
		"session_id": sessionID,
		"auto":       true,
	}, traceID)
}

// Pause 暂停自动叫号：POST /api/session/:session_id/pause
func (c *SessionController) Pause() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")

	if ok := service.Auto().Pause(c.Ctx.Request.Context(), sessionID); !ok {
		response.NotFound(&c.Controller, "自动叫号未开启", traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"session_id": sessionID,
		"paused":     true,
	}, traceID)
}

// Resume 恢复自动叫号：POST /api/session/:session_id/resume
func (c *SessionController) Resume() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")

	if ok := service.Auto().Resume(c.Ctx.Request.Context(), sessionID); !ok {
		response.NotFound(&c.Controller, "自动叫号未开启", traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"session_id": sessionID,
		"paused":     false,
	}, traceID)
}

// Declare 核验宣告中奖：POST /api/session/declare
// 命中任一制胜图案则完成并结算；未命中返回错误且场次保持进行中
func (c *SessionController) Declare() {
	dp, ok, msg := helper.ParseAndValidateDeclare(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	out, err := sessionSvc().DeclareWinner(c.Ctx.Request.Context(), service.DeclareInput{
		SessionID: dp.SessionID,
		CartelaNo: dp.CartelaNo,
		ActorID:   helper.GetActorID(c.Ctx),
		TraceID:   traceID,
	})
	if err != nil {
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, out, traceID)
}

// Cancel 取消场次：POST /api/session/:session_id/cancel
func (c *SessionController) Cancel() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")
	if sessionID == "" {
		response.BadRequest(&c.Controller, "session_id required", traceID)
		return
	}

	if err := sessionSvc().Cancel(c.Ctx.Request.Context(), sessionID, helper.GetActorID(c.Ctx)); err != nil {
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"session_id": sessionID,
		"status":     "cancelled",
	}, traceID)
}

// Get 查询场次详情：GET /api/session/:session_id
func (c *SessionController) Get() {
	traceID := helper.GetTraceID(c.Ctx)
	sessionID := c.Ctx.Input.Param(":session_id")

	sess, players, err := sessionSvc().Get(c.Ctx.Request.Context(), sessionID)
	if err != nil {
		mapSessionErr(&c.Controller, err, traceID)
		return
	}

	ps := make([]map[string]interface{}, 0, len(players))
	for _, p := range players {
		ps = append(ps, map[string]interface{}{
			"cartela_id":  p.CartelaID,
			"cartela_no":  p.CartelaNo,
			"player_name": p.PlayerName,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{
		"session_id":      sess.SessionID,
		"shop_id":         sess.ShopID,
		"status":          sess.StatusStr,
		"entry_fee":       sess.EntryFee,
		"total_collected": sess.TotalCollected,
		"called_numbers":  model.DecodeCalls(sess.CalledNumbers),
		"win_checked":     sess.WinChecked == 1,
		"winner_cartela":  sess.WinnerCartela,
		"win_pattern":     sess.WinPattern,
		"players":         ps,
	}, traceID)
}

// History 店铺结算快照报表：GET /api/session/history
func (c *SessionController) History() {
	traceID := helper.GetTraceID(c.Ctx)
	limit, _ := c.GetInt("limit", 50)

	rows, err := sessionSvc().History(c.Ctx.Request.Context(), helper.GetActorShopID(c.Ctx), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"items": rows,
	}, traceID)
}
