package api

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"bingo-server/internal/auth"
	helper "bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/service"
	"bingo-server/internal/store"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

// 账号接口：开户（超管专属）、查询、令牌刷新与注销。
// 开户即签发一对令牌，由超管线下交付给账号持有人。

type AccountController struct{ beego.Controller }

// 开户请求参数
type CreateAccountParam struct {
	Username           string `json:"username"`
	Role               string `json:"role"`     // super_admin/admin/employee/collector
	ShopID             int64  `json:"shop_id"`  // admin/employee/collector 归属店铺
	ReferrerID         int64  `json:"referrer_id"`
	ProfitMarginPct    string `json:"profit_margin_pct"`
	SuperCommissionPct string `json:"super_commission_pct"`
	ReferralRatePct    string `json:"referral_rate_pct"`
}

// Create 开户：POST /api/account
func (c *AccountController) Create() {
	traceID := helper.GetTraceID(c.Ctx)

	var p CreateAccountParam
	if err := json.NewDecoder(io.LimitReader(c.Ctx.Request.Body, 1<<20)).Decode(&p); err != nil {
		response.BadRequest(&c.Controller, "invalid json body", traceID)
		return
	}

	a, err := service.Ledger().CreateAccount(c.Ctx.Request.Context(), service.CreateAccountInput{
		Username:           p.Username,
		Role:               p.Role,
		ShopID:             p.ShopID,
		ReferrerID:         p.ReferrerID,
		ProfitMarginPct:    p.ProfitMarginPct,
		SuperCommissionPct: p.SuperCommissionPct,
		ReferralRatePct:    p.ReferralRatePct,
		TraceID:            traceID,
	})
	if err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		response.BadRequest(&c.Controller, err.Error(), traceID)
		return
	}

	access, err := auth.GenerateAccessToken(a.ID, a.Username, a.Role, a.ShopID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	refresh, err := auth.GenerateRefreshToken(a.ID, a.Username, a.Role, a.ShopID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"account_id":    a.ID,
		"username":      a.Username,
		"role":          a.Role,
		"shop_id":       a.ShopID,
		"access_token":  access,
		"refresh_token": refresh,
	}, traceID)
}

// Get 查询本人账号：GET /api/account/me
func (c *AccountController) Get() {
	traceID := helper.GetTraceID(c.Ctx)

	a, err := service.Ledger().GetAccount(c.Ctx.Request.Context(), helper.GetActorID(c.Ctx))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(&c.Controller, "账号不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"account_id": a.ID,
		"username":   a.Username,
		"role":       a.Role,
		"shop_id":    a.ShopID,
		"balance":    a.Balance,
	}, traceID)
}

// 令牌刷新请求参数
type RefreshParam struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 刷新访问令牌：POST /api/auth/refresh（免认证路由）
func (c *AccountController) Refresh() {
	traceID := helper.GetTraceID(c.Ctx)

	var p RefreshParam
	if err := json.NewDecoder(io.LimitReader(c.Ctx.Request.Body, 1<<20)).Decode(&p); err != nil || strings.TrimSpace(p.RefreshToken) == "" {
		response.BadRequest(&c.Controller, "refresh_token required", traceID)
		return
	}

	claims, err := auth.ParseToken(c.Ctx.Request.Context(), p.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			response.Error(&c.Controller, 401, response.CodeTokenRevoked, traceID)
		default:
			response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		}
		return
	}
	if claims.TokenType != "refresh" {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}

	access, err := auth.GenerateAccessToken(claims.AccountID, claims.Username, claims.Role, claims.ShopID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"access_token": access,
	}, traceID)
}

// Logout 注销当前令牌：POST /api/auth/logout
// 将当前访问令牌加入黑名单直至自然过期
func (c *AccountController) Logout() {
	traceID := helper.GetTraceID(c.Ctx)

	authHeader := strings.TrimSpace(c.Ctx.Input.Header("Authorization"))
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}
	tokenString := parts[1]

	claims, err := auth.ParseToken(c.Ctx.Request.Context(), tokenString)
	if err != nil {
		response.Error(&c.Controller, 401, response.CodeInvalidToken, traceID)
		return
	}

	if err := auth.RevokeToken(c.Ctx.Request.Context(), tokenString, claims.ExpiresAt.Time); err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"revoked": true,
	}, traceID)
}
