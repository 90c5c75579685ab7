package middleware

import (
	"time"

	"bingo-server/common/logger"
	"bingo-server/internal/auth"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// ActorAuthFilter 操作者认证过滤器（JWT Token）
// 验证 JWT Token 并将操作者身份（账号/角色/店铺）写入请求上下文
func ActorAuthFilter(ctx *beegocontext.Context) {
	traceID := helper.GetTraceID(ctx)

	// 辅助函数：返回错误
	returnError := func(httpCode int, bizCode int, message string) {
		ctx.Output.SetStatus(httpCode)
		ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 1. 验证 JWT Token
	claims, err := auth.VerifyJWTToken(ctx)
	if err != nil {
		logger.Warn("actor authentication failed",
			zap.String("trace_id", traceID),
			zap.Error(err))

		// 根据错误类型返回不同的错误码
		switch err {
		case auth.ErrMissingToken:
			returnError(401, response.CodeUnauthorized, "缺少认证Token")
		case auth.ErrInvalidTokenFormat:
			returnError(401, response.CodeInvalidToken, "Token格式无效")
		case auth.ErrInvalidToken:
			returnError(401, response.CodeInvalidToken, "Token无效")
		case auth.ErrTokenExpired:
			returnError(401, response.CodeTokenExpired, "Token已过期")
		case auth.ErrTokenRevoked:
			returnError(401, response.CodeTokenRevoked, "Token已撤销")
		default:
			returnError(401, response.CodeUnauthorized, "认证失败")
		}
		return
	}

	// 2. 角色必须在封闭枚举内
	if err := auth.Require(claims.Role, auth.OpViewSession); err == auth.ErrUnknownRole {
		logger.Warn("unknown role in token",
			zap.String("trace_id", traceID),
			zap.String("role", claims.Role))
		returnError(403, response.CodeForbidden, "未知角色")
		return
	}

	// 3. 将操作者信息存入 context；账号ID同时注入 Request.Context() 供日志关联
	ctx.Input.SetData("account_id", claims.AccountID)
	ctx.Input.SetData("username", claims.Username)
	ctx.Input.SetData("role", claims.Role)
	ctx.Input.SetData("shop_id", claims.ShopID)
	ctx.Input.SetData("jwt_claims", claims)
	ctx.Request = ctx.Request.WithContext(logger.WithActorID(ctx.Request.Context(), claims.AccountID))

	logger.Debug("actor authentication successful",
		zap.String("trace_id", traceID),
		zap.Int64("account_id", claims.AccountID),
		zap.String("username", claims.Username),
		zap.String("role", claims.Role))
}

// RequireCapability 返回校验角色能力的过滤器，在路由上按操作挂载。
// 能力表见 auth 包：角色 -> 操作集合，在操作边界处一次性校验。
func RequireCapability(op string) func(ctx *beegocontext.Context) {
	return func(ctx *beegocontext.Context) {
		traceID := helper.GetTraceID(ctx)
		role, _ := ctx.Input.GetData("role").(string)

		if err := auth.Require(role, op); err != nil {
			logger.Warn("capability check failed",
				zap.String("trace_id", traceID),
				zap.String("role", role),
				zap.String("op", op),
				zap.Error(err))
			ctx.Output.SetStatus(403)
			ctx.Output.JSON(response.APIResponse{
				Code:      response.CodeForbidden,
				Message:   response.ErrorMessages[response.CodeForbidden],
				Data:      nil,
				TraceID:   traceID,
				Timestamp: time.Now().UnixMilli(),
			}, false, false)
			return
		}
	}
}
