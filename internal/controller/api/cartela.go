package api

import (
	"errors"
	"io"

	"bingo-server/internal/auth"
	helper "bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/service"
	"bingo-server/internal/store"

	beego "github.com/beego/beego/v2/server/web"
)

// 卡片预订接口。预订/释放走 CAS，两个并发预订恰好一胜一败。

var bookingSvc = service.Booking

type CartelaController struct{ beego.Controller }

// Book 处理预订接口：POST /api/cartela/book
func (c *CartelaController) Book() {
	// 这里必须要对业务参数严格校验，后续service不再重复校验
	bp, ok, msg := helper.ParseAndValidateBooking(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	cart, err := bookingSvc().Book(c.Ctx.Request.Context(), service.BookInput{
		CartelaID: bp.CartelaID,
		ActorID:   helper.GetActorID(c.Ctx),
		TraceID:   traceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.NotFound(&c.Controller, "卡片不存在", traceID)
		case errors.Is(err, store.ErrCartelaBooked):
			response.Conflict(&c.Controller, response.CodeCartelaBooked, traceID)
		default:
			response.InternalError(&c.Controller, traceID)
		}
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"cartela_id": cart.ID,
		"cartela_no": cart.CartelaNo,
		"shop_id":    cart.ShopID,
		"booked_by":  cart.BookedBy,
	}, traceID)
}

// Unbook 处理释放接口：POST /api/cartela/unbook
// force=true 需要 cartela.force_unbook 能力（路由层校验）
func (c *CartelaController) Unbook() {
	bp, ok, msg := helper.ParseAndValidateBooking(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	traceID := helper.GetTraceID(c.Ctx)

	// 强制释放是独立能力（主管越过预订人校验）
	if bp.Force {
		if err := auth.Require(helper.GetActorRole(c.Ctx), auth.OpForceUnbook); err != nil {
			response.Error(&c.Controller, 403, response.CodeForbidden, traceID)
			return
		}
	}

	err := bookingSvc().Unbook(c.Ctx.Request.Context(), service.UnbookInput{
		CartelaID: bp.CartelaID,
		ActorID:   helper.GetActorID(c.Ctx),
		Force:     bp.Force,
		TraceID:   traceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.NotFound(&c.Controller, "卡片不存在", traceID)
		case errors.Is(err, store.ErrCartelaNotBooked):
			response.Conflict(&c.Controller, response.CodeCartelaNotBooked, traceID)
		case errors.Is(err, store.ErrNotBooker):
			response.Conflict(&c.Controller, response.CodeNotBooker, traceID)
		default:
			response.InternalError(&c.Controller, traceID)
		}
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"cartela_id": bp.CartelaID,
	}, traceID)
}

// Reset 整店重置接口：POST /api/cartela/reset
// 释放店铺内全部卡片，返回释放数量
func (c *CartelaController) Reset() {
	traceID := helper.GetTraceID(c.Ctx)
	shopID := helper.GetActorShopID(c.Ctx)

	n, err := bookingSvc().ResetShop(c.Ctx.Request.Context(), shopID, helper.GetActorID(c.Ctx), traceID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"shop_id":  shopID,
		"released": n,
	}, traceID)
}

// Import 批量导入接口：POST /api/cartela/import
// 请求体为逐行文本（text/plain），坏行跳过并逐行返回原因
func (c *CartelaController) Import() {
	traceID := helper.GetTraceID(c.Ctx)
	raw, _ := io.ReadAll(io.LimitReader(c.Ctx.Request.Body, 1<<20))
	body := string(raw)
	if body == "" {
		response.BadRequest(&c.Controller, "empty import body", traceID)
		return
	}

	out, err := bookingSvc().Import(c.Ctx.Request.Context(), service.ImportInput{
		ShopID:  helper.GetActorShopID(c.Ctx),
		Content: body,
		TraceID: traceID,
	})
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"imported": out.Imported,
		"rejected": out.Rejected,
	}, traceID)
}

// List 可预订卡片列表：GET /api/cartela/available
func (c *CartelaController) List() {
	traceID := helper.GetTraceID(c.Ctx)
	shopID := helper.GetActorShopID(c.Ctx)

	list, err := bookingSvc().ListAvailable(c.Ctx.Request.Context(), shopID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(list))
	for _, cart := range list {
		items = append(items, map[string]interface{}{
			"cartela_id": cart.ID,
			"cartela_no": cart.CartelaNo,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{
		"shop_id": shopID,
		"items":   items,
	}, traceID)
}
