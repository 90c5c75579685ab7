package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// GetActorID 从中间件注入的数据中取操作者账号ID
func GetActorID(ctx *beegocontext.Context) int64 {
	if v, ok := ctx.Input.GetData("account_id").(int64); ok {
		return v
	}
	return 0
}

// GetActorRole 从中间件注入的数据中取操作者角色
func GetActorRole(ctx *beegocontext.Context) string {
	if v, ok := ctx.Input.GetData("role").(string); ok {
		return v
	}
	return ""
}

// GetActorShopID 从中间件注入的数据中取操作者店铺ID
func GetActorShopID(ctx *beegocontext.Context) int64 {
	if v, ok := ctx.Input.GetData("shop_id").(int64); ok {
		return v
	}
	return 0
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Booking helpers --------

// BookingParsed 为解析后的预订/释放入参（与控制器/服务层解耦）
type BookingParsed struct {
	CartelaID int64 `json:"cartela_id"`
	ShopID    int64 `json:"shop_id"`
	Force     bool  `json:"force"`
}

// ParseBookingFromJSON 解析 JSON 到 BookingParsed。失败返回 false 与错误消息。
func ParseBookingFromJSON(r io.Reader) (BookingParsed, bool, string) {
	var out BookingParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BookingParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseBookingFromForm 从表单读取字段并做强校验。失败返回 false 与可读错误信息。
func ParseBookingFromForm(ctx *beegocontext.Context) (BookingParsed, bool, string) {
	var out BookingParsed
	idStr := strings.TrimSpace(ctx.Input.Query("cartela_id"))
	if idStr == "" {
		return BookingParsed{}, false, "cartela_id required"
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return BookingParsed{}, false, "cartela_id must be integer"
	}
	out.CartelaID = id

	if s := strings.TrimSpace(ctx.Input.Query("shop_id")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out.ShopID = v
		}
	}
	out.Force = strings.TrimSpace(ctx.Input.Query("force")) == "1"
	return out, true, ""
}

// ValidateBooking 对通用字段做二次校验（适用于 JSON 与 FORM）
func ValidateBooking(in *BookingParsed) (bool, string) {
	if in.CartelaID <= 0 {
		return false, "cartela_id required"
	}
	return true, ""
}

// ParseAndValidateBooking 按 Content-Type 自动解析并做统一校验
func ParseAndValidateBooking(ctx *beegocontext.Context) (BookingParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBookingFromJSON, ParseBookingFromForm)
	if !ok {
		return BookingParsed{}, false, msg
	}
	if ok, msg := ValidateBooking(&out); !ok {
		return BookingParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Session helpers --------

// SessionCreateParsed 创建场次入参
type SessionCreateParsed struct {
	ShopID   int64  `json:"shop_id"`
	EntryFee string `json:"entry_fee"`
}

func ParseSessionCreateFromJSON(r io.Reader) (SessionCreateParsed, bool, string) {
	var out SessionCreateParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return SessionCreateParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseSessionCreateFromForm(ctx *beegocontext.Context) (SessionCreateParsed, bool, string) {
	var out SessionCreateParsed
	if s := strings.TrimSpace(ctx.Input.Query("shop_id")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out.ShopID = v
		}
	}
	out.EntryFee = strings.TrimSpace(ctx.Input.Query("entry_fee"))
	return out, true, ""
}

func ValidateSessionCreate(in *SessionCreateParsed) (bool, string) {
	if strings.TrimSpace(in.EntryFee) == "" || !IsMoneyFormat(in.EntryFee) {
		return false, "entry_fee must be numeric with up to 2 decimals"
	}
	if len(in.EntryFee) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateSessionCreate(ctx *beegocontext.Context) (SessionCreateParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseSessionCreateFromJSON, ParseSessionCreateFromForm)
	if !ok {
		return SessionCreateParsed{}, false, msg
	}
	if ok, msg := ValidateSessionCreate(&out); !ok {
		return SessionCreateParsed{}, false, msg
	}
	return out, true, ""
}

// RegisterParsed 场次注册玩家入参
type RegisterParsed struct {
	SessionID  string `json:"session_id"`
	CartelaID  int64  `json:"cartela_id"`
	PlayerName string `json:"player_name"`
}

func ParseRegisterFromJSON(r io.Reader) (RegisterParsed, bool, string) {
	var out RegisterParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return RegisterParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseRegisterFromForm(ctx *beegocontext.Context) (RegisterParsed, bool, string) {
	var out RegisterParsed
	out.SessionID = strings.TrimSpace(ctx.Input.Query("session_id"))
	out.PlayerName = strings.TrimSpace(ctx.Input.Query("player_name"))
	if s := strings.TrimSpace(ctx.Input.Query("cartela_id")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out.CartelaID = v
		}
	}
	return out, true, ""
}

func ValidateRegister(in *RegisterParsed) (bool, string) {
	if in.SessionID == "" || in.CartelaID <= 0 {
		return false, "missing required fields: session_id/cartela_id"
	}
	if len(in.SessionID) > 64 || len(in.PlayerName) > 64 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateRegister(ctx *beegocontext.Context) (RegisterParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseRegisterFromJSON, ParseRegisterFromForm)
	if !ok {
		return RegisterParsed{}, false, msg
	}
	if ok, msg := ValidateRegister(&out); !ok {
		return RegisterParsed{}, false, msg
	}
	return out, true, ""
}

// DeclareParsed 宣告中奖入参
type DeclareParsed struct {
	SessionID string `json:"session_id"`
	CartelaNo int    `json:"cartela_no"`
}

func ParseDeclareFromJSON(r io.Reader) (DeclareParsed, bool, string) {
	var out DeclareParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DeclareParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseDeclareFromForm(ctx *beegocontext.Context) (DeclareParsed, bool, string) {
	var out DeclareParsed
	out.SessionID = strings.TrimSpace(ctx.Input.Query("session_id"))
	if s := strings.TrimSpace(ctx.Input.Query("cartela_no")); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			out.CartelaNo = v
		}
	}
	return out, true, ""
}

func ValidateDeclare(in *DeclareParsed) (bool, string) {
	if in.SessionID == "" || in.CartelaNo <= 0 {
		return false, "missing required fields: session_id/cartela_no"
	}
	if len(in.SessionID) > 64 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateDeclare(ctx *beegocontext.Context) (DeclareParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDeclareFromJSON, ParseDeclareFromForm)
	if !ok {
		return DeclareParsed{}, false, msg
	}
	if ok, msg := ValidateDeclare(&out); !ok {
		return DeclareParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Ledger helpers --------

// TransferParsed 信用额度转账入参
type TransferParsed struct {
	ToAccountID int64  `json:"to_account_id"`
	Amount      string `json:"amount"`
	Remark      string `json:"remark"`
}

func ParseTransferFromJSON(r io.Reader) (TransferParsed, bool, string) {
	var out TransferParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return TransferParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseTransferFromForm(ctx *beegocontext.Context) (TransferParsed, bool, string) {
	var out TransferParsed
	if s := strings.TrimSpace(ctx.Input.Query("to_account_id")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out.ToAccountID = v
		}
	}
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Remark = strings.TrimSpace(ctx.Input.Query("remark"))
	return out, true, ""
}

func ValidateTransfer(in *TransferParsed) (bool, string) {
	if in.ToAccountID <= 0 {
		return false, "to_account_id required"
	}
	if strings.TrimSpace(in.Amount) == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Amount) > 32 || len(in.Remark) > 255 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateTransfer(ctx *beegocontext.Context) (TransferParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseTransferFromJSON, ParseTransferFromForm)
	if !ok {
		return TransferParsed{}, false, msg
	}
	if ok, msg := ValidateTransfer(&out); !ok {
		return TransferParsed{}, false, msg
	}
	return out, true, ""
}

// ProcessParsed 财务请求审批入参（确认/拒绝二选一，携带处理原因）
type ProcessParsed struct {
	RequestID string `json:"request_id"`
	Approve   bool   `json:"approve"`
	Reason    string `json:"reason"`
}

func ParseProcessFromJSON(r io.Reader) (ProcessParsed, bool, string) {
	var out ProcessParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return ProcessParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseProcessFromForm(ctx *beegocontext.Context) (ProcessParsed, bool, string) {
	var out ProcessParsed
	out.RequestID = strings.TrimSpace(ctx.Input.Query("request_id"))
	out.Approve = strings.TrimSpace(ctx.Input.Query("approve")) == "1"
	out.Reason = strings.TrimSpace(ctx.Input.Query("reason"))
	return out, true, ""
}

func ValidateProcess(in *ProcessParsed) (bool, string) {
	if in.RequestID == "" {
		return false, "request_id required"
	}
	if len(in.RequestID) > 64 || len(in.Reason) > 255 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateProcess(ctx *beegocontext.Context) (ProcessParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseProcessFromJSON, ParseProcessFromForm)
	if !ok {
		return ProcessParsed{}, false, msg
	}
	if ok, msg := ValidateProcess(&out); !ok {
		return ProcessParsed{}, false, msg
	}
	return out, true, ""
}

// AmountParsed 金额类请求入参（加载信用额度 / 提现）
type AmountParsed struct {
	Amount       string `json:"amount"`
	Source       string `json:"source"`
	CommissionID int64  `json:"commission_id"`
}

func ParseAmountFromJSON(r io.Reader) (AmountParsed, bool, string) {
	var out AmountParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return AmountParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseAmountFromForm(ctx *beegocontext.Context) (AmountParsed, bool, string) {
	var out AmountParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Source = strings.TrimSpace(ctx.Input.Query("source"))
	if s := strings.TrimSpace(ctx.Input.Query("commission_id")); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out.CommissionID = v
		}
	}
	return out, true, ""
}

func ValidateAmount(in *AmountParsed) (bool, string) {
	if strings.TrimSpace(in.Amount) == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Amount) > 32 {
		return false, "invalid request"
	}
	if in.Source != "" && in.Source != "credit" && in.Source != "commission" {
		return false, "source must be credit|commission"
	}
	return true, ""
}

func ParseAndValidateAmount(ctx *beegocontext.Context) (AmountParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseAmountFromJSON, ParseAmountFromForm)
	if !ok {
		return AmountParsed{}, false, msg
	}
	if ok, msg := ValidateAmount(&out); !ok {
		return AmountParsed{}, false, msg
	}
	return out, true, ""
}
