// Package store 定义核心实体的注入式仓储接口（后端可替换）。
// memory 子包用于测试与本地运行，mysql 子包用于生产。
// 接口方法均为“粗粒度原子操作”：单方法内的全部写入要么全部生效、
// 要么全部不生效，由各后端自行用互斥锁或数据库事务保证。
package store

import (
	"context"
	"errors"

	"bingo-server/internal/model"
)

// 各后端统一返回的哨兵错误（service 层映射为对外错误码）
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("duplicate record")
	ErrCartelaBooked       = errors.New("cartela already booked")
	ErrCartelaNotBooked    = errors.New("cartela not booked")
	ErrNotBooker           = errors.New("requester is not the booker")
	ErrAlreadyProcessed    = errors.New("request already processed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadySettled      = errors.New("session already settled")
	ErrWrongShop           = errors.New("cartela belongs to another shop")
)

// Event 待投递的领域事件（落 outbox，由 worker 异步发布）
type Event struct {
	Topic   string
	BizKey  string
	Payload map[string]any
}

// SettlementBatch 结算批次：一局完成时必须整体原子落库的全部内容。
// 部分入账（店铺已入账而超管未入账）视为正确性违规。
type SettlementBatch struct {
	Session    *model.GameSession        // 终态场次（is_settled=1）
	Entries    []model.WalletLedger      // 账本批次（顺序生效，Before/After 由后端填充）
	History    *model.GameHistory        // 不可变快照
	Commission *model.ReferralCommission // 待处理推荐佣金，可为 nil
	Events     []Event                   // 结算事件
}

// Store 核心仓储接口
type Store interface {
	// ---- cartela ----
	InsertCartela(ctx context.Context, c *model.Cartela) error
	GetCartela(ctx context.Context, id int64) (*model.Cartela, error)
	GetCartelaByNo(ctx context.Context, shopID int64, no int) (*model.Cartela, error)
	ListAvailableCartelas(ctx context.Context, shopID int64) ([]model.Cartela, error)
	// BookCartela 原子 CAS：两个并发 Book 恰好一胜一败（败者 ErrCartelaBooked）
	BookCartela(ctx context.Context, id, bookedBy int64) error
	// UnbookCartela force=true 时跳过预订人校验（主管强制释放）
	UnbookCartela(ctx context.Context, id, requestedBy int64, force bool) error
	ResetShopCartelas(ctx context.Context, shopID int64) (int64, error)

	// ---- session ----
	CreateSession(ctx context.Context, s *model.GameSession) error
	GetSession(ctx context.Context, sessionID string) (*model.GameSession, error)
	UpdateSession(ctx context.Context, s *model.GameSession) error
	// RegisterPlayer 报名的原子单元：预订卡片（CAS）、登记玩家、回写场次
	// 三步要么全部生效要么全部不生效。卡片不属于场次所在店铺返回
	// ErrWrongShop，已被预订返回 ErrCartelaBooked，重复登记返回
	// ErrDuplicate，任一失败均不留下已预订卡片或孤儿玩家行。
	// 成功时由后端回填 p.CartelaNo。
	RegisterPlayer(ctx context.Context, sess *model.GameSession, p *model.SessionPlayer) error
	ListSessionPlayers(ctx context.Context, sessionID string) ([]model.SessionPlayer, error)

	// ---- account / ledger ----
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	SuperAdmin(ctx context.Context) (*model.Account, error)
	ShopAdmin(ctx context.Context, shopID int64) (*model.Account, error)
	// ApplyEntries 按序生效一批带符号账变并填充 before/after；任一借记把余额
	// 打成负数则整批失败（ErrInsufficientBalance），两边余额均不变。
	// 多账号加锁按账号ID升序，杜绝对向转账死锁。
	ApplyEntries(ctx context.Context, entries []model.WalletLedger) error
	ListEntries(ctx context.Context, accountID int64, limit int) ([]model.WalletLedger, error)

	// ---- credit load / withdrawal / commission（单次处理保证） ----
	CreateCreditLoad(ctx context.Context, r *model.CreditLoadRequest) error
	GetCreditLoad(ctx context.Context, requestID string) (*model.CreditLoadRequest, error)
	// ProcessCreditLoad approve=true 时 entry 为入账账变，与状态翻转同一原子单元；
	// 请求已处理过返回 ErrAlreadyProcessed 且无任何余额变化
	ProcessCreditLoad(ctx context.Context, requestID string, approve bool, by int64, reason string, entry *model.WalletLedger) (*model.CreditLoadRequest, error)
	CreateWithdrawal(ctx context.Context, r *model.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, requestID string) (*model.WithdrawalRequest, error)
	// ProcessWithdrawal 佣金来源的提现在批准时同步把佣金记录置为 withdrawn
	ProcessWithdrawal(ctx context.Context, requestID string, approve bool, by int64, reason string, entry *model.WalletLedger) (*model.WithdrawalRequest, error)
	GetCommission(ctx context.Context, id int64) (*model.ReferralCommission, error)
	// ConvertCommission pending -> converted_to_credit，并原子入账 entry
	ConvertCommission(ctx context.Context, id int64, entry *model.WalletLedger) (*model.ReferralCommission, error)

	// ---- settlement ----
	ApplySettlement(ctx context.Context, batch *SettlementBatch) error

	// ---- outbox / history ----
	AppendEvents(ctx context.Context, events []Event) error
	ListOutboxPending(ctx context.Context, limit int) ([]model.Outbox, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, lastError string) error
	ListGameHistory(ctx context.Context, shopID int64, limit int) ([]model.GameHistory, error)
}
