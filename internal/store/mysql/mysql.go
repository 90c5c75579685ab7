// Package mysql 提供 store.Store 的 MySQL 实现。
// 写路径均在单事务内完成：行锁（FOR UPDATE）串行化同一资源的并发变更，
// 多账号按ID升序加锁，唯一键冲突映射为 Duplicate/AlreadySettled。
package mysql

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"bingo-server/common/constant"
	"bingo-server/internal/model"
	"bingo-server/internal/store"
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// MySQL sqlx 后端
type MySQL struct {
	db *sqlx.DB
}

// New 构造 MySQL 仓储
func New(db *sqlx.DB) *MySQL { return &MySQL{db: db} }

var _ store.Store = (*MySQL)(nil)

func (s *MySQL) withTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

// isDuplicateKeyError 判断是否为 MySQL 唯一键冲突（错误码 1062）
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// ---- cartela ----

func (s *MySQL) InsertCartela(ctx context.Context, c *model.Cartela) error {
	if err := c.Insert(ctx, s.db); err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MySQL) GetCartela(ctx context.Context, id int64) (*model.Cartela, error) {
	c, err := model.GetCartelaByID(ctx, s.db, id)
	return c, mapNotFound(err)
}

func (s *MySQL) GetCartelaByNo(ctx context.Context, shopID int64, no int) (*model.Cartela, error) {
	c, err := model.GetCartelaByNo(ctx, s.db, shopID, no)
	return c, mapNotFound(err)
}

func (s *MySQL) ListAvailableCartelas(ctx context.Context, shopID int64) ([]model.Cartela, error) {
	return model.ListAvailableCartelas(s.db, shopID)
}

func (s *MySQL) BookCartela(ctx context.Context, id, bookedBy int64) error {
	rows, err := model.BookCartelaCAS(ctx, s.db, id, bookedBy)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	// CAS 未命中：区分“不存在”与“已被预订”
	if _, err := model.GetCartelaByID(ctx, s.db, id); err != nil {
		return mapNotFound(err)
	}
	return store.ErrCartelaBooked
}

func (s *MySQL) UnbookCartela(ctx context.Context, id, requestedBy int64, force bool) error {
	by := requestedBy
	if force {
		by = 0
	}
	rows, err := model.UnbookCartela(ctx, s.db, id, by)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	c, err := model.GetCartelaByID(ctx, s.db, id)
	if err != nil {
		return mapNotFound(err)
	}
	if c.Status != constant.CartelaBooked {
		return store.ErrCartelaNotBooked
	}
	return store.ErrNotBooker
}

func (s *MySQL) ResetShopCartelas(ctx context.Context, shopID int64) (int64, error) {
	return model.ResetShopCartelas(ctx, s.db, shopID)
}

// ---- session ----

func (s *MySQL) CreateSession(ctx context.Context, sess *model.GameSession) error {
	if err := sess.Insert(ctx, s.db); err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MySQL) GetSession(ctx context.Context, sessionID string) (*model.GameSession, error) {
	sess, err := model.GetSessionByID(ctx, s.db, sessionID)
	return sess, mapNotFound(err)
}

func (s *MySQL) UpdateSession(ctx context.Context, sess *model.GameSession) error {
	return sess.Update(ctx, s.db)
}

func (s *MySQL) RegisterPlayer(ctx context.Context, sess *model.GameSession, p *model.SessionPlayer) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		// 行锁住卡片后校验店铺与空闲状态，避免跨店报名与并发抢订
		c, err := model.GetCartelaForUpdate(ctx, tx, p.CartelaID)
		if err != nil {
			return mapNotFound(err)
		}
		if c.ShopID != sess.ShopID {
			return store.ErrWrongShop
		}
		if c.Status != constant.CartelaFree {
			return store.ErrCartelaBooked
		}
		if _, err := model.BookCartelaCAS(ctx, tx, p.CartelaID, p.BookedBy); err != nil {
			return err
		}
		p.CartelaNo = c.CartelaNo
		if err := p.Insert(ctx, tx); err != nil {
			if isDuplicateKeyError(err) {
				return store.ErrDuplicate
			}
			return err
		}
		return sess.Update(ctx, tx)
	})
}

func (s *MySQL) ListSessionPlayers(ctx context.Context, sessionID string) ([]model.SessionPlayer, error) {
	return model.ListSessionPlayers(s.db, sessionID)
}

// ---- account / ledger ----

func (s *MySQL) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := a.Insert(ctx, s.db); err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MySQL) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	a, err := model.GetAccountByID(ctx, s.db, id)
	return a, mapNotFound(err)
}

func (s *MySQL) SuperAdmin(ctx context.Context) (*model.Account, error) {
	a, err := model.GetSuperAdmin(ctx, s.db)
	return a, mapNotFound(err)
}

func (s *MySQL) ShopAdmin(ctx context.Context, shopID int64) (*model.Account, error) {
	a, err := model.GetShopAdmin(ctx, s.db, shopID)
	return a, mapNotFound(err)
}

func (s *MySQL) ApplyEntries(ctx context.Context, entries []model.WalletLedger) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return applyEntriesTx(ctx, tx, entries)
	})
}

// applyEntriesTx 在事务内按账号ID升序加锁、逐条试算并落账。
// 升序加锁是避免对向转账互相死锁的关键约定（见 model.GetAccountForUpdate）。
func applyEntriesTx(ctx context.Context, tx *sqlx.Tx, entries []model.WalletLedger) error {
	idSet := make(map[int64]struct{})
	for i := range entries {
		idSet[entries[i].AccountID] = struct{}{}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts := make(map[int64]*model.Account, len(ids))
	for _, id := range ids {
		a, err := model.GetAccountForUpdate(ctx, tx, id)
		if err != nil {
			return mapNotFound(err)
		}
		accounts[id] = a
	}

	for i := range entries {
		a := accounts[entries[i].AccountID]
		after := a.Balance.Add(entries[i].Amount).Round(2)
		if after.IsNegative() {
			return store.ErrInsufficientBalance
		}
		entries[i].BeforeAmount = a.Balance
		entries[i].AfterAmount = after
		a.Balance = after
	}

	for i := range entries {
		if err := entries[i].Insert(ctx, tx); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if err := model.UpdateAccountBalance(ctx, tx, id, accounts[id].Balance); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQL) ListEntries(ctx context.Context, accountID int64, limit int) ([]model.WalletLedger, error) {
	return model.ListLedgerByAccount(s.db, accountID, uint(limit))
}

// ---- credit load ----

func (s *MySQL) CreateCreditLoad(ctx context.Context, r *model.CreditLoadRequest) error {
	r.Status = constant.ReqPending
	if err := r.Insert(ctx, s.db); err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MySQL) GetCreditLoad(ctx context.Context, requestID string) (*model.CreditLoadRequest, error) {
	r, err := model.GetCreditLoadForUpdate(ctx, s.db, requestID)
	return r, mapNotFound(err)
}

func (s *MySQL) ProcessCreditLoad(ctx context.Context, requestID string, approve bool, by int64, reason string, entry *model.WalletLedger) (*model.CreditLoadRequest, error) {
	var out *model.CreditLoadRequest
	err := s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := model.GetCreditLoadForUpdate(ctx, tx, requestID)
		if err != nil {
			return mapNotFound(err)
		}
		if r.Status != constant.ReqPending {
			return store.ErrAlreadyProcessed
		}
		status := int8(constant.ReqRejected)
		if approve {
			status = constant.ReqConfirmed
			if entry != nil {
				if err := applyEntriesTx(ctx, tx, []model.WalletLedger{*entry}); err != nil {
					return err
				}
			}
		}
		rows, err := model.MarkCreditLoadProcessed(ctx, tx, requestID, status, by, reason)
		if err != nil {
			return err
		}
		if rows == 0 {
			return store.ErrAlreadyProcessed
		}
		r.Status = status
		r.ProcessedBy = by
		r.Reason = reason
		out = r
		return nil
	})
	return out, err
}

// ---- withdrawal ----

func (s *MySQL) CreateWithdrawal(ctx context.Context, r *model.WithdrawalRequest) error {
	r.Status = constant.ReqPending
	if err := r.Insert(ctx, s.db); err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MySQL) GetWithdrawal(ctx context.Context, requestID string) (*model.WithdrawalRequest, error) {
	r, err := model.GetWithdrawalForUpdate(ctx, s.db, requestID)
	return r, mapNotFound(err)
}

func (s *MySQL) ProcessWithdrawal(ctx context.Context, requestID string, approve bool, by int64, reason string, entry *model.WalletLedger) (*model.WithdrawalRequest, error) {
	var out *model.WithdrawalRequest
	err := s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := model.GetWithdrawalForUpdate(ctx, tx, requestID)
		if err != nil {
			return mapNotFound(err)
		}
		if r.Status != constant.ReqPending {
			return store.ErrAlreadyProcessed
		}
		status := int8(constant.ReqRejected)
		if approve {
			status = constant.ReqConfirmed
			if r.Source == constant.WithdrawSourceCommission {
				c, err := model.GetCommissionForUpdate(ctx, tx, r.CommissionID)
				if err != nil {
					return mapNotFound(err)
				}
				if c.Status != constant.CommissionPending {
					return store.ErrAlreadyProcessed
				}
				if _, err := model.MarkCommissionProcessed(ctx, tx, c.ID, constant.CommissionWithdrawn); err != nil {
					return err
				}
			}
			if entry != nil {
				if err := applyEntriesTx(ctx, tx, []model.WalletLedger{*entry}); err != nil {
					return err
				}
			}
		}
		rows, err := model.MarkWithdrawalProcessed(ctx, tx, requestID, status, by, reason)
		if err != nil {
			return err
		}
		if rows == 0 {
			return store.ErrAlreadyProcessed
		}
		r.Status = status
		r.ProcessedBy = by
		r.Reason = reason
		out = r
		return nil
	})
	return out, err
}

// ---- commission ----

func (s *MySQL) GetCommission(ctx context.Context, id int64) (*model.ReferralCommission, error) {
	c, err := model.GetCommissionForUpdate(ctx, s.db, id)
	return c, mapNotFound(err)
}

func (s *MySQL) ConvertCommission(ctx context.Context, id int64, entry *model.WalletLedger) (*model.ReferralCommission, error) {
	var out *model.ReferralCommission
	err := s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		c, err := model.GetCommissionForUpdate(ctx, tx, id)
		if err != nil {
			return mapNotFound(err)
		}
		if c.Status != constant.CommissionPending {
			return store.ErrAlreadyProcessed
		}
		if entry != nil {
			if err := applyEntriesTx(ctx, tx, []model.WalletLedger{*entry}); err != nil {
				return err
			}
		}
		rows, err := model.MarkCommissionProcessed(ctx, tx, id, constant.CommissionConverted)
		if err != nil {
			return err
		}
		if rows == 0 {
			return store.ErrAlreadyProcessed
		}
		c.Status = constant.CommissionConverted
		out = c
		return nil
	})
	return out, err
}

// ---- settlement ----

func (s *MySQL) ApplySettlement(ctx context.Context, batch *store.SettlementBatch) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		// 幂等保护 #1：加锁检查结算标记
		cur, err := model.GetSessionForUpdate(ctx, tx, batch.Session.SessionID)
		if err != nil {
			return mapNotFound(err)
		}
		if cur.IsSettled == 1 {
			return store.ErrAlreadySettled
		}

		if err := applyEntriesTx(ctx, tx, batch.Entries); err != nil {
			return err
		}
		if err := batch.Session.Update(ctx, tx); err != nil {
			return err
		}
		// 幂等保护 #2：快照表唯一键兜底
		if batch.History != nil {
			if err := batch.History.Insert(ctx, tx); err != nil {
				if isDuplicateKeyError(err) {
					return store.ErrAlreadySettled
				}
				return err
			}
		}
		if batch.Commission != nil {
			batch.Commission.Status = constant.CommissionPending
			if err := batch.Commission.Insert(ctx, tx); err != nil {
				return err
			}
		}
		for _, ev := range batch.Events {
			if err := model.CreateOutbox(ctx, tx, ev.Topic, ev.BizKey, ev.Payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// ---- outbox / history ----

func (s *MySQL) AppendEvents(ctx context.Context, events []store.Event) error {
	for _, ev := range events {
		if err := model.CreateOutbox(ctx, s.db, ev.Topic, ev.BizKey, ev.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQL) ListOutboxPending(ctx context.Context, limit int) ([]model.Outbox, error) {
	return model.ListOutboxPending(ctx, s.db, limit)
}

func (s *MySQL) MarkOutboxSent(ctx context.Context, id int64) error {
	return model.MarkOutboxSent(ctx, s.db, id)
}

func (s *MySQL) MarkOutboxFailed(ctx context.Context, id int64, lastError string) error {
	return model.MarkOutboxFailed(ctx, s.db, id, lastError)
}

func (s *MySQL) ListGameHistory(ctx context.Context, shopID int64, limit int) ([]model.GameHistory, error) {
	return model.ListGameHistory(s.db, shopID, uint(limit))
}
