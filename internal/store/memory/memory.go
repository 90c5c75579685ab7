// Package memory 提供 store.Store 的进程内实现。
// 所有操作在单个互斥锁下串行执行，天然满足接口要求的原子语义；
// 测试与未配置 MySQL 的本地运行使用该后端。
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	decimal "github.com/shopspring/decimal"

	"bingo-server/common/constant"
	"bingo-server/internal/model"
	"bingo-server/internal/store"
)

type cartelaKey struct {
	shopID int64
	no     int
}

// Memory 进程内仓储
type Memory struct {
	mu sync.Mutex

	cartelas    map[int64]*model.Cartela
	cartelaByNo map[cartelaKey]int64
	sessions    map[string]*model.GameSession
	players     map[string][]model.SessionPlayer
	accounts    map[int64]*model.Account
	ledger      []model.WalletLedger
	creditLoads map[string]*model.CreditLoadRequest
	withdrawals map[string]*model.WithdrawalRequest
	commissions map[int64]*model.ReferralCommission
	history     map[string]*model.GameHistory
	outbox      []model.Outbox

	cartelaSeq    int64
	playerSeq     int64
	ledgerSeq     int64
	requestSeq    int64
	commissionSeq int64
	historySeq    int64
	outboxSeq     int64
	accountSeq    int64
}

// New 构造空仓储
func New() *Memory {
	return &Memory{
		cartelas:    make(map[int64]*model.Cartela),
		cartelaByNo: make(map[cartelaKey]int64),
		sessions:    make(map[string]*model.GameSession),
		players:     make(map[string][]model.SessionPlayer),
		accounts:    make(map[int64]*model.Account),
		creditLoads: make(map[string]*model.CreditLoadRequest),
		withdrawals: make(map[string]*model.WithdrawalRequest),
		commissions: make(map[int64]*model.ReferralCommission),
		history:     make(map[string]*model.GameHistory),
	}
}

var _ store.Store = (*Memory)(nil)

// ---- cartela ----

func (m *Memory) InsertCartela(ctx context.Context, c *model.Cartela) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cartelaKey{shopID: c.ShopID, no: c.CartelaNo}
	if _, exists := m.cartelaByNo[key]; exists {
		return store.ErrDuplicate
	}
	m.cartelaSeq++
	now := time.Now().UnixMilli()
	cp := *c
	cp.ID = m.cartelaSeq
	cp.Status = constant.CartelaFree
	cp.BookedBy = 0
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.cartelas[cp.ID] = &cp
	m.cartelaByNo[key] = cp.ID
	c.ID = cp.ID
	return nil
}

func (m *Memory) GetCartela(ctx context.Context, id int64) (*model.Cartela, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cartelas[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) GetCartelaByNo(ctx context.Context, shopID int64, no int) (*model.Cartela, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.cartelaByNo[cartelaKey{shopID: shopID, no: no}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m.cartelas[id]
	return &cp, nil
}

func (m *Memory) ListAvailableCartelas(ctx context.Context, shopID int64) ([]model.Cartela, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []model.Cartela
	for _, c := range m.cartelas {
		if c.ShopID == shopID && c.Status == constant.CartelaFree {
			list = append(list, *c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CartelaNo < list[j].CartelaNo })
	return list, nil
}

func (m *Memory) BookCartela(ctx context.Context, id, bookedBy int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cartelas[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.Status != constant.CartelaFree {
		return store.ErrCartelaBooked
	}
	c.Status = constant.CartelaBooked
	c.BookedBy = bookedBy
	c.UpdatedAt = time.Now().UnixMilli()
	return nil
}

func (m *Memory) UnbookCartela(ctx context.Context, id, requestedBy int64, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cartelas[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.Status != constant.CartelaBooked {
		return store.ErrCartelaNotBooked
	}
	if !force && c.BookedBy != requestedBy {
		return store.ErrNotBooker
	}
	c.Status = constant.CartelaFree
	c.BookedBy = 0
	c.UpdatedAt = time.Now().UnixMilli()
	return nil
}

func (m *Memory) ResetShopCartelas(ctx context.Context, shopID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := time.Now().UnixMilli()
	for _, c := range m.cartelas {
		if c.ShopID == shopID && c.Status == constant.CartelaBooked {
			c.Status = constant.CartelaFree
			c.BookedBy = 0
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ---- session ----

func (m *Memory) CreateSession(ctx context.Context, s *model.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.SessionID]; exists {
		return store.ErrDuplicate
	}
	now := time.Now().UnixMilli()
	cp := *s
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.sessions[cp.SessionID] = &cp
	return nil
}

func (m *Memory) GetSession(ctx context.Context, sessionID string) (*model.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s *model.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSessionLocked(s)
}

func (m *Memory) updateSessionLocked(s *model.GameSession) error {
	old, ok := m.sessions[s.SessionID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *s
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = time.Now().UnixMilli()
	m.sessions[cp.SessionID] = &cp
	return nil
}

func (m *Memory) RegisterPlayer(ctx context.Context, sess *model.GameSession, p *model.SessionPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 先校验后写入，任一失败不留半成品
	if _, ok := m.sessions[sess.SessionID]; !ok {
		return store.ErrNotFound
	}
	c, ok := m.cartelas[p.CartelaID]
	if !ok {
		return store.ErrNotFound
	}
	if c.ShopID != sess.ShopID {
		return store.ErrWrongShop
	}
	if c.Status != constant.CartelaFree {
		return store.ErrCartelaBooked
	}
	for _, ex := range m.players[p.SessionID] {
		if ex.CartelaID == p.CartelaID {
			return store.ErrDuplicate
		}
	}

	now := time.Now().UnixMilli()
	c.Status = constant.CartelaBooked
	c.BookedBy = p.BookedBy
	c.UpdatedAt = now

	p.CartelaNo = c.CartelaNo
	m.playerSeq++
	cp := *p
	cp.ID = m.playerSeq
	cp.CreatedAt = now
	m.players[cp.SessionID] = append(m.players[cp.SessionID], cp)
	p.ID = cp.ID

	return m.updateSessionLocked(sess)
}

func (m *Memory) ListSessionPlayers(ctx context.Context, sessionID string) ([]model.SessionPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.players[sessionID]
	list := make([]model.SessionPlayer, len(src))
	copy(list, src)
	return list, nil
}

// ---- account / ledger ----

func (m *Memory) CreateAccount(ctx context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accountSeq++
	now := time.Now().UnixMilli()
	cp := *a
	if cp.ID == 0 {
		cp.ID = m.accountSeq
	} else if cp.ID > m.accountSeq {
		m.accountSeq = cp.ID
	}
	if _, exists := m.accounts[cp.ID]; exists {
		return store.ErrDuplicate
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.accounts[cp.ID] = &cp
	a.ID = cp.ID
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) SuperAdmin(ctx context.Context) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findRoleLocked(constant.RoleSuperAdmin, 0)
}

func (m *Memory) ShopAdmin(ctx context.Context, shopID int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findRoleLocked(constant.RoleAdmin, shopID)
}

func (m *Memory) findRoleLocked(role string, shopID int64) (*model.Account, error) {
	var found *model.Account
	for _, a := range m.accounts {
		if a.Role != role {
			continue
		}
		if shopID != 0 && a.ShopID != shopID {
			continue
		}
		if found == nil || a.ID < found.ID {
			found = a
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *Memory) ApplyEntries(ctx context.Context, entries []model.WalletLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyEntriesLocked(entries)
}

// applyEntriesLocked 先对快照逐条试算（借记打穿直接失败），再整体提交。
// 账本与余额在同一锁内更新，保证“余额 == 账本求和”不变量。
func (m *Memory) applyEntriesLocked(entries []model.WalletLedger) error {
	balances := make(map[int64]decimal.Decimal)
	for i := range entries {
		id := entries[i].AccountID
		if _, seen := balances[id]; seen {
			continue
		}
		a, ok := m.accounts[id]
		if !ok {
			return store.ErrNotFound
		}
		balances[id] = a.Balance
	}

	staged := make([]model.WalletLedger, len(entries))
	for i, e := range entries {
		before := balances[e.AccountID]
		after := before.Add(e.Amount).Round(2)
		if after.IsNegative() {
			return store.ErrInsufficientBalance
		}
		e.BeforeAmount = before
		e.AfterAmount = after
		balances[e.AccountID] = after
		staged[i] = e
	}

	now := time.Now().UnixMilli()
	for i := range staged {
		m.ledgerSeq++
		staged[i].ID = m.ledgerSeq
		staged[i].CreatedAt = now
		if staged[i].BizTypeStr == "" {
			staged[i].BizTypeStr = constant.GetBalanceChangeTypeDesc(staged[i].BizType)
		}
		m.ledger = append(m.ledger, staged[i])
	}
	for id, bal := range balances {
		m.accounts[id].Balance = bal
		m.accounts[id].UpdatedAt = now
	}
	return nil
}

func (m *Memory) ListEntries(ctx context.Context, accountID int64, limit int) ([]model.WalletLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []model.WalletLedger
	for i := len(m.ledger) - 1; i >= 0 && (limit <= 0 || len(list) < limit); i-- {
		if m.ledger[i].AccountID == accountID {
			list = append(list, m.ledger[i])
		}
	}
	return list, nil
}

// ---- credit load ----

func (m *Memory) CreateCreditLoad(ctx context.Context, r *model.CreditLoadRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.creditLoads[r.RequestID]; exists {
		return store.ErrDuplicate
	}
	m.requestSeq++
	cp := *r
	cp.ID = m.requestSeq
	cp.Status = constant.ReqPending
	cp.CreatedAt = time.Now().UnixMilli()
	m.creditLoads[cp.RequestID] = &cp
	return nil
}

func (m *Memory) GetCreditLoad(ctx context.Context, requestID string) (*model.CreditLoadRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.creditLoads[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ProcessCreditLoad(ctx context.Context, requestID string, approve bool, by int64, reason string, entry *model.WalletLedger) (*model.CreditLoadRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.creditLoads[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if r.Status != constant.ReqPending {
		return nil, store.ErrAlreadyProcessed
	}
	if approve && entry != nil {
		if err := m.applyEntriesLocked([]model.WalletLedger{*entry}); err != nil {
			return nil, err
		}
	}
	if approve {
		r.Status = constant.ReqConfirmed
	} else {
		r.Status = constant.ReqRejected
	}
	r.ProcessedBy = by
	r.Reason = reason
	r.ProcessedAt = time.Now().UnixMilli()
	cp := *r
	return &cp, nil
}

// ---- withdrawal ----

func (m *Memory) CreateWithdrawal(ctx context.Context, r *model.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.withdrawals[r.RequestID]; exists {
		return store.ErrDuplicate
	}
	m.requestSeq++
	cp := *r
	cp.ID = m.requestSeq
	cp.Status = constant.ReqPending
	cp.CreatedAt = time.Now().UnixMilli()
	m.withdrawals[cp.RequestID] = &cp
	return nil
}

func (m *Memory) GetWithdrawal(ctx context.Context, requestID string) (*model.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.withdrawals[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ProcessWithdrawal(ctx context.Context, requestID string, approve bool, by int64, reason string, entry *model.WalletLedger) (*model.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.withdrawals[requestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if r.Status != constant.ReqPending {
		return nil, store.ErrAlreadyProcessed
	}

	if approve {
		if r.Source == constant.WithdrawSourceCommission {
			c, ok := m.commissions[r.CommissionID]
			if !ok {
				return nil, store.ErrNotFound
			}
			if c.Status != constant.CommissionPending {
				return nil, store.ErrAlreadyProcessed
			}
			c.Status = constant.CommissionWithdrawn
			c.ProcessedAt = time.Now().UnixMilli()
		}
		if entry != nil {
			if err := m.applyEntriesLocked([]model.WalletLedger{*entry}); err != nil {
				return nil, err
			}
		}
		r.Status = constant.ReqConfirmed
	} else {
		r.Status = constant.ReqRejected
	}
	r.ProcessedBy = by
	r.Reason = reason
	r.ProcessedAt = time.Now().UnixMilli()
	cp := *r
	return &cp, nil
}

// ---- commission ----

func (m *Memory) GetCommission(ctx context.Context, id int64) (*model.ReferralCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ConvertCommission(ctx context.Context, id int64, entry *model.WalletLedger) (*model.ReferralCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.Status != constant.CommissionPending {
		return nil, store.ErrAlreadyProcessed
	}
	if entry != nil {
		if err := m.applyEntriesLocked([]model.WalletLedger{*entry}); err != nil {
			return nil, err
		}
	}
	c.Status = constant.CommissionConverted
	c.ProcessedAt = time.Now().UnixMilli()
	cp := *c
	return &cp, nil
}

// ---- settlement ----

func (m *Memory) ApplySettlement(ctx context.Context, batch *store.SettlementBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.sessions[batch.Session.SessionID]
	if !ok {
		return store.ErrNotFound
	}
	if old.IsSettled == 1 {
		return store.ErrAlreadySettled
	}
	if _, exists := m.history[batch.Session.SessionID]; exists {
		return store.ErrAlreadySettled
	}

	if err := m.applyEntriesLocked(batch.Entries); err != nil {
		return err
	}
	if err := m.updateSessionLocked(batch.Session); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if batch.History != nil {
		m.historySeq++
		h := *batch.History
		h.ID = m.historySeq
		h.CreatedAt = now
		m.history[h.SessionID] = &h
	}
	if batch.Commission != nil {
		m.commissionSeq++
		c := *batch.Commission
		c.ID = m.commissionSeq
		c.Status = constant.CommissionPending
		c.CreatedAt = now
		m.commissions[c.ID] = &c
		batch.Commission.ID = c.ID
	}
	m.appendEventsLocked(batch.Events)
	return nil
}

// ---- outbox / history ----

func (m *Memory) AppendEvents(ctx context.Context, events []store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventsLocked(events)
	return nil
}

func (m *Memory) appendEventsLocked(events []store.Event) {
	now := time.Now().UnixMilli()
	for _, ev := range events {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			continue
		}
		m.outboxSeq++
		m.outbox = append(m.outbox, model.Outbox{
			ID:        m.outboxSeq,
			Topic:     ev.Topic,
			BizKey:    ev.BizKey,
			Payload:   string(b),
			Status:    1,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
}

func (m *Memory) ListOutboxPending(ctx context.Context, limit int) ([]model.Outbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []model.Outbox
	for _, o := range m.outbox {
		if o.Status == 1 && o.RetryCount < 10 {
			list = append(list, o)
			if limit > 0 && len(list) >= limit {
				break
			}
		}
	}
	return list, nil
}

func (m *Memory) MarkOutboxSent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.outbox {
		if m.outbox[i].ID == id {
			m.outbox[i].Status = 2
			m.outbox[i].UpdatedAt = time.Now().UnixMilli()
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) MarkOutboxFailed(ctx context.Context, id int64, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.outbox {
		if m.outbox[i].ID == id {
			m.outbox[i].RetryCount++
			if m.outbox[i].RetryCount >= 10 {
				m.outbox[i].Status = 3
			}
			m.outbox[i].LastError = lastError
			m.outbox[i].UpdatedAt = time.Now().UnixMilli()
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) ListGameHistory(ctx context.Context, shopID int64, limit int) ([]model.GameHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []model.GameHistory
	for _, h := range m.history {
		if h.ShopID == shopID {
			list = append(list, *h)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
