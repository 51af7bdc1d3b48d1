package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-wallet-ledger/pkg/wal"
)

// walEntry WAL 內的一筆已提交操作
// 只有通過全部檢查的操作才會寫入，因此 replay 時套用不會失敗
type walEntry struct {
	Op      string                `json:"op"` // "open" | "deposit" | "transfer"
	Account *domain.Account       `json:"account,omitempty"`
	Records []domain.LedgerRecord `json:"records,omitempty"`
}

// MutexLedger 是一個以 per-account mutex 實現的帳本
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	records: append-only 帳本紀錄 (提交順序)
//	accountMu: 每個帳戶一把鎖，餘額操作以字典序取鎖避免死鎖
//	stateMu: 保護 Map/Slice 本身的結構
//	wal: Write-Ahead Log 實例 (可為 nil，表示不落盤)
type MutexLedger struct {
	accounts      map[string]*domain.Account
	records       []domain.LedgerRecord
	notifications []domain.Notification

	accountMu map[string]*sync.Mutex
	lockMu    sync.Mutex // 保護 accountMu 本身
	stateMu   sync.RWMutex

	wal *wal.WAL
}

// NewMutexLedger 建立一個新的 MutexLedger 實例並從 WAL 恢復狀態
//
// 參數:
//
//	wal: Write-Ahead Log 實例，nil 表示純記憶體模式
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts:  make(map[string]*domain.Account),
		accountMu: make(map[string]*sync.Mutex),
		wal:       w,
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.Replay(func(jsonRaw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(jsonRaw, &entry); err != nil {
			return err
		}
		return m.applyRecovered(&entry)
	})
}

// applyRecovered 將一筆已提交操作重新套用到記憶體 (不寫 WAL)
func (m *MutexLedger) applyRecovered(entry *walEntry) error {
	switch entry.Op {
	case "open":
		acc := *entry.Account
		m.accounts[acc.ID] = &acc
	case "deposit", "transfer":
		for i := range entry.Records {
			rec := entry.Records[i]
			switch rec.Kind {
			case domain.RecordKindDeposit, domain.RecordKindTransferCredit:
				dest, ok := m.accounts[rec.DestID]
				if !ok {
					return domain.ErrAccountNotFound
				}
				dest.Balance = dest.Balance.Add(rec.Amount)
				dest.UpdatedAt = rec.CreatedAt
			case domain.RecordKindTransferDebit:
				source, ok := m.accounts[rec.SourceID]
				if !ok {
					return domain.ErrAccountNotFound
				}
				source.Balance = source.Balance.Sub(rec.Amount)
				source.UpdatedAt = rec.CreatedAt
			}
			m.records = append(m.records, rec)
		}
	}
	return nil
}

// getLock 取得指定帳戶的鎖，不存在就建立
func (m *MutexLedger) getLock(accountID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	if _, ok := m.accountMu[accountID]; !ok {
		m.accountMu[accountID] = &sync.Mutex{}
	}
	return m.accountMu[accountID]
}

// OpenAccount 開戶，每個 ID 只允許一次
func (m *MutexLedger) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if _, ok := m.accounts[accountID]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}

	account := domain.NewAccount(accountID, time.Now())
	if m.wal != nil {
		if err := m.wal.Append(&walEntry{Op: "open", Account: account}); err != nil {
			return nil, domain.ErrWALWriteFailed
		}
	}
	m.accounts[accountID] = account

	snapshot := *account
	return &snapshot, nil
}

// Deposit 入帳並寫入一筆 DEPOSIT 紀錄
// 檢查全部通過後才寫 WAL，再套用到記憶體
func (m *MutexLedger) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*usecase.DepositResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}

	lock := m.getLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, ok := m.lookup(accountID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	now := time.Now()
	record := domain.NewDepositRecord(accountID, amount, now)

	if m.wal != nil {
		if err := m.wal.Append(&walEntry{Op: "deposit", Records: []domain.LedgerRecord{record}}); err != nil {
			return nil, domain.ErrWALWriteFailed
		}
	}

	if err := account.Deposit(amount, now); err != nil {
		return nil, err
	}
	m.appendRecords(record)

	return &usecase.DepositResult{Balance: account.Balance, Record: record}, nil
}

// Transfer 轉帳：兩個帳戶的鎖全程持有，讀者不可能看到只套用一半的狀態
func (m *MutexLedger) Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) (*usecase.TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if sourceID == destID {
		return nil, domain.ErrSelfTransfer
	}

	// 固定以字典序取鎖避免死鎖
	for _, id := range domain.LockIDs(sourceID, destID) {
		lock := m.getLock(id)
		lock.Lock()
		defer lock.Unlock()
	}

	source, ok := m.lookup(sourceID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	dest, ok := m.lookup(destID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	// 餘額檢查與扣款在同一把鎖下，兩筆並發轉帳不可能同時通過檢查
	if source.Balance.LessThan(amount) {
		return nil, domain.ErrInsufficientBalance
	}

	now := time.Now()
	debit, credit := domain.NewTransferRecords(sourceID, destID, amount, now)

	if m.wal != nil {
		entry := &walEntry{Op: "transfer", Records: []domain.LedgerRecord{debit, credit}}
		if err := m.wal.Append(entry); err != nil {
			return nil, domain.ErrWALWriteFailed
		}
	}

	if err := source.Withdraw(amount, now); err != nil {
		return nil, err
	}
	if err := dest.Deposit(amount, now); err != nil {
		return nil, err
	}
	m.appendRecords(debit, credit)

	return &usecase.TransferResult{Debit: debit, Credit: credit}, nil
}

// GetBalance 取得指定帳戶的當前餘額
func (m *MutexLedger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	lock := m.getLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, ok := m.lookup(accountID)
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return account.Balance, nil
}

// GetHistory 取得帳戶相關紀錄，由新到舊，offset 分頁
func (m *MutexLedger) GetHistory(ctx context.Context, accountID string, page, pageSize int) ([]domain.LedgerRecord, int64, error) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	if _, ok := m.accounts[accountID]; !ok {
		return nil, 0, domain.ErrAccountNotFound
	}

	// records 依提交順序排列，從尾端往回掃就是由新到舊
	matched := make([]domain.LedgerRecord, 0)
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Involves(accountID) {
			matched = append(matched, m.records[i])
		}
	}

	total := int64(len(matched))
	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []domain.LedgerRecord{}, total, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// Notify 將通知存入記憶體 (NotificationSink 實作)
func (m *MutexLedger) Notify(ctx context.Context, n domain.Notification) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

// ListNotifications 取得帳戶通知，read 為 nil 時不過濾
func (m *MutexLedger) ListNotifications(ctx context.Context, accountID string, read *bool) ([]domain.Notification, error) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	if _, ok := m.accounts[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}

	matched := make([]domain.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.AccountID != accountID {
			continue
		}
		if read != nil && n.Read != *read {
			continue
		}
		matched = append(matched, n)
	}
	return matched, nil
}

// MarkNotificationRead 將通知標記為已讀
func (m *MutexLedger) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].ID == notificationID {
			m.notifications[i].Read = true
			n := m.notifications[i]
			return &n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

// lookup 讀取帳戶指標，呼叫方必須先持有該帳戶的鎖
func (m *MutexLedger) lookup(accountID string) (*domain.Account, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	account, ok := m.accounts[accountID]
	return account, ok
}

// appendRecords 將紀錄一起寫入，讀者看到的一定是整組
func (m *MutexLedger) appendRecords(records ...domain.LedgerRecord) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.records = append(m.records, records...)
}

var (
	_ usecase.Ledger            = (*MutexLedger)(nil)
	_ usecase.NotificationStore = (*MutexLedger)(nil)
	_ usecase.NotificationSink  = (*MutexLedger)(nil)
)
