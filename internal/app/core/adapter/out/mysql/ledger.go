package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-wallet-ledger/pkg/mysql"
)

// maxTxRetries deadlock/lock-timeout 的重試上限，用盡後回傳 ErrConflict
const maxTxRetries = 3

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        string          `gorm:"primaryKey;type:char(36)"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlRecord 對應資料庫的 ledger_records 表，append-only
type sqlRecord struct {
	ID        string          `gorm:"primaryKey;type:char(36)"`
	Kind      string          `gorm:"type:varchar(32);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	SourceID  *string         `gorm:"type:char(36);index"`
	DestID    string          `gorm:"type:char(36);index;not null"`
	Status    string          `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time       `gorm:"index"`
}

func (*sqlRecord) TableName() string {
	return "ledger_records"
}

// sqlNotification 對應資料庫的 notifications 表
type sqlNotification struct {
	ID        string `gorm:"primaryKey;type:char(36)"`
	AccountID string `gorm:"type:char(36);index;not null"`
	Kind      string `gorm:"type:varchar(32);not null"`
	Message   string `gorm:"type:text;not null"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (*sqlNotification) TableName() string {
	return "notifications"
}

// MySQLLedger 以 MySQL row lock 實現原子單位的帳本
type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{client: client}
}

// Migrate 建立資料表
func (l *MySQLLedger) Migrate() error {
	return l.client.DB().AutoMigrate(&sqlAccount{}, &sqlRecord{}, &sqlNotification{})
}

// OpenAccount 開戶，每個 ID 只允許一次
func (l *MySQLLedger) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	row := sqlAccount{ID: accountID, Balance: decimal.Zero}
	err := l.client.DB().WithContext(ctx).Create(&row).Error
	if err != nil {
		var mysqlErr *driver.MySQLError
		// 1062: duplicate entry
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, domain.ErrAccountAlreadyExists
		}
		return nil, err
	}
	return toAccount(&row), nil
}

// Deposit 在同一個資料庫交易內鎖定帳戶列、入帳並寫入紀錄
func (l *MySQLLedger) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*usecase.DepositResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}

	var result usecase.DepositResult
	err := l.withRetry(func() error {
		return l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var account sqlAccount
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", accountID).
				First(&account).Error; err != nil {
				return translateNotFound(err)
			}

			account.Balance = account.Balance.Add(amount)
			if err := tx.Save(&account).Error; err != nil {
				return err
			}

			record := domain.NewDepositRecord(accountID, amount, time.Now())
			if err := tx.Create(toSQLRecord(&record)).Error; err != nil {
				return err
			}

			result = usecase.DepositResult{Balance: account.Balance, Record: record}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Transfer 轉帳：以字典序 FOR UPDATE 鎖定兩列，餘額檢查與扣款在同一把鎖下
func (l *MySQLLedger) Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) (*usecase.TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if sourceID == destID {
		return nil, domain.ErrSelfTransfer
	}

	var result usecase.TransferResult
	err := l.withRetry(func() error {
		return l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			lockIDs := domain.LockIDs(sourceID, destID)
			var accounts []sqlAccount
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id IN ?", lockIDs).
				Order("id").
				Find(&accounts).Error; err != nil {
				return err
			}

			accountMap := make(map[string]*sqlAccount, len(accounts))
			for i := range accounts {
				accountMap[accounts[i].ID] = &accounts[i]
			}
			source, ok := accountMap[sourceID]
			if !ok {
				return domain.ErrAccountNotFound
			}
			dest, ok := accountMap[destID]
			if !ok {
				return domain.ErrAccountNotFound
			}

			if source.Balance.LessThan(amount) {
				return domain.ErrInsufficientBalance
			}
			source.Balance = source.Balance.Sub(amount)
			dest.Balance = dest.Balance.Add(amount)

			for i := range accounts {
				if err := tx.Save(&accounts[i]).Error; err != nil {
					return err
				}
			}

			debit, credit := domain.NewTransferRecords(sourceID, destID, amount, time.Now())
			if err := tx.Create(toSQLRecord(&debit)).Error; err != nil {
				return err
			}
			if err := tx.Create(toSQLRecord(&credit)).Error; err != nil {
				return err
			}

			result = usecase.TransferResult{Debit: debit, Credit: credit}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBalance 取得帳戶餘額
func (l *MySQLLedger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var account sqlAccount
	err := l.client.DB().WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		return decimal.Zero, translateNotFound(err)
	}
	return account.Balance, nil
}

// GetHistory 取得帳戶相關紀錄 (任一端)，created_at 由新到舊，offset 分頁
func (l *MySQLLedger) GetHistory(ctx context.Context, accountID string, page, pageSize int) ([]domain.LedgerRecord, int64, error) {
	db := l.client.DB().WithContext(ctx)

	var account sqlAccount
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, 0, translateNotFound(err)
	}

	involved := db.Model(&sqlRecord{}).
		Where("source_id = ? OR dest_id = ?", accountID, accountID)

	var total int64
	if err := involved.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []sqlRecord
	err := db.Model(&sqlRecord{}).
		Where("source_id = ? OR dest_id = ?", accountID, accountID).
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.LedgerRecord, 0, len(rows))
	for i := range rows {
		records = append(records, toRecord(&rows[i]))
	}
	return records, total, nil
}

// Notify 將通知落盤 (NotificationSink 實作)
func (l *MySQLLedger) Notify(ctx context.Context, n domain.Notification) error {
	row := sqlNotification{
		ID:        n.ID,
		AccountID: n.AccountID,
		Kind:      string(n.Kind),
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	return l.client.DB().WithContext(ctx).Create(&row).Error
}

// ListNotifications 取得帳戶通知，read 為 nil 時不過濾
func (l *MySQLLedger) ListNotifications(ctx context.Context, accountID string, read *bool) ([]domain.Notification, error) {
	var account sqlAccount
	if err := l.client.DB().WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, translateNotFound(err)
	}

	db := l.client.DB().WithContext(ctx).Where("account_id = ?", accountID)
	if read != nil {
		db = db.Where("`read` = ?", *read)
	}

	var rows []sqlNotification
	if err := db.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(rows))
	for i := range rows {
		notifications = append(notifications, toNotification(&rows[i]))
	}
	return notifications, nil
}

// MarkNotificationRead 將通知標記為已讀
func (l *MySQLLedger) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	db := l.client.DB().WithContext(ctx)

	var row sqlNotification
	if err := db.Where("id = ?", notificationID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}

	row.Read = true
	if err := db.Model(&sqlNotification{}).
		Where("id = ?", notificationID).
		Update("read", true).Error; err != nil {
		return nil, err
	}

	n := toNotification(&row)
	return &n, nil
}

// withRetry 對 deadlock (1213) 與 lock wait timeout (1205) 做有限次重試
// 重試用盡時保留底層錯誤，log 才分得出是 deadlock 還是 lock wait timeout
func (l *MySQLLedger) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = fn()
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrConflict, err)
}

func isRetryable(err error) bool {
	var mysqlErr *driver.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrAccountNotFound
	}
	return err
}

func toAccount(row *sqlAccount) *domain.Account {
	return &domain.Account{
		ID:        row.ID,
		Balance:   row.Balance,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toSQLRecord(r *domain.LedgerRecord) *sqlRecord {
	row := &sqlRecord{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Amount:    r.Amount,
		DestID:    r.DestID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
	if r.SourceID != "" {
		sourceID := r.SourceID
		row.SourceID = &sourceID
	}
	return row
}

func toRecord(row *sqlRecord) domain.LedgerRecord {
	r := domain.LedgerRecord{
		ID:        row.ID,
		Kind:      domain.RecordKind(row.Kind),
		Amount:    row.Amount,
		DestID:    row.DestID,
		Status:    domain.RecordStatus(row.Status),
		CreatedAt: row.CreatedAt,
	}
	if row.SourceID != nil {
		r.SourceID = *row.SourceID
	}
	return r
}

func toNotification(row *sqlNotification) domain.Notification {
	return domain.Notification{
		ID:        row.ID,
		AccountID: row.AccountID,
		Kind:      domain.NotificationKind(row.Kind),
		Message:   row.Message,
		Read:      row.Read,
		CreatedAt: row.CreatedAt,
	}
}

var (
	_ usecase.Ledger            = (*MySQLLedger)(nil)
	_ usecase.NotificationStore = (*MySQLLedger)(nil)
	_ usecase.NotificationSink  = (*MySQLLedger)(nil)
)
