package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

// DepositResult 存款結果
type DepositResult struct {
	Balance decimal.Decimal
	Record  domain.LedgerRecord
}

// TransferResult 轉帳結果，一定是成對的扣款/入帳紀錄
type TransferResult struct {
	Debit  domain.LedgerRecord
	Credit domain.LedgerRecord
}

// Ledger 是帳務系統的介面
// 每個操作都是一個原子單位：不允許任何觀察者看到部分套用的狀態
type Ledger interface {
	// OpenAccount 建立餘額為零的新帳戶，重複開戶回傳 ErrAccountAlreadyExists
	OpenAccount(ctx context.Context, accountID string) (*domain.Account, error)
	// Deposit 入帳並寫入一筆 DEPOSIT 紀錄
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*DepositResult, error)
	// Transfer 轉帳：餘額檢查、扣款、入帳與兩筆紀錄必須一起提交
	Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) (*TransferResult, error)
	// GetBalance 取得帳戶餘額
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// GetHistory 取得帳戶相關紀錄 (任一端)，created_at 由新到舊，offset 分頁
	GetHistory(ctx context.Context, accountID string, page, pageSize int) ([]domain.LedgerRecord, int64, error)
}

// NotificationStore 通知的讀取與 mark-read
type NotificationStore interface {
	ListNotifications(ctx context.Context, accountID string, read *bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error)
}

// NotificationSink 通知的出口，由 Dispatcher 在帳務提交後呼叫
// 失敗只記 log，不影響帳務結果
type NotificationSink interface {
	Notify(ctx context.Context, n domain.Notification) error
}
