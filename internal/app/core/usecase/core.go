package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
// 金額與自轉帳的檢查在這裡做 (defense in depth)，
// 餘額與帳戶存在性的檢查必須由 Ledger 在原子單位內做
type CoreUseCase struct {
	ledger        Ledger
	notifications NotificationStore
	dispatcher    *Dispatcher
	log           *zap.Logger
}

func NewCoreUseCase(ledger Ledger, notifications NotificationStore, dispatcher *Dispatcher, log *zap.Logger) *CoreUseCase {
	return &CoreUseCase{
		ledger:        ledger,
		notifications: notifications,
		dispatcher:    dispatcher,
		log:           log,
	}
}

// OpenAccount 開戶，每個 ID 只能開一次
func (c *CoreUseCase) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return c.ledger.OpenAccount(ctx, accountID)
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*DepositResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}

	result, err := c.ledger.Deposit(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}

	// 帳務已提交，通知是 best-effort
	c.dispatcher.Enqueue(domain.NewDepositNotification(accountID, amount, time.Now()))
	return result, nil
}

// Transfer 轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) (*TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if sourceID == destID {
		return nil, domain.ErrSelfTransfer
	}

	result, err := c.ledger.Transfer(ctx, sourceID, destID, amount)
	if err != nil {
		return nil, err
	}

	// 帳務已提交，通知雙方 (best-effort)
	sent, received := domain.NewTransferNotifications(sourceID, destID, amount, time.Now())
	c.dispatcher.Enqueue(sent)
	c.dispatcher.Enqueue(received)
	return result, nil
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return c.ledger.GetBalance(ctx, accountID)
}

// GetHistory 取得帳戶交易歷史
func (c *CoreUseCase) GetHistory(ctx context.Context, accountID string, page, pageSize int) ([]domain.LedgerRecord, int64, error) {
	return c.ledger.GetHistory(ctx, accountID, page, pageSize)
}

// ListNotifications 取得帳戶通知，read 為 nil 時不過濾
func (c *CoreUseCase) ListNotifications(ctx context.Context, accountID string, read *bool) ([]domain.Notification, error) {
	return c.notifications.ListNotifications(ctx, accountID, read)
}

// MarkNotificationRead 將通知標記為已讀
func (c *CoreUseCase) MarkNotificationRead(ctx context.Context, notificationID string) (*domain.Notification, error) {
	return c.notifications.MarkNotificationRead(ctx, notificationID)
}
