package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationKind 通知類型
type NotificationKind string

const (
	NotificationKindTransferSent     NotificationKind = "TRANSFER_SENT"
	NotificationKindTransferReceived NotificationKind = "TRANSFER_RECEIVED"
	NotificationKindDepositReceived  NotificationKind = "DEPOSIT_RECEIVED"
)

// Notification 使用者通知，由帳本寫入後以 best-effort 方式產生
// Read 是唯一可變欄位，只能透過 mark read 動作改變
type Notification struct {
	ID        string           `json:"id"`
	AccountID string           `json:"accountId"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewTransferNotifications 建立轉帳雙方的通知 (扣款方在前)
func NewTransferNotifications(sourceID, destID string, amount decimal.Decimal, now time.Time) (sent, received Notification) {
	sent = Notification{
		ID:        uuid.NewString(),
		AccountID: sourceID,
		Kind:      NotificationKindTransferSent,
		Message:   fmt.Sprintf("You sent $%s to %s", amount.StringFixed(2), destID),
		CreatedAt: now,
	}
	received = Notification{
		ID:        uuid.NewString(),
		AccountID: destID,
		Kind:      NotificationKindTransferReceived,
		Message:   fmt.Sprintf("You received $%s from %s", amount.StringFixed(2), sourceID),
		CreatedAt: now,
	}
	return sent, received
}

// NewDepositNotification 建立存款通知
func NewDepositNotification(accountID string, amount decimal.Decimal, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      NotificationKindDepositReceived,
		Message:   fmt.Sprintf("You received a deposit of $%s", amount.StringFixed(2)),
		CreatedAt: now,
	}
}
