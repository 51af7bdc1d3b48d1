package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordKind 帳本紀錄類型
type RecordKind string

const (
	// 存款
	RecordKindDeposit RecordKind = "DEPOSIT"
	// 轉帳扣款方
	RecordKindTransferDebit RecordKind = "TRANSFER_DEBIT"
	// 轉帳入帳方
	RecordKindTransferCredit RecordKind = "TRANSFER_CREDIT"
)

// RecordStatus 帳本紀錄狀態
type RecordStatus string

const (
	RecordStatusCompleted RecordStatus = "COMPLETED"
	RecordStatusFailed    RecordStatus = "FAILED"
)

// LedgerRecord 帳本紀錄，append-only：寫入後不得修改或刪除
//
// 一筆轉帳會產生兩筆紀錄 (TRANSFER_DEBIT + TRANSFER_CREDIT)，
// 金額相同、狀態相同，且必須在同一個原子單位內一起寫入。
// SourceID 只有轉帳紀錄才有值，存款紀錄為空字串。
type LedgerRecord struct {
	ID        string          `json:"id"`
	Kind      RecordKind      `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	SourceID  string          `json:"sourceId,omitempty"`
	DestID    string          `json:"destId"`
	Status    RecordStatus    `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewDepositRecord 建立存款紀錄
func NewDepositRecord(accountID string, amount decimal.Decimal, now time.Time) LedgerRecord {
	return LedgerRecord{
		ID:        uuid.NewString(),
		Kind:      RecordKindDeposit,
		Amount:    amount,
		DestID:    accountID,
		Status:    RecordStatusCompleted,
		CreatedAt: now,
	}
}

// NewTransferRecords 建立一對轉帳紀錄 (扣款方在前)
// 兩筆紀錄共用 amount 與 status，呼叫方必須將兩筆一起提交
func NewTransferRecords(sourceID, destID string, amount decimal.Decimal, now time.Time) (debit, credit LedgerRecord) {
	debit = LedgerRecord{
		ID:        uuid.NewString(),
		Kind:      RecordKindTransferDebit,
		Amount:    amount,
		SourceID:  sourceID,
		DestID:    destID,
		Status:    RecordStatusCompleted,
		CreatedAt: now,
	}
	credit = LedgerRecord{
		ID:        uuid.NewString(),
		Kind:      RecordKindTransferCredit,
		Amount:    amount,
		SourceID:  sourceID,
		DestID:    destID,
		Status:    RecordStatusCompleted,
		CreatedAt: now,
	}
	return debit, credit
}

// Involves 判斷帳戶是否為這筆紀錄的任一端
func (r *LedgerRecord) Involves(accountID string) bool {
	return r.SourceID == accountID || r.DestID == accountID
}

// LockIDs 回傳轉帳涉及的帳戶 ID，固定以字典序排序以避免死鎖
func LockIDs(sourceID, destID string) []string {
	if sourceID < destID {
		return []string{sourceID, destID}
	}
	return []string{destID, sourceID}
}
