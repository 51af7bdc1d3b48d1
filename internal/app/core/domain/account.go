package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 帳戶，餘額為 decimal(15,2)
// Balance 只能透過 Deposit/Withdraw 改變，不允許外部直接覆寫
type Account struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewAccount 建立一個餘額為零的新帳戶
func NewAccount(id string, now time.Time) *Account {
	return &Account{
		ID:        id,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal, now time.Time) error {
	if amount.Sign() <= 0 {
		return ErrAmountMustBePositive
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = now
	return nil
}

// Withdraw 提款，餘額不足時回傳 ErrInsufficientBalance
func (a *Account) Withdraw(amount decimal.Decimal, now time.Time) error {
	if amount.Sign() <= 0 {
		return ErrAmountMustBePositive
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = now
	return nil
}
