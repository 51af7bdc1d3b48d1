package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrSelfTransfer 不允許轉帳給自己
	ErrSelfTransfer = errors.New("cannot transfer to yourself")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrNotificationNotFound 找不到通知
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrConflict 重試次數用盡 (如 MySQL deadlock 重試失敗)
	ErrConflict = errors.New("transaction conflict, retries exhausted")

	// ErrWALWriteFailed WAL 寫入失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)
