package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/pkg/wal"
)

func newLedger(t *testing.T) *MutexLedger {
	t.Helper()
	ledger, err := NewMutexLedger(nil)
	require.NoError(t, err)
	return ledger
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestOpenAccount(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	account, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)
	assert.Equal(t, "acc-a", account.ID)
	assert.True(t, account.Balance.IsZero())

	_, err = ledger.OpenAccount(ctx, "acc-a")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}

func TestDeposit(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)

	result, err := ledger.Deposit(ctx, "acc-a", d(500))
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(d(500)))
	assert.Equal(t, domain.RecordKindDeposit, result.Record.Kind)

	_, err = ledger.Deposit(ctx, "missing", d(10))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = ledger.Deposit(ctx, "acc-a", d(0))
	assert.ErrorIs(t, err, domain.ErrAmountMustBePositive)
}

// 開戶、存 500、轉 200、再轉 1000 失敗且不留痕跡
func TestTransferScenario(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)
	_, err = ledger.OpenAccount(ctx, "acc-b")
	require.NoError(t, err)

	_, err = ledger.Deposit(ctx, "acc-a", d(500))
	require.NoError(t, err)

	result, err := ledger.Transfer(ctx, "acc-a", "acc-b", d(200))
	require.NoError(t, err)
	assert.Equal(t, domain.RecordKindTransferDebit, result.Debit.Kind)
	assert.Equal(t, domain.RecordKindTransferCredit, result.Credit.Kind)
	assert.True(t, result.Debit.Amount.Equal(result.Credit.Amount))
	assert.Equal(t, result.Debit.Status, result.Credit.Status)

	balanceA, err := ledger.GetBalance(ctx, "acc-a")
	require.NoError(t, err)
	balanceB, err := ledger.GetBalance(ctx, "acc-b")
	require.NoError(t, err)
	assert.True(t, balanceA.Equal(d(300)))
	assert.True(t, balanceB.Equal(d(200)))

	_, total, err := ledger.GetHistory(ctx, "acc-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total) // deposit + debit + credit

	// 失敗的轉帳不能留下任何紀錄
	_, err = ledger.Transfer(ctx, "acc-a", "acc-b", d(1000))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	balanceA, _ = ledger.GetBalance(ctx, "acc-a")
	balanceB, _ = ledger.GetBalance(ctx, "acc-b")
	assert.True(t, balanceA.Equal(d(300)))
	assert.True(t, balanceB.Equal(d(200)))

	_, total, err = ledger.GetHistory(ctx, "acc-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestTransferValidation(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)

	_, err = ledger.Transfer(ctx, "acc-a", "acc-a", d(10))
	assert.ErrorIs(t, err, domain.ErrSelfTransfer)

	_, err = ledger.Transfer(ctx, "acc-a", "acc-b", d(-1))
	assert.ErrorIs(t, err, domain.ErrAmountMustBePositive)

	_, err = ledger.Transfer(ctx, "acc-a", "missing", d(10))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// 來回轉帳後餘額應回到原點
func TestTransferRoundTrip(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)
	_, err = ledger.OpenAccount(ctx, "acc-b")
	require.NoError(t, err)
	_, err = ledger.Deposit(ctx, "acc-a", d(500))
	require.NoError(t, err)
	_, err = ledger.Deposit(ctx, "acc-b", d(100))
	require.NoError(t, err)

	_, err = ledger.Transfer(ctx, "acc-a", "acc-b", d(150))
	require.NoError(t, err)
	_, err = ledger.Transfer(ctx, "acc-b", "acc-a", d(150))
	require.NoError(t, err)

	balanceA, _ := ledger.GetBalance(ctx, "acc-a")
	balanceB, _ := ledger.GetBalance(ctx, "acc-b")
	assert.True(t, balanceA.Equal(d(500)))
	assert.True(t, balanceB.Equal(d(100)))
}

// 餘額 500，兩筆並發的 300 轉帳恰好一筆成功
func TestConcurrentTransfersExactlyOneSucceeds(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)
	_, err = ledger.OpenAccount(ctx, "acc-b")
	require.NoError(t, err)
	_, err = ledger.Deposit(ctx, "acc-a", d(500))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Transfer(ctx, "acc-a", "acc-b", d(300))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)

	balanceA, _ := ledger.GetBalance(ctx, "acc-a")
	balanceB, _ := ledger.GetBalance(ctx, "acc-b")
	assert.True(t, balanceA.Equal(d(200)))
	assert.True(t, balanceB.Equal(d(300)))
	assert.False(t, balanceA.IsNegative())
}

// 守恆律：任何並發交錯下，餘額總和必須等於存款總和
func TestConservationUnderConcurrency(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	accounts := []string{"acc-a", "acc-b", "acc-c"}
	for _, id := range accounts {
		_, err := ledger.OpenAccount(ctx, id)
		require.NoError(t, err)
		_, err = ledger.Deposit(ctx, id, d(1000))
		require.NoError(t, err)
	}

	const workers = 20
	const opsPerWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				from := accounts[(w+i)%len(accounts)]
				to := accounts[(w+i+1)%len(accounts)]
				_, _ = ledger.Transfer(ctx, from, to, d(7))
			}
		}(w)
	}
	wg.Wait()

	sum := decimal.Zero
	for _, id := range accounts {
		balance, err := ledger.GetBalance(ctx, id)
		require.NoError(t, err)
		assert.False(t, balance.IsNegative(), "account %s went negative", id)
		sum = sum.Add(balance)
	}
	assert.True(t, sum.Equal(d(3000)), "conservation violated: sum = %s", sum)
}

func TestGetHistoryPagination(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)

	for i := 1; i <= 12; i++ {
		_, err := ledger.Deposit(ctx, "acc-a", d(int64(i)))
		require.NoError(t, err)
	}

	records, total, err := ledger.GetHistory(ctx, "acc-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, records, 10)
	// 由新到舊：第一筆是最後一次存款
	assert.True(t, records[0].Amount.Equal(d(12)))
	assert.True(t, records[9].Amount.Equal(d(3)))

	records, total, err = ledger.GetHistory(ctx, "acc-a", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, records, 2)
	assert.True(t, records[0].Amount.Equal(d(2)))
	assert.True(t, records[1].Amount.Equal(d(1)))

	records, _, err = ledger.GetHistory(ctx, "acc-a", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, _, err = ledger.GetHistory(ctx, "missing", 1, 10)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestWALRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	ctx := context.Background()

	w, err := wal.Open(path)
	require.NoError(t, err)

	ledger, err := NewMutexLedger(w)
	require.NoError(t, err)

	_, err = ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)
	_, err = ledger.OpenAccount(ctx, "acc-b")
	require.NoError(t, err)
	_, err = ledger.Deposit(ctx, "acc-a", d(500))
	require.NoError(t, err)
	_, err = ledger.Transfer(ctx, "acc-a", "acc-b", d(200))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// 重新開啟：狀態必須完整恢復
	w, err = wal.Open(path)
	require.NoError(t, err)
	defer w.Close()

	recovered, err := NewMutexLedger(w)
	require.NoError(t, err)

	balanceA, err := recovered.GetBalance(ctx, "acc-a")
	require.NoError(t, err)
	balanceB, err := recovered.GetBalance(ctx, "acc-b")
	require.NoError(t, err)
	assert.True(t, balanceA.Equal(d(300)))
	assert.True(t, balanceB.Equal(d(200)))

	records, total, err := recovered.GetHistory(ctx, "acc-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 3)

	// 開戶只允許一次，恢復後也一樣
	_, err = recovered.OpenAccount(ctx, "acc-a")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}

func TestNotifications(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_, err := ledger.OpenAccount(ctx, "acc-a")
	require.NoError(t, err)
	_, err = ledger.OpenAccount(ctx, "acc-b")
	require.NoError(t, err)

	sent, received := domain.NewTransferNotifications("acc-a", "acc-b", d(100), time.Now())
	require.NoError(t, ledger.Notify(ctx, sent))
	require.NoError(t, ledger.Notify(ctx, received))

	notifications, err := ledger.ListNotifications(ctx, "acc-a", nil)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotificationKindTransferSent, notifications[0].Kind)
	assert.False(t, notifications[0].Read)

	marked, err := ledger.MarkNotificationRead(ctx, sent.ID)
	require.NoError(t, err)
	assert.True(t, marked.Read)

	unread := false
	notifications, err = ledger.ListNotifications(ctx, "acc-a", &unread)
	require.NoError(t, err)
	assert.Empty(t, notifications)

	_, err = ledger.MarkNotificationRead(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	_, err = ledger.ListNotifications(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
