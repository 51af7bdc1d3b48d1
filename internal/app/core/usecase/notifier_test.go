package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

type failingSink struct {
	calls int
}

func (s *failingSink) Notify(context.Context, domain.Notification) error {
	s.calls++
	return errors.New("sink down")
}

func TestDispatcherFansOutToAllSinks(t *testing.T) {
	first := &spySink{}
	second := &spySink{}
	dispatcher := NewDispatcher(8, zap.NewNop(), first, second)

	n := domain.NewDepositNotification("acc-a", decimal.NewFromInt(10), time.Now())
	dispatcher.Enqueue(n)
	dispatcher.Close()

	require.Len(t, first.notifications(), 1)
	require.Len(t, second.notifications(), 1)
	assert.Equal(t, n.ID, first.notifications()[0].ID)
}

// sink 失敗不能影響其他 sink，也不能往上傳
func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	failing := &failingSink{}
	healthy := &spySink{}
	dispatcher := NewDispatcher(8, zap.NewNop(), failing, healthy)

	dispatcher.Enqueue(domain.NewDepositNotification("acc-a", decimal.NewFromInt(10), time.Now()))
	dispatcher.Close()

	assert.Equal(t, 1, failing.calls)
	assert.Len(t, healthy.notifications(), 1)
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := &spySink{}
	dispatcher := NewDispatcher(64, zap.NewNop(), sink)

	for i := 0; i < 20; i++ {
		dispatcher.Enqueue(domain.NewDepositNotification("acc-a", decimal.NewFromInt(int64(i+1)), time.Now()))
	}
	dispatcher.Close()

	assert.Len(t, sink.notifications(), 20)
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	dispatcher := NewDispatcher(1, zap.NewNop(), &spySink{})
	dispatcher.Close()
	dispatcher.Close()
}
