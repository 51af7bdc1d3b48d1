package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

// Dispatcher 在帳務提交後非同步送出通知
//
// Enqueue 不會阻塞請求路徑：queue 滿了就丟棄並記 log。
// 單一 worker goroutine 依序將通知交給所有 sink，
// sink 失敗只記 log，永遠不會回滾帳務狀態。
type Dispatcher struct {
	sinks []NotificationSink
	queue chan domain.Notification
	log   *zap.Logger

	wg        sync.WaitGroup
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher 建立並啟動 Dispatcher
//
// 參數:
//
//	buffer: queue 深度
//	log: logger
//	sinks: 通知出口 (storage, kafka, ...)
func NewDispatcher(buffer int, log *zap.Logger, sinks ...NotificationSink) *Dispatcher {
	d := &Dispatcher{
		sinks: sinks,
		queue: make(chan domain.Notification, buffer),
		log:   log,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Enqueue 將通知排入佇列 (non-blocking)
// Close 之後的 Enqueue 會被丟棄
func (d *Dispatcher) Enqueue(n domain.Notification) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- n:
	default:
		d.log.Warn("notification queue full, dropping",
			zap.String("notificationID", n.ID),
			zap.String("accountID", n.AccountID),
		)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n domain.Notification) {
	for _, sink := range d.sinks {
		if err := sink.Notify(context.Background(), n); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("notificationID", n.ID),
				zap.String("accountID", n.AccountID),
				zap.Error(err),
			)
		}
	}
}

// Close 停止接收並把佇列內剩餘的通知送完
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closeMu.Lock()
		d.closed = true
		d.closeMu.Unlock()
		close(d.queue)
	})
	d.wg.Wait()
}
