package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const fileModeLog fs.FileMode = 0644

// WAL 是一個以 JSON lines 存放的 append-only log
// 每次 Append 都會 fsync，確保 crash 後可以完整重放
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// Open 開啟或建立一個 WAL 檔案
// O_APPEND 每次寫入時自動跳到檔案末尾
// O_CREATE 如果檔案不存在則建立
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileModeLog)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Append 寫入一筆資料並立即刷入硬碟 (關鍵！)
func (w *WAL) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// Replay 從頭讀取所有資料，逐筆交給 callback
// 使用 json.RawMessage 避免一次將整個檔案載入記憶體
func (w *WAL) Replay(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}
