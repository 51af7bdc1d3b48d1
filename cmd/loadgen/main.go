package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	BaseURL     = "http://localhost:8080"
	TotalCount  = 100000
	Concurrency = 200
)

func main() {
	client := &http.Client{Timeout: 10 * time.Second}

	// 準備兩個帳戶，A 先存入足夠的本金
	accountA := uuid.NewString()
	accountB := uuid.NewString()
	mustPost(client, "/api/accounts", map[string]any{"id": accountA})
	mustPost(client, "/api/accounts", map[string]any{"id": accountB})
	mustPost(client, fmt.Sprintf("/api/wallets/%s/deposit", accountA), map[string]any{
		"amount": decimal.NewFromInt(int64(TotalCount)),
	})

	var wg sync.WaitGroup
	wg.Add(TotalCount)

	sem := make(chan struct{}, Concurrency)
	var success, failed atomic.Int64

	startTime := time.Now()

	for i := 0; i < TotalCount; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			// 一半 A->B，一半 B->A，餘額維持動態平衡
			from, to := accountA, accountB
			if i%2 == 1 {
				from, to = accountB, accountA
			}

			status, err := post(client, "/api/transactions/transfer", map[string]any{
				"from":   from,
				"to":     to,
				"amount": decimal.NewFromInt(1),
			})
			if err == nil && status == http.StatusCreated {
				success.Add(1)
			} else {
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(startTime)

	fmt.Printf("Total: %d, Success: %d, Failed: %d\n", TotalCount, success.Load(), failed.Load())
	fmt.Printf("Elapsed: %v, TPS: %.0f\n", elapsed, float64(TotalCount)/elapsed.Seconds())
}

func post(client *http.Client, path string, body map[string]any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func mustPost(client *http.Client, path string, body map[string]any) {
	status, err := post(client, path, body)
	if err != nil {
		log.Fatalf("POST %s failed: %v", path, err)
	}
	if status >= 300 {
		log.Fatalf("POST %s returned status %d", path, status)
	}
}
