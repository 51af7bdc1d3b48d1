package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.core.OpenAccount(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.core.Deposit(r.Context(), accountID, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": result.Balance,
		"record":  result.Record,
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string          `json:"from"`
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" || req.To == "" {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.core.Transfer(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"debit":  result.Debit,
		"credit": result.Credit,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	balance, err := s.core.GetBalance(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	page, pageSize := parsePagination(r)

	records, total, err := s.core.GetHistory(r.Context(), accountID, page, pageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records":  records,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var read *bool
	if raw := r.URL.Query().Get("read"); raw != "" {
		value := raw == "true"
		read = &value
	}

	notifications, err := s.core.ListNotifications(r.Context(), accountID, read)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID := chi.URLParam(r, "notificationID")

	notification, err := s.core.MarkNotificationRead(r.Context(), notificationID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notification)
}

// parsePagination 解析 page/pageSize，無效值回退預設，pageSize 上限 100
func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = defaultPageSize

	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			pageSize = v
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// writeError 將 domain 錯誤轉成對應的 HTTP 狀態碼
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAmountMustBePositive),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInsufficientBalance):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountAlreadyExists),
		errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		writeErrorMessage(w, status, "internal server error")
		return
	}
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Message:    message,
		StatusCode: status,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
