package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

// Server 是 HTTP in-adapter，負責路由與錯誤轉換
// 請求的結構驗證在這裡做，帳務不變量由 core 守住
type Server struct {
	core *usecase.CoreUseCase
	log  *zap.Logger
}

func NewServer(core *usecase.CoreUseCase, log *zap.Logger) *Server {
	return &Server{
		core: core,
		log:  log,
	}
}

// Router 組出完整路由
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(requestLogger(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.handleOpenAccount)
		r.Get("/wallets/{accountID}/balance", s.handleGetBalance)
		r.Post("/wallets/{accountID}/deposit", s.handleDeposit)
		r.Post("/transactions/transfer", s.handleTransfer)
		r.Get("/transactions/{accountID}/history", s.handleGetHistory)
		r.Get("/notifications/{accountID}", s.handleListNotifications)
		r.Patch("/notifications/{notificationID}/read", s.handleMarkNotificationRead)
	})

	return r
}
