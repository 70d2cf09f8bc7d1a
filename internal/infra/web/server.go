package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/infra/governor"
	"telegram-verification-bot/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the operator-facing HTTP surface: the verification entry point
// for the chat layer, free status lookups, and ledger administration.
type Server struct {
	verifyUC usecase.VerifyUseCase
	ledgerUC usecase.LedgerUseCase
	gov      *governor.Governor
	auth     *AuthManager
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	verifyUC usecase.VerifyUseCase,
	ledgerUC usecase.LedgerUseCase,
	gov *governor.Governor,
	cfg config.AdminConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		verifyUC: verifyUC,
		ledgerUC: ledgerUC,
		gov:      gov,
		auth:     NewAuthManager(cfg.JWTSecret, cfg.SessionTTL),
		apiKey:   cfg.APIKey,
		log:      logger,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/session", s.handleSession)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/verify", s.handleVerify)
		r.Get("/verifications/{externalID}", s.handleLookup)

		r.Post("/accounts", s.handleRegister)
		r.Get("/accounts/chat/{chatID}", s.handleGetAccount)
		r.Get("/accounts/{id}/attempts", s.handleListAttempts)
		r.Post("/accounts/{id}/credit", s.handleCredit)
		r.Post("/accounts/{id}/block", s.handleBlock(true))
		r.Post("/accounts/{id}/unblock", s.handleBlock(false))
		r.Get("/accounts/blocked", s.handleListBlocked)
		r.Post("/accounts/{id}/checkin", s.handleCheckin)

		r.Post("/cardkeys", s.handleCreateCardKey)
		r.Get("/cardkeys", s.handleListCardKeys)
		r.Post("/cardkeys/redeem", s.handleRedeem)

		r.Get("/governor", s.handleGovernorStats)
	})
	return r
}

// authMiddleware accepts either a minted session JWT or the raw API key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		hdr := r.Header.Get("Authorization")
		if hdr == "Bearer "+s.apiKey {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.APIKey == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if s.apiKey == "" || body.APIKey != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type verifyRequest struct {
	ChatID    int64  `json:"chat_id"`
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
}

type outcomeResponse struct {
	Status      string `json:"status"`
	RewardCode  string `json:"reward_code,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Balance     *int   `json:"balance,omitempty"`
}

func renderOutcome(out *model.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Status:      string(out.Status),
		RewardCode:  out.RewardCode,
		RedirectURL: out.RedirectURL,
		ExternalID:  out.ExternalID,
		Reason:      out.Reason,
	}
	if out.Status == model.OutcomeInsufficientFunds {
		b := out.Balance
		resp.Balance = &b
	}
	return resp
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChatID == 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	out, err := s.verifyUC.Request(r.Context(), body.ChatID, model.ProviderTag(body.Provider), body.Reference)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOutcome(out))
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	out, err := s.verifyUC.LookupStatus(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOutcome(out))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatID        int64  `json:"chat_id"`
		Username      string `json:"username"`
		InviterChatID *int64 `json:"inviter_chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChatID == 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	acc, err := s.ledgerUC.RegisterOrFetch(r.Context(), body.ChatID, body.Username, body.InviterChatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	acc, err := s.ledgerUC.GetByChatID(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	attempts, err := s.verifyUC.ListAttempts(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": attempts})
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := s.ledgerUC.Credit(r.Context(), chi.URLParam(r, "id"), body.Amount, "admin"); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBlock(blocked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ledgerUC.SetBlocked(r.Context(), chi.URLParam(r, "id"), blocked); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledgerUC.ListBlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": accounts})
}

func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	bonus, err := s.ledgerUC.CheckIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"bonus": bonus})
}

func (s *Server) handleCreateCardKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code       string `json:"code"`
		Value      int    `json:"value"`
		MaxUses    int    `json:"max_uses"`
		ExpireDays int    `json:"expire_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var expiresAt *time.Time
	if body.ExpireDays > 0 {
		t := time.Now().AddDate(0, 0, body.ExpireDays)
		expiresAt = &t
	}
	key, err := s.ledgerUC.CreateCardKey(r.Context(), body.Code, body.Value, body.MaxUses, expiresAt, "admin")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (s *Server) handleListCardKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.ledgerUC.ListCardKeys(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": keys})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code      string `json:"code"`
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" || body.AccountID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	credited, err := s.ledgerUC.RedeemCardKey(r.Context(), body.Code, body.AccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credited": credited})
}

func (s *Server) handleGovernorStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gov.Stats())
}

// writeError maps domain sentinels to HTTP codes; anything unmapped is a 500
// with the detail kept in the log.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCodeNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "Conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrCodeAlreadyUsed),
		errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrCodeExhausted),
		errors.Is(err, domain.ErrAlreadyCheckedIn):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Msg("admin API request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
