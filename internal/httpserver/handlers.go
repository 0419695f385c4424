package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"profitcruiser/internal/auth"
	"profitcruiser/internal/payment"
	"profitcruiser/internal/shop"
	"profitcruiser/internal/state"
)

type handler struct {
	logger *slog.Logger
	auth   *auth.Service
	shop   *shop.Service
	crypto *payment.Client
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the shop sentinels onto HTTP statuses.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	var provErr *shop.ProviderError
	switch {
	case errors.As(err, &provErr):
		writeError(w, http.StatusBadGateway, provErr.Error())
	case errors.Is(err, shop.ErrNoProviderConfigured):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, shop.ErrChatNotFound), errors.Is(err, shop.ErrScriptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shop.ErrScriptExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, shop.ErrMissingOrderDetails),
		errors.Is(err, shop.ErrUnknownPaymentMethod),
		errors.Is(err, shop.ErrEmptyMessage),
		errors.Is(err, shop.ErrInvalidChatStatus),
		errors.Is(err, shop.ErrMissingScriptFields):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handler) requireUser(w http.ResponseWriter, r *http.Request) (state.User, bool) {
	user, ok := h.auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return state.User{}, false
	}
	return user, true
}

func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.auth.Authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if user.Role != state.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string     `json:"token"`
	User  publicUser `json:"user"`
}

type publicUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func toPublicUser(u state.User) publicUser {
	return publicUser{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, token, err := h.auth.Register(req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: toPublicUser(user)})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			h.writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: toPublicUser(user)})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]publicUser{"user": toPublicUser(user)})
}

func (h *handler) listProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.shop.Providers()})
}

func (h *handler) cryptoPrices(w http.ResponseWriter, r *http.Request) {
	fiat := strings.TrimSpace(r.URL.Query().Get("currency"))
	if fiat == "" {
		fiat = "eur"
	}
	prices := map[string]float64{}
	if h.crypto != nil {
		for _, currency := range payment.SupportedCryptoCurrencies {
			rate, err := h.crypto.Estimate(r.Context(), fiat, currency.Code)
			if err != nil {
				h.logger.Warn("crypto estimate failed", "currency", currency.Code, "error", err)
				continue
			}
			prices[currency.Code] = rate
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prices":     prices,
		"currencies": payment.SupportedCryptoCurrencies,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var in shop.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.shop.CreateOrder(r.Context(), user, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	orders := h.shop.ListOrdersForUser(user.ID)
	if orders == nil {
		orders = []state.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *handler) listChats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	chats := h.shop.ListChatsForUser(user.ID)
	if chats == nil {
		chats = []state.Chat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (h *handler) listScripts(w http.ResponseWriter, _ *http.Request) {
	scripts := h.shop.PublicScripts()
	if scripts == nil {
		scripts = []state.Script{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scripts": scripts})
}

func (h *handler) scriptVisibility(w http.ResponseWriter, _ *http.Request) {
	hidden := h.shop.HiddenSlugs()
	if hidden == nil {
		hidden = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hidden": hidden})
}

func (h *handler) recordView(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	snap, err := h.shop.RecordView(slug)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) views(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.shop.Views())
}

func (h *handler) adminOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.shop.Overview())
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch shop.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings, err := h.shop.UpdateSettings(patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (h *handler) adminScripts(w http.ResponseWriter, _ *http.Request) {
	scripts := h.shop.AdminScripts()
	if scripts == nil {
		scripts = []state.Script{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scripts": scripts})
}

func (h *handler) createScript(w http.ResponseWriter, r *http.Request) {
	var script state.Script
	if err := json.NewDecoder(r.Body).Decode(&script); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.shop.CreateScript(script)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) updateScript(w http.ResponseWriter, r *http.Request) {
	var patch shop.ScriptPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.shop.UpdateScript(chi.URLParam(r, "slug"), patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteScript(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.DeleteScript(chi.URLParam(r, "slug")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *handler) setScriptVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.shop.SetScriptVisibility(chi.URLParam(r, "slug"), req.Hidden); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hidden": req.Hidden})
}

func (h *handler) robuxSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.shop.RobuxSettings())
}

func (h *handler) updateRobuxSettings(w http.ResponseWriter, r *http.Request) {
	var patch shop.RobuxSettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings, err := h.shop.UpdateRobuxSettings(patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) adminChats(w http.ResponseWriter, _ *http.Request) {
	chats := h.shop.AdminChats()
	if chats == nil {
		chats = []shop.ChatWithOrder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (h *handler) adminChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.shop.AdminChat(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *handler) setChatStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	chat, err := h.shop.SetChatStatus(chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *handler) postAdminMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	chat, err := h.shop.PostAdminMessage(chi.URLParam(r, "id"), req.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": chat.Messages[len(chat.Messages)-1],
		"chat":    chat,
	})
}
