// Package handler exposes the HTTP surface of the OAuth service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/internal/model"
	"github.com/dzerik/oauth-service/internal/service/auth"
	"github.com/dzerik/oauth-service/internal/service/idp"
	"github.com/dzerik/oauth-service/internal/service/metrics"
	"github.com/dzerik/oauth-service/internal/service/state"
	"github.com/dzerik/oauth-service/internal/store"
	"github.com/dzerik/oauth-service/pkg/logger"
)

// AuthHandler handles the authorization flow routes.
type AuthHandler struct {
	orch      *auth.Orchestrator
	providers *idp.Registry
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewAuthHandler creates a new auth handler. metrics may be nil.
func NewAuthHandler(orch *auth.Orchestrator, providers *idp.Registry, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		orch:      orch,
		providers: providers,
		metrics:   m,
		log:       logger.Named("handler"),
	}
}

// HandleLogin starts the authorization flow and redirects the caller to
// the provider's authorization endpoint.
//
//	GET /auth/login?provider=google&redirect=/dashboard
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		h.renderJSONError(w, "provider not specified", http.StatusBadRequest)
		return
	}

	authURL, err := h.orch.BeginAuthorization(r.Context(), provider, r.URL.Query().Get("redirect"))
	if err != nil {
		h.renderFlowError(w, r, provider, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFlowStarted(provider)
		h.metrics.RecordStateIssued()
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// tokenResponse delivers freshly issued token material to the client.
// Success bodies of the callback and refresh endpoints are the only
// surface where token values leave the service; the persisted record
// itself never marshals them.
type tokenResponse struct {
	TokenID      string `json:"token_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newTokenResponse(rec *model.TokenRecord) tokenResponse {
	return tokenResponse{
		TokenID:      rec.ID,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		Scope:        rec.Scope,
		ExpiresIn:    int64(time.Until(rec.ExpiresAt).Seconds()),
	}
}

// sessionResponse is the success body of the callback endpoint.
type sessionResponse struct {
	User        *model.User   `json:"user"`
	Token       tokenResponse `json:"token"`
	RedirectURL string        `json:"redirect_url"`
}

// HandleCallback completes the authorization flow. On success it returns
// the established session with the issued token material.
//
//	GET /auth/callback?state=...&code=...
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Provider error responses are not echoed back to the caller.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.log.Warn("provider returned error on callback",
			zap.String("error_code", errParam),
			zap.String("correlation_id", logger.GetCorrelationID(r.Context())),
		)
		h.renderJSONError(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.renderJSONError(w, "authorization code not provided", http.StatusBadRequest)
		return
	}
	stateToken := r.URL.Query().Get("state")
	if stateToken == "" {
		h.renderJSONError(w, "state token not provided", http.StatusBadRequest)
		return
	}

	sess, err := h.orch.CompleteAuthorization(r.Context(), stateToken, code)
	if err != nil {
		h.renderCallbackError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordStateConsumed()
		h.metrics.RecordFlowCompleted(sess.Token.Provider, "success")
		h.metrics.RecordFlowDuration(sess.Token.Provider, time.Since(start).Seconds())
		h.metrics.RecordTokenIssued(sess.Token.Provider)
	}

	h.renderJSON(w, http.StatusOK, sessionResponse{
		User:        sess.User,
		Token:       newTokenResponse(sess.Token),
		RedirectURL: sess.RedirectURL,
	})
}

// refreshRequest is the body of POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh exchanges a refresh token for new token material.
//
//	POST /auth/refresh {"refresh_token": "..."}
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		h.renderJSONError(w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	rec, err := h.orch.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTokenRefreshed("failure")
		}
		h.renderRefreshError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenRefreshed("success")
	}
	h.renderJSON(w, http.StatusOK, newTokenResponse(rec))
}

// logoutRequest is the body of POST /auth/logout.
type logoutRequest struct {
	TokenID string `json:"token_id"`
}

// logoutResponse reports whether a record was revoked.
type logoutResponse struct {
	Revoked bool `json:"revoked"`
}

// HandleLogout revokes a token record. Revoking an unknown or
// already-revoked record succeeds with revoked=false.
//
//	POST /auth/logout {"token_id": "..."}
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenID == "" {
		h.renderJSONError(w, "token_id is required", http.StatusBadRequest)
		return
	}

	revoked, err := h.orch.Logout(r.Context(), req.TokenID)
	if err != nil {
		h.renderJSONError(w, "logout failed", http.StatusInternalServerError)
		return
	}

	if revoked && h.metrics != nil {
		h.metrics.RecordTokenRevoked()
	}
	h.renderJSON(w, http.StatusOK, logoutResponse{Revoked: revoked})
}

// HandleProviders lists the providers usable in this environment.
//
//	GET /auth/providers
func (h *AuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	h.renderJSON(w, http.StatusOK, map[string][]string{
		"providers": h.providers.Names(),
	})
}

func (h *AuthHandler) renderFlowError(w http.ResponseWriter, r *http.Request, provider string, err error) {
	switch {
	case errors.Is(err, idp.ErrProviderUnknown):
		h.renderJSONError(w, "unknown provider", http.StatusNotFound)
	case errors.Is(err, idp.ErrProviderNotConfigured):
		h.renderJSONError(w, "provider not configured in this environment", http.StatusNotFound)
	case errors.Is(err, auth.ErrInvalidRedirect):
		h.renderJSONError(w, "invalid redirect target", http.StatusBadRequest)
	default:
		h.log.Error("failed to start authorization",
			zap.String("provider", provider),
			zap.Error(err),
			zap.String("correlation_id", logger.GetCorrelationID(r.Context())),
		)
		h.renderJSONError(w, "failed to start authorization", http.StatusInternalServerError)
	}
}

func (h *AuthHandler) renderCallbackError(w http.ResponseWriter, r *http.Request, err error) {
	provider := "unknown"
	status := "failure"
	defer func() {
		if h.metrics != nil {
			h.metrics.RecordFlowCompleted(provider, status)
		}
	}()

	switch {
	case errors.Is(err, state.ErrStateNotFound),
		errors.Is(err, state.ErrStateExpired),
		errors.Is(err, state.ErrStateSignatureInvalid):
		// The detailed reason stays in logs and metrics; callers see one
		// generic message regardless of how the state failed.
		reason := stateRejectReason(err)
		if h.metrics != nil {
			h.metrics.RecordStateRejected(reason)
		}
		h.log.Warn("state rejected on callback",
			zap.String("reason", reason),
			zap.String("correlation_id", logger.GetCorrelationID(r.Context())),
		)
		h.renderJSONError(w, "invalid or expired state token", http.StatusBadRequest)
	case errors.Is(err, auth.ErrNonceMismatch):
		h.renderJSONError(w, "nonce mismatch", http.StatusBadRequest)
	case errors.Is(err, idp.ErrProviderTimeout):
		h.renderJSONError(w, "provider request timed out", http.StatusBadGateway)
	case errors.Is(err, idp.ErrExchangeFailed), errors.Is(err, idp.ErrUserInfoFailed):
		h.renderJSONError(w, "authentication failed", http.StatusBadGateway)
	default:
		h.log.Error("callback processing failed",
			zap.Error(err),
			zap.String("correlation_id", logger.GetCorrelationID(r.Context())),
		)
		h.renderJSONError(w, "authentication failed", http.StatusInternalServerError)
	}
}

// stateRejectReason maps a state validation error to its metrics label.
func stateRejectReason(err error) string {
	switch {
	case errors.Is(err, state.ErrStateExpired):
		return "expired"
	case errors.Is(err, state.ErrStateSignatureInvalid):
		return "signature"
	default:
		return "not_found"
	}
}

func (h *AuthHandler) renderRefreshError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrTokenNotFound):
		h.renderJSONError(w, "unknown refresh token", http.StatusNotFound)
	case errors.Is(err, auth.ErrTokenRevoked):
		h.renderJSONError(w, "token is revoked", http.StatusUnauthorized)
	case errors.Is(err, idp.ErrProviderTimeout):
		h.renderJSONError(w, "provider request timed out", http.StatusBadGateway)
	case errors.Is(err, idp.ErrRefreshFailed):
		h.renderJSONError(w, "refresh rejected by provider", http.StatusBadGateway)
	default:
		h.log.Error("refresh failed", zap.Error(err))
		h.renderJSONError(w, "refresh failed", http.StatusInternalServerError)
	}
}

func (h *AuthHandler) renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// renderJSONError writes an error payload. Messages are fixed strings,
// never raw error values, so secrets and provider details cannot leak.
func (h *AuthHandler) renderJSONError(w http.ResponseWriter, message string, status int) {
	h.renderJSON(w, status, map[string]string{"error": message})
}
