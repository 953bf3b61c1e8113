package handler

import (
	"encoding/json"
	"net/http"

	"repricer-api/internal/middleware"
	"repricer-api/internal/service"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/response"
)

// OAuthHandler handles the marketplace connection lifecycle.
type OAuthHandler struct {
	tokens *service.TokenManager
}

// NewOAuthHandler creates a new OAuth handler.
func NewOAuthHandler(tokens *service.TokenManager) *OAuthHandler {
	return &OAuthHandler{tokens: tokens}
}

// credentialsRequest carries the user's marketplace application credentials.
type credentialsRequest struct {
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
	DevID        string `json:"dev_id"`
}

// SetCredentials handles PUT /api/v1/marketplace/credentials
func (h *OAuthHandler) SetCredentials(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var in credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}

	if err := h.tokens.SetDeveloperCredentials(r.Context(), userID, in.AppID, in.ClientSecret, in.DevID); err != nil {
		response.Error(w, err)
		return
	}

	info, err := h.tokens.Status(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, info)
}

// Connect handles POST /api/v1/marketplace/connect
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	authURL, err := h.tokens.BeginAuthorization(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"authorization_url": authURL})
}

// Callback handles GET /api/v1/marketplace/callback. This endpoint is public:
// the marketplace redirects the user's browser here and the single-use state
// token is the authentication.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		response.Error(w, apierror.Validation("authorization denied: "+errParam))
		return
	}

	userID, err := h.tokens.HandleCallback(r.Context(), state, code)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{
		"user_id": userID,
		"status":  "connected",
	})
}

// Status handles GET /api/v1/marketplace/connection
func (h *OAuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	info, err := h.tokens.Status(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, info)
}

// Disconnect handles DELETE /api/v1/marketplace/connection
func (h *OAuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.tokens.Disconnect(r.Context(), userID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
