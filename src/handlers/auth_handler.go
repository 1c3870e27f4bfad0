package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/security"
	"github.com/username/revoledger/src/security/validation"
	"github.com/username/revoledger/src/utils"
)

type AuthHandler struct {
	authService *security.AuthService
}

func NewAuthHandler(authService *security.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type tokenRequest struct {
	Subject  string `json:"subject" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *AuthHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.authService.Login(req.Subject, req.Password)
	if err != nil {
		if errors.Is(err, security.ErrInvalidCredentials) {
			logger.FromContext(r.Context()).Warn("Token request rejected", "subject", req.Subject, "remoteAddr", r.RemoteAddr)
			utils.SendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to issue token", "subject", req.Subject, "error", err)
		utils.SendJSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	logger.FromContext(r.Context()).Info("Token issued", "subject", req.Subject)
	utils.SendJSON(w, tokenResponse{AccessToken: token, TokenType: "Bearer"}, http.StatusOK)
}
