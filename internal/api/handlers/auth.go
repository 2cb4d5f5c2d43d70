package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wonny/stockhunter/pkg/logger"
)

// CredentialValidator mints a throwaway token for the supplied credentials.
type CredentialValidator func(ctx context.Context, appKey, appSecret string, isProduction bool) error

// AuthHandler handles credential validation
type AuthHandler struct {
	validate CredentialValidator
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(validate CredentialValidator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{validate: validate, logger: log}
}

type validateCredentialsRequest struct {
	AppKey       string `json:"appKey"`
	AppSecret    string `json:"appSecret"`
	IsProduction bool   `json:"isProduction"`
}

// ValidateCredentials mint-tests the given broker credentials
// POST /api/v1/validate-credentials
func (h *AuthHandler) ValidateCredentials(w http.ResponseWriter, r *http.Request) {
	var req validateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AppKey == "" || req.AppSecret == "" {
		respondError(w, http.StatusBadRequest, "appKey and appSecret are required")
		return
	}

	if err := h.validate(r.Context(), req.AppKey, req.AppSecret, req.IsProduction); err != nil {
		h.logger.WithError(err).Warn("Credential validation failed")
		respondJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
	})
}
