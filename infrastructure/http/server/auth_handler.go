package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"pairchat/errors"
	"pairchat/services"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type AuthHandler struct {
	authService services.IAuthService
	log         *slog.Logger
}

func NewAuthHandler(log *slog.Logger, authService services.IAuthService) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	token, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), errors.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), errors.HTTPStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}
