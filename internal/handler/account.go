package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/service"
)

// AccountHandler handles signup, login and profile lookup
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{accounts: accounts, logger: logger}
}

// SignupResponse is returned by a successful signup
type SignupResponse struct {
	Success bool             `json:"success"`
	User    *domain.Identity `json:"user"`
	Message string           `json:"message"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse wraps a profile
type UserResponse struct {
	User *domain.User `json:"user"`
}

// Signup handles POST {prefix}/signup
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("failed to decode signup request", slog.String("error", err.Error()))
		writeErrorMessage(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, SignupResponse{
		Success: true,
		User:    res.Identity,
		Message: "Account created successfully!",
	})
}

// Login handles POST {prefix}/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, session)
}

// GetUser handles GET {prefix}/user/{id}
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, UserResponse{User: user})
}
