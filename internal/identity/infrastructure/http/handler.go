package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caprisoft/storefront/internal/identity/application"
	"github.com/caprisoft/storefront/internal/identity/domain"
)

const resetRequestedMessage = "If the email is registered, a reset link has been sent"

// AuthService is the account surface the auth routes need.
type AuthService interface {
	Register(ctx context.Context, in application.RegisterInput) (domain.User, error)
	Login(ctx context.Context, in application.LoginInput) (application.Session, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in application.ResetPasswordInput) error
	ValidateResetToken(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	log  *slog.Logger
	auth AuthService
}

func NewHandler(log *slog.Logger, auth AuthService) *Handler {
	return &Handler{log: log, auth: auth}
}

// Routes mounts under /api/auth. Every route is public.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/reset-password", h.resetPassword)
	r.Get("/validate-reset-token", h.validateResetToken)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, messageBody{Message: "pong"})
	})
	return r
}

type messageBody struct {
	Message string `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type loginResp struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type validateResp struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in application.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	if _, err := h.auth.Register(r.Context(), in); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{Message: "User registered successfully"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in application.LoginInput
	if !decode(w, r, &in) {
		return
	}
	s, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResp{
		Token:    s.Token,
		UserID:   s.User.ID,
		FullName: s.User.Name,
		Email:    s.User.Email,
		Role:     string(s.User.Role),
	})
}

// forgotPassword answers the same way whether or not the email is known.
func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: resetRequestedMessage})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in application.ResetPasswordInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), in); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Password has been reset successfully"})
}

func (h *Handler) validateResetToken(w http.ResponseWriter, r *http.Request) {
	ok, err := h.auth.ValidateResetToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, validateResp{Valid: false, Error: "Token is invalid or has expired"})
		return
	}
	writeJSON(w, http.StatusOK, validateResp{Valid: true})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var validation *application.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Field: validation.Field})
	case errors.Is(err, domain.ErrEmailTaken):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Email is already registered", Field: "email"})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid email or password"})
	case domain.IsResetTokenError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		h.log.Error("auth request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
