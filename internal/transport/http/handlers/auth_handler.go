package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/zawix/messages/internal/notify"
	"github.com/zawix/messages/internal/service"
	"github.com/zawix/messages/internal/transport/http/middleware"
	"github.com/zawix/messages/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	watchers    *notify.Manager

	// baseCtx bounds background watcher lifetimes to the server's.
	baseCtx context.Context
}

func NewAuthHandler(authService *service.AuthService, watchers *notify.Manager, baseCtx context.Context) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		watchers:    watchers,
		baseCtx:     baseCtx,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateRegister(input.Username, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.authService.Register(r.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already taken")
		} else {
			log.Printf("ERROR register: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateLogin(input.Username, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		} else {
			log.Printf("ERROR login: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	h.watchers.Start(h.baseCtx, input.Username)

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	h.watchers.Stop(username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	var input struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidatePasswordChange(input.OldPassword, input.NewPassword); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	err := h.authService.ChangePassword(r.Context(), username, input.OldPassword, input.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCreds):
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Old password is incorrect")
		case errors.Is(err, service.ErrSamePassword):
			writeError(w, http.StatusBadRequest, "SAME_PASSWORD", "New password must differ from the old one")
		default:
			log.Printf("ERROR change password: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	var input struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	err := h.authService.DeleteAccount(r.Context(), username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Password is incorrect")
		} else {
			log.Printf("ERROR delete account: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	h.watchers.Stop(username)

	writeJSON(w, http.StatusOK, map[string]string{"status": "account_deleted"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}
