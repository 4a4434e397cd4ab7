package handlers

import (
	"log"
	"net/http"

	"github.com/zawix/messages/internal/service"
	"github.com/zawix/messages/internal/transport/http/middleware"
)

type UserHandler struct {
	authService *service.AuthService
}

func NewUserHandler(authService *service.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// List returns every registered user except the caller.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	users, err := h.authService.ListUsers(r.Context(), username)
	if err != nil {
		log.Printf("ERROR list users: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, users)
}
