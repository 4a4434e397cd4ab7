package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/service"
	"github.com/zawix/messages/internal/transport/http/middleware"
)

type FriendHandler struct {
	friendService *service.FriendService
}

func NewFriendHandler(friendService *service.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	var input struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.Username == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USERNAME", "Username is required")
		return
	}

	req, err := h.friendService.SendRequest(r.Context(), username, input.Username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfTarget):
			writeError(w, http.StatusBadRequest, "CANNOT_REQUEST_SELF", "Cannot send a request to yourself")
		case errors.Is(err, service.ErrTargetNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrAlreadyFriends):
			writeError(w, http.StatusConflict, "ALREADY_FRIENDS", "You are already friends")
		case errors.Is(err, service.ErrRequestPending):
			writeError(w, http.StatusConflict, "ALREADY_EXISTS", "A pending request already exists")
		default:
			log.Printf("ERROR send friend request: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid request ID")
		return
	}

	fs, err := h.friendService.AcceptRequest(r.Context(), username, requestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Friend request not found")
		case errors.Is(err, service.ErrNotRequestReceiver):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the receiver can accept a request")
		default:
			log.Printf("ERROR accept friend request: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, fs)
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid request ID")
		return
	}

	if err := h.friendService.RejectRequest(r.Context(), username, requestID); err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Friend request not found")
		case errors.Is(err, service.ErrNotRequestReceiver):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the receiver can reject a request")
		default:
			log.Printf("ERROR reject friend request: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid request ID")
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), username, requestID); err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Friend request not found")
		case errors.Is(err, service.ErrNotRequestSender):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the sender can cancel a request")
		default:
			log.Printf("ERROR cancel friend request: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	friends, err := h.friendService.ListFriends(r.Context(), username)
	if err != nil {
		log.Printf("ERROR list friends: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) ListIncomingRequests(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	reqs, err := h.friendService.ListIncomingRequests(r.Context(), username)
	if err != nil {
		log.Printf("ERROR list incoming requests: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *FriendHandler) ListOutgoingRequests(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	reqs, err := h.friendService.ListOutgoingRequests(r.Context(), username)
	if err != nil {
		log.Printf("ERROR list outgoing requests: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	other := r.PathValue("username")
	if other == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USERNAME", "Username is required")
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), username, other); err != nil {
		log.Printf("ERROR remove friend: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
