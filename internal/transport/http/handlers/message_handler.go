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

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	var input struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.To == "" {
		writeError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "Recipient is required")
		return
	}

	msg, err := h.messageService.Send(r.Context(), username, input.To, input.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message cannot be empty")
		case errors.Is(err, service.ErrRecipientUnknown):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Recipient not found")
		case errors.Is(err, service.ErrNotFriends):
			writeError(w, http.StatusForbidden, "NOT_FRIENDS", "You can only message friends")
		default:
			log.Printf("ERROR send message: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// Conversation returns the full message history with another user,
// oldest first.
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	other := r.PathValue("username")
	if other == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USERNAME", "Username is required")
		return
	}

	msgs, err := h.messageService.Conversation(r.Context(), username, other)
	if err != nil {
		log.Printf("ERROR list conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var input struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	msg, err := h.messageService.Edit(r.Context(), username, messageID, input.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Message cannot be empty")
		case errors.Is(err, service.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotMessageOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only edit your own messages")
		default:
			log.Printf("ERROR edit message: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// Delete removes one of the caller's messages. Deleting an already
// deleted message succeeds.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())

	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.Delete(r.Context(), username, messageID); err != nil {
		if errors.Is(err, service.ErrNotMessageOwner) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only delete your own messages")
		} else {
			log.Printf("ERROR delete message: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
