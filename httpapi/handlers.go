package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"dispatch-chat/auth"
	"dispatch-chat/domain"
	"dispatch-chat/services"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type sendMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

type startConversationRequest struct {
	DriverID string `json:"driverId" validate:"required"`
}

type messageResponse struct {
	ID        string `json:"id"`
	DriverID  string `json:"driverId"`
	Message   string `json:"message"`
	Seen      bool   `json:"seen"`
	Timestamp int64  `json:"timestamp"`
}

type listMessagesResponse struct {
	Messages []messageResponse `json:"messages"`
	Cursor   string            `json:"cursor,omitempty"`
}

type conversationResponse struct {
	RoomID        string  `json:"roomId"`
	DriverID      string  `json:"driverId"`
	DriverName    string  `json:"driverName"`
	Avatar        string  `json:"avatar,omitempty"`
	LastMessage   *string `json:"lastMessage"`
	LastMessageAt *int64  `json:"lastMessageAt"`
	Unread        bool    `json:"unread"`
}

type conversationGroupResponse struct {
	Bucket        string                 `json:"bucket"`
	Conversations []conversationResponse `json:"conversations"`
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	dispatcherID, ok := auth.DispatcherID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	groups, err := a.conversations.ListConversations(r.Context(), dispatcherID, r.URL.Query().Get("q"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, lo.Map(groups, func(group services.ConversationGroup, _ int) conversationGroupResponse {
		return toGroupResponse(group)
	}))
}

func (a *API) startConversation(w http.ResponseWriter, r *http.Request) {
	dispatcherID, ok := auth.DispatcherID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var payload startConversationRequest
	if err := a.decode(r, &payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	view, err := a.conversations.StartConversation(dispatcherID, payload.DriverID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toConversationResponse(view))
}

func (a *API) ensureRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := a.ownedRoom(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.conversations.EnsureRoom(roomID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := a.ownedRoom(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	cmd := domain.ListMessagesCommand{Room: roomID}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		cmd.Limit = &limit
	}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cmd.Cursor = &raw
	}

	messages, cursor, err := a.chats.Messages(cmd)
	if err != nil {
		a.writeError(w, err)
		return
	}

	response := listMessagesResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) messageResponse {
			return toMessageResponse(m)
		}),
	}
	if cursor != nil && len(messages) > 0 {
		response.Cursor = *cursor
	}
	a.writeJSON(w, http.StatusOK, response)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	roomID, err := a.ownedRoom(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	var payload sendMessageRequest
	if err := a.decode(r, &payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	message, err := a.chats.Send(r.Context(), domain.SendMessageCommand{Room: roomID, Body: payload.Body})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (a *API) markSeen(w http.ResponseWriter, r *http.Request) {
	roomID, err := a.ownedRoom(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.chats.MarkSeen(roomID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedRoom parses the room key from the path and checks it belongs to
// the authenticated dispatcher. A caller can never read or write another
// dispatcher's room.
func (a *API) ownedRoom(r *http.Request) (domain.RoomID, error) {
	roomID, err := domain.ParseRoomID(chi.URLParam(r, "roomID"))
	if err != nil {
		return "", err
	}
	dispatcherID, ok := auth.DispatcherID(r.Context())
	if !ok || roomID.DispatcherID() != dispatcherID {
		return "", errForbidden
	}
	return roomID, nil
}

func (a *API) decode(r *http.Request, payload any) error {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return a.validate.Struct(payload)
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        m.ID.String(),
		DriverID:  m.DriverID,
		Message:   m.Body,
		Seen:      m.Seen,
		Timestamp: m.SentAt.UnixMilli(),
	}
}

func toConversationResponse(view services.ConversationView) conversationResponse {
	response := conversationResponse{
		RoomID:      string(view.Room.ID),
		DriverID:    view.Room.ID.DriverID(),
		DriverName:  view.DriverName,
		Avatar:      view.Avatar,
		LastMessage: view.Room.LastMessage,
		Unread:      view.Unread,
	}
	if view.Room.LastMessageAt != nil {
		at := view.Room.LastMessageAt.UnixMilli()
		response.LastMessageAt = &at
	}
	return response
}

func toGroupResponse(group services.ConversationGroup) conversationGroupResponse {
	return conversationGroupResponse{
		Bucket: string(group.Bucket),
		Conversations: lo.Map(group.Conversations, func(view services.ConversationView, _ int) conversationResponse {
			return toConversationResponse(view)
		}),
	}
}
