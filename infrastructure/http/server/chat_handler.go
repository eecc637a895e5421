package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/services"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type ChatHandler struct {
	chatService services.IChatService
	log         *slog.Logger
}

func NewChatHandler(log *slog.Logger, chatService services.IChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

type createChatRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=100"`
	CryptAlgorithm string `json:"crypt_algorithm" validate:"required"`
	CryptPadding   string `json:"crypt_padding" validate:"required"`
	CryptMode      string `json:"crypt_mode" validate:"required"`
}

type chatResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CryptAlgorithm string `json:"crypt_algorithm"`
	CryptPadding   string `json:"crypt_padding"`
	CryptMode      string `json:"crypt_mode"`
	CreatorID      int64  `json:"creator_id"`
	ReceiverID     *int64 `json:"receiver_id"`
	State          string `json:"state"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	LogID     uint64    `json:"log_id"`
	SenderID  int64     `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type publishKeyRequest struct {
	PublicKey string `json:"public_key"`
}

type keyResponse struct {
	PublicKey string    `json:"public_key"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chat, err := h.chatService.CreateChat(r.Context(), domain.CreateChatCommand{
		CreatorID: userID,
		Name:      req.Name,
		Crypto: domain.CryptoParams{
			Algorithm: req.CryptAlgorithm,
			Padding:   req.CryptPadding,
			Mode:      req.CryptMode,
		},
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(chat))
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	chats, err := h.chatService.ListChats(r.Context(), userID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(chats, func(chat domain.Chat, _ int) chatResponse {
		return toChatResponse(chat)
	}))
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	if err := h.chatService.DeleteChat(r.Context(), chatID, userID); err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "chat deleted"})
}

func (h *ChatHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	chat, err := h.chatService.Connect(r.Context(), chatID, userID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

func (h *ChatHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	chat, err := h.chatService.Disconnect(r.Context(), chatID, userID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(chat))
}

func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logID, err := h.chatService.SendMessage(r.Context(), domain.PostMessageCommand{
		ChatID:    chatID,
		SenderID:  userID,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"log_id": logID})
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	records, err := h.chatService.GetMessages(r.Context(), domain.ReadMessagesCommand{
		ChatID:      chatID,
		RequesterID: userID,
		Limit:       limit,
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(records, func(record domain.MessageRecord, _ int) messageResponse {
		return messageResponse{
			LogID:     record.LogID,
			SenderID:  int64(record.SenderID),
			Text:      record.Text,
			CreatedAt: record.CreatedAt,
		}
	}))
}

func (h *ChatHandler) PublishKey(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	var req publishKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.chatService.PublishKey(r.Context(), chatID, userID, req.PublicKey); err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "public key stored"})
}

func (h *ChatHandler) GetPartnerKey(w http.ResponseWriter, r *http.Request) {
	userID, chatID, ok := h.callerAndChat(w, r)
	if !ok {
		return
	}
	slot, err := h.chatService.FetchPartnerKey(r.Context(), chatID, userID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{PublicKey: slot.PublicKey, UpdatedAt: slot.UpdatedAt})
}

// callerAndChat pulls the authenticated user and the {id} path variable.
func (h *ChatHandler) callerAndChat(w http.ResponseWriter, r *http.Request) (domain.UserID, domain.ChatID, bool) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return 0, 0, false
	}
	return userID, domain.ChatID(id), true
}

func (h *ChatHandler) error(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed",
			"request_id", requestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err)
	}
	http.Error(w, err.Error(), status)
}

func toChatResponse(chat domain.Chat) chatResponse {
	resp := chatResponse{
		ID:             int64(chat.ID),
		Name:           chat.Name,
		CryptAlgorithm: chat.Crypto.Algorithm,
		CryptPadding:   chat.Crypto.Padding,
		CryptMode:      chat.Crypto.Mode,
		CreatorID:      int64(chat.CreatorID),
		State:          string(chat.State()),
	}
	if chat.ReceiverID != nil {
		id := int64(*chat.ReceiverID)
		resp.ReceiverID = &id
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
