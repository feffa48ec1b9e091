// Package handler serves the chat REST API.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"slackclone/internal/chat/service"
	"slackclone/internal/common"
)

const maxBodyBytes = 1 << 20

// OutcomeObserver is told the outcome of every create call.
type OutcomeObserver func(entity, outcome string)

type ChatHandler struct {
	channels  service.ChannelService
	messages  service.MessageService
	reactions service.ReactionService
	observe   OutcomeObserver
}

func NewChatHandler(c service.ChannelService, m service.MessageService, r service.ReactionService) *ChatHandler {
	return &ChatHandler{channels: c, messages: m, reactions: r}
}

func (h *ChatHandler) SetOutcomeObserver(observe OutcomeObserver) {
	h.observe = observe
}

// RegisterRoutes mounts the API on router. OPTIONS is accepted on every
// route so CORS preflight reaches the middleware.
func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/channels", h.ListChannels).Methods(http.MethodGet)
	api.HandleFunc("/channels", h.CreateChannel).Methods(http.MethodPost)
	api.HandleFunc("/messages", h.ListMessages).Methods(http.MethodGet)
	api.HandleFunc("/messages", h.CreateMessage).Methods(http.MethodPost)
	api.HandleFunc("/reactions", h.AddReaction).Methods(http.MethodPost)

	for _, path := range []string{"/channels", "/messages", "/reactions"} {
		api.HandleFunc(path, preflight).Methods(http.MethodOptions)
	}
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type createChannelRequest struct {
	Name interface{} `json:"name"`
}

type createMessageRequest struct {
	ChannelID  common.ID `json:"channelId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Text       string    `json:"text"`
	Content    string    `json:"content"`
	UserAvatar *string   `json:"userAvatar"`
}

type addReactionRequest struct {
	MessageID common.ID `json:"messageId"`
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
}

// errorMessages are the client-facing texts for each failure class of one
// endpoint.
type errorMessages struct {
	invalid  string
	notFound string
	conflict string
	failed   string
}

func (h *ChatHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.ListChannels(r.Context())
	if err != nil {
		writeServiceError(w, r, err, errorMessages{failed: "Failed to connect to database"})
		return
	}
	common.WriteJSON(w, http.StatusOK, channels)
}

func (h *ChatHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	msgs := errorMessages{invalid: "Channel name is required and must be a string", failed: "Failed to create channel"}

	var req createChannelRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.record("channel", err)
		writeServiceError(w, r, err, msgs)
		return
	}

	name, ok := req.Name.(string)
	if !ok {
		err := common.InvalidMessage(msgs.invalid)
		h.record("channel", err)
		writeServiceError(w, r, err, msgs)
		return
	}

	channel, err := h.channels.CreateChannel(r.Context(), name)
	h.record("channel", err)
	if err != nil {
		writeServiceError(w, r, err, msgs)
		return
	}
	common.WriteJSON(w, http.StatusCreated, channel)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs := errorMessages{invalid: "Channel ID is required", failed: "Failed to connect to database"}

	channelID, err := common.ParseID(r.URL.Query().Get("channelId"))
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, msgs.invalid)
		return
	}

	messages, err := h.messages.ListMessages(r.Context(), channelID)
	if err != nil {
		writeServiceError(w, r, err, msgs)
		return
	}
	common.WriteJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	msgs := errorMessages{invalid: "Missing required fields", failed: "Failed to create message"}

	var req createMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.record("message", err)
		writeServiceError(w, r, err, msgs)
		return
	}

	text := req.Text
	if text == "" {
		text = req.Content
	}

	msg, err := h.messages.CreateMessage(r.Context(), service.CreateMessageInput{
		ChannelID:  uint(req.ChannelID),
		UserID:     req.UserID,
		Username:   req.Username,
		Text:       text,
		UserAvatar: req.UserAvatar,
	})
	h.record("message", err)
	if err != nil {
		writeServiceError(w, r, err, msgs)
		return
	}
	common.WriteJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	msgs := errorMessages{
		invalid:  "Missing required fields",
		notFound: "Message not found",
		conflict: "Reaction already exists",
		failed:   "Failed to process request",
	}

	var req addReactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.record("reaction", err)
		writeServiceError(w, r, err, msgs)
		return
	}

	reaction, err := h.reactions.AddReaction(r.Context(), uint(req.MessageID), req.UserID, req.Emoji)
	h.record("reaction", err)
	if err != nil {
		writeServiceError(w, r, err, msgs)
		return
	}
	common.WriteJSON(w, http.StatusCreated, reaction)
}

func (h *ChatHandler) record(entity string, err error) {
	if h.observe != nil {
		h.observe(entity, common.OutcomeOf(err).String())
	}
}

// decodeBody reads a JSON object body. Malformed JSON is an invalid request.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var ve *common.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.ErrTooLarge
		}
		return common.Invalid("Invalid request body")
	}
	return nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msgs errorMessages) {
	status := common.StatusFor(err)

	var message string
	switch {
	case errors.Is(err, common.ErrConflict):
		message = msgs.conflict
	case errors.Is(err, common.ErrNotFound):
		message = msgs.notFound
	case errors.Is(err, common.ErrInvalidRequest):
		message = common.PublicMessage(err, msgs.invalid)
	case errors.Is(err, common.ErrTooLarge):
		message = "Request body too large"
	default:
		message = msgs.failed
		log.Printf("❌ %s %s failed [%s]: %v", r.Method, r.URL.Path, common.RequestIDFrom(r.Context()), err)
	}

	if message == "" {
		message = http.StatusText(status)
	}
	common.WriteError(w, status, message)
}
