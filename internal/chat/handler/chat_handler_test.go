package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackclone/internal/chat/handler/mocks"
	"slackclone/internal/chat/models"
	"slackclone/internal/chat/service"
	"slackclone/internal/common"
)

type handlerMocks struct {
	channels  *mocks.MockChannelService
	messages  *mocks.MockMessageService
	reactions *mocks.MockReactionService
}

func newMockedRouter(t *testing.T) (*mux.Router, handlerMocks, *ChatHandler) {
	ctrl := gomock.NewController(t)
	m := handlerMocks{
		channels:  mocks.NewMockChannelService(ctrl),
		messages:  mocks.NewMockMessageService(ctrl),
		reactions: mocks.NewMockReactionService(ctrl),
	}
	h := NewChatHandler(m.channels, m.messages, m.reactions)
	router := mux.NewRouter()
	router.Use(common.CORSMiddleware("*"))
	h.RegisterRoutes(router)
	return router, m, h
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body common.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Error
}

func TestChatHandler_AddReaction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantError  string
	}{
		{"invalid", common.Invalid("Missing required fields"), http.StatusBadRequest, "Missing required fields"},
		{"emoji too long", common.Invalid("Emoji must be at most 32 bytes"), http.StatusBadRequest, "Emoji must be at most 32 bytes"},
		{"not found", fmt.Errorf("message 9: %w", common.ErrNotFound), http.StatusNotFound, "Message not found"},
		{"duplicate", fmt.Errorf("reaction: %w", common.ErrConflict), http.StatusBadRequest, "Reaction already exists"},
		{"broadcast", fmt.Errorf("%w: pusher down", common.ErrBroadcast), http.StatusInternalServerError, "Failed to process request"},
		{"database", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "Failed to process request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, m, _ := newMockedRouter(t)
			m.reactions.EXPECT().
				AddReaction(gomock.Any(), uint(9), "u1", "👍").
				Return(nil, tt.serviceErr).
				Times(1)

			rr := doRequest(router, http.MethodPost, "/api/reactions", `{"messageId": 9, "userId": "u1", "emoji": "👍"}`)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantError, errorBody(t, rr))
			assert.NotContains(t, rr.Body.String(), "connection refused", "causes are never leaked")
		})
	}
}

func TestChatHandler_AddReaction_Success(t *testing.T) {
	router, m, h := newMockedRouter(t)

	var outcomes []string
	h.SetOutcomeObserver(func(entity, outcome string) { outcomes = append(outcomes, entity+":"+outcome) })

	created := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	m.reactions.EXPECT().
		AddReaction(gomock.Any(), uint(12), "u1", "🎉").
		Return(&models.Reaction{ID: 1, MessageID: 12, UserID: "u1", Emoji: "🎉", CreatedAt: created}, nil)

	rr := doRequest(router, http.MethodPost, "/api/reactions", `{"messageId": "12", "userId": "u1", "emoji": "🎉"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"id":1,"messageId":12,"userId":"u1","emoji":"🎉","createdAt":"2024-02-03T04:05:06Z"}`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, []string{"reaction:ok"}, outcomes)
}

func TestChatHandler_DecodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		wantError string
		wantCode  int
	}{
		{"malformed json", "/api/reactions", `{"messageId": 1,`, "Invalid request body", http.StatusBadRequest},
		{"non numeric id", "/api/reactions", `{"messageId": "abc", "userId": "u", "emoji": "x"}`, `Invalid id "abc"`, http.StatusBadRequest},
		{"negative channel id", "/api/messages", `{"channelId": -4}`, `Invalid id "-4"`, http.StatusBadRequest},
		{"channel name not a string", "/api/channels", `{"name": 42}`, "Channel name is required and must be a string", http.StatusBadRequest},
		{"channel name missing", "/api/channels", `{}`, "Channel name is required and must be a string", http.StatusBadRequest},
		{"body too large", "/api/messages", `{"text": "` + strings.Repeat("a", maxBodyBytes) + `"}`, "Request body too large", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := newMockedRouter(t)
			rr := doRequest(router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantError, errorBody(t, rr))
		})
	}
}

func TestChatHandler_CreateMessage_PassesFields(t *testing.T) {
	router, m, _ := newMockedRouter(t)

	m.messages.EXPECT().
		CreateMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, in service.CreateMessageInput) (*models.Message, error) {
			assert.Equal(t, uint(3), in.ChannelID)
			assert.Equal(t, "hello", in.Text)
			require.NotNil(t, in.UserAvatar)
			assert.Equal(t, "https://a/b.png", *in.UserAvatar)
			return &models.Message{ID: 1, ChannelID: 3, Content: "hello", Reactions: []models.Reaction{}}, nil
		})

	rr := doRequest(router, http.MethodPost, "/api/messages",
		`{"channelId": "3", "userId": "u1", "username": "alice", "content": "hello", "userAvatar": "https://a/b.png"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"reactions":[]`)
}

func TestChatHandler_ListChannels_Failure(t *testing.T) {
	router, m, _ := newMockedRouter(t)
	m.channels.EXPECT().ListChannels(gomock.Any()).Return(nil, errors.New("too many connections"))

	rr := doRequest(router, http.MethodGet, "/api/channels", "")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to connect to database", errorBody(t, rr))
}

func TestChatHandler_Preflight(t *testing.T) {
	for _, path := range []string{"/api/channels", "/api/messages", "/api/reactions"} {
		router, _, _ := newMockedRouter(t)
		rr := doRequest(router, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestChatHandler_ListMessages_InvalidChannelNeverCallsService(t *testing.T) {
	for _, query := range []string{"", "?channelId=", "?channelId=0", "?channelId=abc"} {
		router, _, _ := newMockedRouter(t) // no expectations: any service call fails the test
		rr := doRequest(router, http.MethodGet, "/api/messages"+query, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
		assert.Equal(t, "Channel ID is required", errorBody(t, rr))
	}
}
