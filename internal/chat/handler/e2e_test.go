package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"slackclone/internal/chat/models"
	"slackclone/internal/chat/repository"
	"slackclone/internal/chat/service"
	"slackclone/internal/common"
	"slackclone/internal/config"
	"slackclone/internal/dbsql"
	"slackclone/internal/realtime"
)

type testServer struct {
	router *mux.Router
	db     *gorm.DB
	hub    *realtime.Hub
}

// newTestServer wires the real stack over an in-memory SQLite database. The
// websocket hub is the only realtime sink.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerAt(t, ":memory:")
}

func newTestServerAt(t *testing.T, path string) *testServer {
	t.Helper()

	cnf := config.Default()
	cnf.Database.Driver = "sqlite"
	cnf.Database.Path = path
	cnf.Database.LogLevel = "silent"

	db, cleanup, err := dbsql.NewDatabase(cnf)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.NoError(t, dbsql.Migrate(db))

	hub := realtime.NewHub(16)
	fanout := realtime.NewFanout(1, 16)
	fanout.Subscribe(hub, false)
	t.Cleanup(fanout.Shutdown)

	messageRepo := repository.NewMessageRepository(db)
	h := NewChatHandler(
		service.NewChannelService(repository.NewChannelRepository(db)),
		service.NewMessageService(messageRepo, fanout),
		service.NewReactionService(messageRepo, repository.NewReactionRepository(db), fanout),
	)

	router := mux.NewRouter()
	router.Use(common.CORSMiddleware("*"))
	h.RegisterRoutes(router)

	return &testServer{router: router, db: db, hub: hub}
}

func (s *testServer) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(model).Count(&n).Error)
	return n
}

func (s *testServer) postMessage(t *testing.T, channelID uint, userID, text string) models.Message {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"channelId": channelID,
		"userId":    userID,
		"username":  userID + "-name",
		"text":      text,
	})
	require.NoError(t, err)

	rr := doRequest(s.router, http.MethodPost, "/api/messages", string(body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var msg models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	return msg
}

func nextEvent(t *testing.T, sub *realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return realtime.Event{}
	}
}

func assertNoEvent(t *testing.T, sub *realtime.Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %s on %s", ev.Event, ev.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestE2E_CreateAndListChannels(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(s.router, http.MethodPost, "/api/channels", `{"name": "  general  "}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created models.Channel
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "general", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	rr = doRequest(s.router, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var channels []models.Channel
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &channels))
	require.Len(t, channels, 1)
	assert.Equal(t, created.ID, channels[0].ID)
}

func TestE2E_ListChannels_EmptyIsArray(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(s.router, http.MethodGet, "/api/channels", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestE2E_CreateMessage_MissingFieldInsertsNothing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no channel", `{"userId": "u1", "username": "alice", "text": "hi"}`},
		{"no user", `{"channelId": 1, "username": "alice", "text": "hi"}`},
		{"no username", `{"channelId": 1, "userId": "u1", "text": "hi"}`},
		{"no text", `{"channelId": 1, "userId": "u1", "username": "alice"}`},
		{"blank text", `{"channelId": 1, "userId": "u1", "username": "alice", "text": "   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			sub := s.hub.Subscribe(realtime.ChannelTopic(1))
			defer sub.Close()

			rr := doRequest(s.router, http.MethodPost, "/api/messages", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "Missing required fields", errorBody(t, rr))
			assert.Zero(t, s.count(t, &dbsql.Message{}))
			assertNoEvent(t, sub)
		})
	}
}

func TestE2E_CreateMessage_Broadcasts(t *testing.T) {
	s := newTestServer(t)
	sub := s.hub.Subscribe(realtime.ChannelTopic(4))
	defer sub.Close()

	msg := s.postMessage(t, 4, "u1", "hello")

	assert.Equal(t, "hello", msg.Content)
	assert.NotNil(t, msg.Reactions)
	assert.Empty(t, msg.Reactions)

	ev := nextEvent(t, sub)
	assert.Equal(t, "channel-4", ev.Topic)
	assert.Equal(t, realtime.EventNewMessage, ev.Event)

	var payload models.Message
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, msg.ID, payload.ID)
	assert.Equal(t, "hello", payload.Content)
}

func TestE2E_DuplicateReaction(t *testing.T) {
	s := newTestServer(t)
	msg := s.postMessage(t, 1, "u1", "react to me")
	body := `{"messageId": ` + jsonNumber(msg.ID) + `, "userId": "u2", "emoji": "👍"}`

	first := doRequest(s.router, http.MethodPost, "/api/reactions", body)
	second := doRequest(s.router, http.MethodPost, "/api/reactions", body)

	assert.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "Reaction already exists", errorBody(t, second))
	assert.Equal(t, int64(1), s.count(t, &dbsql.Reaction{}))
}

func TestE2E_ConcurrentIdenticalReactions(t *testing.T) {
	// file-backed so the requests really run on separate connections
	s := newTestServerAt(t, filepath.Join(t.TempDir(), "chat.db")+"?_busy_timeout=5000")
	msg := s.postMessage(t, 1, "u1", "race me")
	body := `{"messageId": ` + jsonNumber(msg.ID) + `, "userId": "u2", "emoji": "🎉"}`

	sub := s.hub.Subscribe(realtime.ChannelTopic(1))
	defer sub.Close()

	const callers = 8
	codes := make([]int, callers)
	bodies := make([]string, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rr := doRequest(s.router, http.MethodPost, "/api/reactions", body)
			codes[i] = rr.Code
			bodies[i] = rr.Body.String()
		}(i)
	}
	close(start)
	wg.Wait()

	created := 0
	for i, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
			assert.JSONEq(t, `{"error":"Reaction already exists"}`, bodies[i])
		default:
			t.Errorf("caller %d got %d: %s", i, code, bodies[i])
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), s.count(t, &dbsql.Reaction{}))

	ev := nextEvent(t, sub)
	assert.Equal(t, realtime.EventNewReaction, ev.Event)
	assertNoEvent(t, sub)
}

func TestE2E_ReactionOnMissingMessage(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(s.router, http.MethodPost, "/api/reactions", `{"messageId": 999, "userId": "u1", "emoji": "👍"}`)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Message not found", errorBody(t, rr))
	assert.Zero(t, s.count(t, &dbsql.Reaction{}))
}

func TestE2E_ReactionBroadcastsExactlyOnce(t *testing.T) {
	s := newTestServer(t)
	msg := s.postMessage(t, 3, "u1", "hello")

	sub := s.hub.Subscribe(realtime.ChannelTopic(3))
	defer sub.Close()
	other := s.hub.Subscribe(realtime.ChannelTopic(4))
	defer other.Close()

	rr := doRequest(s.router, http.MethodPost, "/api/reactions",
		`{"messageId": "`+jsonNumber(msg.ID)+`", "userId": "u2", "emoji": "🎉"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	ev := nextEvent(t, sub)
	assert.Equal(t, "channel-3", ev.Topic)
	assert.Equal(t, realtime.EventNewReaction, ev.Event)
	assertNoEvent(t, sub)
	assertNoEvent(t, other)

	var payload models.Reaction
	require.NoError(t, json.Unmarshal(ev.Data, &payload))

	var row dbsql.Reaction
	require.NoError(t, s.db.Take(&row).Error)
	assert.Equal(t, row.ID, payload.ID)
	assert.Equal(t, msg.ID, payload.MessageID)
	assert.Equal(t, "u2", payload.UserID)
	assert.Equal(t, "🎉", payload.Emoji)
	assert.WithinDuration(t, row.CreatedAt, payload.CreatedAt, time.Millisecond)
}

func TestE2E_ListMessagesWithReactions(t *testing.T) {
	s := newTestServer(t)
	first := s.postMessage(t, 2, "u1", "first")
	second := s.postMessage(t, 2, "u2", "second")
	s.postMessage(t, 5, "u3", "elsewhere")

	rr := doRequest(s.router, http.MethodPost, "/api/reactions",
		`{"messageId": `+jsonNumber(first.ID)+`, "userId": "u2", "emoji": "👍"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(s.router, http.MethodGet, "/api/messages?channelId=2", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var messages []models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &messages))
	require.Len(t, messages, 2)

	assert.Equal(t, first.ID, messages[0].ID)
	require.Len(t, messages[0].Reactions, 1)
	assert.Equal(t, "👍", messages[0].Reactions[0].Emoji)

	assert.Equal(t, second.ID, messages[1].ID)
	assert.NotNil(t, messages[1].Reactions)
	assert.Empty(t, messages[1].Reactions)
	assert.Contains(t, rr.Body.String(), `"reactions":[]`)
}

func TestE2E_ListMessages_UnknownChannelIsEmpty(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(s.router, http.MethodGet, "/api/messages?channelId=42", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestE2E_SameEmojiDifferentUsers(t *testing.T) {
	s := newTestServer(t)
	msg := s.postMessage(t, 1, "u1", "hi")

	for _, user := range []string{"u1", "u2"} {
		rr := doRequest(s.router, http.MethodPost, "/api/reactions",
			`{"messageId": `+jsonNumber(msg.ID)+`, "userId": "`+user+`", "emoji": "👍"}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	assert.Equal(t, int64(2), s.count(t, &dbsql.Reaction{}))
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
