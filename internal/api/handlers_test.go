package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"zapline/backend/internal/models"
	"zapline/backend/internal/service"
	"zapline/backend/pkg/errors"
	"zapline/backend/pkg/jwt"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/middleware"
	"zapline/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == user.Phone {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = uuid.New().String()
	hashed, err := models.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = hashed
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
}

func (m *memConversationRepo) Create(_ context.Context, conversation *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi := models.NormalizePair(conversation.UserA, conversation.UserB)
	for _, c := range m.conversations {
		if c.UserA == lo && c.UserB == hi {
			return gorm.ErrDuplicatedKey
		}
	}
	conversation.UserA, conversation.UserB = lo, hi
	conversation.ID = uuid.New().String()
	conversation.CreatedAt = time.Now().UTC()
	copied := *conversation
	m.conversations[conversation.ID] = &copied
	return nil
}

func (m *memConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memConversationRepo) GetByPair(_ context.Context, userA, userB string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi := models.NormalizePair(userA, userB)
	for _, c := range m.conversations {
		if c.UserA == lo && c.UserB == hi {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memConversationRepo) ListForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, c := range m.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages map[string][]models.Message
}

func (m *memMessageRepo) Append(_ context.Context, message *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	message.ID = uuid.New().String()
	message.Seq = int64(len(m.messages[message.ConversationID])) + 1
	message.CreatedAt = time.Now().UTC()
	m.messages[message.ConversationID] = append(m.messages[message.ConversationID], *message)
	return nil
}

func (m *memMessageRepo) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages[conversationID]...), nil
}

func (m *memMessageRepo) LatestPerConversation(_ context.Context, ids []string) (map[string]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]models.Message)
	for _, id := range ids {
		if msgs := m.messages[id]; len(msgs) > 0 {
			latest[id] = msgs[len(msgs)-1]
		}
	}
	return latest, nil
}

type testServer struct {
	router   *gin.Engine
	messages *memMessageRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	jwtService := jwt.NewService("test-secret", time.Hour)

	users := &memUserRepo{users: make(map[string]*models.User)}
	conversations := &memConversationRepo{conversations: make(map[string]*models.Conversation)}
	messages := &memMessageRepo{messages: make(map[string][]models.Message)}

	directory := service.NewDirectory(users, nil)
	userSvc := service.NewUserService(users, jwtService, log)
	convSvc := service.NewConversationService(conversations, directory, log)
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("message-store"), log)
	msgSvc := service.NewMessageService(messages, breaker, time.Second, 8192, log)
	inboxSvc := service.NewInboxService(conversations, messages, directory)

	auth := NewAuthHandler(userSvc, log)
	conv := NewConversationHandler(convSvc, inboxSvc, msgSvc, directory, log)

	router := gin.New()
	router.Use(errors.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", auth.Register)
	v1.POST("/auth/login", auth.Login)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuthMiddleware(jwtService, log))
	protected.GET("/auth/me", auth.Me)
	protected.POST("/conversations", conv.CreateOrGet)
	protected.GET("/conversations", conv.List)
	protected.GET("/conversations/:id/messages", conv.History)

	return &testServer{router: router, messages: messages}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) register(t *testing.T, name, phone string) (id, token string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": name, "phone": phone, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	return body["id"].(string), body["token"].(string)
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)

	id, _ := srv.register(t, "Alice", "15550001111")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"id": id, "password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Alice", body["name"])
	assert.NotEmpty(t, body["token"])

	w = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"id": id, "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"id": "no-such-user", "password": "secret1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterDuplicatePhoneConflicts(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "Alice", "15550001111")

	w := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Bob", "phone": "15550001111", "password": "secret2",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "CONFLICT", body["error"].(map[string]any)["code"])
}

func TestMeRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.register(t, "Alice", "15550001111")

	w := srv.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "15550001111", body["phone"])
}

func TestConversationIsSharedAcrossDirections(t *testing.T) {
	srv := newTestServer(t)
	aliceID, aliceToken := srv.register(t, "Alice", "15550001111")
	bobID, bobToken := srv.register(t, "Bob", "15550002222")

	w := srv.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, gin.H{"peer_id": bobID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode(t, w)["conversation_id"].(string)

	w = srv.do(t, http.MethodPost, "/api/v1/conversations", bobToken, gin.H{"peer_id": aliceID})
	require.Equal(t, http.StatusOK, w.Code)
	second := decode(t, w)["conversation_id"].(string)

	assert.Equal(t, first, second)
}

func TestConversationWithUnknownPeer(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.register(t, "Alice", "15550001111")

	w := srv.do(t, http.MethodPost, "/api/v1/conversations", token, gin.H{"peer_id": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRestrictedToParticipants(t *testing.T) {
	srv := newTestServer(t)
	_, aliceToken := srv.register(t, "Alice", "15550001111")
	bobID, _ := srv.register(t, "Bob", "15550002222")
	_, malloryToken := srv.register(t, "Mallory", "15550003333")

	w := srv.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, gin.H{"peer_id": bobID})
	require.Equal(t, http.StatusOK, w.Code)
	convID := decode(t, w)["conversation_id"].(string)

	w = srv.do(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", malloryToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHistoryDecoratesSenderNames(t *testing.T) {
	srv := newTestServer(t)
	aliceID, aliceToken := srv.register(t, "Alice", "15550001111")
	bobID, _ := srv.register(t, "Bob", "15550002222")

	w := srv.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, gin.H{"peer_id": bobID})
	require.Equal(t, http.StatusOK, w.Code)
	convID := decode(t, w)["conversation_id"].(string)

	require.NoError(t, srv.messages.Append(context.Background(), &models.Message{
		ConversationID: convID, SenderID: aliceID, RecipientID: bobID, Text: "hello",
	}))

	w = srv.do(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	messages := decode(t, w)["messages"].([]any)
	require.Len(t, messages, 1)
	first := messages[0].(map[string]any)
	assert.Equal(t, "Alice", first["sender_name"])
	assert.Equal(t, "hello", first["text"])
	assert.Equal(t, float64(1), first["seq"])
}

func TestInboxListsLatestActivityFirst(t *testing.T) {
	srv := newTestServer(t)
	aliceID, aliceToken := srv.register(t, "Alice", "15550001111")
	bobID, _ := srv.register(t, "Bob", "15550002222")
	carolID, _ := srv.register(t, "Carol", "15550003333")

	w := srv.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, gin.H{"peer_id": bobID})
	require.Equal(t, http.StatusOK, w.Code)
	withBob := decode(t, w)["conversation_id"].(string)

	w = srv.do(t, http.MethodPost, "/api/v1/conversations", aliceToken, gin.H{"peer_id": carolID})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, srv.messages.Append(context.Background(), &models.Message{
		ConversationID: withBob, SenderID: bobID, RecipientID: aliceID, Text: "ping",
	}))

	w = srv.do(t, http.MethodGet, "/api/v1/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	entries := decode(t, w)["conversations"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, withBob, first["conversation_id"])
	assert.Equal(t, "Bob", first["peer_name"])
	assert.Equal(t, "ping", first["last_message_text"])
}
