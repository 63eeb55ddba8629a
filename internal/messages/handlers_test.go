package messages

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter() (*gin.Engine, *MemoryStore) {
	store := NewMemoryStore()
	handler := NewHandler(store)

	router := gin.New()
	handler.RegisterRoutes(router.Group("/v1"))
	return router, store
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateChannel(t *testing.T) {
	router, store := setupRouter()

	w := doJSON(router, "POST", "/v1/orgs/org_1/channels", map[string]string{
		"name":  "Prayer Requests",
		"topic": "Share what needs prayer",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var ch Channel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ch))
	assert.Equal(t, "org_1", ch.OrgID)
	assert.NotEmpty(t, ch.ID)

	dup := doJSON(router, "POST", "/v1/orgs/org_1/channels", map[string]string{"name": "prayer requests"})
	assert.Equal(t, http.StatusConflict, dup.Code)

	list, err := store.ListChannels(context.Background(), "org_1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPostMessage(t *testing.T) {
	router, store := setupRouter()
	seedChannel(t, store, "ch_1", "org_1")

	w := doJSON(router, "POST", "/v1/orgs/org_1/channels/ch_1/messages", map[string]string{
		"authorId": "mem_1",
		"body":     "  Welcome everyone!  ",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var m Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "Welcome everyone!", m.Body) // trimmed
	assert.Equal(t, "mem_1", m.AuthorID)
}

func TestPostMessage_Validation(t *testing.T) {
	router, store := setupRouter()
	seedChannel(t, store, "ch_1", "org_1")

	// Empty body after sanitization.
	w := doJSON(router, "POST", "/v1/orgs/org_1/channels/ch_1/messages", map[string]string{
		"authorId": "mem_1",
		"body":     "   ",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown channel.
	w = doJSON(router, "POST", "/v1/orgs/org_1/channels/ch_missing/messages", map[string]string{
		"authorId": "mem_1",
		"body":     "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Over-long body is capped, not rejected.
	w = doJSON(router, "POST", "/v1/orgs/org_1/channels/ch_1/messages", map[string]string{
		"authorId": "mem_1",
		"body":     strings.Repeat("a", 5000),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var m Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Len(t, m.Body, 4000)
}

func TestListMessages_Pagination(t *testing.T) {
	router, store := setupRouter()
	seedChannel(t, store, "ch_1", "org_1")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateMessage(context.Background(), &Message{
			ID:        "msg_" + string(rune('a'+i)),
			ChannelID: "ch_1",
			OrgID:     "org_1",
			AuthorID:  "mem_1",
			Body:      "m",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w := doJSON(router, "GET", "/v1/orgs/org_1/channels/ch_1/messages?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages   []Message `json:"messages"`
		NextCursor string    `json:"nextCursor"`
		HasMore    bool      `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "msg_c", resp.Messages[0].ID)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextCursor)

	w = doJSON(router, "GET", "/v1/orgs/org_1/channels/ch_1/messages?limit=2&cursor="+resp.NextCursor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "msg_a", resp.Messages[0].ID)
	assert.False(t, resp.HasMore)
}

func TestListMessages_BadCursor(t *testing.T) {
	router, store := setupRouter()
	seedChannel(t, store, "ch_1", "org_1")

	// Valid base64 but not a cursor payload.
	w := doJSON(router, "GET", "/v1/orgs/org_1/channels/ch_1/messages?cursor=bm9waXBl", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditMessage_AuthorOnly(t *testing.T) {
	router, store := setupRouter()
	seedChannel(t, store, "ch_1", "org_1")
	require.NoError(t, store.CreateMessage(context.Background(), &Message{
		ID: "msg_1", ChannelID: "ch_1", OrgID: "org_1", AuthorID: "mem_1",
		Body: "first draft", CreatedAt: time.Now(),
	}))

	// Someone else may not edit.
	w := doJSON(router, "PATCH", "/v1/orgs/org_1/channels/ch_1/messages/msg_1", map[string]string{
		"authorId": "mem_2",
		"body":     "hijacked",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The author may.
	w = doJSON(router, "PATCH", "/v1/orgs/org_1/channels/ch_1/messages/msg_1", map[string]string{
		"authorId": "mem_1",
		"body":     "second draft",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var m Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "second draft", m.Body)
	require.NotNil(t, m.EditedAt)
}

func TestDeleteMessage(t *testing.T) {
	router, store := setupRouter()
	seedChannel(t, store, "ch_1", "org_1")
	require.NoError(t, store.CreateMessage(context.Background(), &Message{
		ID: "msg_1", ChannelID: "ch_1", OrgID: "org_1", AuthorID: "mem_1",
		Body: "bye", CreatedAt: time.Now(),
	}))

	w := doJSON(router, "DELETE", "/v1/orgs/org_1/channels/ch_1/messages/msg_1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, "DELETE", "/v1/orgs/org_1/channels/ch_1/messages/msg_1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
