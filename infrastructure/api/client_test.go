package api

import (
	"chat-client/auth"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/", time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestClient_Login_Returns_Session(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if body["email"] != "alice@example.com" || r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"token":"t-1","user":{"id":"u1","username":"alice"}}`))
	})

	session, err := client.Login(context.Background(), auth.LoginRequest{Email: "alice@example.com", Password: "secret"})

	req.NoError(err)
	req.Equal("t-1", session.Token)
	req.Equal(domain.Identity{ID: "u1", Username: "alice"}, session.User)
}

func TestClient_Login_Rejected_Carries_Server_Message(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"msg":"Invalid credentials"}`))
	})

	_, err := client.Login(context.Background(), auth.LoginRequest{Email: "alice@example.com", Password: "bad"})

	req.ErrorIs(err, errors.ErrAuth)
	req.Contains(err.Error(), "Invalid credentials")
}

func TestClient_Register_Without_User_Is_Rejected(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"t-1"}`))
	})

	_, err := client.Register(context.Background(), auth.RegisterRequest{Username: "alice"})

	req.ErrorIs(err, errors.ErrAuth)
}

func TestClient_ListUsers_Sends_Filter_And_Token(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("onlineOnly") != "true" || r.URL.Query().Get("search") != "bo" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[{"_id":"u2","username":"bob","online":true}]}`))
	})

	users, err := client.ListUsers(context.Background(), "t-1", domain.Filter{OnlineOnly: true, Search: "bo"})

	req.NoError(err)
	req.Len(users, 1)
	req.Equal("u2", users[0].ID)
	req.True(users[0].Online)
}

func TestClient_Fetch_Failures_Are_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"Unsuccessful envelope", http.StatusOK, `{"success":false,"msg":"nope"}`, errors.ErrFetch},
		{"Server error", http.StatusInternalServerError, `{"message":"boom"}`, errors.ErrFetch},
		{"Garbage", http.StatusOK, `not json`, errors.ErrFetch},
		{"Unauthorized", http.StatusUnauthorized, ``, errors.ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.ListUsers(context.Background(), "t-1", domain.Filter{})

			req.ErrorIs(err, errors.ErrFetch)
			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestClient_History_Uses_Default_Page(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/messages/u2" || q.Get("isGroup") != "false" || q.Get("page") != "1" || q.Get("limit") != "50" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"_id":"m2","sender":"u1","receiver":"u2","content":"second","readBy":["u2"]},
			{"_id":"m1","sender":{"_id":"u2","username":"bob"},"receiver":"u1","content":"first"}
		]}`))
	})

	messages, err := client.History(context.Background(), "t-1", "u2", domain.Page{})

	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("second", messages[0].Content)
	req.Equal(domain.ReadSet{"u2"}, messages[0].ReadBy)
	req.Equal("bob", messages[1].Sender.Username)
}

func TestClient_MarkRead_Posts_Chat(t *testing.T) {
	req := require.New(t)
	var got event.ChatRef
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.MarkRead(context.Background(), "t-1", event.DirectChat("u2"))

	req.NoError(err)
	req.Equal(event.ChatRef{ChatID: "u2", IsGroup: false}, got)
}
