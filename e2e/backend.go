package e2e

import (
	"chat-client/domain"
	"chat-client/domain/event"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type account struct {
	domain.Identity
	Email    string
	Password string
	Online   bool
}

type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) send(name event.Name, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = p.conn.WriteJSON(event.Envelope{ID: uuid.NewString(), Event: name, Data: data})
}

// Backend is an in-process chat server speaking the REST and real-time protocols.
// Users other than the one under test are simulated through its methods.
type Backend struct {
	mu       sync.Mutex
	accounts map[domain.UserID]*account
	order    []domain.UserID
	tokens   map[string]domain.UserID
	messages []domain.Message
	peers    map[domain.UserID]*peer
	upgrader websocket.Upgrader
	server   *httptest.Server
}

func NewBackend() *Backend {
	b := &Backend{
		accounts: make(map[domain.UserID]*account),
		tokens:   make(map[string]domain.UserID),
		peers:    make(map[domain.UserID]*peer),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("POST /auth/register", b.register)
	mux.HandleFunc("GET /users", b.authorized(b.users))
	mux.HandleFunc("GET /messages/{id}", b.authorized(b.history))
	mux.HandleFunc("POST /messages/mark-read", b.authorized(b.markReadHandler))
	mux.HandleFunc("GET /ws", b.socket)
	b.server = httptest.NewServer(mux)
	return b
}

func (b *Backend) APIURL() string {
	return b.server.URL
}

func (b *Backend) WSURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws"
}

func (b *Backend) Close() {
	b.mu.Lock()
	for _, p := range b.peers {
		_ = p.conn.Close()
	}
	b.mu.Unlock()
	b.server.Close()
}

func (b *Backend) AddUser(id domain.UserID, username, email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[id] = &account{Identity: domain.Identity{ID: id, Username: username}, Email: email, Password: password}
	b.order = append(b.order, id)
}

// Say stores a message as if from had sent it, and pushes it to both ends.
func (b *Backend) Say(from, to domain.UserID, content string) domain.Message {
	b.mu.Lock()
	msg := domain.Message{
		ID:        "m" + strconv.Itoa(len(b.messages)+1),
		Sender:    b.accounts[from].Identity,
		Receiver:  b.accounts[to].Identity,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	b.messages = append(b.messages, msg)
	receivers := lo.Uniq([]domain.UserID{from, to})
	peers := lo.FilterMap(receivers, func(id domain.UserID, _ int) (*peer, bool) {
		p, ok := b.peers[id]
		return p, ok
	})
	b.mu.Unlock()

	for _, p := range peers {
		p.send(event.ReceiveMessage, msg)
	}
	return msg
}

// SetOnline changes the presence of a simulated user and tells everybody else.
func (b *Backend) SetOnline(id domain.UserID, online bool) {
	b.mu.Lock()
	b.accounts[id].Online = online
	b.mu.Unlock()
	b.broadcastPresence(id, online)
}

// Read marks what reader received from chat as read and notifies the sender.
func (b *Backend) Read(reader, chat domain.UserID) int {
	b.mu.Lock()
	count := 0
	for i := range b.messages {
		m := &b.messages[i]
		if m.Sender.Is(chat) && m.Receiver.Is(reader) && m.ReadBy.Add(reader) {
			count++
		}
	}
	sender := b.peers[chat]
	b.mu.Unlock()

	if count > 0 && sender != nil {
		sender.send(event.MessagesRead, event.ReadReceipt{ChatID: reader, UserID: reader, Count: count})
	}
	return count
}

// Drop closes the real-time connection of id as a network failure would.
func (b *Backend) Drop(id domain.UserID) {
	b.mu.Lock()
	p := b.peers[id]
	b.mu.Unlock()
	if p != nil {
		_ = p.conn.Close()
	}
}

func (b *Backend) Received(to domain.UserID) []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Filter(b.messages, func(m domain.Message, _ int) bool { return m.Receiver.Is(to) })
}

func (b *Backend) broadcastPresence(id domain.UserID, online bool) {
	name := lo.Ternary(online, event.UserOnline, event.UserOffline)
	b.mu.Lock()
	peers := lo.FilterMap(lo.Keys(b.peers), func(other domain.UserID, _ int) (*peer, bool) {
		return b.peers[other], other != id
	})
	b.mu.Unlock()
	for _, p := range peers {
		p.send(name, event.Presence{UserID: id})
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "bad request"})
		return
	}
	b.mu.Lock()
	found, ok := lo.Find(lo.Values(b.accounts), func(a *account) bool {
		return a.Email == req.Email && a.Password == req.Password
	})
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Invalid credentials"})
		return
	}
	b.issue(w, found.Identity)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"msg": "bad request"})
		return
	}
	b.mu.Lock()
	taken := lo.SomeBy(lo.Values(b.accounts), func(a *account) bool { return a.Email == req.Email })
	b.mu.Unlock()
	if taken {
		writeJSON(w, http.StatusConflict, map[string]any{"msg": "User already exists"})
		return
	}
	id := uuid.NewString()
	b.AddUser(id, req.Username, req.Email, req.Password)
	b.issue(w, domain.Identity{ID: id, Username: req.Username})
}

func (b *Backend) issue(w http.ResponseWriter, user domain.Identity) {
	token := "tok-" + uuid.NewString()
	b.mu.Lock()
	b.tokens[token] = user.ID
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (b *Backend) caller(r *http.Request) (domain.UserID, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tokens[token]
	return id, ok
}

func (b *Backend) authorized(next func(http.ResponseWriter, *http.Request, domain.UserID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := b.caller(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Unauthorized"})
			return
		}
		next(w, r, id)
	}
}

func (b *Backend) users(w http.ResponseWriter, r *http.Request, _ domain.UserID) {
	onlineOnly := r.URL.Query().Get("onlineOnly") == "true"
	search := strings.ToLower(r.URL.Query().Get("search"))
	b.mu.Lock()
	users := lo.FilterMap(b.order, func(id domain.UserID, _ int) (domain.Counterpart, bool) {
		a := b.accounts[id]
		keep := (!onlineOnly || a.Online) && strings.Contains(strings.ToLower(a.Username), search)
		return domain.Counterpart{Identity: a.Identity, Online: a.Online}, keep
	})
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": users})
}

func (b *Backend) history(w http.ResponseWriter, r *http.Request, caller domain.UserID) {
	other := r.PathValue("id")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, limit = max(page, 1), max(limit, 1)

	b.mu.Lock()
	conversation := lo.Filter(b.messages, func(m domain.Message, _ int) bool {
		return m.Involves(caller) && m.Involves(other)
	})
	conversation = lo.Map(conversation, func(m domain.Message, _ int) domain.Message { return m.Clone() })
	b.mu.Unlock()

	slices.Reverse(conversation)
	start := min((page-1)*limit, len(conversation))
	end := min(start+limit, len(conversation))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": conversation[start:end]})
}

func (b *Backend) markReadHandler(w http.ResponseWriter, r *http.Request, caller domain.UserID) {
	var ref event.ChatRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "msg": "bad request"})
		return
	}
	count := b.Read(caller, ref.ChatID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]int{"count": count}})
}

func (b *Backend) socket(w http.ResponseWriter, r *http.Request) {
	id, ok := b.caller(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}
	b.mu.Lock()
	b.peers[id] = p
	b.accounts[id].Online = true
	b.mu.Unlock()
	b.broadcastPresence(id, true)

	go b.serve(id, p)
}

func (b *Backend) serve(id domain.UserID, p *peer) {
	defer func() {
		_ = p.conn.Close()
		b.mu.Lock()
		current := b.peers[id] == p
		if current {
			delete(b.peers, id)
			b.accounts[id].Online = false
		}
		b.mu.Unlock()
		if current {
			b.broadcastPresence(id, false)
		}
	}()
	for {
		var env event.Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			return
		}
		switch env.Event {
		case event.SendMessage:
			var out event.OutgoingMessage
			if json.Unmarshal(env.Data, &out) != nil || out.ReceiverID == "" {
				continue
			}
			b.mu.Lock()
			_, known := b.accounts[out.ReceiverID]
			b.mu.Unlock()
			if known {
				b.Say(id, out.ReceiverID, out.Content)
			}
		case event.MarkMessagesRead:
			var ref event.ChatRef
			if json.Unmarshal(env.Data, &ref) == nil {
				b.Read(id, ref.ChatID)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
