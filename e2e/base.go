package e2e

import (
	"chat-client/domain"
	"chat-client/infrastructure/api"
	"chat-client/infrastructure/realtime"
	"chat-client/repositories"
	"chat-client/runtime"
	"chat-client/services"
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseChatSuite struct {
	suite.Suite
	Config Config
	Log    *slog.Logger
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.Log = logs.GetLoggerFromString(s.Config.LogLevel)
}

// Step prints a colorized header for a scenario step in the test logs
func (s *BaseChatSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Session is one chat client wired to a backend, as cmd/chat builds it.
type Session struct {
	Client    *runtime.Client
	Auth      *services.AuthService
	Transport *realtime.Transport
	cancel    context.CancelFunc
}

func (s *BaseChatSuite) NewSession(backend *Backend, db *badger.DB) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	httpAPI := api.NewClient(backend.APIURL(), s.Config.Timeout, s.Log)
	transport := realtime.NewTransport(realtime.Config{
		URL:              backend.WSURL(),
		HandshakeTimeout: s.Config.Timeout,
		OutboundBuffer:   16,
		InboundBuffer:    64,
		OutboundRate:     s.Config.OutboundRate,
		OutboundBurst:    4,
	}, s.Log)
	authService := services.NewAuthService(httpAPI, repositories.NewSessionRepository(db, s.Log), transport, s.Log, s.Config.Timeout)
	client := runtime.NewClient(
		ctx,
		authService,
		services.NewDirectoryService(httpAPI, transport, s.Log, s.Config.Timeout),
		services.NewConversationService(httpAPI, transport, s.Log, s.Config.Timeout, domain.DefaultPage),
		transport,
		s.Log,
	)
	return &Session{Client: client, Auth: authService, Transport: transport, cancel: cancel}
}

func (s *Session) Close() {
	s.Transport.Disconnect()
	s.cancel()
}

// Settle runs cmd and feeds every resulting message back to the client.
// Transport events are left to Await.
func (s *Session) Settle(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, sub := range msg {
			s.Settle(sub)
		}
	default:
		s.Settle(s.Client.Update(msg))
	}
}

// Await delivers transport events to the client until cond holds.
func (s *BaseChatSuite) Await(session *Session, what string, cond func(runtime.View) bool) {
	deadline := time.After(s.Config.Timeout)
	for !cond(session.Client.View()) {
		select {
		case in := <-session.Transport.Events():
			session.Client.Update(runtime.InboundMsg(in))
		case <-deadline:
			s.FailNow("timed out waiting for " + what)
		}
	}
}
