package services

import (
	"chat-client/auth"
	"chat-client/contract"
	"chat-client/domain"
	"chat-client/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type IAuthService interface {
	Login(ctx context.Context, req auth.LoginRequest) tea.Cmd
	Register(ctx context.Context, req auth.RegisterRequest) tea.Cmd
	Restore() tea.Cmd
	Connect(ctx context.Context, session domain.Session) tea.Cmd
	Logout() error
}

// AuthService opens and closes the session of the local user.
// A session is persisted once the server accepted the credentials.
type AuthService struct {
	api        contract.IAPI
	repository contract.ISessionRepository
	transport  contract.ITransport
	log        *slog.Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewAuthService(
	api contract.IAPI,
	repository contract.ISessionRepository,
	transport contract.ITransport,
	log *slog.Logger,
	timeout time.Duration,
) *AuthService {
	return &AuthService{
		api:        api,
		repository: repository,
		transport:  transport,
		log:        log,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Login validates the credentials before any request is issued.
func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) tea.Cmd {
	return func() tea.Msg {
		if err := auth.ValidateLogin(req); err != nil {
			return Authenticated{Err: err}
		}
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		session, err := s.api.Login(ctx, req)
		return s.open(session, err)
	}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) tea.Cmd {
	return func() tea.Msg {
		if err := auth.ValidateRegister(req); err != nil {
			return Authenticated{Err: err}
		}
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		session, err := s.api.Register(ctx, req)
		return s.open(session, err)
	}
}

func (s *AuthService) open(session domain.Session, err error) Authenticated {
	if err != nil {
		s.log.Info("Authentication rejected", "error", err)
		return Authenticated{Err: err}
	}
	if err := s.repository.Save(session); err != nil {
		// The session still works for this run.
		s.log.Warn("Session not persisted", "user", session.User.ID, "error", err)
	}
	s.log.Info("Authenticated", "user", session.User.ID)
	return Authenticated{Session: session}
}

// Restore reads the persisted session.
// Anything unusable is wiped and reported as ErrInvalidSession.
func (s *AuthService) Restore() tea.Cmd {
	return func() tea.Msg {
		session, err := s.repository.Load()
		if err == nil && auth.IsExpired(session.Token, s.now()) {
			err = fmt.Errorf("%w: token expired", errors.ErrInvalidSession)
		}
		if err != nil {
			if clearErr := s.repository.Clear(); clearErr != nil {
				s.log.Warn("Could not clear stored session", "error", clearErr)
			}
			s.log.Debug("No session restored", "error", err)
			return Authenticated{Restored: true, Err: err}
		}
		s.log.Info("Session restored", "user", session.User.ID)
		return Authenticated{Session: session, Restored: true}
	}
}

// Connect opens the transport of the session.
func (s *AuthService) Connect(ctx context.Context, session domain.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		err := s.transport.Connect(ctx, session.Token)
		if err != nil {
			s.log.Warn("Transport not connected", "error", err)
		}
		return Connected{Token: session.Token, Generation: s.transport.Generation(), Err: err}
	}
}

// Logout wipes the stored session and closes the transport.
func (s *AuthService) Logout() error {
	s.transport.Disconnect()
	if err := s.repository.Clear(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidSession, err)
	}
	s.log.Info("Logged out")
	return nil
}
