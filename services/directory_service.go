package services

import (
	"chat-client/contract"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/projection"
	"context"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type IDirectoryService interface {
	Start(session domain.Session)
	Load(ctx context.Context, filter domain.Filter) tea.Cmd
	Search(ctx context.Context, text string) tea.Cmd
	ToggleOnlineOnly(ctx context.Context) tea.Cmd
	Apply(msg DirectoryLoaded) bool
	Find(id domain.UserID) (domain.Counterpart, bool)
	Snapshot() DirectoryView
	Stop()
}

// DirectoryView is what presentations read of the directory.
type DirectoryView struct {
	Counterparts []domain.Counterpart
	OnlineCount  int
	Filter       domain.Filter
	Loading      bool
	Err          error
}

// DirectoryService keeps the list of counterparts and their presence.
// The fetch sets the baseline, presence events keep it live.
// Every method must be called from the event loop.
type DirectoryService struct {
	api        contract.IAPI
	transport  contract.ITransport
	log        *slog.Logger
	timeout    time.Duration
	session    domain.Session
	directory  *projection.Directory
	filter     domain.Filter
	generation uint64
	loading    bool
	err        error
	subs       contract.Subscriptions
}

func NewDirectoryService(api contract.IAPI, transport contract.ITransport, log *slog.Logger, timeout time.Duration) *DirectoryService {
	return &DirectoryService{
		api:       api,
		transport: transport,
		log:       log,
		timeout:   timeout,
		directory: projection.NewDirectory(""),
	}
}

// Start binds the directory to a session and installs the presence handlers.
func (d *DirectoryService) Start(session domain.Session) {
	d.subs.Unsubscribe()
	d.session = session
	d.directory = projection.NewDirectory(session.User.ID)
	d.filter = domain.Filter{}
	d.loading = false
	d.err = nil
	d.subs.Add(
		d.transport.On(event.UserOnline, d.onPresence(true)),
		d.transport.On(event.UserOffline, d.onPresence(false)),
	)
}

func (d *DirectoryService) onPresence(online bool) event.Handler {
	return func(in event.Inbound) {
		presence, err := event.Decode[event.Presence](in)
		if err != nil {
			d.log.Warn("Ignoring presence event", "event", in.Name, "error", err)
			return
		}
		if d.directory.ApplyPresence(presence.UserID, online) {
			d.log.Debug("Presence changed", "user", presence.UserID, "online", online)
		}
	}
}

// Load issues a fetch. Only the result of the latest Load is applied.
func (d *DirectoryService) Load(ctx context.Context, filter domain.Filter) tea.Cmd {
	d.generation++
	d.filter = filter
	d.loading = true
	generation, token, api, timeout := d.generation, d.session.Token, d.api, d.timeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		users, err := api.ListUsers(ctx, token, filter)
		return DirectoryLoaded{Generation: generation, Filter: filter, Users: users, Err: err}
	}
}

// Search re-issues Load with text as the server side filter.
func (d *DirectoryService) Search(ctx context.Context, text string) tea.Cmd {
	filter := d.filter
	filter.Search = strings.TrimSpace(text)
	return d.Load(ctx, filter)
}

// ToggleOnlineOnly re-issues Load with the online only flag flipped.
func (d *DirectoryService) ToggleOnlineOnly(ctx context.Context) tea.Cmd {
	filter := d.filter
	filter.OnlineOnly = !filter.OnlineOnly
	return d.Load(ctx, filter)
}

// Apply installs a fetch result. A superseded result is discarded.
// A failed fetch keeps the previous list.
func (d *DirectoryService) Apply(msg DirectoryLoaded) bool {
	if msg.Generation != d.generation {
		d.log.Debug("Discarding superseded directory fetch", "generation", msg.Generation, "current", d.generation)
		return false
	}
	d.loading = false
	if msg.Err != nil {
		d.err = msg.Err
		d.log.Warn("Directory fetch failed", "error", msg.Err)
		return true
	}
	d.err = nil
	d.directory.Replace(msg.Users)
	d.log.Debug("Directory loaded", "count", d.directory.Len(), "online", d.directory.OnlineCount())
	return true
}

func (d *DirectoryService) Find(id domain.UserID) (domain.Counterpart, bool) {
	return d.directory.Find(id)
}

func (d *DirectoryService) Snapshot() DirectoryView {
	return DirectoryView{
		Counterparts: d.directory.Snapshot(),
		OnlineCount:  d.directory.OnlineCount(),
		Filter:       d.filter,
		Loading:      d.loading,
		Err:          d.err,
	}
}

// Stop releases the presence handlers and forgets the list.
// Pending fetches are invalidated.
func (d *DirectoryService) Stop() {
	d.subs.Unsubscribe()
	d.generation++
	d.session = domain.Session{}
	d.directory = projection.NewDirectory("")
	d.loading = false
	d.err = nil
}
