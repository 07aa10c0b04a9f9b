package repositories

import (
	"chat-client/domain"
	"chat-client/errors"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

var (
	tokenKey = []byte("session:token")
	userKey  = []byte("session:user")
)

// SessionRepository persists the session of the local user across runs.
// Token and user are stored under two keys; both must be present to restore.
type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) SessionRepository {
	return SessionRepository{db: db, log: log}
}

func (s SessionRepository) Save(session domain.Session) error {
	if !session.Valid() {
		return fmt.Errorf("%w: refusing to persist an incomplete session", errors.ErrInvalidSession)
	}
	user, err := json.Marshal(session.User)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(tokenKey, []byte(session.Token)); err != nil {
			return err
		}
		return txn.Set(userKey, user)
	})
}

// Load returns the persisted session.
// A missing key or an unreadable user record yields ErrInvalidSession.
func (s SessionRepository) Load() (domain.Session, error) {
	var token, user []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if token, err = valueOf(txn, tokenKey); err != nil {
			return err
		}
		user, err = valueOf(txn, userKey)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Session{}, fmt.Errorf("%w: no stored session", errors.ErrInvalidSession)
	}
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{Token: string(token)}
	if err := json.Unmarshal(user, &session.User); err != nil {
		s.log.Warn("Stored user is unreadable", "error", err)
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidSession, err)
	}
	if !session.Valid() {
		return domain.Session{}, fmt.Errorf("%w: stored session is incomplete", errors.ErrInvalidSession)
	}
	return session, nil
}

// Clear removes both keys. Clearing an empty store is not an error.
func (s SessionRepository) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(tokenKey); err != nil {
			return err
		}
		return txn.Delete(userKey)
	})
}

func valueOf(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
