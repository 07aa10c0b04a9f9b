package repositories

import (
	"chat-client/domain"
	"chat-client/errors"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSessionRepository_Save_Then_Load(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	session := domain.Session{
		Token: uuid.NewString(),
		User:  domain.Identity{ID: uuid.NewString(), Username: "alice"},
	}

	req.NoError(repository.Save(session))
	loaded, err := repository.Load()

	req.NoError(err)
	req.Equal(session, loaded)
}

func TestSessionRepository_Empty_Store_Is_Unauthenticated(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))

	_, err := repository.Load()

	req.ErrorIs(err, errors.ErrInvalidSession)
}

func TestSessionRepository_Missing_User_Is_Unauthenticated(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repository := NewSessionRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given only a token was stored
	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set(tokenKey, []byte("t-1"))
	}))

	_, err := repository.Load()

	req.ErrorIs(err, errors.ErrInvalidSession)
}

func TestSessionRepository_Malformed_User_Is_Invalid(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repository := NewSessionRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))

	tests := []struct {
		name string
		user string
	}{
		{"Not json", `{broken`},
		{"No id", `{"username":"alice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req.NoError(db.Update(func(txn *badger.Txn) error {
				if err := txn.Set(tokenKey, []byte("t-1")); err != nil {
					return err
				}
				return txn.Set(userKey, []byte(tt.user))
			}))

			_, err := repository.Load()

			require.ErrorIs(t, err, errors.ErrInvalidSession)
		})
	}
}

func TestSessionRepository_Clear(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))

	// Clearing an empty store is fine
	req.NoError(repository.Clear())

	req.NoError(repository.Save(domain.Session{Token: "t-1", User: domain.Identity{ID: "u1"}}))
	req.NoError(repository.Clear())

	_, err := repository.Load()
	req.ErrorIs(err, errors.ErrInvalidSession)
}

func TestSessionRepository_Refuses_Incomplete_Session(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))

	req.ErrorIs(repository.Save(domain.Session{Token: "t-1"}), errors.ErrInvalidSession)
}
