package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/isdelr/tweeter-be/internal/database"
	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db     *gorm.DB
	events *EventService
	users  *UserService
	tweets *TweetService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	events := NewEventService(db, nil, zerolog.Nop())
	t.Cleanup(func() {
		events.Wait()
		database.Close(db)
	})

	return &testEnv{
		db:     db,
		events: events,
		users:  NewUserService(db, events),
		tweets: NewTweetService(db, events),
	}
}

func (e *testEnv) mustRegister(t *testing.T, username string) models.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), RegisterInput{
		Username:        username,
		Email:           username + "@x.com",
		Password:        "pw123",
		ConfirmPassword: "pw123",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) mustTweet(t *testing.T, author models.User, content string) models.Tweet {
	t.Helper()
	tweet, err := e.tweets.CreateTweet(context.Background(), author.ID, content)
	require.NoError(t, err)
	return tweet
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
