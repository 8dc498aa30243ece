package services

import (
	"context"
	"strings"
	"testing"

	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTweetService_CreateValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.mustRegister(t, "alice")

	_, err := env.tweets.CreateTweet(ctx, alice.ID, "   ")
	requireKind(t, err, ErrValidation)

	_, err = env.tweets.CreateTweet(ctx, alice.ID, strings.Repeat("a", 281))
	requireKind(t, err, ErrValidation)

	tweet, err := env.tweets.CreateTweet(ctx, alice.ID, strings.Repeat("a", 280))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, tweet.AuthorID)
	assert.Equal(t, "alice", tweet.Author.Username)
	assert.False(t, tweet.CreatedAt.IsZero())
}

func TestTweetService_FollowingFeed(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.mustRegister(t, "alice")
	bob := env.mustRegister(t, "bob")
	carol := env.mustRegister(t, "carol")

	t.Run("empty when following nobody", func(t *testing.T) {
		env.mustTweet(t, bob, "bob first")
		feed, err := env.tweets.ListFollowingFeed(ctx, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, feed)
	})

	t.Run("only followed authors newest first", func(t *testing.T) {
		_, _, err := env.users.ToggleFollow(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		env.mustTweet(t, carol, "carol is not followed")
		env.mustTweet(t, alice, "alice own tweet")
		latest := env.mustTweet(t, bob, "bob second")

		feed, err := env.tweets.ListFollowingFeed(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, feed, 2)
		assert.Equal(t, latest.ID, feed[0].ID)
		for _, tw := range feed {
			assert.Equal(t, bob.ID, tw.AuthorID)
			assert.Equal(t, "bob", tw.Author.Username)
		}
	})
}

func TestTweetService_ListTweets(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.mustRegister(t, "alice")
	first := env.mustTweet(t, alice, "one")
	env.mustTweet(t, alice, "two")
	third := env.mustTweet(t, alice, "three")

	all, err := env.tweets.ListTweets(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, first.ID, all[2].ID)

	page, err := env.tweets.ListTweets(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestTweetService_LikeUnlike(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.mustRegister(t, "alice")
	bob := env.mustRegister(t, "bob")
	tweet := env.mustTweet(t, bob, "like me")

	_, _, err := env.tweets.UnlikeTweet(ctx, alice.ID, tweet.ID)
	requireKind(t, err, ErrBadRequest)

	_, count, err := env.tweets.LikeTweet(ctx, alice.ID, tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, _, err = env.tweets.LikeTweet(ctx, alice.ID, tweet.ID)
	requireKind(t, err, ErrBadRequest)

	_, count, err = env.tweets.LikeTweet(ctx, bob.ID, tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, count, err = env.tweets.UnlikeTweet(ctx, alice.ID, tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, _, err = env.tweets.LikeTweet(ctx, alice.ID, 9999)
	requireKind(t, err, ErrNotFound)
	_, _, err = env.tweets.UnlikeTweet(ctx, alice.ID, 9999)
	requireKind(t, err, ErrNotFound)
}

func TestTweetService_UpdateAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.mustRegister(t, "alice")
	bob := env.mustRegister(t, "bob")
	tweet := env.mustTweet(t, alice, "original")
	_, _, err := env.tweets.LikeTweet(ctx, bob.ID, tweet.ID)
	require.NoError(t, err)

	t.Run("update by non-author forbidden", func(t *testing.T) {
		_, err := env.tweets.UpdateTweet(ctx, bob.ID, tweet.ID, "hijacked")
		requireKind(t, err, ErrForbidden)
	})

	t.Run("update by author", func(t *testing.T) {
		updated, err := env.tweets.UpdateTweet(ctx, alice.ID, tweet.ID, "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Content)
		assert.Equal(t, alice.ID, updated.AuthorID)
	})

	t.Run("delete by non-author keeps tweet", func(t *testing.T) {
		err := env.tweets.DeleteTweet(ctx, bob.ID, tweet.ID)
		requireKind(t, err, ErrForbidden)

		_, err = env.tweets.GetTweet(ctx, tweet.ID)
		assert.NoError(t, err)
	})

	t.Run("delete by author removes tweet and likes", func(t *testing.T) {
		require.NoError(t, env.tweets.DeleteTweet(ctx, alice.ID, tweet.ID))

		_, err := env.tweets.GetTweet(ctx, tweet.ID)
		requireKind(t, err, ErrNotFound)

		var likes int64
		require.NoError(t, env.db.Model(&models.Like{}).Where("tweet_id = ?", tweet.ID).Count(&likes).Error)
		assert.Zero(t, likes)
	})

	t.Run("delete missing", func(t *testing.T) {
		err := env.tweets.DeleteTweet(ctx, alice.ID, tweet.ID)
		requireKind(t, err, ErrNotFound)
	})
}
