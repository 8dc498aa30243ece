package handlers

import (
	"net/http"

	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/isdelr/tweeter-be/internal/serializer"
	"github.com/isdelr/tweeter-be/internal/services"
	"github.com/isdelr/tweeter-be/internal/websocket"
	"github.com/rs/zerolog"
)

// TweetHandler handles HTTP requests for tweets and likes.
type TweetHandler struct {
	tweets     services.TweetServiceProvider
	users      services.UserServiceProvider
	serializer *serializer.Serializer
	notifier   Notifier
}

// NewTweetHandler creates a new TweetHandler.
func NewTweetHandler(tweets services.TweetServiceProvider, users services.UserServiceProvider, s *serializer.Serializer, notifier Notifier) *TweetHandler {
	return &TweetHandler{tweets: tweets, users: users, serializer: s, notifier: notifier}
}

// TweetPayload defines the structure for create and update requests.
type TweetPayload struct {
	Content string `json:"content"`
}

// LikeResponse reports the like count after a like or unlike.
type LikeResponse struct {
	Message    string `json:"message"`
	LikesCount int64  `json:"likes_count"`
}

// LikeNotification is pushed to a tweet's author when someone likes it.
type LikeNotification struct {
	TweetID    uint               `json:"tweet_id"`
	User       serializer.UserRef `json:"user"`
	LikesCount int64              `json:"likes_count"`
}

// List returns all tweets, newest first. Supports ?limit= and ?offset=.
func (h *TweetHandler) List(w http.ResponseWriter, r *http.Request) {
	tweets, err := h.tweets.ListTweets(r.Context(), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTweets(w, r, tweets)
}

// Following returns tweets by the users the caller follows.
func (h *TweetHandler) Following(w http.ResponseWriter, r *http.Request) {
	tweets, err := h.tweets.ListFollowingFeed(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTweets(w, r, tweets)
}

// Create posts a new tweet and pushes it to the author's connected followers.
func (h *TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload TweetPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	me := callerID(r)
	tweet, err := h.tweets.CreateTweet(ctx, me, payload.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	view, err := h.serializer.Tweet(ctx, me, tweet)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if followers, err := h.users.FollowerIDs(ctx, me); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("tweet_id", tweet.ID).Msg("Failed to load followers for notification")
	} else {
		pushed := view
		pushed.IsLiked = false
		pushed.Author.IsFollowing = true
		h.notifier.Notify(followers, websocket.ActionTweetCreated, pushed)
	}

	writeJSON(w, http.StatusCreated, view)
}

// Get returns a single tweet.
func (h *TweetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Tweet not found")
		return
	}

	tweet, err := h.tweets.GetTweet(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTweet(w, r, http.StatusOK, tweet)
}

// Update edits the content of the caller's own tweet.
func (h *TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Tweet not found")
		return
	}
	var payload TweetPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tweet, err := h.tweets.UpdateTweet(r.Context(), callerID(r), id, payload.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTweet(w, r, http.StatusOK, tweet)
}

// Delete removes the caller's own tweet.
func (h *TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Tweet not found")
		return
	}

	if err := h.tweets.DeleteTweet(r.Context(), callerID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tweet deleted successfully"})
}

// Like adds the caller's like to a tweet.
func (h *TweetHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Tweet not found")
		return
	}
	me := callerID(r)

	tweet, count, err := h.tweets.LikeTweet(r.Context(), me, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if tweet.AuthorID != me {
		if liker, err := h.users.GetUserByID(r.Context(), me); err == nil {
			h.notifier.Notify([]uint{tweet.AuthorID}, websocket.ActionTweetLiked, LikeNotification{
				TweetID:    tweet.ID,
				User:       serializer.UserRef{ID: liker.ID, Username: liker.Username},
				LikesCount: count,
			})
		}
	}
	writeJSON(w, http.StatusOK, LikeResponse{Message: "Tweet liked", LikesCount: count})
}

// Unlike removes the caller's like from a tweet.
func (h *TweetHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Tweet not found")
		return
	}

	_, count, err := h.tweets.UnlikeTweet(r.Context(), callerID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{Message: "Tweet unliked", LikesCount: count})
}

func (h *TweetHandler) writeTweets(w http.ResponseWriter, r *http.Request, tweets []models.Tweet) {
	views, err := h.serializer.Tweets(r.Context(), callerID(r), tweets)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *TweetHandler) writeTweet(w http.ResponseWriter, r *http.Request, status int, tweet models.Tweet) {
	view, err := h.serializer.Tweet(r.Context(), callerID(r), tweet)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, view)
}
