package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/isdelr/tweeter-be/internal/auth"
	"github.com/isdelr/tweeter-be/internal/database"
	"github.com/isdelr/tweeter-be/internal/media"
	"github.com/isdelr/tweeter-be/internal/serializer"
	"github.com/isdelr/tweeter-be/internal/services"
	"github.com/isdelr/tweeter-be/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	storage, err := media.NewStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)

	events := services.NewEventService(db, nil, zerolog.Nop())
	hub := websocket.NewHub(zerolog.Nop())
	go hub.Run()

	t.Cleanup(func() {
		hub.Stop()
		events.Wait()
		database.Close(db)
	})

	return NewRouter(Dependencies{
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{"http://localhost:3000"},
		MediaURL:       "/media/",
		Tokens:         auth.NewTokenManager("test-secret", 24*time.Hour, 7*24*time.Hour, auth.NewDBBlacklist(db)),
		Users:          services.NewUserService(db, events),
		Tweets:         services.NewTweetService(db, events),
		Events:         events,
		Serializer:     serializer.New(db, "/media/"),
		Media:          storage,
		Hub:            hub,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoErrorf(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

type session struct {
	ID      uint
	Access  string
	Refresh string
}

func registerAndLogin(t *testing.T, h http.Handler, username string) session {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"username": username, "email": username + "@x.com", "password": "pw123", "confirm_password": "pw123",
	})
	require.Equalf(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login/", "", map[string]string{"username": username, "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Access  string              `json:"access"`
		Refresh string              `json:"refresh"`
		User    serializer.UserView `json:"user"`
	}](t, rec)
	require.NotEmpty(t, resp.Access)
	require.NotEmpty(t, resp.Refresh)
	return session{ID: resp.User.ID, Access: resp.Access, Refresh: resp.Refresh}
}

func path(format string, id uint) string {
	return strings.Replace(format, "{id}", strconv.FormatUint(uint64(id), 10), 1)
}

func TestScenario_RegisterLoginFollow(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "pw123", "confirm_password": "pw123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	registered := decode[serializer.UserView](t, rec)
	assert.Equal(t, "alice", registered.Username)
	assert.Equal(t, "/media/profile_images/default.png", registered.ProfileImage)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login/", "", map[string]string{"username": "alice", "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[map[string]json.RawMessage](t, rec)
	assert.Contains(t, login, "access")
	assert.Contains(t, login, "refresh")
	assert.Contains(t, login, "user")

	var access string
	require.NoError(t, json.Unmarshal(login["access"], &access))

	bob := registerAndLogin(t, h, "bob")

	rec = doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow/", bob.ID), access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[map[string]any](t, rec)
	assert.Equal(t, "You are now following bob", first["message"])
	assert.Equal(t, true, first["following"])

	rec = doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow/", bob.ID), access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[map[string]any](t, rec)
	assert.Equal(t, "You unfollowed bob", second["message"])
	assert.Equal(t, false, second["following"])

	rec = doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow/", registered.ID), access, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow/", 9999), access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister_ValidationErrors(t *testing.T) {
	h := newTestRouter(t)
	registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "a", "confirm_password": "b",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Equal(t, "Passwords do not match", body.Fields["password"])
	assert.Contains(t, body.Fields, "username")
	assert.Contains(t, body.Fields, "email")

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@x.com", "password": "pw123"})
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUsers_ListAndDetail(t *testing.T) {
	h := newTestRouter(t)
	carol := registerAndLogin(t, h, "carol")
	alice := registerAndLogin(t, h, "alice")
	bob := registerAndLogin(t, h, "bob")

	rec := doJSON(t, h, http.MethodGet, "/api/users/list/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow", alice.ID), bob.Access, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow", bob.ID), carol.Access, nil).Code)

	rec = doJSON(t, h, http.MethodGet, "/api/users/list/", carol.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]serializer.UserView](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, int64(1), list[0].FollowersCount)
	assert.False(t, list[0].IsFollowing)
	assert.Equal(t, "bob", list[1].Username)
	assert.True(t, list[1].IsFollowing)

	rec = doJSON(t, h, http.MethodGet, "/api/user/detail/", bob.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[serializer.UserDetailView](t, rec)
	assert.Equal(t, "bob", detail.Username)
	assert.Equal(t, int64(1), detail.FollowersCount)
	assert.Equal(t, int64(1), detail.FollowingCount)
	assert.Equal(t, []serializer.UserRef{{ID: carol.ID, Username: "carol"}}, detail.Followers)
	assert.Equal(t, []serializer.UserRef{{ID: alice.ID, Username: "alice"}}, detail.Following)

	rec = doJSON(t, h, http.MethodGet, path("/api/users/{id}", alice.ID), bob.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[serializer.UserView](t, rec).IsFollowing)
}

func TestTweets_Lifecycle(t *testing.T) {
	h := newTestRouter(t)
	alice := registerAndLogin(t, h, "alice")
	bob := registerAndLogin(t, h, "bob")

	rec := doJSON(t, h, http.MethodPost, "/api/tweets/", bob.Access, map[string]string{"content": strings.Repeat("x", 281)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"content"`)

	rec = doJSON(t, h, http.MethodPost, "/api/tweets/", bob.Access, map[string]string{"content": "hello from bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	tweet := decode[serializer.TweetView](t, rec)
	assert.Equal(t, "bob", tweet.Author.Username)
	assert.Zero(t, tweet.LikesCount)

	t.Run("feed", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/tweets/following/", alice.Access, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]serializer.TweetView](t, rec))

		require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow", bob.ID), alice.Access, nil).Code)

		rec = doJSON(t, h, http.MethodGet, "/api/tweets/following", alice.Access, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		feed := decode[[]serializer.TweetView](t, rec)
		require.Len(t, feed, 1)
		assert.Equal(t, tweet.ID, feed[0].ID)
		assert.True(t, feed[0].Author.IsFollowing)
	})

	t.Run("like and unlike", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, path("/api/tweets/{id}/like/", tweet.ID), alice.Access, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decode[map[string]any](t, rec)["likes_count"])

		rec = doJSON(t, h, http.MethodPost, path("/api/tweets/{id}/like/", tweet.ID), alice.Access, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, h, http.MethodGet, "/api/tweets", alice.Access, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		all := decode[[]serializer.TweetView](t, rec)
		require.Len(t, all, 1)
		assert.True(t, all[0].IsLiked)
		assert.Equal(t, int64(1), all[0].LikesCount)

		rec = doJSON(t, h, http.MethodPost, path("/api/tweets/{id}/unlike/", tweet.ID), alice.Access, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = doJSON(t, h, http.MethodPost, path("/api/tweets/{id}/unlike/", tweet.ID), alice.Access, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, h, http.MethodPost, path("/api/tweets/{id}/like/", 9999), alice.Access, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPatch, path("/api/tweets/{id}/", tweet.ID), alice.Access, map[string]string{"content": "mine now"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = doJSON(t, h, http.MethodPut, path("/api/tweets/{id}/", tweet.ID), bob.Access, map[string]string{"content": "edited"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "edited", decode[serializer.TweetView](t, rec).Content)
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, path("/api/tweets/{id}/delete/", tweet.ID), alice.Access, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = doJSON(t, h, http.MethodGet, path("/api/tweets/{id}", tweet.ID), alice.Access, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, h, http.MethodDelete, path("/api/tweets/{id}/delete/", tweet.ID), bob.Access, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Tweet deleted successfully", decode[map[string]string](t, rec)["message"])

		rec = doJSON(t, h, http.MethodGet, path("/api/tweets/{id}", tweet.ID), alice.Access, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuth_LogoutAndRefresh(t *testing.T) {
	h := newTestRouter(t)
	alice := registerAndLogin(t, h, "alice")
	bob := registerAndLogin(t, h, "bob")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/token/refresh/", "", map[string]string{"refresh": alice.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[auth.TokenPair](t, rec)
	require.NotEmpty(t, rotated.Access)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/token/refresh/", "", map[string]string{"refresh": alice.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "old refresh token is blacklisted after rotation")

	rec = doJSON(t, h, http.MethodPost, "/api/auth/logout/", rotated.Access, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/logout/", rotated.Access, map[string]string{"refresh": bob.Refresh})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/logout/", rotated.Access, map[string]string{"refresh": rotated.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/user/detail", rotated.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/token/refresh/", "", map[string]string{"refresh": rotated.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileUpdates(t *testing.T) {
	h := newTestRouter(t)
	alice := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodPut, "/api/user/update-bio/", alice.Access, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/user/update-bio/", alice.Access, map[string]string{"bio": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/user/update-bio/", alice.Access, map[string]string{"bio": strings.Repeat("b", 301)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/user/update-bio/", alice.Access, map[string]string{"bio": "gopher"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gopher", decode[serializer.UserView](t, rec).Bio)

	upload := func(field string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile(field, "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/user/update-profile-image/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice.Access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	rec = upload("avatar", png)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("profile_image", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("profile_image", png)
	require.Equalf(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	view := decode[serializer.UserView](t, rec)
	assert.True(t, strings.HasPrefix(view.ProfileImage, "/media/profile_images/"))
	assert.True(t, strings.HasSuffix(view.ProfileImage, ".png"))

	rec = doJSON(t, h, http.MethodGet, view.ProfileImage, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestActivityAndHealth(t *testing.T) {
	h := newTestRouter(t)
	alice := registerAndLogin(t, h, "alice")
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/tweets", alice.Access, map[string]string{"content": "hi"}).Code)

	rec := doJSON(t, h, http.MethodGet, "/api/activity?limit=1", alice.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]map[string]any](t, rec)
	require.Len(t, events, 1)

	rec = doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestWebsocket_PushesFollowAndTweets(t *testing.T) {
	h := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	alice := registerAndLogin(t, h, "alice")
	bob := registerAndLogin(t, h, "bob")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + alice.Access
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	read := func() websocket.Message {
		var msg websocket.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// The pong proves the connection is registered with the hub.
	require.NoError(t, conn.WriteJSON(websocket.Message{Action: "ping"}))
	assert.Equal(t, websocket.ActionPong, read().Action)

	require.NoError(t, conn.WriteJSON(websocket.Message{Action: "dance"}))
	assert.Equal(t, websocket.ActionError, read().Action)

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow", alice.ID), bob.Access, nil).Code)
	msg := read()
	assert.Equal(t, websocket.ActionFollowCreated, msg.Action)
	assert.Equal(t, "bob", msg.Payload.(map[string]any)["username"])

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, path("/api/users/{id}/follow", bob.ID), alice.Access, nil).Code)
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/tweets", bob.Access, map[string]string{"content": "live"}).Code)
	msg = read()
	assert.Equal(t, websocket.ActionTweetCreated, msg.Action)
	assert.Equal(t, "live", msg.Payload.(map[string]any)["content"])

	_, _, err = gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	assert.Error(t, err, "unauthenticated upgrade is refused")
}

func TestRegister_IgnoresUnknownFields(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "pw123", "confirm_password": "pw123",
		"first_name": "Alice",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
