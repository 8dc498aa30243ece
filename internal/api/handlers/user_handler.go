package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/tweeter-be/internal/media"
	"github.com/isdelr/tweeter-be/internal/serializer"
	"github.com/isdelr/tweeter-be/internal/services"
	"github.com/isdelr/tweeter-be/internal/websocket"
	"github.com/rs/zerolog"
)

// UserHandler handles HTTP requests for accounts and follows.
type UserHandler struct {
	users      services.UserServiceProvider
	serializer *serializer.Serializer
	storage    *media.Storage
	notifier   Notifier
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users services.UserServiceProvider, s *serializer.Serializer, storage *media.Storage, notifier Notifier) *UserHandler {
	return &UserHandler{users: users, serializer: s, storage: storage, notifier: notifier}
}

// BioPayload carries a new bio. A nil Bio means the field was missing.
type BioPayload struct {
	Bio *string `json:"bio"`
}

// FollowResponse reports the follow state after a toggle.
type FollowResponse struct {
	Message   string `json:"message"`
	Following bool   `json:"following"`
}

// Detail returns the caller's account with follower and following lists.
func (h *UserHandler) Detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := callerID(r)

	user, err := h.users.GetUserByID(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	followers, err := h.users.GetFollowers(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	following, err := h.users.GetFollowing(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	view, err := h.serializer.UserDetail(ctx, user, followers, following)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// List returns every other user, ordered by username.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	users, err := h.users.ListOtherUsers(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views, err := h.serializer.Users(r.Context(), id, users)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := h.serializer.User(r.Context(), callerID(r), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ToggleFollow follows the target user, or unfollows if already following.
func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	targetID, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	ctx := r.Context()
	me := callerID(r)

	following, target, err := h.users.ToggleFollow(ctx, me, targetID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := FollowResponse{Message: "You unfollowed " + target.Username, Following: false}
	if following {
		resp = FollowResponse{Message: "You are now following " + target.Username, Following: true}
		h.notifyFollow(r, me, targetID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) notifyFollow(r *http.Request, followerID, targetID uint) {
	follower, err := h.users.GetUserByID(r.Context(), followerID)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to load follower for notification")
		return
	}
	view, err := h.serializer.User(r.Context(), targetID, follower)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to render follower for notification")
		return
	}
	h.notifier.Notify([]uint{targetID}, websocket.ActionFollowCreated, view)
}

// UpdateBio replaces the caller's bio.
func (h *UserHandler) UpdateBio(w http.ResponseWriter, r *http.Request) {
	var payload BioPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := callerID(r)
	user, err := h.users.UpdateBio(r.Context(), id, payload.Bio)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := h.serializer.User(r.Context(), id, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateProfileImage stores an uploaded image from the "profile_image" multipart field.
func (h *UserHandler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)

	// Leave room for multipart headers around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.storage.MaxBytes()+64<<10)
	if err := r.ParseMultipartForm(h.storage.MaxBytes()); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			writeServiceError(w, r, services.Invalid(map[string]string{"profile_image": media.ErrTooLarge.Error()}))
			return
		}
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("profile_image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer file.Close()

	rel, err := h.storage.SaveProfileImage(file)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrUnsupported) {
			writeServiceError(w, r, services.Invalid(map[string]string{"profile_image": err.Error()}))
			return
		}
		log.Error().Err(err).Msg("Failed to save profile image")
		writeError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}

	id := callerID(r)
	previous, user, err := h.users.UpdateProfileImage(ctx, id, rel)
	if err != nil {
		if rmErr := h.storage.Remove(rel); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", rel).Msg("Failed to remove orphaned upload")
		}
		writeServiceError(w, r, err)
		return
	}
	if err := h.storage.Remove(previous); err != nil {
		log.Warn().Err(err).Str("path", previous).Msg("Failed to remove previous profile image")
	}

	view, err := h.serializer.User(ctx, id, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
