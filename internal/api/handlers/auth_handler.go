package handlers

import (
	"net/http"

	"github.com/isdelr/tweeter-be/internal/auth"
	"github.com/isdelr/tweeter-be/internal/serializer"
	"github.com/isdelr/tweeter-be/internal/services"
	"github.com/rs/zerolog"
)

// AuthHandler handles registration, login and token lifecycle.
type AuthHandler struct {
	users      services.UserServiceProvider
	tokens     *auth.TokenManager
	serializer *serializer.Serializer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users services.UserServiceProvider, tokens *auth.TokenManager, s *serializer.Serializer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, serializer: s}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginPayload accepts either a username or an email in Username.
type LoginPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshPayload carries a refresh token.
type RefreshPayload struct {
	Refresh string `json:"refresh"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Refresh string              `json:"refresh"`
	Access  string              `json:"access"`
	User    serializer.UserView `json:"user"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Username:        payload.Username,
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("username", payload.Username).Msg("Failed to register user")
		writeServiceError(w, r, err)
		return
	}

	view, err := h.serializer.User(r.Context(), user.ID, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Login handles user authentication and token pair generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	login := payload.Username
	if login == "" {
		login = payload.Email
	}

	user, err := h.users.Authenticate(r.Context(), login, payload.Password)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("login", login).Msg("Failed authentication attempt")
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Uint("user_id", user.ID).Msg("Failed to generate tokens")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	view, err := h.serializer.User(r.Context(), user.ID, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Refresh: pair.Refresh, Access: pair.Access, User: view})
}

// Refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Refresh == "" {
		writeServiceError(w, r, services.Invalid(map[string]string{"refresh": "This field is required."}))
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), payload.Refresh)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout revokes the caller's refresh token and the access token used for the request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	access, _ := auth.ClaimsFromContext(r.Context())

	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil || payload.Refresh == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	refresh, err := h.tokens.Validate(r.Context(), payload.Refresh, auth.RefreshToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	if refresh.UserID != access.UserID {
		writeError(w, http.StatusBadRequest, "Token does not belong to the current user")
		return
	}

	for _, claims := range []*auth.Claims{refresh, access} {
		if err := h.tokens.Revoke(r.Context(), claims); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	zerolog.Ctx(r.Context()).Info().Uint("user_id", access.UserID).Msg("User logged out")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}
