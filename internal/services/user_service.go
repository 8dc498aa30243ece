package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/isdelr/tweeter-be/internal/validator"
	"github.com/mdobak/go-xerrors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MaxBioLength is the maximum number of characters in a profile bio.
const MaxBioLength = 300

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, in RegisterInput) (models.User, error)
	Authenticate(ctx context.Context, login, password string) (models.User, error)
	GetUserByID(ctx context.Context, id uint) (models.User, error)
	ListOtherUsers(ctx context.Context, callerID uint) ([]models.User, error)
	GetFollowers(ctx context.Context, id uint) ([]models.User, error)
	GetFollowing(ctx context.Context, id uint) ([]models.User, error)
	FollowerIDs(ctx context.Context, id uint) ([]uint, error)
	ToggleFollow(ctx context.Context, callerID, targetID uint) (bool, models.User, error)
	UpdateBio(ctx context.Context, id uint, bio *string) (models.User, error)
	UpdateProfileImage(ctx context.Context, id uint, path string) (previous string, user models.User, err error)
}

// UserService provides business logic for accounts and the follow graph.
type UserService struct {
	db     *gorm.DB
	events EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *gorm.DB, events EventServiceProvider) *UserService {
	return &UserService{db: db, events: events}
}

// Register validates the form and creates a new user, hashing their password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	db := s.db.WithContext(ctx)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	v := validator.New()
	v.Check(validator.NotBlank(in.Username), "username", "This field may not be blank.")
	v.Check(validator.MaxChars(in.Username, 150), "username", "Ensure this field has no more than 150 characters.")
	v.Check(validator.NotBlank(in.Email), "email", "This field may not be blank.")
	if !v.Has("email") {
		v.Check(validator.IsEmail(in.Email), "email", "Enter a valid email address.")
	}
	v.Check(in.Password != "", "password", "This field may not be blank.")
	v.Check(in.ConfirmPassword != "", "confirm_password", "This field may not be blank.")
	if !v.Has("password") && !v.Has("confirm_password") {
		v.Check(in.Password == in.ConfirmPassword, "password", "Passwords do not match")
	}

	if !v.Has("username") {
		taken, err := exists(db.Model(&models.User{}).Where("username = ?", in.Username))
		if err != nil {
			return models.User{}, xerrors.New(err)
		}
		v.Check(!taken, "username", "A user with that username already exists.")
	}
	if !v.Has("email") {
		taken, err := exists(db.Model(&models.User{}).Where("email = ?", in.Email))
		if err != nil {
			return models.User{}, xerrors.New(err)
		}
		v.Check(!taken, "email", "A user with that email already exists.")
	}
	if !v.IsValid() {
		return models.User{}, Invalid(v.Errors)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashedPassword),
		ProfileImage: models.DefaultProfileImage,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, s.duplicateUserError(db, in)
		}
		return models.User{}, xerrors.New(err)
	}

	recordEvent(ctx, s.events, EventUserRegistered, user.ID, user.ID, user.Username+" joined")
	return user, nil
}

// Authenticate verifies a user's credentials. login may be a username or an email.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return models.User{}, Unauthorized("Invalid credentials")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ?", login).
		Or("email = ?", login).
		Order("id").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, Unauthorized("Invalid credentials")
		}
		return models.User{}, xerrors.New(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, Unauthorized("Invalid credentials")
	}
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (models.User, error) {
	return findUser(s.db.WithContext(ctx), id)
}

// ListOtherUsers returns every user except the caller, ordered by username.
func (s *UserService) ListOtherUsers(ctx context.Context, callerID uint) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Where("id <> ?", callerID).
		Order("username ASC").
		Find(&users).Error
	return users, err
}

// GetFollowers returns the users following id, ordered by username.
func (s *UserService) GetFollowers(ctx context.Context, id uint) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", id).
		Order("users.username ASC").
		Find(&users).Error
	return users, err
}

// GetFollowing returns the users id follows, ordered by username.
func (s *UserService) GetFollowing(ctx context.Context, id uint) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", id).
		Order("users.username ASC").
		Find(&users).Error
	return users, err
}

// FollowerIDs returns the IDs of users following id.
func (s *UserService) FollowerIDs(ctx context.Context, id uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", id).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// ToggleFollow makes callerID follow targetID, or unfollow when the edge already exists.
// It reports whether the caller follows the target afterwards.
func (s *UserService) ToggleFollow(ctx context.Context, callerID, targetID uint) (bool, models.User, error) {
	if callerID == targetID {
		return false, models.User{}, BadRequest("You cannot follow yourself")
	}

	var (
		following bool
		target    models.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if target, err = findUser(tx, targetID); err != nil {
			return err
		}

		res := tx.Where("follower_id = ? AND following_id = ?", callerID, targetID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			following = false
			return nil
		}

		following = true
		return tx.Omit("Follower", "Following").Create(&models.Follow{FollowerID: callerID, FollowingID: targetID}).Error
	})
	if err != nil {
		return false, models.User{}, err
	}

	if following {
		recordEvent(ctx, s.events, EventUserFollowed, callerID, targetID, "followed "+target.Username)
	} else {
		recordEvent(ctx, s.events, EventUserUnfollowed, callerID, targetID, "unfollowed "+target.Username)
	}
	return following, target, nil
}

// UpdateBio replaces the user's bio. A nil or empty bio is rejected as missing.
func (s *UserService) UpdateBio(ctx context.Context, id uint, bio *string) (models.User, error) {
	if bio == nil || *bio == "" {
		return models.User{}, BadRequest("Bio is required")
	}
	if !validator.MaxChars(*bio, MaxBioLength) {
		return models.User{}, Invalid(map[string]string{"bio": "Ensure this field has no more than 300 characters."})
	}

	db := s.db.WithContext(ctx)
	user, err := findUser(db, id)
	if err != nil {
		return models.User{}, err
	}
	if err := db.Model(&user).Update("bio", *bio).Error; err != nil {
		return models.User{}, xerrors.New(err)
	}
	user.Bio = *bio
	return user, nil
}

// UpdateProfileImage stores a new image path and returns the one it replaced.
func (s *UserService) UpdateProfileImage(ctx context.Context, id uint, path string) (string, models.User, error) {
	db := s.db.WithContext(ctx)
	user, err := findUser(db, id)
	if err != nil {
		return "", models.User{}, err
	}
	previous := user.ProfileImage
	if err := db.Model(&user).Update("profile_image", path).Error; err != nil {
		return "", models.User{}, xerrors.New(err)
	}
	user.ProfileImage = path
	return previous, user, nil
}

// duplicateUserError reports which unique field a concurrent registration claimed first.
func (s *UserService) duplicateUserError(db *gorm.DB, in RegisterInput) error {
	fields := map[string]string{}
	if taken, err := exists(db.Model(&models.User{}).Where("username = ?", in.Username)); err == nil && taken {
		fields["username"] = "A user with that username already exists."
	}
	if taken, err := exists(db.Model(&models.User{}).Where("email = ?", in.Email)); err == nil && taken {
		fields["email"] = "A user with that email already exists."
	}
	if len(fields) == 0 {
		fields["username"] = "A user with that username or email already exists."
	}
	return Invalid(fields)
}

func findUser(db *gorm.DB, id uint) (models.User, error) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, NotFound("User not found")
		}
		return models.User{}, xerrors.New(err)
	}
	return user, nil
}

func exists(q *gorm.DB) (bool, error) {
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}
