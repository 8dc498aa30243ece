package services

import (
	"context"
	"errors"
	"strings"

	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/isdelr/tweeter-be/internal/validator"
	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
)

// TweetServiceProvider defines the interface for tweet services.
type TweetServiceProvider interface {
	CreateTweet(ctx context.Context, authorID uint, content string) (models.Tweet, error)
	ListTweets(ctx context.Context, limit, offset int) ([]models.Tweet, error)
	ListFollowingFeed(ctx context.Context, userID uint) ([]models.Tweet, error)
	GetTweet(ctx context.Context, id uint) (models.Tweet, error)
	UpdateTweet(ctx context.Context, callerID, id uint, content string) (models.Tweet, error)
	DeleteTweet(ctx context.Context, callerID, id uint) error
	LikeTweet(ctx context.Context, callerID, id uint) (models.Tweet, int64, error)
	UnlikeTweet(ctx context.Context, callerID, id uint) (models.Tweet, int64, error)
}

// TweetService provides business logic for tweets and likes.
type TweetService struct {
	db     *gorm.DB
	events EventServiceProvider
}

// NewTweetService creates a new TweetService.
func NewTweetService(db *gorm.DB, events EventServiceProvider) *TweetService {
	return &TweetService{db: db, events: events}
}

func validateContent(content string) error {
	v := validator.New()
	v.Check(validator.NotBlank(content), "content", "This field may not be blank.")
	v.Check(validator.MaxChars(content, models.MaxTweetLength), "content", "Ensure this field has no more than 280 characters.")
	if !v.IsValid() {
		return Invalid(v.Errors)
	}
	return nil
}

// CreateTweet posts a new tweet owned by authorID.
func (s *TweetService) CreateTweet(ctx context.Context, authorID uint, content string) (models.Tweet, error) {
	if err := validateContent(content); err != nil {
		return models.Tweet{}, err
	}

	db := s.db.WithContext(ctx)
	author, err := findUser(db, authorID)
	if err != nil {
		return models.Tweet{}, err
	}

	tweet := models.Tweet{AuthorID: author.ID, Content: content}
	if err := db.Omit("Author").Create(&tweet).Error; err != nil {
		return models.Tweet{}, xerrors.New(err)
	}
	tweet.Author = author

	recordEvent(ctx, s.events, EventTweetCreated, authorID, tweet.ID, preview(content))
	return tweet, nil
}

// ListTweets returns all tweets, newest first. A limit of zero returns everything
// and offset only applies together with a limit.
func (s *TweetService) ListTweets(ctx context.Context, limit, offset int) ([]models.Tweet, error) {
	q := s.db.WithContext(ctx).Preload("Author").Order("tweets.created_at DESC, tweets.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
		if offset > 0 {
			q = q.Offset(offset)
		}
	}

	tweets := []models.Tweet{}
	err := q.Find(&tweets).Error
	return tweets, err
}

// ListFollowingFeed returns tweets written by the users userID follows, newest first.
// The caller's own tweets are not part of the feed.
func (s *TweetService) ListFollowingFeed(ctx context.Context, userID uint) ([]models.Tweet, error) {
	tweets := []models.Tweet{}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Joins("JOIN follows ON follows.following_id = tweets.author_id").
		Where("follows.follower_id = ?", userID).
		Where("tweets.author_id <> ?", userID).
		Order("tweets.created_at DESC, tweets.id DESC").
		Find(&tweets).Error
	return tweets, err
}

// GetTweet retrieves a single tweet with its author.
func (s *TweetService) GetTweet(ctx context.Context, id uint) (models.Tweet, error) {
	return findTweet(s.db.WithContext(ctx).Preload("Author"), id)
}

// UpdateTweet replaces the content of a tweet. Only the author may edit it.
func (s *TweetService) UpdateTweet(ctx context.Context, callerID, id uint, content string) (models.Tweet, error) {
	if err := validateContent(content); err != nil {
		return models.Tweet{}, err
	}

	db := s.db.WithContext(ctx)
	tweet, err := findTweet(db.Preload("Author"), id)
	if err != nil {
		return models.Tweet{}, err
	}
	if tweet.AuthorID != callerID {
		return models.Tweet{}, Forbidden("You can only edit your own tweets")
	}

	if err := db.Model(&models.Tweet{}).Where("id = ?", id).Update("content", content).Error; err != nil {
		return models.Tweet{}, xerrors.New(err)
	}
	tweet.Content = content

	recordEvent(ctx, s.events, EventTweetUpdated, callerID, tweet.ID, preview(content))
	return tweet, nil
}

// DeleteTweet removes a tweet and its likes. Only the author may delete it.
func (s *TweetService) DeleteTweet(ctx context.Context, callerID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tweet, err := findTweet(tx, id)
		if err != nil {
			return err
		}
		if tweet.AuthorID != callerID {
			return Forbidden("You do not have permission to delete this tweet")
		}
		if err := tx.Where("tweet_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tweet{}, id).Error
	})
	if err != nil {
		return err
	}

	recordEvent(ctx, s.events, EventTweetDeleted, callerID, id, "deleted a tweet")
	return nil
}

// LikeTweet adds the caller's like. Liking twice is rejected.
func (s *TweetService) LikeTweet(ctx context.Context, callerID, id uint) (models.Tweet, int64, error) {
	var (
		tweet models.Tweet
		count int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if tweet, err = findTweet(tx.Preload("Author"), id); err != nil {
			return err
		}

		liked, err := exists(tx.Model(&models.Like{}).Where("user_id = ? AND tweet_id = ?", callerID, id))
		if err != nil {
			return err
		}
		if liked {
			return BadRequest("You have already liked this tweet")
		}

		if err := tx.Omit("User", "Tweet").Create(&models.Like{UserID: callerID, TweetID: id}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return BadRequest("You have already liked this tweet")
			}
			return err
		}
		return tx.Model(&models.Like{}).Where("tweet_id = ?", id).Count(&count).Error
	})
	if err != nil {
		return models.Tweet{}, 0, err
	}

	recordEvent(ctx, s.events, EventTweetLiked, callerID, id, "liked a tweet by "+tweet.Author.Username)
	return tweet, count, nil
}

// UnlikeTweet removes the caller's like. Unliking a tweet that was not liked is rejected.
func (s *TweetService) UnlikeTweet(ctx context.Context, callerID, id uint) (models.Tweet, int64, error) {
	var (
		tweet models.Tweet
		count int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if tweet, err = findTweet(tx.Preload("Author"), id); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND tweet_id = ?", callerID, id).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return BadRequest("You have not liked this tweet")
		}
		return tx.Model(&models.Like{}).Where("tweet_id = ?", id).Count(&count).Error
	})
	if err != nil {
		return models.Tweet{}, 0, err
	}

	recordEvent(ctx, s.events, EventTweetUnliked, callerID, id, "unliked a tweet by "+tweet.Author.Username)
	return tweet, count, nil
}

func findTweet(db *gorm.DB, id uint) (models.Tweet, error) {
	var tweet models.Tweet
	if err := db.First(&tweet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Tweet{}, NotFound("Tweet not found")
		}
		return models.Tweet{}, xerrors.New(err)
	}
	return tweet, nil
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if r := []rune(content); len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return content
}
