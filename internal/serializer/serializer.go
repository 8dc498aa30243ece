// Package serializer maps stored records to the JSON shapes returned by the API.
// Derived fields (follower and like counts, viewer flags) are loaded in batches,
// so rendering a list costs a fixed number of queries regardless of its length.
package serializer

import (
	"context"
	"strings"
	"time"

	"github.com/isdelr/tweeter-be/internal/models"
	"gorm.io/gorm"
)

// UserView is the public representation of an account.
type UserView struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfileImage   string `json:"profile_image"`
	Bio            string `json:"bio"`
	FollowersCount int64  `json:"followers_count"`
	IsFollowing    bool   `json:"is_following"`
}

// UserRef is the compact form used in follower/following lists.
type UserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// UserDetailView is the caller's own account with both sides of the follow graph.
type UserDetailView struct {
	UserView
	FollowingCount int64     `json:"following_count"`
	Followers      []UserRef `json:"followers"`
	Following      []UserRef `json:"following"`
}

// TweetView is the public representation of a tweet.
type TweetView struct {
	ID         uint      `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Author     UserView  `json:"author"`
	LikesCount int64     `json:"likes_count"`
	IsLiked    bool      `json:"is_liked"`
}

// Serializer renders views. viewerID 0 means an anonymous viewer.
type Serializer struct {
	db       *gorm.DB
	mediaURL string
}

// New creates a Serializer that prefixes stored image paths with mediaURL.
func New(db *gorm.DB, mediaURL string) *Serializer {
	return &Serializer{db: db, mediaURL: mediaURL}
}

type countRow struct {
	ID uint
	N  int64
}

// maxQueryIDs bounds the IN lists of batch queries; SQLite rejects statements with more
// than 32766 bound variables.
const maxQueryIDs = 500

// chunkIDs splits ids into slices of at most maxQueryIDs.
func chunkIDs(ids []uint) [][]uint {
	var chunks [][]uint
	for len(ids) > maxQueryIDs {
		chunks = append(chunks, ids[:maxQueryIDs])
		ids = ids[maxQueryIDs:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// countBy runs a grouped count over model for every chunk of ids and merges the results.
func countBy(db *gorm.DB, model interface{}, column string, ids []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	for _, chunk := range chunkIDs(ids) {
		var rows []countRow
		err := db.Model(model).
			Select(column+" AS id, COUNT(*) AS n").
			Where(column+" IN ?", chunk).
			Group(column).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			counts[r.ID] = r.N
		}
	}
	return counts, nil
}

// pluckSet collects column values of model rows owned by ownerID whose key is in ids.
func pluckSet(db *gorm.DB, model interface{}, ownerColumn string, ownerID uint, column string, ids []uint) (map[uint]bool, error) {
	set := map[uint]bool{}
	for _, chunk := range chunkIDs(ids) {
		var found []uint
		err := db.Model(model).
			Where(ownerColumn+" = ? AND "+column+" IN ?", ownerID, chunk).
			Pluck(column, &found).Error
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			set[id] = true
		}
	}
	return set, nil
}

// ImageURL turns a stored media path into a client URL.
func (s *Serializer) ImageURL(path string) string {
	if path == "" {
		path = models.DefaultProfileImage
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return s.mediaURL + strings.TrimPrefix(path, "/")
}

// Users renders a list of accounts as seen by viewerID.
func (s *Serializer) Users(ctx context.Context, viewerID uint, users []models.User) ([]UserView, error) {
	views := make([]UserView, 0, len(users))
	if len(users) == 0 {
		return views, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	db := s.db.WithContext(ctx)

	followers, err := countBy(db, &models.Follow{}, "following_id", ids)
	if err != nil {
		return nil, err
	}

	following := map[uint]bool{}
	if viewerID != 0 {
		if following, err = pluckSet(db, &models.Follow{}, "follower_id", viewerID, "following_id", ids); err != nil {
			return nil, err
		}
	}

	for _, u := range users {
		views = append(views, UserView{
			ID:             u.ID,
			Username:       u.Username,
			Email:          u.Email,
			ProfileImage:   s.ImageURL(u.ProfileImage),
			Bio:            u.Bio,
			FollowersCount: followers[u.ID],
			IsFollowing:    following[u.ID],
		})
	}
	return views, nil
}

// User renders a single account as seen by viewerID.
func (s *Serializer) User(ctx context.Context, viewerID uint, user models.User) (UserView, error) {
	views, err := s.Users(ctx, viewerID, []models.User{user})
	if err != nil {
		return UserView{}, err
	}
	return views[0], nil
}

// UserDetail renders the caller's own account with follower and following lists.
func (s *Serializer) UserDetail(ctx context.Context, user models.User, followers, following []models.User) (UserDetailView, error) {
	view, err := s.User(ctx, user.ID, user)
	if err != nil {
		return UserDetailView{}, err
	}
	return UserDetailView{
		UserView:       view,
		FollowingCount: int64(len(following)),
		Followers:      refs(followers),
		Following:      refs(following),
	}, nil
}

func refs(users []models.User) []UserRef {
	out := make([]UserRef, 0, len(users))
	for _, u := range users {
		out = append(out, UserRef{ID: u.ID, Username: u.Username})
	}
	return out
}

// Tweets renders tweets as seen by viewerID. Authors are taken from the preloaded
// association when present and fetched in batches otherwise.
func (s *Serializer) Tweets(ctx context.Context, viewerID uint, tweets []models.Tweet) ([]TweetView, error) {
	views := make([]TweetView, 0, len(tweets))
	if len(tweets) == 0 {
		return views, nil
	}
	db := s.db.WithContext(ctx)

	tweetIDs := make([]uint, 0, len(tweets))
	authors := map[uint]models.User{}
	var missing []uint
	seen := map[uint]bool{}
	for _, t := range tweets {
		tweetIDs = append(tweetIDs, t.ID)
		if t.Author.ID != 0 {
			authors[t.AuthorID] = t.Author
		} else if !seen[t.AuthorID] {
			seen[t.AuthorID] = true
			missing = append(missing, t.AuthorID)
		}
	}
	for _, chunk := range chunkIDs(missing) {
		var loaded []models.User
		if err := db.Where("id IN ?", chunk).Find(&loaded).Error; err != nil {
			return nil, err
		}
		for _, u := range loaded {
			authors[u.ID] = u
		}
	}

	authorList := make([]models.User, 0, len(authors))
	for _, u := range authors {
		authorList = append(authorList, u)
	}
	authorViews, err := s.Users(ctx, viewerID, authorList)
	if err != nil {
		return nil, err
	}
	byAuthor := make(map[uint]UserView, len(authorViews))
	for _, v := range authorViews {
		byAuthor[v.ID] = v
	}

	likes, err := countBy(db, &models.Like{}, "tweet_id", tweetIDs)
	if err != nil {
		return nil, err
	}

	liked := map[uint]bool{}
	if viewerID != 0 {
		if liked, err = pluckSet(db, &models.Like{}, "user_id", viewerID, "tweet_id", tweetIDs); err != nil {
			return nil, err
		}
	}

	for _, t := range tweets {
		views = append(views, TweetView{
			ID:         t.ID,
			Content:    t.Content,
			CreatedAt:  t.CreatedAt,
			Author:     byAuthor[t.AuthorID],
			LikesCount: likes[t.ID],
			IsLiked:    liked[t.ID],
		})
	}
	return views, nil
}

// Tweet renders a single tweet as seen by viewerID.
func (s *Serializer) Tweet(ctx context.Context, viewerID uint, tweet models.Tweet) (TweetView, error) {
	views, err := s.Tweets(ctx, viewerID, []models.Tweet{tweet})
	if err != nil {
		return TweetView{}, err
	}
	return views[0], nil
}
