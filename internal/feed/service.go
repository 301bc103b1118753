// Package feed serves the social timeline: member posts with comments and
// likes, interleaved with certifications as they get verified.
package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/database"
	"trustline/portal-backend/internal/notifications"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type Notifier interface {
	Notify(ctx context.Context, req notifications.Request) (*notifications.Notification, error)
}

type Service struct {
	repo     Repository
	tx       database.Transactor
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx database.Transactor, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) CreatePost(ctx context.Context, authorID uuid.UUID, in CreatePostInput) (*Post, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperr.Validation("body", "is required")
	}

	post := &Post{
		ID:       uuid.New(),
		AuthorID: authorID,
		Body:     body,
		ImageURL: in.ImageURL,
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apperr.Validation("metadata", "must be a JSON object")
		}
		post.Metadata = datatypes.JSON(raw)
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

// DeletePost removes a post; only its author or an admin may do so.
func (s *Service) DeletePost(ctx context.Context, userID uuid.UUID, isAdmin bool, postID uuid.UUID) error {
	post, err := s.post(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID && !isAdmin {
		return apperr.Forbidden("post belongs to another user")
	}
	return s.repo.DeletePost(ctx, postID)
}

func (s *Service) Comment(ctx context.Context, authorID, postID uuid.UUID, in CommentInput) (*Comment, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperr.Validation("body", "is required")
	}

	var post *Post
	comment := &Comment{ID: uuid.New(), PostID: postID, AuthorID: authorID, Body: body}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if post, err = s.post(ctx, postID); err != nil {
			return err
		}
		return s.repo.CreateComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}

	if post.AuthorID != authorID {
		s.notify(ctx, notifications.Request{
			UserID: post.AuthorID,
			Kind:   notifications.KindPostComment,
			Title:  "New comment",
			Body:   excerpt(body, 120),
			Data:   map[string]any{"post_id": postID, "comment_id": comment.ID, "author_id": authorID},
		})
	}
	return comment, nil
}

func (s *Service) Comments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]Comment, error) {
	if _, err := s.post(ctx, postID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListComments(ctx, postID, limit, offset)
}

// Like is idempotent; the author is notified only the first time.
func (s *Service) Like(ctx context.Context, userID, postID uuid.UUID) error {
	var post *Post
	var added bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if post, err = s.post(ctx, postID); err != nil {
			return err
		}
		added, err = s.repo.AddLike(ctx, &Like{PostID: postID, UserID: userID, CreatedAt: s.now()})
		return err
	})
	if err != nil {
		return err
	}

	if added && post.AuthorID != userID {
		s.notify(ctx, notifications.Request{
			UserID: post.AuthorID,
			Kind:   notifications.KindPostLike,
			Title:  "Someone liked your post",
			Body:   excerpt(post.Body, 120),
			Data:   map[string]any{"post_id": postID, "user_id": userID},
		})
	}
	return nil
}

func (s *Service) Unlike(ctx context.Context, userID, postID uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.post(ctx, postID); err != nil {
			return err
		}
		_, err := s.repo.RemoveLike(ctx, postID, userID)
		return err
	})
}

// Feed returns one page of the timeline, newest first. Posts and
// achievements are merged by time; the cursor is the time of the last item.
func (s *Service) Feed(ctx context.Context, cursor string, limit int) (*Page, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	before := s.now()
	if cursor != "" {
		t, err := decodeCursor(cursor)
		if err != nil {
			return nil, apperr.Validation("cursor", "is invalid")
		}
		before = t
	}

	posts, err := s.repo.PostsBefore(ctx, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	achievements, err := s.repo.AchievementsBefore(ctx, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}

	items := merge(posts, achievements)
	page := &Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
	}
	if len(page.Items) == limit {
		page.NextCursor = encodeCursor(page.Items[limit-1].At)
	}
	return page, nil
}

func merge(posts []PostView, achievements []Achievement) []Item {
	items := make([]Item, 0, len(posts)+len(achievements))
	for i := range posts {
		items = append(items, Item{Kind: ItemPost, At: posts[i].CreatedAt, Post: &posts[i]})
	}
	for i := range achievements {
		items = append(items, Item{Kind: ItemAchievement, At: achievements[i].VerifiedAt, Achievement: &achievements[i]})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	return items
}

func encodeCursor(t time.Time) string {
	return base64.RawURLEncoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

func decodeCursor(cursor string) (time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(raw))
}

func (s *Service) post(ctx context.Context, id uuid.UUID) (*Post, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, apperr.NotFound("post")
	}
	return post, nil
}

func (s *Service) notify(ctx context.Context, req notifications.Request) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, req); err != nil {
		s.logger.Warn("Failed to send notification", zap.String("kind", string(req.Kind)), zap.Error(err))
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
