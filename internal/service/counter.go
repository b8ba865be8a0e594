// Package service contains the business logic layer of the application.
//
// LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the key-value store
//
// Services take interfaces (repository.KeyValueStore, OAuthProvider) and
// return domain errors from apperror. They never see an *http.Request, so the
// same code runs behind the HTTP server and inside cmd/recount.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/blog-edge/internal/apperror"
	"github.com/sakif/blog-edge/internal/model"
	"github.com/sakif/blog-edge/internal/repository"
)

const (
	// MaxSlugLength bounds the slug in bytes.
	MaxSlugLength = 200

	// DefaultStoreTimeout bounds every store call when none is configured.
	DefaultStoreTimeout = 5 * time.Second

	likedValue = "true"
)

// KEY LAYOUT:
//
//	views:<slug>           decimal view count
//	likes:<slug>           decimal like count
//	like:<slug>:<userId>   "true" while the user likes the post
//
// A slug may not contain ':' so the three namespaces never overlap.

// ViewKey is the key holding a post's view counter.
func ViewKey(slug string) string { return "views:" + slug }

// LikeCountKey is the key holding a post's like counter.
func LikeCountKey(slug string) string { return "likes:" + slug }

// LikeMemberKey is the membership key for one user's like on a post.
func LikeMemberKey(slug string, userID int64) string {
	return LikeMemberPrefix(slug) + strconv.FormatInt(userID, 10)
}

// LikeMemberPrefix is the prefix shared by every membership key of a post.
func LikeMemberPrefix(slug string) string { return "like:" + slug + ":" }

// ValidateSlug rejects slugs that would produce ambiguous or oversized keys.
func ValidateSlug(slug string) error {
	switch {
	case slug == "":
		return apperror.ValidationFailed("slug", "slug is required")
	case len(slug) > MaxSlugLength:
		return apperror.ValidationFailed("slug",
			fmt.Sprintf("slug must be %d bytes or less", MaxSlugLength))
	case strings.Contains(slug, ":"):
		return apperror.ValidationFailed("slug", "slug must not contain ':'")
	}
	return nil
}

// CounterService reads and mutates view counters, like counters and like
// membership.
//
// Views go through the store's atomic Incr, so concurrent increments never
// lose an update. A like toggle is two independent single-key writes (the
// counter and the membership key) with no transaction across them; the two
// can drift under concurrent toggles by the same user, and cmd/recount
// repairs that.
type CounterService struct {
	store   repository.KeyValueStore
	timeout time.Duration
	logger  *slog.Logger
}

// NewCounterService creates a CounterService. A timeout <= 0 falls back to
// DefaultStoreTimeout.
func NewCounterService(store repository.KeyValueStore, timeout time.Duration, logger *slog.Logger) *CounterService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &CounterService{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// GetViewCount returns the post's view count; an absent counter is 0.
func (s *CounterService) GetViewCount(ctx context.Context, slug string) (int64, error) {
	if err := ValidateSlug(slug); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.readCount(ctx, ViewKey(slug))
	if err != nil {
		return 0, s.storeError("read", slug, err)
	}
	return n, nil
}

// IncrementViewCount adds one view and returns the new count.
func (s *CounterService) IncrementViewCount(ctx context.Context, slug string) (int64, error) {
	if err := ValidateSlug(slug); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.Incr(ctx, ViewKey(slug), 1)
	if err != nil {
		return 0, s.storeError("increment", slug, err)
	}
	return n, nil
}

// GetLikeState returns the like count and whether userID has liked the post.
// userID 0 is an anonymous caller and never has a like.
func (s *CounterService) GetLikeState(ctx context.Context, slug string, userID int64) (model.LikeState, error) {
	if err := ValidateSlug(slug); err != nil {
		return model.LikeState{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.readCount(ctx, LikeCountKey(slug))
	if err != nil {
		return model.LikeState{}, s.storeError("read", slug, err)
	}

	state := model.LikeState{Count: count}
	if userID == 0 {
		return state, nil
	}

	liked, err := s.isMember(ctx, slug, userID)
	if err != nil {
		return model.LikeState{}, s.storeError("read", slug, err)
	}
	state.HasLiked = liked
	return state, nil
}

// ToggleLike flips userID's like on the post and returns the resulting state.
//
// Unlike: counter = max(0, current-1), membership key deleted.
// Like:   counter = current+1, membership key set to "true".
//
// The counter is written before the membership key. If the second write
// fails the error is returned and the counter is left one step ahead.
func (s *CounterService) ToggleLike(ctx context.Context, slug string, userID int64) (model.LikeState, error) {
	if userID == 0 {
		return model.LikeState{}, apperror.Unauthorized("login required to like a post")
	}
	if err := ValidateSlug(slug); err != nil {
		return model.LikeState{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	liked, err := s.isMember(ctx, slug, userID)
	if err != nil {
		return model.LikeState{}, s.storeError("read", slug, err)
	}
	current, err := s.readCount(ctx, LikeCountKey(slug))
	if err != nil {
		return model.LikeState{}, s.storeError("read", slug, err)
	}

	var next model.LikeState
	if liked {
		next = model.LikeState{Count: max(0, current-1), HasLiked: false}
	} else {
		next = model.LikeState{Count: current + 1, HasLiked: true}
	}

	if err := s.store.Put(ctx, LikeCountKey(slug), strconv.FormatInt(next.Count, 10)); err != nil {
		return model.LikeState{}, s.storeError("write", slug, err)
	}

	memberKey := LikeMemberKey(slug, userID)
	if next.HasLiked {
		err = s.store.Put(ctx, memberKey, likedValue)
	} else {
		err = s.store.Delete(ctx, memberKey)
	}
	if err != nil {
		return model.LikeState{}, s.storeError("write", slug, err)
	}

	s.logger.Info("like toggled",
		slog.String("slug", slug),
		slog.Int64("userID", userID),
		slog.Bool("liked", next.HasLiked),
		slog.Int64("likes", next.Count),
	)
	return next, nil
}

// Ping checks the store within the store timeout.
func (s *CounterService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return apperror.StoreUnavailable("ping", err)
	}
	return nil
}

func (s *CounterService) isMember(ctx context.Context, slug string, userID int64) (bool, error) {
	v, ok, err := s.store.Get(ctx, LikeMemberKey(slug, userID))
	if err != nil {
		return false, err
	}
	return ok && v == likedValue, nil
}

// readCount reads a decimal counter. Absent reads as 0, and so does a value
// that does not parse; the latter is logged since only this service writes
// counters.
func (s *CounterService) readCount(ctx context.Context, key string) (int64, error) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.logger.Warn("counter is not an integer, reading as 0",
			slog.String("key", key),
			slog.String("value", v),
		)
		return 0, nil
	}
	return n, nil
}

func (s *CounterService) storeError(op, slug string, err error) error {
	s.logger.Error("store call failed",
		slog.String("op", op),
		slog.String("slug", slug),
		slog.String("error", err.Error()),
	)
	return apperror.StoreUnavailable(op, err)
}
