package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/store"
	"github.com/cppla/newsboard/utils"
	"github.com/cppla/newsboard/validation"
)

// ListCachePrefix namespaces cached anonymous list pages.
const ListCachePrefix = "cache:posts:list:"

// PostRepository is the storage the post service needs.
type PostRepository interface {
	store.PostStore
	store.CategoryStore
}

// PostService applies ownership, visibility and validation rules on top of
// the post store.
type PostService struct {
	repo   PostRepository
	schema *validation.Schema
	cache  utils.Cache
	now    func() time.Time
}

func NewPostService(repo PostRepository, schema *validation.Schema, cache utils.Cache) *PostService {
	if cache == nil {
		cache = utils.NopCache{}
	}
	return &PostService{repo: repo, schema: schema, cache: cache, now: time.Now}
}

// List returns one page of posts visible to viewerID (0 for anonymous).
// An empty category or "all" in any case disables the filter.
func (s *PostService) List(ctx context.Context, category string, viewerID uint, page, size int) (*models.PostPage, error) {
	var fields []apperr.FieldError
	if page < 0 {
		fields = append(fields, apperr.FieldError{Field: "page", Message: "Page number cannot be negative"})
	}
	if size < 1 || size > models.MaxPageSize {
		fields = append(fields, apperr.FieldError{Field: "size", Message: fmt.Sprintf("Page size must be between 1 and %d", models.MaxPageSize)})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(40010, "", fields...)
	}

	category = strings.TrimSpace(category)
	if strings.EqualFold(category, models.AllCategories) {
		category = ""
	}

	key := ""
	if viewerID == 0 {
		key = fmt.Sprintf("%s%s:%d:%d", ListCachePrefix, url.QueryEscape(category), page, size)
		if b, ok := s.cache.GetBytes(ctx, key); ok {
			var cached models.PostPage
			if err := json.Unmarshal(b, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	posts, total, err := s.repo.ListPosts(ctx, models.PostListQuery{
		Category: category,
		ViewerID: viewerID,
		Page:     page,
		Size:     size,
	})
	if err != nil {
		return nil, apperr.Internal(50001, "Failed to retrieve posts", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	result := &models.PostPage{Data: posts, Pagination: models.NewPagination(page, size, total)}

	if key != "" {
		if b, err := json.Marshal(result); err == nil {
			s.cache.SetBytes(ctx, key, b)
		}
	}
	return result, nil
}

// Get returns a post if viewerID may see it. Viewing a published post
// counts as a view. Cached list pages are left alone, so their view counts
// lag until the cache TTL expires.
func (s *PostService) Get(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.repo.GetPost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errPostNotFound()
	}
	if err != nil {
		return nil, apperr.Internal(50002, "Failed to retrieve post", err)
	}
	if !post.VisibleTo(viewerID) {
		// Drafts of other users are indistinguishable from missing posts.
		return nil, errPostNotFound()
	}
	if post.IsPublished {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			utils.Logger.Warn("incrementing views failed", zap.Uint("post_id", id), zap.Error(err))
		} else {
			post.ViewsCount++
		}
	}
	return post, nil
}

// Create validates req and stores a new post owned by author.
func (s *PostService) Create(ctx context.Context, author models.Identity, req models.PostCreateRequest) (*models.Post, error) {
	if err := s.schema.PostCreate(&req); err != nil {
		return nil, err
	}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation(40020, "Post creation failed: Content is required",
			apperr.FieldError{Field: "content", Message: "Content is required"})
	}

	title := strings.TrimSpace(utils.StripTags(req.Title))
	if title == "" {
		return nil, apperr.Validation(40020, "Post creation failed: Title is required",
			apperr.FieldError{Field: "title", Message: "Title is required"})
	}

	now := s.now()
	post := &models.Post{
		AuthorID:    author.UserID,
		Title:       title,
		Slug:        utils.Slugify(title),
		Content:     content,
		Excerpt:     utils.StripTags(req.Excerpt),
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublished: true,
		ReadingTime: utils.ReadingTime(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if req.IsPublished != nil {
		post.IsPublished = *req.IsPublished
	}
	if req.IsFeatured != nil {
		post.IsFeatured = *req.IsFeatured
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, apperr.Internal(50003, "Failed to create post", err)
	}
	s.invalidateLists(ctx)
	utils.Logger.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("author_id", author.UserID))
	return post, nil
}

// Update applies the non-nil fields of req. Only the author may update.
func (s *PostService) Update(ctx context.Context, caller models.Identity, id uint, req models.PostUpdateRequest) (*models.Post, error) {
	if err := s.schema.PostUpdate(&req); err != nil {
		return nil, err
	}
	var title, content string
	if req.Title != nil {
		title = strings.TrimSpace(utils.StripTags(*req.Title))
		if title == "" {
			return nil, apperr.Validation(40031, "Post update failed: Title must have at least 1 characters",
				apperr.FieldError{Field: "title", Message: "Title must have at least 1 characters"})
		}
	}
	if req.Content != nil {
		content = utils.Sanitize(*req.Content)
		if strings.TrimSpace(content) == "" {
			return nil, apperr.Validation(40031, "Post update failed: Content must have at least 1 characters",
				apperr.FieldError{Field: "content", Message: "Content must have at least 1 characters"})
		}
	}

	post, err := s.repo.UpdatePost(ctx, id, func(p *models.Post) error {
		if p.AuthorID != caller.UserID {
			return apperr.Forbidden(40301, "You can only update your own posts")
		}
		if req.Title != nil {
			p.Title = title
			p.Slug = utils.Slugify(title)
		}
		if req.Content != nil {
			p.Content = content
			p.ReadingTime = utils.ReadingTime(content)
		}
		if req.Excerpt != nil {
			p.Excerpt = utils.StripTags(*req.Excerpt)
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if req.Tags != nil {
			p.Tags = *req.Tags
		}
		if req.IsPublished != nil {
			p.IsPublished = *req.IsPublished
		}
		if req.IsFeatured != nil {
			p.IsFeatured = *req.IsFeatured
		}
		p.UpdatedAt = s.now()
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, errPostNotFound()
	case apperr.Is(err, apperr.KindForbidden):
		return nil, err
	case err != nil:
		return nil, apperr.Internal(50004, "Failed to update post", err)
	}
	s.invalidateLists(ctx)
	return post, nil
}

// Delete removes a post. Only the author may delete.
func (s *PostService) Delete(ctx context.Context, caller models.Identity, id uint) error {
	err := s.repo.DeletePost(ctx, id, func(p *models.Post) error {
		if p.AuthorID != caller.UserID {
			return apperr.Forbidden(40302, "You can only delete your own posts")
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errPostNotFound()
	case apperr.Is(err, apperr.KindForbidden):
		return err
	case err != nil:
		return apperr.Internal(50005, "Failed to delete post", err)
	}
	s.invalidateLists(ctx)
	utils.Logger.Info("post deleted", zap.Uint("post_id", id), zap.Uint("author_id", caller.UserID))
	return nil
}

// Categories lists the categories posts may belong to.
func (s *PostService) Categories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Internal(50006, "Failed to fetch categories", err)
	}
	return cats, nil
}

// invalidateLists drops every cached list page.
func (s *PostService) invalidateLists(ctx context.Context) {
	s.cache.InvalidatePrefix(ctx, ListCachePrefix)
}

func errPostNotFound() *apperr.Error {
	return apperr.NotFound(40401, "Post not found")
}
