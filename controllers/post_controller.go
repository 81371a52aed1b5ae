package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/middleware"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/services"
	"github.com/cppla/newsboard/utils"
)

// PostController exposes post CRUD over HTTP.
type PostController struct {
	posts *services.PostService
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService) *PostController {
	return &PostController{posts: posts}
}

// ListPosts returns a page of posts. The legacy query name genre is an
// alias for category.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, size, err := parsePagination(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	category := ctx.Query("category")
	if category == "" {
		category = ctx.Query("genre")
	}

	result, err := p.posts.List(ctx.Request.Context(), category, middleware.ViewerID(ctx), page, size)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, result)
}

// GetPost returns one post visible to the caller.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, err := parseID(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), id, middleware.ViewerID(ctx))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, post)
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	identity, _ := middleware.CurrentIdentity(ctx)
	var req models.PostCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}
	post, err := p.posts.Create(ctx.Request.Context(), identity, req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Created(ctx, post)
}

// UpdatePost applies a partial update by the post author.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, err := parseID(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	identity, _ := middleware.CurrentIdentity(ctx)
	var req models.PostUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}
	post, err := p.posts.Update(ctx.Request.Context(), identity, id, req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, post)
}

// DeletePost removes a post owned by the caller.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, err := parseID(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	identity, _ := middleware.CurrentIdentity(ctx)
	if err := p.posts.Delete(ctx.Request.Context(), identity, id); err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.NoContent(ctx)
}

// Categories lists the post categories.
func (p *PostController) Categories(ctx *gin.Context) {
	cats, err := p.posts.Categories(ctx.Request.Context())
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, cats)
}

func parseID(ctx *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(40011, "Invalid post ID - must be a positive number",
			apperr.FieldError{Field: "id", Message: "Invalid post ID - must be a positive number"})
	}
	return uint(id), nil
}

// parsePagination reads page and size, defaulting to 0 and 10. Range checks
// happen in the service; only non-numeric input is rejected here.
func parsePagination(ctx *gin.Context) (int, int, error) {
	page, size := 0, models.DefaultPageSize
	var fields []apperr.FieldError
	if v := strings.TrimSpace(ctx.Query("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "page", Message: "Page must be an integer"})
		}
		page = n
	}
	if v := strings.TrimSpace(ctx.Query("size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "size", Message: "Size must be an integer"})
		}
		size = n
	}
	if len(fields) > 0 {
		return 0, 0, apperr.Validation(40010, "", fields...)
	}
	return page, size, nil
}

func invalidPayload(err error) error {
	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Code:    40021,
		Message: "Invalid request payload",
		Fields:  []apperr.FieldError{{Field: "body", Message: "Request body must be valid JSON"}},
		Err:     err,
	}
}

