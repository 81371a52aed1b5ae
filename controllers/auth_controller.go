package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/newsboard/middleware"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/services"
	"github.com/cppla/newsboard/utils"
)

// AuthController handles registration, login and the caller's account.
type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

// Register creates an account and returns a token for it.
func (a *AuthController) Register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}
	result, err := a.auth.Register(ctx.Request.Context(), req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Created(ctx, result)
}

// Login exchanges credentials for a token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}
	result, err := a.auth.Login(ctx.Request.Context(), req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, result)
}

// Logout revokes the bearer token of the request.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.auth.Logout(ctx.Request.Context(), ctx.GetString(middleware.ContextTokenKey)); err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	user, err := a.auth.CurrentUser(ctx.Request.Context(), middleware.ViewerID(ctx))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// UpdateMe changes the caller's email and/or password.
func (a *AuthController) UpdateMe(ctx *gin.Context) {
	var req models.UserUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}
	user, err := a.auth.UpdateUser(ctx.Request.Context(), middleware.ViewerID(ctx), req)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "User updated successfully", "user": user})
}

// DeleteMe removes the caller's account and posts, and revokes the token.
func (a *AuthController) DeleteMe(ctx *gin.Context) {
	if err := a.auth.DeleteUser(ctx.Request.Context(), middleware.ViewerID(ctx)); err != nil {
		utils.Fail(ctx, err)
		return
	}
	_ = a.auth.Logout(ctx.Request.Context(), ctx.GetString(middleware.ContextTokenKey))
	utils.NoContent(ctx)
}
