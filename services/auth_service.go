package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/store"
	"github.com/cppla/newsboard/utils"
	"github.com/cppla/newsboard/validation"
)

// TokenType is the scheme clients put in front of the token.
const TokenType = "Bearer"

// dummyHash is compared against when the email is unknown so that both
// login failures cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z1x7WzFQ7lZ8gH9sxQZ8rV1e"

// AuthService registers users, issues tokens and resolves tokens back to
// identities.
type AuthService struct {
	users     store.UserStore
	schema    *validation.Schema
	tokens    *utils.TokenIssuer
	blacklist *utils.TokenBlacklist
	cache     utils.Cache
}

func NewAuthService(users store.UserStore, schema *validation.Schema, tokens *utils.TokenIssuer, blacklist *utils.TokenBlacklist, cache utils.Cache) *AuthService {
	if cache == nil {
		cache = utils.NopCache{}
	}
	if blacklist == nil {
		blacklist = utils.NewTokenBlacklist(nil)
	}
	return &AuthService{users: users, schema: schema, tokens: tokens, blacklist: blacklist, cache: cache}
}

// Register creates an account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	if err := s.schema.Register(&req); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, apperr.Validation(40001, "Registration failed: Password cannot exceed 72 bytes",
			apperr.FieldError{Field: "password", Message: "Password cannot exceed 72 bytes"})
	}
	if err != nil {
		return nil, apperr.Internal(50010, "Failed to create user", err)
	}

	user := &models.User{Email: normalizeEmail(req.Email), PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, apperr.Conflict(40901, "User with this email already exists")
		}
		return nil, apperr.Internal(50010, "Failed to create user", err)
	}
	utils.Logger.Info("user registered", zap.Uint("user_id", user.ID))

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.Message = "User created successfully"
	return result, nil
}

// Login checks credentials. Unknown email and wrong password fail alike.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := s.schema.Login(&req); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(50011, "Failed to log in", err)
	}
	if user == nil {
		utils.CheckPassword(dummyHash, req.Password)
		return nil, errBadCredentials()
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, errBadCredentials()
	}
	return s.issue(user)
}

// Authenticate resolves a bearer token to the identity it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, apperr.Unauthorized(40101, "Access token required")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.Identity{}, &apperr.Error{Kind: apperr.KindUnauthorized, Code: 40102, Message: "Invalid or expired token", Err: err}
	}
	if s.blacklist.IsRevoked(ctx, token) {
		return models.Identity{}, apperr.Unauthorized(40103, "Token has been revoked")
	}
	if _, err := s.users.GetUser(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Identity{}, apperr.Unauthorized(40104, "User no longer exists")
		}
		return models.Identity{}, apperr.Internal(50012, "Failed to verify token", err)
	}
	return models.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// Logout revokes token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return &apperr.Error{Kind: apperr.KindUnauthorized, Code: 40102, Message: "Invalid or expired token", Err: err}
	}
	s.blacklist.Revoke(ctx, token, claims.ExpiresAt.Time)
	return nil
}

// CurrentUser returns the public profile of userID.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.UserSummary, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(40402, "User not found")
	}
	if err != nil {
		return nil, apperr.Internal(50013, "Failed to fetch user", err)
	}
	summary := user.Summary()
	return &summary, nil
}

// UpdateUser changes the email and/or password of userID.
func (s *AuthService) UpdateUser(ctx context.Context, userID uint, req models.UserUpdateRequest) (*models.UserSummary, error) {
	if err := s.schema.UserUpdate(&req); err != nil {
		return nil, err
	}
	var hash string
	if req.Password != nil {
		h, err := utils.HashPassword(*req.Password)
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return nil, apperr.Validation(40004, "User update failed: Password cannot exceed 72 bytes",
				apperr.FieldError{Field: "password", Message: "Password cannot exceed 72 bytes"})
		}
		if err != nil {
			return nil, apperr.Internal(50014, "Failed to update user", err)
		}
		hash = h
	}

	user, err := s.users.UpdateUser(ctx, userID, func(u *models.User) error {
		if req.Email != nil {
			u.Email = normalizeEmail(*req.Email)
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound(40402, "User not found")
	case errors.Is(err, store.ErrEmailTaken):
		return nil, apperr.Conflict(40902, "Email already in use")
	case err != nil:
		return nil, apperr.Internal(50014, "Failed to update user", err)
	}
	summary := user.Summary()
	return &summary, nil
}

// DeleteUser removes userID and every post they wrote.
func (s *AuthService) DeleteUser(ctx context.Context, userID uint) error {
	err := s.users.DeleteUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(40402, "User not found")
	}
	if err != nil {
		return apperr.Internal(50015, "Failed to delete user", err)
	}
	s.cache.InvalidatePrefix(ctx, ListCachePrefix)
	utils.Logger.Info("user deleted", zap.Uint("user_id", userID))
	return nil
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	token, expires, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal(50016, "Failed to issue token", err)
	}
	return &models.AuthResult{
		Token:     token,
		TokenType: TokenType,
		ExpiresAt: expires,
		User:      user.Summary(),
	}, nil
}

func errBadCredentials() *apperr.Error {
	return apperr.Unauthorized(40105, "Invalid email or password")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
