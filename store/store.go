// Package store persists posts, users and categories. Two backends share
// one contract: a JSON file backend and a relational backend on GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cppla/newsboard/config"
	"github.com/cppla/newsboard/models"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
)

// PostStore is the post half of the storage contract. List and count
// apply the same visibility and category filter; ordering is newest first
// with id as tie-break.
type PostStore interface {
	ListPosts(ctx context.Context, q models.PostListQuery) ([]models.Post, int64, error)
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	CreatePost(ctx context.Context, p *models.Post) error
	// UpdatePost loads the post, runs fn on it and persists the result as
	// one atomic step. An error from fn aborts without writing.
	UpdatePost(ctx context.Context, id uint, fn func(p *models.Post) error) (*models.Post, error)
	// DeletePost removes the post if guard accepts it, atomically.
	DeletePost(ctx context.Context, id uint, guard func(p *models.Post) error) error
	IncrementViews(ctx context.Context, id uint) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id uint, fn func(u *models.User) error) (*models.User, error)
	// DeleteUser removes the user and every post they authored.
	DeleteUser(ctx context.Context, id uint) error
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type Store interface {
	PostStore
	UserStore
	CategoryStore
	Close() error
}

// Open returns the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.AppConfig) (Store, error) {
	if cfg.StoreDriver == config.DriverFile {
		return NewFileStore(cfg.DataDir)
	}
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	st, err := NewSQLStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("preparing %s store: %w", cfg.StoreDriver, err)
	}
	return st, nil
}

func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}

func matches(p *models.Post, q models.PostListQuery) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	return p.VisibleTo(q.ViewerID)
}

