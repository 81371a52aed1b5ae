package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/newsboard/models"
)

// SQLStore is the relational backend. Check-then-write sequences run in a
// transaction holding a row lock on dialects that support one.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the schema and seeds the default categories.
func NewSQLStore(ctx context.Context, db *gorm.DB) (*SQLStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Post{}, &models.Category{}); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.seedCategories(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) seedCategories(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	cats := models.DefaultCategories()
	if err := s.db.WithContext(ctx).Create(&cats).Error; err != nil {
		return fmt.Errorf("seeding categories: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func visibleScope(q models.PostListQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.ViewerID != 0 {
			db = db.Where("is_published = ? OR author_id = ?", true, q.ViewerID)
		} else {
			db = db.Where("is_published = ?", true)
		}
		if q.Category != "" {
			db = db.Where("category = ?", q.Category)
		}
		return db
	}
}

func (s *SQLStore) ListPosts(ctx context.Context, q models.PostListQuery) ([]models.Post, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Post{}).Scopes(visibleScope(q)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting posts: %w", err)
	}

	posts := []models.Post{}
	start, end, ok := models.NewPagination(q.Page, q.Size, total).Offset()
	if !ok {
		return posts, total, nil
	}
	err := db.Scopes(visibleScope(q)).
		Order("created_at DESC").Order("id DESC").
		Offset(start).Limit(end - start).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing posts: %w", err)
	}
	return posts, total, nil
}

func (s *SQLStore) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *SQLStore) CreatePost(ctx context.Context, p *models.Post) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdatePost(ctx context.Context, id uint, fn func(p *models.Post) error) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, id).Error; err != nil {
			return translate(err)
		}
		createdAt := post.CreatedAt
		if err := fn(&post); err != nil {
			return err
		}
		post.ID = id
		post.CreatedAt = createdAt
		return tx.Save(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *SQLStore) DeletePost(ctx context.Context, id uint, guard func(p *models.Post) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, id).Error; err != nil {
			return translate(err)
		}
		if guard != nil {
			if err := guard(&post); err != nil {
				return err
			}
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}

func (s *SQLStore) IncrementViews(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return cats, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if taken, err := emailTaken(tx, u.Email, 0); err != nil {
			return err
		} else if taken {
			return ErrEmailTaken
		}
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("creating user: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, id uint, fn func(u *models.User) error) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
			return translate(err)
		}
		if err := fn(&user); err != nil {
			return err
		}
		user.ID = id
		if taken, err := emailTaken(tx, user.Email, id); err != nil {
			return err
		} else if taken {
			return ErrEmailTaken
		}
		if err := tx.Save(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("author_id = ?", id).Delete(&models.Post{}).Error
	})
}

func emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.User{}).
		Where("LOWER(email) = LOWER(?) AND id <> ?", email, exceptID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
