package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/newsboard/models"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	st, err := NewSQLStore(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newFile(t *testing.T) Store {
	t.Helper()
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return st
}

// eachBackend runs the same contract test against every backend.
func eachBackend(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Run("file", func(t *testing.T) { fn(t, newFile(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seedPost(t *testing.T, st Store, p models.Post) models.Post {
	t.Helper()
	if p.Title == "" {
		p.Title = "title"
	}
	if p.Content == "" {
		p.Content = "content"
	}
	if p.Category == "" {
		p.Category = "Business"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	require.NoError(t, st.CreatePost(context.Background(), &p))
	return p
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		a := seedPost(t, st, models.Post{Title: "a", CreatedAt: base})
		b := seedPost(t, st, models.Post{Title: "b", CreatedAt: base})
		assert.Equal(t, uint(1), a.ID)
		assert.Equal(t, uint(2), b.ID)

		got, err := st.GetPost(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, "b", got.Title)

		_, err = st.GetPost(context.Background(), 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListVisibilityFilterOrderAndPaging(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		seedPost(t, st, models.Post{Title: "p1", AuthorID: 1, IsPublished: true, Category: "Business", CreatedAt: base})
		seedPost(t, st, models.Post{Title: "p2", AuthorID: 2, IsPublished: true, Category: "Health", CreatedAt: base.Add(time.Hour)})
		seedPost(t, st, models.Post{Title: "draft1", AuthorID: 1, IsPublished: false, Category: "Business", CreatedAt: base.Add(2 * time.Hour)})
		seedPost(t, st, models.Post{Title: "p3", AuthorID: 2, IsPublished: true, Category: "Business", CreatedAt: base.Add(time.Hour)})

		titles := func(posts []models.Post) []string {
			out := []string{}
			for _, p := range posts {
				out = append(out, p.Title)
			}
			return out
		}

		posts, total, err := st.ListPosts(ctx, models.PostListQuery{Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []string{"p3", "p2", "p1"}, titles(posts), "newest first, id breaks ties")

		posts, total, err = st.ListPosts(ctx, models.PostListQuery{ViewerID: 1, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Equal(t, "draft1", posts[0].Title)

		posts, total, err = st.ListPosts(ctx, models.PostListQuery{ViewerID: 2, Category: "Business", Size: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, []string{"p3", "p1"}, titles(posts))

		posts, total, err = st.ListPosts(ctx, models.PostListQuery{Size: 2, Page: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []string{"p1"}, titles(posts))

		posts, total, err = st.ListPosts(ctx, models.PostListQuery{Size: 2, Page: 7})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Empty(t, posts)

		// page*size would wrap to zero here.
		posts, total, err = st.ListPosts(ctx, models.PostListQuery{Size: 4, Page: 1 << 62})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Empty(t, posts)

		posts, _, err = st.ListPosts(ctx, models.PostListQuery{Category: "business", Size: 10})
		require.NoError(t, err)
		assert.Empty(t, posts, "category match is case-sensitive")
	})
}

func TestUpdatePostGuardAndImmutableFields(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		p := seedPost(t, st, models.Post{Title: "orig", AuthorID: 1, IsPublished: true, CreatedAt: base})

		denied := errors.New("denied")
		_, err := st.UpdatePost(ctx, p.ID, func(post *models.Post) error {
			post.Title = "hijacked"
			return denied
		})
		assert.ErrorIs(t, err, denied)
		got, err := st.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "orig", got.Title)

		updated, err := st.UpdatePost(ctx, p.ID, func(post *models.Post) error {
			post.Title = "changed"
			post.Tags = []string{"x"}
			post.CreatedAt = base.Add(time.Hour)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "changed", updated.Title)
		assert.True(t, base.Equal(updated.CreatedAt))

		got, err = st.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, got.Tags)
		assert.True(t, base.Equal(got.CreatedAt))

		_, err = st.UpdatePost(ctx, 42, func(*models.Post) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeletePost(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		p := seedPost(t, st, models.Post{AuthorID: 1, IsPublished: true, CreatedAt: base})

		denied := errors.New("denied")
		assert.ErrorIs(t, st.DeletePost(ctx, p.ID, func(*models.Post) error { return denied }), denied)
		_, err := st.GetPost(ctx, p.ID)
		require.NoError(t, err)

		require.NoError(t, st.DeletePost(ctx, p.ID, nil))
		_, err = st.GetPost(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, st.DeletePost(ctx, p.ID, nil), ErrNotFound)
	})
}

func TestIncrementViews(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		p := seedPost(t, st, models.Post{IsPublished: true, CreatedAt: base})
		require.NoError(t, st.IncrementViews(ctx, p.ID))
		require.NoError(t, st.IncrementViews(ctx, p.ID))
		got, err := st.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.ViewsCount)
		assert.ErrorIs(t, st.IncrementViews(ctx, 77), ErrNotFound)
	})
}

func TestUsers(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		u := models.User{Email: "a@b.io", PasswordHash: "hash"}
		require.NoError(t, st.CreateUser(ctx, &u))
		assert.NotZero(t, u.ID)

		dup := models.User{Email: "A@b.io", PasswordHash: "hash"}
		assert.ErrorIs(t, st.CreateUser(ctx, &dup), ErrEmailTaken)

		byEmail, err := st.GetUserByEmail(ctx, "a@b.io")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "hash", byEmail.PasswordHash)

		other := models.User{Email: "c@d.io", PasswordHash: "hash"}
		require.NoError(t, st.CreateUser(ctx, &other))
		_, err = st.UpdateUser(ctx, other.ID, func(u *models.User) error {
			u.Email = "a@b.io"
			return nil
		})
		assert.ErrorIs(t, err, ErrEmailTaken)

		updated, err := st.UpdateUser(ctx, other.ID, func(u *models.User) error {
			u.Email = "new@d.io"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "new@d.io", updated.Email)

		_, err = st.GetUser(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteUserCascadesPosts(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		u := models.User{Email: "a@b.io", PasswordHash: "hash"}
		require.NoError(t, st.CreateUser(ctx, &u))
		mine := seedPost(t, st, models.Post{AuthorID: u.ID, IsPublished: true, CreatedAt: base})
		theirs := seedPost(t, st, models.Post{AuthorID: u.ID + 100, IsPublished: true, CreatedAt: base})

		require.NoError(t, st.DeleteUser(ctx, u.ID))
		_, err := st.GetUser(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = st.GetPost(ctx, mine.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = st.GetPost(ctx, theirs.ID)
		assert.NoError(t, err)

		assert.ErrorIs(t, st.DeleteUser(ctx, u.ID), ErrNotFound)
	})
}

func TestCategories(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		cats, err := st.ListCategories(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Business", "Health", "Technology", "Other"}, models.CategoryNames(cats))
	})
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	eachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		p := seedPost(t, st, models.Post{IsPublished: true, CreatedAt: base})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.UpdatePost(ctx, p.ID, func(post *models.Post) error {
					post.LikesCount++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := st.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(20), got.LikesCount, fmt.Sprintf("lost updates on %T", st))
	})
}

func TestCanceledContext(t *testing.T) {
	st := newFile(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := st.ListPosts(ctx, models.PostListQuery{Size: 10})
	assert.ErrorIs(t, err, context.Canceled)
}
