package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/utils"
)

// FileFormatVersion is written into every envelope. Version 1 is the
// legacy bare array of posts.
const FileFormatVersion = 2

const (
	postsFile = "posts.json"
	usersFile = "users.json"
)

type postsEnvelope struct {
	Version int           `json:"version"`
	Posts   []models.Post `json:"posts"`
}

type usersEnvelope struct {
	Version int        `json:"version"`
	Users   []fileUser `json:"users"`
}

// fileUser keeps the hash, which models.User never serialises.
type fileUser struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u fileUser) model() models.User {
	return models.User(u)
}

// legacyPost is the version 1 record shape.
type legacyPost struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Genre      string    `json:"genre"`
	IsPrivate  bool      `json:"isPrivate"`
	CreateDate time.Time `json:"createDate"`
}

func (l legacyPost) upgrade() models.Post {
	return models.Post{
		ID:          l.ID,
		Title:       l.Title,
		Slug:        utils.Slugify(l.Title),
		Content:     l.Text,
		Category:    l.Genre,
		Tags:        []string{},
		IsPublished: !l.IsPrivate,
		ReadingTime: utils.ReadingTime(l.Text),
		CreatedAt:   l.CreateDate,
		UpdatedAt:   l.CreateDate,
	}
}

// FileStore keeps posts and users in two JSON documents under one
// directory. One mutex serialises every operation, so each
// read-modify-write is atomic within the process.
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) ListPosts(ctx context.Context, q models.PostListQuery) ([]models.Post, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.readPosts()
	if err != nil {
		return nil, 0, err
	}
	visible := make([]models.Post, 0, len(posts))
	for i := range posts {
		if matches(&posts[i], q) {
			visible = append(visible, posts[i])
		}
	}
	sortNewestFirst(visible)
	total := int64(len(visible))
	start, end, ok := models.NewPagination(q.Page, q.Size, total).Offset()
	if !ok {
		return []models.Post{}, total, nil
	}
	return visible[start:end], total, nil
}

func (s *FileStore) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.readPosts()
	if err != nil {
		return nil, err
	}
	i := indexOfPost(posts, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	p := posts[i]
	return &p, nil
}

func (s *FileStore) CreatePost(ctx context.Context, p *models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.readPosts()
	if err != nil {
		return err
	}
	var maxID uint
	for _, existing := range posts {
		maxID = max(maxID, existing.ID)
	}
	p.ID = maxID + 1
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return s.writePosts(append(posts, *p))
}

func (s *FileStore) UpdatePost(ctx context.Context, id uint, fn func(p *models.Post) error) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.readPosts()
	if err != nil {
		return nil, err
	}
	i := indexOfPost(posts, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	updated := posts[i]
	updated.Tags = slices.Clone(updated.Tags)
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = posts[i].ID
	updated.CreatedAt = posts[i].CreatedAt
	posts[i] = updated
	if err := s.writePosts(posts); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *FileStore) DeletePost(ctx context.Context, id uint, guard func(p *models.Post) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.readPosts()
	if err != nil {
		return err
	}
	i := indexOfPost(posts, id)
	if i < 0 {
		return ErrNotFound
	}
	if guard != nil {
		if err := guard(&posts[i]); err != nil {
			return err
		}
	}
	return s.writePosts(slices.Delete(posts, i, i+1))
}

func (s *FileStore) IncrementViews(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.readPosts()
	if err != nil {
		return err
	}
	i := indexOfPost(posts, id)
	if i < 0 {
		return ErrNotFound
	}
	posts[i].ViewsCount++
	return s.writePosts(posts)
}

func (s *FileStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return models.DefaultCategories(), nil
}

func (s *FileStore) CreateUser(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	var maxID uint
	for _, existing := range users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
		maxID = max(maxID, existing.ID)
	}
	u.ID = maxID + 1
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	return s.writeUsers(append(users, fileUser(*u)))
}

func (s *FileStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, func(u fileUser) bool { return u.ID == id })
}

func (s *FileStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, func(u fileUser) bool { return strings.EqualFold(u.Email, email) })
}

func (s *FileStore) findUser(ctx context.Context, pred func(fileUser) bool) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if pred(u) {
			m := u.model()
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) UpdateUser(ctx context.Context, id uint, fn func(u *models.User) error) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(users, func(u fileUser) bool { return u.ID == id })
	if idx < 0 {
		return nil, ErrNotFound
	}
	m := users[idx].model()
	if err := fn(&m); err != nil {
		return nil, err
	}
	for i, other := range users {
		if i != idx && strings.EqualFold(other.Email, m.Email) {
			return nil, ErrEmailTaken
		}
	}
	m.ID = users[idx].ID
	m.CreatedAt = users[idx].CreatedAt
	m.UpdatedAt = s.now()
	users[idx] = fileUser(m)
	if err := s.writeUsers(users); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *FileStore) DeleteUser(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(users, func(u fileUser) bool { return u.ID == id })
	if idx < 0 {
		return ErrNotFound
	}
	posts, err := s.readPosts()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(posts, func(p models.Post) bool { return p.AuthorID == id })
	// Posts first: a crash in between leaves a user without posts, never
	// posts without a user.
	if err := s.writePosts(kept); err != nil {
		return err
	}
	return s.writeUsers(slices.Delete(users, idx, idx+1))
}

func indexOfPost(posts []models.Post, id uint) int {
	return slices.IndexFunc(posts, func(p models.Post) bool { return p.ID == id })
}

// readPosts loads posts.json, creating it when missing and upgrading the
// legacy array format in place.
func (s *FileStore) readPosts() ([]models.Post, error) {
	path := filepath.Join(s.dir, postsFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Post{}, s.writePosts(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", postsFile, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.Post{}, nil
	}
	if data[0] == '[' {
		var legacy []legacyPost
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decoding legacy %s: %w", postsFile, err)
		}
		posts := make([]models.Post, 0, len(legacy))
		for _, l := range legacy {
			posts = append(posts, l.upgrade())
		}
		utils.Logger.Info("upgraded legacy posts file",
			zap.String("path", path), zap.Int("posts", len(posts)), zap.Int("version", FileFormatVersion))
		return posts, s.writePosts(posts)
	}

	var env postsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", postsFile, err)
	}
	if env.Version > FileFormatVersion {
		return nil, fmt.Errorf("%s has unsupported version %d", postsFile, env.Version)
	}
	if env.Posts == nil {
		env.Posts = []models.Post{}
	}
	return env.Posts, nil
}

func (s *FileStore) writePosts(posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	return s.writeJSON(postsFile, postsEnvelope{Version: FileFormatVersion, Posts: posts})
}

func (s *FileStore) readUsers() ([]fileUser, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, usersFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []fileUser{}, s.writeUsers(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", usersFile, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []fileUser{}, nil
	}
	var env usersEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", usersFile, err)
	}
	if env.Version > FileFormatVersion {
		return nil, fmt.Errorf("%s has unsupported version %d", usersFile, env.Version)
	}
	if env.Users == nil {
		env.Users = []fileUser{}
	}
	return env.Users, nil
}

func (s *FileStore) writeUsers(users []fileUser) error {
	if users == nil {
		users = []fileUser{}
	}
	return s.writeJSON(usersFile, usersEnvelope{Version: FileFormatVersion, Users: users})
}

// writeJSON replaces name atomically: temp file in the same dir, fsync, rename.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
