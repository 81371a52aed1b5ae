package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/newsboard/models"
)

func TestFileStoreCreatesFilesLazily(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, postsFile))

	posts, total, err := st.ListPosts(context.Background(), models.PostListQuery{Size: 10})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Zero(t, total)

	data, err := os.ReadFile(filepath.Join(dir, postsFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"posts":[]}`, string(data))

	_, err = st.GetUserByEmail(context.Background(), "nobody@x.io")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.FileExists(t, filepath.Join(dir, usersFile))
}

func TestFileStoreUpgradesLegacyArray(t *testing.T) {
	dir := t.TempDir()
	legacy := `[
		{"id": 3, "title": "Hello, World!", "text": "one two three", "genre": "Health", "isPrivate": false, "createDate": "2023-01-02T10:00:00.000Z"},
		{"id": 7, "title": "Secret", "text": "hidden", "genre": "Other", "isPrivate": true, "createDate": "2023-01-03T10:00:00.000Z"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, postsFile), []byte(legacy), 0o644))

	st, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	posts, total, err := st.ListPosts(ctx, models.PostListQuery{Size: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total, "private legacy posts stay hidden")
	p := posts[0]
	assert.Equal(t, uint(3), p.ID)
	assert.Equal(t, "one two three", p.Content)
	assert.Equal(t, "Health", p.Category)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, 1, p.ReadingTime)
	assert.True(t, p.IsPublished)
	assert.Equal(t, 2023, p.CreatedAt.Year())

	secret, err := st.GetPost(ctx, 7)
	require.NoError(t, err)
	assert.False(t, secret.IsPublished)

	var env struct {
		Version int               `json:"version"`
		Posts   []json.RawMessage `json:"posts"`
	}
	data, err := os.ReadFile(filepath.Join(dir, postsFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, FileFormatVersion, env.Version)
	assert.Len(t, env.Posts, 2)

	fresh := models.Post{Title: "new", Content: "c", Category: "Other", IsPublished: true}
	require.NoError(t, st.CreatePost(ctx, &fresh))
	assert.Equal(t, uint(8), fresh.ID, "next id is max id + 1")
}

func TestFileStoreRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, postsFile), []byte(`{"version":99,"posts":[]}`), 0o644))
	st, err := NewFileStore(dir)
	require.NoError(t, err)

	_, _, err = st.ListPosts(context.Background(), models.PostListQuery{Size: 10})
	assert.ErrorContains(t, err, "unsupported version")
}

func TestFileStoreNeverSerialisesHashInPosts(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)
	u := models.User{Email: "a@b.io", PasswordHash: "$2a$hash"}
	require.NoError(t, st.CreateUser(context.Background(), &u))

	data, err := os.ReadFile(filepath.Join(dir, usersFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"password_hash": "$2a$hash"`)

	got, err := st.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hash")
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)
	p := models.Post{Title: "t", Content: "c", Category: "Other", IsPublished: true}
	require.NoError(t, st.CreatePost(context.Background(), &p))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
