package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/newsboard/config"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/services"
	"github.com/cppla/newsboard/store"
	"github.com/cppla/newsboard/utils"
	"github.com/cppla/newsboard/validation"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	schema := validation.New(models.CategoryNames(models.DefaultCategories()))
	issuer := utils.NewTokenIssuer("router-test-secret", time.Hour)
	cfg := config.AppConfig{
		GinMode:            "test",
		AppEnv:             "production",
		StaticDir:          static,
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"*"},
	}
	return SetupRouter(Deps{
		Config: cfg,
		Posts:  services.NewPostService(st, schema, nil),
		Auth:   services.NewAuthService(st, schema, issuer, nil, nil),
	})
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func register(t *testing.T, r http.Handler, email string) models.AuthResult {
	t.Helper()
	w := call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "secret1", "confirmPassword": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.AuthResult](t, w)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPostLifecycle(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "alice@example.com")
	bob := register(t, r, "bob@example.com")
	assert.Equal(t, "User created successfully", alice.Message)
	assert.Equal(t, "Bearer", alice.TokenType)

	w := call(t, r, http.MethodPost, "/api/newsposts", "", gin.H{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, r, http.MethodPost, "/api/newsposts", alice.Token, gin.H{
		"title": "Hello, World!  Foo", "content": "<p>one two three</p><script>x()</script>", "category": "Technology",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decode[models.Post](t, w)
	assert.Equal(t, "hello-world-foo", post.Slug)
	assert.NotContains(t, post.Content, "<script>")
	assert.True(t, post.IsPublished)
	assert.Equal(t, alice.User.ID, post.AuthorID)
	path := "/api/newsposts/" + strconv.FormatUint(uint64(post.ID), 10)

	w = call(t, r, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[models.Post](t, w).ViewsCount)

	w = call(t, r, http.MethodPut, path, bob.Token, gin.H{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodPut, path, alice.Token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPut, path, alice.Token, gin.H{"title": "Renamed post", "is_published": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "renamed-post", decode[models.Post](t, w).Slug)

	// Drafts are hidden from everyone but the author.
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodGet, path, bob.Token, nil).Code)
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodGet, path, alice.Token, nil).Code)

	page := decode[models.PostPage](t, call(t, r, http.MethodGet, "/api/newsposts", "", nil))
	assert.Empty(t, page.Data)
	page = decode[models.PostPage](t, call(t, r, http.MethodGet, "/api/newsposts?genre=Technology", alice.Token, nil))
	assert.Len(t, page.Data, 1)
	assert.EqualValues(t, 1, page.Pagination.Total)

	assert.Equal(t, http.StatusForbidden, call(t, r, http.MethodDelete, path, bob.Token, nil).Code)
	w = call(t, r, http.MethodDelete, path, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodDelete, path, alice.Token, nil).Code)
}

func TestCreateValidationEnvelope(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "alice@example.com")

	w := call(t, r, http.MethodPost, "/api/newsposts", alice.Token, gin.H{"title": "", "content": "body", "category": "Sports"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[utils.ErrorBody](t, w)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	fields := map[string]string{}
	for _, f := range body.Errors {
		fields[f.Field] = f.Message
	}
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "category")
	assert.Empty(t, body.Stack)

	req := httptest.NewRequest(http.MethodPost, "/api/newsposts", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40021, decode[utils.ErrorBody](t, w).Code)
}

func TestListQueryValidation(t *testing.T) {
	r := newTestRouter(t)
	for _, q := range []string{"page=-1", "size=0", "size=101", "page=abc", "size=1.5"} {
		w := call(t, r, http.MethodGet, "/api/newsposts?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, 40010, decode[utils.ErrorBody](t, w).Code, q)
	}
	w := call(t, r, http.MethodGet, "/api/newsposts?page=5&category=all", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.PostPage](t, w)
	assert.NotNil(t, page.Data)
	assert.Equal(t, models.DefaultPageSize, page.Pagination.Size)
}

func TestInvalidPostID(t *testing.T) {
	r := newTestRouter(t)
	for _, id := range []string{"abc", "0", "-3"} {
		w := call(t, r, http.MethodGet, "/api/newsposts/"+id, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
		assert.Equal(t, "Invalid post ID - must be a positive number", decode[utils.ErrorBody](t, w).Message)
	}
}

func TestCategories(t *testing.T) {
	r := newTestRouter(t)
	w := call(t, r, http.MethodGet, "/api/newsposts/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]models.Category](t, w)
	assert.Equal(t, []string{"Business", "Health", "Technology", "Other"}, models.CategoryNames(cats))
}

func TestAccountEndpoints(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "alice@example.com")
	register(t, r, "bob@example.com")

	w := call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ALICE@example.com", "password": "secret1", "confirmPassword": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode[utils.ErrorBody](t, w).Message)

	w = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[models.AuthResult](t, w)
	assert.Empty(t, login.Message)

	w = call(t, r, http.MethodGet, "/api/auth/user", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		User models.UserSummary `json:"user"`
	}](t, w)
	assert.Equal(t, alice.User.ID, me.User.ID)
	assert.NotContains(t, w.Body.String(), "password")

	w = call(t, r, http.MethodPut, "/api/auth/user", login.Token, gin.H{"email": "bob@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = call(t, r, http.MethodPut, "/api/auth/user", login.Token, gin.H{"email": "alice2@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, call(t, r, http.MethodPost, "/api/auth/logout", login.Token, nil).Code)
	w = call(t, r, http.MethodGet, "/api/auth/user", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token has been revoked", decode[utils.ErrorBody](t, w).Message)

	// The registration token is still valid until the account goes away.
	assert.Equal(t, http.StatusNoContent, call(t, r, http.MethodDelete, "/api/auth/user", alice.Token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, r, http.MethodGet, "/api/auth/user", alice.Token, nil).Code)
}

func TestNoRoute(t *testing.T) {
	r := newTestRouter(t)

	w := call(t, r, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, decode[utils.ErrorBody](t, w).Code)

	w = call(t, r, http.MethodGet, "/app.js", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = call(t, r, http.MethodGet, "/posts/12/edit", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "app")
}

func TestStaticFileStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("x"), 0o644))

	assert.Equal(t, filepath.Join(dir, "app.js"), staticFile(dir, "/app.js"))
	assert.Equal(t, filepath.Join(dir, "app.js"), staticFile(dir, "/../app.js"))
	assert.Empty(t, staticFile(dir, "/../../etc/passwd"))
	assert.Empty(t, staticFile(dir, "/"))
}
