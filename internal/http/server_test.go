package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"civilsite-backend-go/internal/cache"
	"civilsite-backend-go/internal/config"
	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/media"
	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"
	"civilsite-backend-go/internal/site"
	"civilsite-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(_ context.Context, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type testEnv struct {
	t        *testing.T
	server   *Server
	handler  http.Handler
	store    *content.Store
	images   *fakeUploader
	admin    string
	employee string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	testutil.QuietLogs(t)
	conn := testutil.TestDB(t)
	ctx := context.Background()

	cfg := config.Config{
		JWTSecret:          "test-secret",
		JWTIssuer:          "civilsite",
		TokenTTLHours:      24,
		LoginRatePerMinute: 100,
		VisitUniqueMode:    services.VisitModeIPDay,
		MediaDir:           t.TempDir(),
		ImageMaxBytes:      1 << 20,
		SiteName:           "Civil Works",
	}
	store := content.NewStore(conn, testutil.TxTimeout)
	require.NoError(t, store.EnsureSingletons(ctx))
	renderer, err := site.NewRenderer(store, cache.NewMemory(time.Minute), cfg.SiteName)
	require.NoError(t, err)

	images := &fakeUploader{url: "https://cdn.example.com/images/a.jpg"}
	server := NewServer(conn, cfg, Deps{
		Store:  store,
		Visits: services.NewVisitTracker(conn, cfg.VisitUniqueMode, "salt", testutil.TxTimeout),
		Hub:    services.NewDashboardHub(),
		Site:   renderer,
		Images: images,
	})

	env := &testEnv{t: t, server: server, handler: server.Router(), store: store, images: images}
	env.admin = env.account("boss", models.RoleAdmin)
	env.employee = env.account("staff", models.RoleEmployee)
	return env
}

// account creates a user and returns a session token for it.
func (e *testEnv) account(username, role string) string {
	e.t.Helper()
	admin, err := services.CreateAdmin(context.Background(), e.server.DB, e.server.Tokens,
		services.CreateAdminInput{Username: username, Password: "password-123", Role: role})
	require.NoError(e.t, err)
	token, _, err := e.server.Tokens.CreateSessionToken(admin)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUA)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorResponse](t, rec).Error
}

func TestCategoryProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/content/categories", env.admin, map[string]any{"name": "Bridges"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	category := decodeBody[models.Category](t, rec)

	rec = env.do(http.MethodPost, "/content/projects", env.admin, map[string]any{
		"title":      "River crossing",
		"categoryId": fmt.Sprint(category.ID),
		"category":   map[string]any{"id": 99, "name": "ignored"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decodeBody[models.Project](t, rec)
	assert.Equal(t, category.ID, project.CategoryID)

	rec = env.do(http.MethodGet, "/content/projects", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	projects := decodeBody[[]models.Project](t, rec)
	require.Len(t, projects, 1)
	assert.Equal(t, "Bridges", projects[0].CategoryName)

	rec = env.do(http.MethodDelete, "/content/categories", env.admin, map[string]any{"id": category.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[SuccessResponse](t, rec).Success)

	rec = env.do(http.MethodGet, "/content/projects", "", nil)
	assert.Empty(t, decodeBody[[]models.Project](t, rec))

	rec = env.do(http.MethodGet, fmt.Sprintf("/content/projects?id=%d", project.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidRelationalIDIsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"title":"Tower","categoryId":"abc"}`,
		`{"title":"Tower","categoryId":-3}`,
		`{"title":"Tower","categoryId":12345}`,
		`{"title":"Tower"}`,
	} {
		rec := env.do(http.MethodPost, "/content/projects", env.admin, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)

	ok := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "boss", Password: "password-123"})
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	resp := decodeBody[TokenResponse](t, ok)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.NotContains(t, ok.Body.String(), "password")

	wrongPassword := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "boss", Password: "nope-nope"})
	unknownUser := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "ghost", Password: "password-123"})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Equal(t, "Invalid credentials", errorMessage(t, unknownUser))

	me := env.do(http.MethodGet, "/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "boss", decodeBody[MeResponse](t, me).Username)
}

func TestLoginIsRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.server.loginLimiter = newIPLimiter(2)
	env.handler = env.server.Router()

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "ghost", Password: "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "ghost", Password: "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// loginFrom posts a failed login from peer, optionally carrying a forwarded client address.
func (e *testEnv) loginFrom(peer, forwarded string) int {
	e.t.Helper()
	raw, err := json.Marshal(LoginRequest{Username: "ghost", Password: "x"})
	require.NoError(e.t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = peer
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
		req.Header.Set("X-Real-IP", forwarded)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginLimitIgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	env := newTestEnv(t)
	env.server.loginLimiter = newIPLimiter(2)
	env.handler = env.server.Router()

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		codes = append(codes, env.loginFrom("203.0.113.9:4000", fmt.Sprintf("198.51.100.%d", i+1)))
	}
	assert.Equal(t, []int{401, 401, 429, 429, 429, 429}, codes)
}

func TestLoginLimitUsesForwardedClientBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t)
	env.server.loginLimiter = newIPLimiter(2)
	env.server.trustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	env.handler = env.server.Router()

	// Distinct clients relayed by the proxy each get their own budget.
	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.loginFrom("10.0.0.2:4000", fmt.Sprintf("198.51.100.%d", i+1)))
	}

	// A client spoofing an extra hop is still identified by the address the proxy saw.
	assert.Equal(t, http.StatusUnauthorized, env.loginFrom("10.0.0.2:4000", "1.1.1.1, 198.51.100.77"))
	assert.Equal(t, http.StatusUnauthorized, env.loginFrom("10.0.0.2:4000", "2.2.2.2, 198.51.100.77"))
	assert.Equal(t, http.StatusTooManyRequests, env.loginFrom("10.0.0.2:4000", "3.3.3.3, 198.51.100.77"))
}

func TestRoleTiers(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		method, path, token string
		body                any
		want                int
	}{
		{http.MethodGet, "/content/hero", "", nil, http.StatusOK},
		{http.MethodGet, "/content/categories", "", nil, http.StatusOK},
		{http.MethodPut, "/content/hero", "", map[string]any{"title": "x"}, http.StatusUnauthorized},
		{http.MethodPut, "/content/hero", "garbage", map[string]any{"title": "x"}, http.StatusUnauthorized},
		{http.MethodPut, "/content/hero", env.employee, map[string]any{"title": "x"}, http.StatusForbidden},
		{http.MethodPut, "/content/hero", env.admin, map[string]any{"title": "x"}, http.StatusOK},
		{http.MethodPost, "/content/categories", env.employee, map[string]any{"name": "Roads"}, http.StatusForbidden},
		{http.MethodPost, "/content/partners", env.employee, map[string]any{"logoUrl": "https://cdn.example.com/p.png"}, http.StatusCreated},
		{http.MethodGet, "/employees", env.employee, nil, http.StatusForbidden},
		{http.MethodGet, "/employees", env.admin, nil, http.StatusOK},
		{http.MethodGet, "/content/backup", env.employee, nil, http.StatusForbidden},
		{http.MethodGet, "/content/stats", env.employee, nil, http.StatusForbidden},
		{http.MethodGet, "/admin/system", env.employee, nil, http.StatusForbidden},
		{http.MethodGet, "/ws/dashboard?token=" + env.employee, "", nil, http.StatusForbidden},
		{http.MethodGet, "/ws/dashboard", "", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := env.do(tc.method, tc.path, tc.token, tc.body)
		assert.Equal(t, tc.want, rec.Code, "%s %s: %s", tc.method, tc.path, rec.Body.String())
	}
}

func TestEmployees(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/employees", env.admin, map[string]any{"username": "dana", "password": "longenough"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.Admin](t, rec)
	assert.Equal(t, models.RoleEmployee, created.Role)
	assert.NotContains(t, rec.Body.String(), "argon2")

	rec = env.do(http.MethodPost, "/employees", env.admin, map[string]any{"username": "dana", "password": "longenough"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/employees", env.admin, map[string]any{"username": "eve", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/employees", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Admin](t, rec), 3)
	assert.NotContains(t, rec.Body.String(), "password")

	boss, err := services.FindAdminByUsername(context.Background(), env.server.DB, "boss")
	require.NoError(t, err)
	rec = env.do(http.MethodDelete, "/employees", env.admin, map[string]any{"id": boss.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, fmt.Sprintf("/employees?id=%d", created.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestReplaceProjectsRollsBackOnBadCategory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/content/categories", env.admin, map[string]any{"name": "Roads"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := decodeBody[models.Category](t, rec)
	rec = env.do(http.MethodPost, "/content/projects", env.employee, map[string]any{"title": "Ring road", "categoryId": cat.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPut, "/content/projects/bulk", env.employee, []map[string]any{
		{"title": "Bypass", "categoryId": cat.ID},
		{"title": "Nowhere", "categoryId": cat.ID + 100},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	projects := decodeBody[[]models.Project](t, env.do(http.MethodGet, "/content/projects", "", nil))
	require.Len(t, projects, 1)
	assert.Equal(t, "Ring road", projects[0].Title)

	rec = env.do(http.MethodPut, "/content/projects/bulk", env.employee, map[string]any{
		"items": []map[string]any{{"title": "Bypass", "categoryId": cat.ID}, {"title": "Overpass", "categoryId": cat.ID}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[[]models.Project](t, rec), 2)

	// A null item list is rejected instead of clearing every project.
	for _, body := range []string{`{"items": null}`, `{}`, `null`} {
		rec = env.do(http.MethodPut, "/content/projects/bulk", env.employee, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Len(t, decodeBody[[]models.Project](t, env.do(http.MethodGet, "/content/projects", "", nil)), 2)
}

func TestBulkUpdateServices(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/content/services", env.admin, map[string]any{
		"title":       "Design",
		"subServices": []map[string]any{{"title": "Structural"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	svc := decodeBody[models.Service](t, rec)

	rec = env.do(http.MethodPut, "/content/services/bulk", env.admin, []map[string]any{
		{"id": svc.ID, "title": "Engineering design", "subServices": []map[string]any{{"title": "Civil"}, {"title": "Geotechnical"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, fmt.Sprintf("/content/subservices?serviceId=%d", svc.ID), "", nil)
	subs := decodeBody[[]models.SubService](t, rec)
	require.Len(t, subs, 2)
	assert.Equal(t, "Civil", subs[0].Title)

	rec = env.do(http.MethodPut, "/content/services/bulk", env.admin, []map[string]any{
		{"id": svc.ID, "title": "Renamed"},
		{"id": svc.ID + 50, "title": "Ghost"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	got := decodeBody[models.Service](t, env.do(http.MethodGet, fmt.Sprintf("/content/services?id=%d", svc.ID), "", nil))
	assert.Equal(t, "Engineering design", got.Title)
}

func TestVisits(t *testing.T) {
	env := newTestEnv(t)

	bot := httptest.NewRequest(http.MethodPost, "/visits", nil)
	bot.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, bot)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodPost, "/visits", "", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	// Clients that send no User-Agent still count.
	bare := httptest.NewRequest(http.MethodPost, "/visits", nil)
	bare.Header.Del("User-Agent")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, bare)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/content/stats", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[models.VisitStats](t, rec)
	assert.Equal(t, int64(4), stats.TotalVisits)
	assert.Equal(t, int64(1), stats.UniqueVisitors)
}

func TestBackupAndImport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/content/categories", env.admin, map[string]any{"name": "Roads"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := decodeBody[models.Category](t, rec)
	rec = env.do(http.MethodPost, "/content/projects", env.admin, map[string]any{"title": "Ring road", "categoryId": cat.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	backup := env.do(http.MethodGet, "/content/backup", env.admin, nil)
	require.Equal(t, http.StatusOK, backup.Code)
	disposition := backup.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, `attachment; filename="site-backup-`), disposition)
	doc := decodeBody[content.Document](t, backup)
	require.Len(t, doc.Projects, 1)
	assert.Equal(t, "Roads", doc.Projects[0].Category)

	doc.Projects = append(doc.Projects, content.ExportProject{Title: "Orphan", Category: "Missing"})

	rec = env.do(http.MethodPost, "/content/import?dryRun=true", env.admin, doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[content.ImportResult](t, rec).DryRun)

	rec = env.do(http.MethodPost, "/content/import", env.admin, doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[content.ImportResult](t, rec)
	assert.Equal(t, 1, result.Created["projects"])
	assert.Equal(t, 1, result.Skipped["projects"])

	projects := decodeBody[[]models.Project](t, env.do(http.MethodGet, "/content/projects", "", nil))
	require.Len(t, projects, 1)
	assert.Equal(t, "Ring road", projects[0].Title)

	rec = env.do(http.MethodPost, "/content/import", env.admin, `{"version":"7.0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartImage(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(field string) *httptest.ResponseRecorder {
	body, contentType := multipartImage(e.t, field)
	req := httptest.NewRequest(http.MethodPost, "/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+e.employee)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload("file")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, env.images.url, decodeBody[UploadResponse](t, rec).URL)

	rec = env.upload("image")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.images.err = fmt.Errorf("%w: bucket unreachable", media.ErrUpload)
	rec = env.upload("file")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Image upload failed", errorMessage(t, rec))

	env.images.err = fmt.Errorf("%w: bmp", media.ErrUnsupportedFormat)
	rec = env.upload("file")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.images.err = errors.New("boom")
	rec = env.upload("file")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMutationsInvalidateRenderedPages(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = env.do(http.MethodPut, "/content/hero", env.admin, map[string]any{"title": "Foundations that last"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/", "", nil)
	assert.Contains(t, rec.Body.String(), "Foundations that last")
}

func TestUpdateAndDeleteRequireID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/content/timeline", env.admin, map[string]any{"title": "No id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/content/partners", env.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/content/partners?id=abc", env.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/content/partners?id=42", env.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
