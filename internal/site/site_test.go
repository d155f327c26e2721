package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civilsite-backend-go/internal/cache"
	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) (*Renderer, *content.Store, *cache.Memory) {
	t.Helper()
	testutil.QuietLogs(t)
	conn := testutil.TestDB(t)
	store := content.NewStore(conn, testutil.TxTimeout)
	mem := cache.NewMemory(time.Minute)
	r, err := NewRenderer(store, mem, "Civil Works")
	require.NoError(t, err)
	return r, store, mem
}

func get(t *testing.T, r *Renderer, route string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler(route).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, route, nil))
	return rec
}

func TestMissingSingletonRendersUnavailable(t *testing.T) {
	r, _, mem := newRenderer(t)

	rec := get(t, r, RouteHome)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Content unavailable")
	assert.Zero(t, mem.Len())
}

func TestPagesRenderStoredContent(t *testing.T) {
	r, store, _ := newRenderer(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSingletons(ctx))

	_, err := store.UpdateHero(ctx, content.HeroInput{Title: testutil.Ptr("Building bridges")})
	require.NoError(t, err)
	cat, err := store.CreateCategory(ctx, content.CategoryInput{Name: testutil.Ptr("Bridges")})
	require.NoError(t, err)
	id := models.RefID(cat.ID)
	_, err = store.CreateProject(ctx, content.ProjectInput{
		Title:       testutil.Ptr("River crossing"),
		Description: testutil.Ptr("A steel arch"),
		ImageURL:    testutil.Ptr("/media/images/bridge.jpg"),
		CategoryID:  &id,
	})
	require.NoError(t, err)
	_, err = store.UpdateContact(ctx, content.ContactInput{Email: testutil.Ptr("office@example.com")})
	require.NoError(t, err)

	home := get(t, r, RouteHome).Body.String()
	assert.Contains(t, home, "Building bridges")
	assert.Contains(t, home, "River crossing")
	assert.Contains(t, home, "office@example.com")
	assert.Contains(t, home, `fetch("/visits"`)

	portfolio := get(t, r, RoutePortfolio).Body.String()
	assert.Contains(t, portfolio, "A steel arch")
	assert.Contains(t, portfolio, "Bridges")
}

func TestAboutMarkdownIsSanitized(t *testing.T) {
	r, store, _ := newRenderer(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSingletons(ctx))

	_, err := store.UpdateAbout(ctx, content.AboutInput{
		Title: testutil.Ptr("Who we are"),
		Body:  testutil.Ptr("We build **durable** structures.\n\n<script>alert(1)</script>"),
	})
	require.NoError(t, err)

	body := get(t, r, RouteAbout).Body.String()
	assert.Contains(t, body, "<strong>durable</strong>")
	assert.NotContains(t, body, "alert(1)")
}

func TestInvalidateDropsAffectedRoutes(t *testing.T) {
	r, store, mem := newRenderer(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSingletons(ctx))

	for _, route := range AllRoutes {
		require.Equal(t, http.StatusOK, get(t, r, route).Code)
	}
	require.Equal(t, len(AllRoutes), mem.Len())

	_, err := store.UpdateHero(ctx, content.HeroInput{Title: testutil.Ptr("Fresh title")})
	require.NoError(t, err)
	assert.NotContains(t, get(t, r, RouteHome).Body.String(), "Fresh title")

	r.Invalidate(ctx, EntityHero)
	assert.Equal(t, len(AllRoutes)-1, mem.Len())
	assert.Contains(t, get(t, r, RouteHome).Body.String(), "Fresh title")

	r.Invalidate(ctx, EntityContact)
	assert.Zero(t, mem.Len())

	for _, route := range AllRoutes {
		require.Equal(t, http.StatusOK, get(t, r, route).Code)
	}
	require.NoError(t, mem.Set(ctx, cacheKeyPrefix+"/retired", []byte("old"), 0))
	r.Invalidate(ctx, EntityAll)
	assert.Zero(t, mem.Len())
}

// interceptingCache runs beforeSet once, ahead of the first write.
type interceptingCache struct {
	cache.Cacher
	beforeSet func()
}

func (c *interceptingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	return c.Cacher.Set(ctx, key, value, ttl)
}

func TestRenderDoesNotCachePageInvalidatedMidRender(t *testing.T) {
	testutil.QuietLogs(t)
	conn := testutil.TestDB(t)
	store := content.NewStore(conn, testutil.TxTimeout)
	ctx := context.Background()
	require.NoError(t, store.EnsureSingletons(ctx))
	_, err := store.UpdateHero(ctx, content.HeroInput{Title: testutil.Ptr("Old headline")})
	require.NoError(t, err)

	mem := cache.NewMemory(time.Minute)
	intercept := &interceptingCache{Cacher: mem}
	r, err := NewRenderer(store, intercept, "Civil Works")
	require.NoError(t, err)

	// The hero changes after the home page has loaded its data but before the page is cached.
	intercept.beforeSet = func() {
		_, err := store.UpdateHero(ctx, content.HeroInput{Title: testutil.Ptr("New headline")})
		require.NoError(t, err)
		r.Invalidate(ctx, EntityHero)
	}
	assert.Contains(t, get(t, r, RouteHome).Body.String(), "Old headline")
	assert.Zero(t, mem.Len())

	body := get(t, r, RouteHome).Body.String()
	assert.Contains(t, body, "New headline")
	assert.NotContains(t, body, "Old headline")
	assert.Equal(t, 1, mem.Len())
}

func TestRenderSkipsCacheWhenInvalidatedBeforeWrite(t *testing.T) {
	r, store, mem := newRenderer(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSingletons(ctx))

	gen := r.generation(RouteHome)
	r.Invalidate(ctx, EntityHero)
	r.cachePage(ctx, RouteHome, gen, []byte("stale"))
	assert.Zero(t, mem.Len())

	r.cachePage(ctx, RouteHome, r.generation(RouteHome), []byte("fresh"))
	assert.Equal(t, 1, mem.Len())
}

func TestRoutesFor(t *testing.T) {
	assert.Equal(t, []string{RouteHome}, RoutesFor(EntityHero))
	assert.ElementsMatch(t, []string{RoutePortfolio, RouteHome}, RoutesFor(EntityProjects))
	assert.ElementsMatch(t, []string{RouteHome, RouteAbout}, RoutesFor(EntityPartners))
	assert.Equal(t, AllRoutes, RoutesFor(EntityContact))
	assert.Equal(t, AllRoutes, RoutesFor(EntityAll))
}
