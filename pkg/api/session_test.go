package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/seotools/pkg/observability"
)

func TestSessionMiddleware(t *testing.T) {
	var seen string
	handler := SessionMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetSessionID(r.Context())
	}))

	t.Run("mints a session", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookieName, cookies[0].Name)
		assert.Equal(t, seen, cookies[0].Value)
		assert.Equal(t, int(DefaultSessionMaxAge/time.Second), cookies[0].MaxAge)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("reuses a valid cookie", func(t *testing.T) {
		existing := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: existing})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, existing, seen)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("replaces a malformed cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-uuid"})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.NotEqual(t, "not-a-uuid", seen)
		assert.Len(t, w.Result().Cookies(), 1)
	})
}
