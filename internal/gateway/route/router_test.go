package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, entries ...Entry) *Router {
	t.Helper()

	table, err := NewTable(entries)
	require.NoError(t, err)
	return NewRouter(table)
}

func TestRouter_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("より深いプレフィックスが完全一致で優先されること", func(t *testing.T) {
		t.Parallel()

		r := newTestRouter(t,
			Entry{Prefix: "/courses", Service: "course"},
			Entry{Prefix: "/courses/ai", Service: "ai"},
		)

		e, err := r.Resolve("/courses/ai/generate")
		require.NoError(t, err)
		assert.Equal(t, "ai", e.Service)

		e, err = r.Resolve("/courses/123")
		require.NoError(t, err)
		assert.Equal(t, "course", e.Service)

		e, err = r.Resolve("/courses")
		require.NoError(t, err)
		assert.Equal(t, "course", e.Service)

		e, err = r.Resolve("/courses/ai")
		require.NoError(t, err)
		assert.Equal(t, "ai", e.Service)
	})

	t.Run("登録済みプレフィックス配下のパスは常に対応するサービスに解決されること", func(t *testing.T) {
		t.Parallel()

		entries := []Entry{
			{Prefix: "/courses", Service: "course"},
			{Prefix: "/assignments", Service: "assignment"},
			{Prefix: "/wellbeing", Service: "wellbeing"},
			{Prefix: "/gamification", Service: "gamification"},
			{Prefix: "/analytics", Service: "analytics"},
		}
		r := newTestRouter(t, entries...)

		suffixes := []string{"", "/", "/1", "/1/submissions", "/a/b/c?x=1"}
		for _, e := range entries {
			for _, s := range suffixes {
				got, err := r.Resolve(e.Prefix + s)
				require.NoError(t, err, e.Prefix+s)
				assert.Equal(t, e.Service, got.Service, e.Prefix+s)
			}
		}
	})

	t.Run("セグメント完全一致が文字列プレフィックス一致より優先されること", func(t *testing.T) {
		t.Parallel()

		r := newTestRouter(t,
			Entry{Prefix: "/course", Service: "legacy"},
			Entry{Prefix: "/courses", Service: "course"},
		)

		e, err := r.Resolve("/courses/42")
		require.NoError(t, err)
		assert.Equal(t, "course", e.Service)

		e, err = r.Resolve("/course/42")
		require.NoError(t, err)
		assert.Equal(t, "legacy", e.Service)
	})

	t.Run("文字列プレフィックス一致が複数ある場合は先に登録されたルートが採用されること", func(t *testing.T) {
		t.Parallel()

		r := newTestRouter(t,
			Entry{Prefix: "/co", Service: "first"},
			Entry{Prefix: "/cou", Service: "second"},
		)

		e, err := r.Resolve("/coupons/1")
		require.NoError(t, err)
		assert.Equal(t, "first", e.Service)
		assert.Equal(t, "/co", e.Prefix)

		r = newTestRouter(t,
			Entry{Prefix: "/cou", Service: "second"},
			Entry{Prefix: "/co", Service: "first"},
		)
		e, err = r.Resolve("/coupons/1")
		require.NoError(t, err)
		assert.Equal(t, "second", e.Service)
	})

	t.Run("先頭の重複スラッシュは無視されること", func(t *testing.T) {
		t.Parallel()

		r := newTestRouter(t, Entry{Prefix: "/courses", Service: "course"})

		e, err := r.Resolve("//courses/1")
		require.NoError(t, err)
		assert.Equal(t, "course", e.Service)
	})

	t.Run("ルートパスと空パスは解決されないこと", func(t *testing.T) {
		t.Parallel()

		r := newTestRouter(t, Entry{Prefix: "/courses", Service: "course"})

		for _, p := range []string{"", "/", "//"} {
			_, err := r.Resolve(p)
			assert.ErrorIs(t, err, ErrRouteNotFound, p)
		}
	})

	t.Run("一致するルートがない場合はErrRouteNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		r := newTestRouter(t, Entry{Prefix: "/courses", Service: "course"})

		_, err := r.Resolve("/unknown/path")
		assert.ErrorIs(t, err, ErrRouteNotFound)
	})
}
