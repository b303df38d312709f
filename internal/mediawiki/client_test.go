// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mediawiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/infobox-kg/internal/httputil"
	"github.com/pdiddy/infobox-kg/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(types.SourceConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "infobox-kg-test/1.0", MaxRetries: 2},
		APIURL:     srv.URL + "/w/api.php",
		Burst:      1,
	})
}

func TestFetchWikitext(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "parse", q.Get("action"))
		assert.Equal(t, "Elrond", q.Get("page"))
		assert.Equal(t, "wikitext", q.Get("prop"))
		assert.Equal(t, "1", q.Get("redirects"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "infobox-kg-test/1.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"parse":{"title":"Elrond","wikitext":{"*":"{{Infobox character|name=Elrond}}"}}}`)
	})

	text, err := c.FetchWikitext(context.Background(), "Elrond")
	require.NoError(t, err)
	assert.Equal(t, "{{Infobox character|name=Elrond}}", text)
}

func TestFetchWikitext_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`)
	})

	_, err := c.FetchWikitext(context.Background(), "Nobody")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "missingtitle", apiErr.Code)
	assert.False(t, httputil.IsTransient(err))
}

func TestFetchWikitext_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"parse":{"wikitext":{"*":"ok"}}}`)
	})

	text, err := c.FetchWikitext(context.Background(), "Elrond")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchWikitext_ExhaustedRetries(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchWikitext(context.Background(), "Elrond")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestAllPages_FollowsContinuation(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "allpages", q.Get("list"))
		assert.Equal(t, "0", q.Get("apnamespace"))
		calls.Add(1)
		switch q.Get("apcontinue") {
		case "":
			fmt.Fprint(w, `{"continue":{"apcontinue":"Elrond","continue":"-||"},"query":{"allpages":[{"pageid":1,"ns":0,"title":"Aragorn"},{"pageid":2,"ns":0,"title":"Arwen"}]}}`)
		case "Elrond":
			assert.Equal(t, "-||", q.Get("continue"))
			fmt.Fprint(w, `{"batchcomplete":"","query":{"allpages":[{"pageid":3,"ns":0,"title":"Elrond"}]}}`)
		default:
			t.Errorf("unexpected apcontinue %q", q.Get("apcontinue"))
		}
	})

	titles, err := c.AllPages(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aragorn", "Arwen", "Elrond"}, titles)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAllPages_Limit(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("aplimit"))
		fmt.Fprint(w, `{"continue":{"apcontinue":"C"},"query":{"allpages":[{"title":"A"},{"title":"B"}]}}`)
	})

	titles, err := c.AllPages(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles)
}

func TestCategoryMembers(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "categorymembers", q.Get("list"))
		assert.Equal(t, "Category:Elves", q.Get("cmtitle"))
		assert.Equal(t, "0", q.Get("cmnamespace"))
		fmt.Fprint(w, `{"query":{"categorymembers":[{"title":"Elrond"},{"title":"Galadriel"}]}}`)
	})

	for _, cat := range []string{"Elves", "Category:Elves"} {
		titles, err := c.CategoryMembers(context.Background(), cat, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Elrond", "Galadriel"}, titles)
	}
}

func TestEmbeddedIn(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "embeddedin", q.Get("list"))
		assert.Equal(t, "Template:Infobox character", q.Get("eititle"))
		assert.Equal(t, "50", q.Get("eilimit"))
		fmt.Fprint(w, `{"query":{"embeddedin":[{"title":"Elrond"}]}}`)
	})

	titles, err := c.EmbeddedIn(context.Background(), "Infobox character", 0, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"Elrond"}, titles)
}

func TestList_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"invalidcategory","info":"The category name you entered is not valid."}}`)
	})

	_, err := c.CategoryMembers(context.Background(), "", 0, 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalidcategory", apiErr.Code)
}

func TestResolveTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"redirect", `{"query":{"redirects":[{"from":"Elrond Half-elven","to":"Elrond"}],"pages":{"42":{"pageid":42,"ns":0,"title":"Elrond"}}}}`, "Elrond"},
		{"missing", `{"query":{"pages":{"-1":{"ns":0,"title":"Nobody","missing":""}}}}`, ""},
		{"invalid", `{"query":{"pages":{"-1":{"title":"{{x","invalidreason":"bad","invalid":""}}}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, "query", q.Get("action"))
				assert.Equal(t, "1", q.Get("redirects"))
				assert.NotEmpty(t, q.Get("titles"))
				fmt.Fprint(w, tt.body)
			})
			got, err := c.ResolveTitle(context.Background(), "Elrond Half-elven")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLangLinks_FollowsContinuation(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "langlinks", q.Get("prop"))
		assert.Equal(t, "Elrond", q.Get("titles"))
		assert.Equal(t, "500", q.Get("lllimit"))
		calls.Add(1)
		switch q.Get("llcontinue") {
		case "":
			fmt.Fprint(w, `{"continue":{"llcontinue":"42|fr","continue":"||"},"query":{"pages":{"42":{"pageid":42,"title":"Elrond","langlinks":[{"lang":"de","*":"Elrond"}]}}}}`)
		case "42|fr":
			assert.Equal(t, "||", q.Get("continue"))
			fmt.Fprint(w, `{"batchcomplete":"","query":{"pages":{"42":{"pageid":42,"title":"Elrond","langlinks":[{"lang":"fr","*":"Elrond (personnage)"}]}}}}`)
		default:
			t.Errorf("unexpected llcontinue %q", q.Get("llcontinue"))
		}
	})

	got, err := c.LangLinks(context.Background(), "Elrond")
	require.NoError(t, err)
	assert.Equal(t, []LangLink{{Lang: "de", Title: "Elrond"}, {Lang: "fr", Title: "Elrond (personnage)"}}, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLangLinks_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"badvalue","info":"Unrecognized value"}}`)
	})
	_, err := c.LangLinks(context.Background(), "Elrond")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "badvalue", apiErr.Code)
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, NewLimiter(0, 1).Allow())
	l := NewLimiter(time.Hour, 2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
