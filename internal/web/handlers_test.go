package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/db"
	"github.com/tracekit/pktvis/internal/ops"
)

const sampleTrace = ` 3)               |  udp_rcv() {
 3)   1.213 us    |    __kfree_skb();
 3)   4.712 us    |  }
`

func testServer(t *testing.T) (*httptest.Server, *sql.DB, *config.Config) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	s, err := NewServer(database, cfg, "test")
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, database, cfg
}

func storeTimeline(t *testing.T, database *sql.DB, cfg *config.Config, name string) string {
	t.Helper()
	out, err := ops.Parse(database, cfg, ops.ParseInput{
		TraceText: sampleTrace,
		Name:      &name,
	})
	require.NoError(t, err)
	return out.ID
}

func writeSourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	udp := filepath.Join(root, "net", "ipv4")
	require.NoError(t, os.MkdirAll(udp, 0o755))
	udpSrc := "/* UDP receive path */\nint udp_rcv(struct sk_buff *skb)\n{\n\treturn __udp4_lib_rcv(skb, &udp_table, IPPROTO_UDP);\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(udp, "udp.c"), []byte(udpSrc), 0o644))
	return root
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func bodyString(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRootRedirectsToTimelines(t *testing.T) {
	ts, _, _ := testServer(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/timelines", resp.Header.Get("Location"))
}

func TestListPage(t *testing.T) {
	ts, database, cfg := testServer(t)
	storeTimeline(t, database, cfg, "udp baseline")

	resp := get(t, ts, "/timelines")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := bodyString(t, resp)
	require.Contains(t, body, "udp baseline")
	require.Contains(t, body, "<title>Timelines · pktvis</title>")
}

func TestListPage_Empty(t *testing.T) {
	ts, _, _ := testServer(t)

	resp := get(t, ts, "/timelines")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, bodyString(t, resp), "No timelines stored yet")
}

func TestDetailPage(t *testing.T) {
	ts, database, cfg := testServer(t)
	id := storeTimeline(t, database, cfg, "udp baseline")

	resp := get(t, ts, "/timelines/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := bodyString(t, resp)
	require.Contains(t, body, "udp_rcv")
	require.Contains(t, body, "__kfree_skb")
	require.Contains(t, body, id)
}

func TestDetailPage_NotFound(t *testing.T) {
	ts, _, _ := testServer(t)

	resp := get(t, ts, "/timelines/01DOESNOTEXIST0000000000")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, bodyString(t, resp), "Error 404")
}

func TestDetailPage_NotFoundJSON(t *testing.T) {
	ts, _, _ := testServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/timelines/01DOESNOTEXIST0000000000", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
}

func TestSourcePage(t *testing.T) {
	ts, database, cfg := testServer(t)
	id := storeTimeline(t, database, cfg, "udp baseline")

	root := writeSourceTree(t)
	_, err := ops.Resolve(context.Background(), database, cfg, ops.ResolveInput{
		ID:         id,
		SourceRoot: root,
	})
	require.NoError(t, err)

	resp := get(t, ts, "/timelines/"+id+"/source/udp_rcv")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := bodyString(t, resp)
	require.Contains(t, body, "int udp_rcv")
	require.Contains(t, body, "net/ipv4/udp.c")
	// goldmark renders the fenced block as <pre><code class="language-c">
	require.Contains(t, body, "language-c")
}

func TestSourcePage_BeforeResolve(t *testing.T) {
	ts, database, cfg := testServer(t)
	id := storeTimeline(t, database, cfg, "udp baseline")

	resp := get(t, ts, "/timelines/"+id+"/source/udp_rcv")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTimeline(t *testing.T) {
	ts, database, cfg := testServer(t)
	id := storeTimeline(t, database, cfg, "udp baseline")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/timelines/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Deleted timelines disappear from the default list
	listResp := get(t, ts, "/timelines")
	require.NotContains(t, bodyString(t, listResp), "udp baseline")
}

func TestDeleteTimeline_HTMXRedirect(t *testing.T) {
	ts, database, cfg := testServer(t)
	id := storeTimeline(t, database, cfg, "udp baseline")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/timelines/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/timelines", resp.Header.Get("HX-Redirect"))
}

func TestPurgeTimelines(t *testing.T) {
	ts, database, cfg := testServer(t)
	id := storeTimeline(t, database, cfg, "udp baseline")

	_, err := ops.Delete(database, ops.DeleteInput{ID: id})
	require.NoError(t, err)

	form := url.Values{"older_than_days": {"0"}}
	resp, err := http.PostForm(ts.URL+"/timelines/purge", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ops.PurgeOutput
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Purged)
}

func TestPurgeTimelines_BadDays(t *testing.T) {
	ts, _, _ := testServer(t)

	form := url.Values{"older_than_days": {"soon"}}
	resp, err := http.PostForm(ts.URL+"/timelines/purge", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSecurityHeaders(t *testing.T) {
	ts, _, _ := testServer(t)

	resp := get(t, ts, "/timelines")
	require.Equal(t, "default-src 'self'", resp.Header.Get("Content-Security-Policy"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestStaticAssets(t *testing.T) {
	ts, _, _ := testServer(t)

	resp := get(t, ts, "/static/style.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
}

func TestHTMXRendersContentFragment(t *testing.T) {
	ts, database, cfg := testServer(t)
	storeTimeline(t, database, cfg, "udp baseline")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/timelines", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := bodyString(t, resp)
	require.Contains(t, body, "udp baseline")
	require.NotContains(t, body, "<!DOCTYPE html>")
}
