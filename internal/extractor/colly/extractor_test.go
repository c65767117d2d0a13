package collyextractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<div id="gmr-main-load">
  <article>
    <a itemprop="url" href="/alpha/"></a>
    <img src="/wp-content/uploads/alpha-152x228.jpg" alt="Alpha">
  </article>
  <article>
    <a itemprop="url" href="/beta/"></a>
    <img src="/wp-content/uploads/beta.jpg" alt="Beta">
  </article>
</div>
<div class="grid-container">
  <div class="gmr-item-modulepost">
    <a href="/gamma/"></a>
    <img src="/wp-content/uploads/gamma-300x450.jpg" alt="Gamma">
  </div>
</div>
</body></html>`

const detailHTML = `<!DOCTYPE html>
<html><body>
<span class="runtime">102 min</span>
<div id="download">
  <a href="/files/alpha-720p.mkv">720p</a>
  <a href="/files/alpha-1080p.mkv">1080p</a>
</div>
</body></html>`

const emptyHTML = `<!DOCTYPE html><html><body><p>nothing here</p></body></html>`

func newTestExtractor(t *testing.T, listing string) (*Extractor, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listing)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detailHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ex := New(Config{BaseURL: srv.URL + "/page/%d/"}, zap.NewNop())
	return ex, srv
}

func TestExtractor_ExtractListing(t *testing.T) {
	ex, srv := newTestExtractor(t, listingHTML)

	snap, err := ex.Extract(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, 1, snap.Page)
	require.Len(t, snap.Latest, 2)
	require.Len(t, snap.Random, 1)

	alpha := snap.Latest[0]
	require.Equal(t, "Alpha", alpha.Title)
	require.Equal(t, srv.URL+"/alpha/", alpha.Link)
	require.Equal(t, srv.URL+"/wp-content/uploads/alpha.jpg", alpha.ThumbURL)
}

func TestExtractor_StripsThumbSizeSuffix(t *testing.T) {
	ex, srv := newTestExtractor(t, listingHTML)

	snap, err := ex.Extract(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/wp-content/uploads/gamma.jpg", snap.Random[0].ThumbURL)
	// A thumb without a size suffix passes through untouched.
	require.Equal(t, srv.URL+"/wp-content/uploads/beta.jpg", snap.Latest[1].ThumbURL)
}

func TestExtractor_FillsDetailsFromItemPage(t *testing.T) {
	ex, _ := newTestExtractor(t, listingHTML)

	snap, err := ex.Extract(context.Background(), 1)
	require.NoError(t, err)

	alpha := snap.Latest[0]
	require.Equal(t, "102 min", alpha.Duration)
	require.Len(t, alpha.DownloadLinks, 2)
	require.Equal(t, "720p", alpha.DownloadLinks[0].Label)
	require.Contains(t, alpha.DownloadLinks[0].URL, "/files/alpha-720p.mkv")
}

func TestExtractor_EmptyPageReturnsNil(t *testing.T) {
	ex, _ := newTestExtractor(t, emptyHTML)

	snap, err := ex.Extract(context.Background(), 9)
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestExtractor_VisitErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	ex := New(Config{BaseURL: srv.URL + "/page/%d/"}, zap.NewNop())
	_, err := ex.Extract(context.Background(), 1)
	require.Error(t, err)
}
