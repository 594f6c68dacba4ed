package streamurl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYouTubeID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":      "dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ":                             "dQw4w9WgXcQ",
		"http://youtube.com/embed/dQw4w9WgXcQ?autoplay=1":  "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=abc_DEF-123&t=10": "abc_DEF-123",
	}
	for in, want := range cases {
		got, err := YouTubeID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := YouTubeID("https://vimeo.com/123")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = YouTubeID("https://youtu.be/short")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, CheckFormat("https://cdn.example.com/a.mp4", KindExternal))
	assert.ErrorIs(t, CheckFormat("not a url", KindExternal), ErrInvalidURL)
	assert.ErrorIs(t, CheckFormat("ftp://example.com/a.mp4", KindExternal), ErrInvalidURL)
	assert.ErrorIs(t, CheckFormat("https://example.com", Kind("OTHER")), ErrInvalidURL)
}

func TestValidateExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/missing.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
	}))
	defer srv.Close()

	c := New()

	v, err := c.Validate(context.Background(), srv.URL+"/movie.mp4", KindExternal)
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.True(t, v.IsVideo)
	assert.True(t, v.NeedsProxy)
	assert.Equal(t, "video/mp4", v.ContentType)

	_, err = c.Validate(context.Background(), srv.URL+"/missing.mp4", KindExternal)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestYouTubeMetadataFallsBackToPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Some Title</title>` +
			`<link itemprop="name" content="Some Author"></head><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(WithYouTubeEndpoints(srv.URL+"/oembed", srv.URL+"/page/"))

	md, err := c.Metadata(context.Background(), "https://youtu.be/dQw4w9WgXcQ", KindYouTube)
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", md.VideoID)
	assert.Equal(t, "Some Title", md.Title)
	assert.Equal(t, "Some Author", md.AuthorName)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", md.EmbedURL)
}

func TestYouTubeMetadataFromOEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"title":"T","author_name":"A","thumbnail_url":"http://img"}`))
	}))
	defer srv.Close()

	c := New(WithYouTubeEndpoints(srv.URL, srv.URL+"/"))

	md, err := c.Metadata(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", KindYouTube)
	require.NoError(t, err)
	assert.Equal(t, "T", md.Title)
	assert.Equal(t, "A", md.AuthorName)
	assert.Equal(t, "http://img", md.ThumbnailURL)
}
