package streamurl

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

type Kind string

const (
	KindYouTube  Kind = "YOUTUBE_LINK"
	KindExternal Kind = "EXTERNAL_LINK"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindYouTube, KindExternal:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: unknown stream type %q", ErrInvalidURL, s)
	}
}

var (
	ErrInvalidURL         = errors.New("invalid stream url")
	ErrUnreachable        = errors.New("stream url unreachable")
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoNotEmbeddable = errors.New("video is not embeddable")
)

var youtubeRegex = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`)

var videoExtRegex = regexp.MustCompile(`(?i)\.(mp4|webm|ogg|avi|mov)(\?.*)?$`)

const (
	defaultOEmbedURL = "https://www.youtube.com/oembed"
	defaultPageURL   = "https://youtu.be/"
	requestTimeout   = 5 * time.Second
	maxRedirects     = 3
)

type Validation struct {
	IsValid     bool   `json:"isValid"`
	VideoID     string `json:"videoId,omitempty"`
	EmbedURL    string `json:"embedUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	IsVideo     bool   `json:"isVideo,omitempty"`
	NeedsProxy  bool   `json:"needsProxy"`
	OriginalURL string `json:"originalUrl"`
}

type Metadata struct {
	Type         Kind     `json:"type"`
	VideoID      string   `json:"videoId,omitempty"`
	EmbedURL     string   `json:"embedUrl,omitempty"`
	Title        string   `json:"title,omitempty"`
	AuthorName   string   `json:"authorName,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	ContentType  string   `json:"contentType,omitempty"`
	IsVideo      bool     `json:"isVideo,omitempty"`
	NeedsProxy   bool     `json:"needsProxy"`
	OriginalURL  string   `json:"originalUrl"`
	Duration     *float64 `json:"duration"`
}

type Client struct {
	http      *http.Client
	oembedURL string
	pageURL   string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

// WithYouTubeEndpoints overrides the oEmbed endpoint and the watch page prefix.
func WithYouTubeEndpoints(oembedURL, pageURL string) Option {
	return func(client *Client) {
		client.oembedURL = oembedURL
		client.pageURL = pageURL
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: requestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		oembedURL: defaultOEmbedURL,
		pageURL:   defaultPageURL,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// YouTubeID extracts the 11 character video id from a watch, short or embed link.
func YouTubeID(rawURL string) (string, error) {
	match := youtubeRegex.FindStringSubmatch(rawURL)
	if match == nil {
		return "", fmt.Errorf("%w: invalid YouTube URL format", ErrInvalidURL)
	}

	return match[4], nil
}

func embedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}

// CheckFormat validates rawURL against kind without any network access.
func CheckFormat(rawURL string, kind Kind) error {
	switch kind {
	case KindYouTube:
		_, err := YouTubeID(rawURL)
		return err
	case KindExternal:
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: invalid URL format", ErrInvalidURL)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown stream type %q", ErrInvalidURL, kind)
	}
}
