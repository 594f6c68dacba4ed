package streamurl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

func (c *Client) checkExternal(ctx context.Context, rawURL string) (*Validation, error) {
	if err := CheckFormat(rawURL, KindExternal); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrUnreachable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")

	return &Validation{
		IsValid:     true,
		ContentType: contentType,
		IsVideo:     strings.HasPrefix(contentType, "video/") || videoExtRegex.MatchString(rawURL),
		NeedsProxy:  strings.HasPrefix(rawURL, "http://"),
		OriginalURL: rawURL,
	}, nil
}

// Validate checks rawURL for kind. YouTube links are checked offline,
// external links with a HEAD request.
func (c *Client) Validate(ctx context.Context, rawURL string, kind Kind) (*Validation, error) {
	switch kind {
	case KindYouTube:
		videoID, err := YouTubeID(rawURL)
		if err != nil {
			return nil, err
		}
		return &Validation{
			IsValid:     true,
			VideoID:     videoID,
			EmbedURL:    embedURL(videoID),
			OriginalURL: rawURL,
		}, nil
	case KindExternal:
		return c.checkExternal(ctx, rawURL)
	default:
		return nil, fmt.Errorf("%w: unknown stream type %q", ErrInvalidURL, kind)
	}
}

func (c *Client) Metadata(ctx context.Context, rawURL string, kind Kind) (*Metadata, error) {
	switch kind {
	case KindYouTube:
		return c.youtubeMetadata(ctx, rawURL)
	case KindExternal:
		v, err := c.checkExternal(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return &Metadata{
			Type:        KindExternal,
			ContentType: v.ContentType,
			IsVideo:     v.IsVideo,
			NeedsProxy:  v.NeedsProxy,
			OriginalURL: rawURL,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown stream type %q", ErrInvalidURL, kind)
	}
}
