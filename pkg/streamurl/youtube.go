package streamurl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/html"
)

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (c *Client) youtubeMetadata(ctx context.Context, rawURL string) (*Metadata, error) {
	videoID, err := YouTubeID(rawURL)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Type:        KindYouTube,
		VideoID:     videoID,
		EmbedURL:    embedURL(videoID),
		OriginalURL: rawURL,
	}

	data, err := c.getWithOEmbed(ctx, videoID)
	if err != nil {
		if !errors.Is(err, ErrVideoNotEmbeddable) {
			return nil, fmt.Errorf("failed to get video data with oembed: %w", err)
		}

		data, err = c.getFromPage(ctx, videoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get video data from page: %w", err)
		}
	}

	md.Title = data.Title
	md.AuthorName = data.AuthorName
	md.ThumbnailURL = data.ThumbnailURL
	if md.Title == "" {
		md.Title = "YouTube Video " + videoID
	}

	return md, nil
}

func (c *Client) getWithOEmbed(ctx context.Context, videoID string) (*oembedResponse, error) {
	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oembedURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusNotFound:
		return nil, ErrVideoNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrVideoNotEmbeddable
	default:
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrUnreachable, resp.StatusCode)
	}

	var result oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	return &result, nil
}

func (c *Client) getFromPage(ctx context.Context, videoID string) (*oembedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL+videoID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrUnreachable, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	return &oembedResponse{
		Title:        findTitle(doc),
		AuthorName:   findItempropName(doc),
		ThumbnailURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID),
	}, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findItempropName(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "link" {
		if prop, _ := attr(n, "itemprop"); prop == "name" {
			if content, ok := attr(n, "content"); ok {
				return content
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if content := findItempropName(c); content != "" {
			return content
		}
	}
	return ""
}
