package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"moorelink-bot/internal/models"
)

// IGFetcher reads profile feeds through the RapidAPI instagram gateway.
type IGFetcher struct {
	APIKey  string
	Host    string
	BaseURL string
	client  *http.Client
}

func NewIG(apiKey, host, baseURL string) *IGFetcher {
	return &IGFetcher{APIKey: apiKey, Host: host, BaseURL: baseURL, client: newHTTPClient()}
}

type igItem struct {
	Code    string `json:"code"`
	IsVideo bool   `json:"is_video"`
	Caption struct {
		Text string `json:"text"`
	} `json:"caption"`
	DisplayURL string `json:"display_url"`
	VideoURL   string `json:"video_url"`
}

type igResponse struct {
	Data struct {
		Items []igItem `json:"items"`
	} `json:"data"`
	Items []igItem `json:"items"`
}

func (f *IGFetcher) Fetch(ctx context.Context, account string) ([]models.Post, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("ig fetcher not configured")
	}

	handle := strings.TrimPrefix(strings.TrimSpace(account), "@")
	if handle == "" {
		return nil, fmt.Errorf("empty instagram handle")
	}

	q := url.Values{}
	q.Set("username_or_id_or_url", handle)

	var resp igResponse
	err := getJSON(ctx, f.client, f.BaseURL+"/v1/posts?"+q.Encode(), map[string]string{
		"x-rapidapi-key":  f.APIKey,
		"x-rapidapi-host": f.Host,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ig fetch %s: %w", handle, err)
	}

	items := resp.Data.Items
	if len(items) == 0 {
		items = resp.Items
	}

	posts := make([]models.Post, 0, len(items))
	for _, it := range items {
		if it.Code == "" {
			continue
		}
		media := it.DisplayURL
		if it.IsVideo && it.VideoURL != "" {
			media = it.VideoURL
		}
		posts = append(posts, models.Post{
			ID:       it.Code,
			URL:      "https://www.instagram.com/p/" + it.Code + "/",
			Caption:  it.Caption.Text,
			MediaURL: media,
			IsVideo:  it.IsVideo,
		})
	}
	return posts, nil
}
