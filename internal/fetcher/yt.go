package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"moorelink-bot/internal/models"
)

const ytAPIBase = "https://www.googleapis.com/youtube/v3"

// YTFetcher lists a channel's uploads through the YouTube Data API: handle
// lookup first, then a page of the uploads playlist.
type YTFetcher struct {
	APIKey string
	Limit  int
	client *http.Client
}

func NewYT(apiKey string, limit int) *YTFetcher {
	return &YTFetcher{APIKey: apiKey, Limit: limit, client: newHTTPClient()}
}

type ytChannelsResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytThumb struct {
	URL string `json:"url"`
}

type ytPlaylistResponse struct {
	Items []struct {
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			PublishedAt string `json:"publishedAt"`
			ResourceID  struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
			Thumbnails map[string]ytThumb `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

func (f *YTFetcher) Fetch(ctx context.Context, account string) ([]models.Post, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("yt fetcher not configured")
	}

	handle := strings.TrimPrefix(strings.TrimSpace(account), "@")
	if handle == "" {
		return nil, fmt.Errorf("empty youtube handle")
	}

	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("forHandle", handle)
	q.Set("key", f.APIKey)

	var chResp ytChannelsResponse
	if err := getJSON(ctx, f.client, ytAPIBase+"/channels?"+q.Encode(), nil, &chResp); err != nil {
		return nil, fmt.Errorf("yt channel lookup %s: %w", handle, err)
	}
	if len(chResp.Items) == 0 {
		return nil, fmt.Errorf("no youtube channel for @%s", handle)
	}
	uploads := chResp.Items[0].ContentDetails.RelatedPlaylists.Uploads

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	type dated struct {
		post models.Post
		at   string
	}
	var videos []dated
	pageToken := ""

	for len(videos) < limit {
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("playlistId", uploads)
		q.Set("maxResults", fmt.Sprint(min(50, limit-len(videos))))
		q.Set("key", f.APIKey)
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var plResp ytPlaylistResponse
		if err := getJSON(ctx, f.client, ytAPIBase+"/playlistItems?"+q.Encode(), nil, &plResp); err != nil {
			return nil, fmt.Errorf("yt playlist %s: %w", uploads, err)
		}

		for _, item := range plResp.Items {
			sn := item.Snippet
			if sn.Title == "Private video" || sn.Title == "Deleted video" {
				continue
			}
			if sn.ResourceID.VideoID == "" {
				continue
			}
			desc := sn.Description
			if len(desc) > 800 {
				desc = desc[:800]
			}
			videos = append(videos, dated{
				post: models.Post{
					ID:       sn.ResourceID.VideoID,
					URL:      "https://www.youtube.com/watch?v=" + sn.ResourceID.VideoID,
					Caption:  fmt.Sprintf("<b>%s</b>\n\n%s", sn.Title, desc),
					MediaURL: bestThumb(sn.Thumbnails),
					IsVideo:  true,
				},
				at: sn.PublishedAt,
			})
			if len(videos) >= limit {
				break
			}
		}

		if plResp.NextPageToken == "" {
			break
		}
		pageToken = plResp.NextPageToken
	}

	sort.SliceStable(videos, func(i, j int) bool { return videos[i].at > videos[j].at })

	posts := make([]models.Post, len(videos))
	for i, v := range videos {
		posts[i] = v.post
	}
	return posts, nil
}

// bestThumb prefers the largest available thumbnail size.
func bestThumb(thumbs map[string]ytThumb) string {
	for _, k := range []string{"maxres", "standard", "high", "medium", "default"} {
		if t, ok := thumbs[k]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
