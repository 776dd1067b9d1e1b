package fetcher

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"moorelink-bot/internal/models"
)

// FBFetcher reads page timelines through the RapidAPI facebook pages
// gateway, following the cursor until enough posts are collected.
type FBFetcher struct {
	APIKey  string
	Host    string
	BaseURL string
	Limit   int
	client  *http.Client
}

func NewFB(apiKey, host, baseURL string, limit int) *FBFetcher {
	return &FBFetcher{APIKey: apiKey, Host: host, BaseURL: baseURL, Limit: limit, client: newHTTPClient()}
}

type fbAttachment struct {
	Typename     string `json:"__typename"`
	ThumbnailURL string `json:"thumbnail_url"`
	PhotoImage   struct {
		URI string `json:"uri"`
	} `json:"photo_image"`
}

type fbPost struct {
	Details struct {
		PostID   string `json:"post_id"`
		Text     string `json:"text"`
		PostLink string `json:"post_link"`
	} `json:"details"`
	Values struct {
		PostID   string `json:"post_id"`
		Text     string `json:"text"`
		PostLink string `json:"post_link"`
		IsMedia  string `json:"is_media"`
	} `json:"values"`
	Attachments []fbAttachment `json:"attachments"`
}

type fbResponse struct {
	Data struct {
		Posts    []fbPost `json:"posts"`
		PageInfo struct {
			EndCursor string `json:"end_cursor"`
			HasNext   bool   `json:"has_next"`
		} `json:"page_info"`
	} `json:"data"`
}

// singlePostMarkers identify inputs that point at one shared post rather
// than a page.
var singlePostMarkers = []string{"share/", "mibextid=", "/posts/", "/photo.php", "/reel/"}

func (f *FBFetcher) Fetch(ctx context.Context, account string) ([]models.Post, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("fb fetcher not configured")
	}

	input := strings.TrimSpace(account)
	for _, m := range singlePostMarkers {
		if strings.Contains(input, m) {
			clean := strings.TrimRight(strings.SplitN(input, "?", 2)[0], "/")
			return []models.Post{{ID: clean, URL: clean, Caption: "Single shared Facebook post"}}, nil
		}
	}

	parts := strings.Split(strings.TrimPrefix(input, "@"), "/")
	page := strings.SplitN(parts[len(parts)-1], "?", 2)[0]
	if page == "" {
		return nil, fmt.Errorf("empty facebook page name")
	}
	profileURL := "https://www.facebook.com/" + page

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var posts []models.Post
	seen := make(map[string]bool)
	cursor := ""

	for len(posts) < limit {
		q := url.Values{}
		q.Set("link", profileURL)
		q.Set("timezone", "UTC")
		if cursor != "" {
			q.Set("end_cursor", cursor)
		}

		var resp fbResponse
		err := getJSON(ctx, f.client, f.BaseURL+"/get_facebook_posts_details?"+q.Encode(), map[string]string{
			"x-rapidapi-key":  f.APIKey,
			"x-rapidapi-host": f.Host,
		}, &resp)
		if err != nil {
			return posts, fmt.Errorf("fb fetch %s: %w", page, err)
		}
		if len(resp.Data.Posts) == 0 {
			break
		}

		for _, item := range resp.Data.Posts {
			if len(posts) >= limit {
				break
			}
			id := item.Details.PostID
			if id == "" {
				id = item.Values.PostID
			}
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			caption := item.Values.Text
			if caption == "" {
				caption = item.Details.Text
			}
			postURL := item.Details.PostLink
			if postURL == "" {
				postURL = item.Values.PostLink
			}
			if postURL == "" {
				postURL = fmt.Sprintf("https://www.facebook.com/%s/posts/%s", page, id)
			}

			isVideo := strings.Contains(strings.ToLower(postURL), "reel") ||
				item.Values.IsMedia == "Video"

			mediaURL := ""
			if len(item.Attachments) > 0 {
				switch att := item.Attachments[0]; att.Typename {
				case "Video":
					mediaURL = att.ThumbnailURL
					isVideo = true
				case "Photo":
					mediaURL = att.PhotoImage.URI
				}
			}

			posts = append(posts, models.Post{
				ID:       id,
				URL:      postURL,
				Caption:  html.UnescapeString(caption),
				MediaURL: mediaURL,
				IsVideo:  isVideo,
			})
		}

		if resp.Data.PageInfo.EndCursor == "" || !resp.Data.PageInfo.HasNext {
			break
		}
		cursor = resp.Data.PageInfo.EndCursor
	}

	return posts, nil
}
