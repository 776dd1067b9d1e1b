package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"moorelink-bot/internal/models"
)

const xFixerDomain = "fixupx.com"

var numericID = regexp.MustCompile(`\d{5,}`)

// XFetcher pulls recent tweets through the RapidAPI twitter gateway. The
// upstream keys timelines by numeric user id, so account input must carry
// one.
type XFetcher struct {
	APIKey  string
	Host    string
	BaseURL string
	client  *http.Client
}

func NewX(apiKey, host, baseURL string) *XFetcher {
	return &XFetcher{APIKey: apiKey, Host: host, BaseURL: baseURL, client: newHTTPClient()}
}

type tweet struct {
	IDStr string          `json:"id_str"`
	ID    json.RawMessage `json:"id"`
	Text  string          `json:"text"`
}

type tweetsResponse struct {
	Data     []tweet `json:"data"`
	Statuses []tweet `json:"statuses"`
	Results  []tweet `json:"results"`
}

func (f *XFetcher) Fetch(ctx context.Context, account string) ([]models.Post, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("x fetcher not configured")
	}
	userID, err := extractUserID(account)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("count", "20")

	var resp tweetsResponse
	err = getJSON(ctx, f.client, f.BaseURL+"?"+q.Encode(), map[string]string{
		"x-rapidapi-key":  f.APIKey,
		"x-rapidapi-host": f.Host,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("x fetch %s: %w", userID, err)
	}

	tweets := resp.Data
	if len(tweets) == 0 {
		tweets = resp.Statuses
	}
	if len(tweets) == 0 {
		tweets = resp.Results
	}

	posts := make([]models.Post, 0, len(tweets))
	for _, tw := range tweets {
		id := tw.IDStr
		if id == "" {
			id = rawID(tw.ID)
		}
		if id == "" {
			continue
		}
		posts = append(posts, models.Post{
			ID:      id,
			URL:     fmt.Sprintf("https://%s/%s/status/%s", xFixerDomain, userID, id),
			Caption: tw.Text,
		})
	}
	return posts, nil
}

// extractUserID accepts a bare numeric id or any input containing one. Early
// accounts have ids well under ten digits, so the embedded-run match stays
// permissive.
func extractUserID(account string) (string, error) {
	if _, err := strconv.ParseUint(account, 10, 64); err == nil {
		return account, nil
	}
	if m := numericID.FindString(account); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("no numeric user id in %q", account)
}

// rawID tolerates upstream sending the id as either a string or a number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return ""
}
