package farcaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradefeed/internal/domain"
)

const defaultBaseURL = "https://api.neynar.com"

// Client talks to a Neynar-style Farcaster social graph API.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("social graph api key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type followingResponse struct {
	Users []struct {
		User *struct {
			FID         uint64 `json:"fid"`
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			PfpURL      string `json:"pfp_url"`
			Profile     *struct {
				Bio *struct {
					Text string `json:"text"`
				} `json:"bio"`
			} `json:"profile"`
			VerifiedAddresses *struct {
				EthAddresses []string `json:"eth_addresses"`
				SolAddresses []string `json:"sol_addresses"`
			} `json:"verified_addresses"`
		} `json:"user"`
	} `json:"users"`
	Next struct {
		Cursor string `json:"cursor"`
	} `json:"next"`
}

// FollowingPage returns one page of the identities fid follows plus the
// opaque continuation cursor; an empty cursor means the list is exhausted.
func (c *Client) FollowingPage(ctx context.Context, fid uint64, cursor string) ([]domain.FollowedProfile, string, error) {
	params := url.Values{}
	params.Set("fid", strconv.FormatUint(fid, 10))
	params.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	endpoint := c.baseURL + "/v2/farcaster/following?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("social graph provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload followingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("decode following response: %w", err)
	}

	profiles := make([]domain.FollowedProfile, 0, len(payload.Users))
	for _, entry := range payload.Users {
		user := entry.User
		if user == nil {
			continue
		}
		profile := domain.FollowedProfile{
			User: domain.UserProfile{
				FID:         user.FID,
				Username:    user.Username,
				DisplayName: user.DisplayName,
				AvatarURL:   user.PfpURL,
			},
		}
		if user.Profile != nil && user.Profile.Bio != nil {
			profile.Bio = user.Profile.Bio.Text
		}
		if user.VerifiedAddresses != nil {
			profile.EthAddresses = user.VerifiedAddresses.EthAddresses
			profile.SolAddresses = user.VerifiedAddresses.SolAddresses
		}
		profiles = append(profiles, profile)
	}

	return profiles, payload.Next.Cursor, nil
}
