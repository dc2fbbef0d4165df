// Package profile resolves display names and avatars from the user service.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const PlaceholderName = "Unknown user"

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Placeholder is what callers show when the user service cannot answer.
func Placeholder(userID string) Profile {
	return Profile{ID: userID, DisplayName: PlaceholderName}
}

// Client queries the user service over HTTP and caches answers in Redis.
type Client struct {
	BaseURL string
	Timeout time.Duration
	Cache   *redis.Client
	TTL     time.Duration
	Log     *slog.Logger
}

func cacheKey(userID string) string {
	return "profile:" + userID
}

func (c *Client) Profile(ctx context.Context, userID string) (Profile, error) {
	if c.Cache != nil {
		raw, err := c.Cache.Get(ctx, cacheKey(userID)).Bytes()
		if err == nil {
			var p Profile
			if json.Unmarshal(raw, &p) == nil {
				return p, nil
			}
		}
	}

	p, err := c.fetch(userID)
	if err != nil {
		return Profile{}, err
	}

	if c.Cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := c.Cache.Set(ctx, cacheKey(userID), raw, c.TTL).Err(); err != nil && c.Log != nil {
				c.Log.Warn("profile cache write failed", "user", userID, "error", err)
			}
		}
	}
	return p, nil
}

func (c *Client) fetch(userID string) (Profile, error) {
	type response struct {
		Status string `json:"status"`
		Data   struct {
			Username    string `json:"username"`
			DisplayName string `json:"displayName"`
			Avatar      string `json:"avatar"`
		} `json:"data"`
	}

	agent := fiber.Get(fmt.Sprintf("%s/v1/users/%s/profile", c.BaseURL, url.PathEscape(userID)))
	if c.Timeout > 0 {
		agent.Timeout(c.Timeout)
	}

	var body response
	code, _, errs := agent.Struct(&body)
	if len(errs) > 0 {
		return Profile{}, errors.Wrap(errs[0], "profile.fetch")
	}
	if code != fiber.StatusOK || body.Status != "success" {
		return Profile{}, errors.Errorf("profile.fetch: user service answered %d", code)
	}

	name := body.Data.DisplayName
	if name == "" {
		name = body.Data.Username
	}
	if name == "" {
		name = PlaceholderName
	}
	return Profile{ID: userID, DisplayName: name, AvatarURL: body.Data.Avatar}, nil
}
