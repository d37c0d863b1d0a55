// Package authlink queries the external account-link API that maps Minecraft
// UUIDs to Discord user ids. Lookups are best effort: an unlinked or
// unreachable account yields no id, never an aborted workflow.
package authlink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"punishment-bridge/cache"
	"punishment-bridge/model"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// negative cache marker so repeated lookups for unlinked accounts do not hit
// the API every time
const unlinkedMarker = "-"

// Client resolves Discord links with a small retry budget per lookup.
type Client struct {
	http   *http.Client
	cfg    model.AuthLinkConfig
	cache  *cache.Client
	logger *zap.Logger
}

// New builds a client. An empty URL disables lookups entirely.
func New(cfg model.AuthLinkConfig, cacheClient *cache.Client, logger *zap.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cache:  cacheClient,
		logger: logger,
	}
}

// Enabled reports whether an API endpoint is configured.
func (c *Client) Enabled() bool {
	return c.cfg.URL != ""
}

type linkResponse struct {
	Linked    bool   `json:"linked"`
	DiscordID string `json:"discordId"`
}

// DiscordID returns the linked Discord user id for a Minecraft account, or
// ("", false) when the account is not linked or the API cannot be reached.
func (c *Client) DiscordID(ctx context.Context, playerID uuid.UUID) (string, bool) {
	if !c.Enabled() {
		return "", false
	}

	key := playerID.String()
	if cached, ok := c.cache.Get(ctx, cache.NamespaceDiscordLink, key); ok {
		if cached == unlinkedMarker {
			return "", false
		}
		return cached, true
	}

	id, err := c.fetch(ctx, playerID)
	if err != nil {
		c.logger.Warn("Auth-link lookup failed",
			zap.String("playerId", key), zap.Error(err))
		return "", false
	}

	if id == "" {
		c.cache.Set(ctx, cache.NamespaceDiscordLink, key, unlinkedMarker)
		return "", false
	}
	c.cache.Set(ctx, cache.NamespaceDiscordLink, key, id)
	return id, true
}

func (c *Client) fetch(ctx context.Context, playerID uuid.UUID) (string, error) {
	endpoint, err := url.JoinPath(c.cfg.URL, "api", "link", playerID.String())
	if err != nil {
		return "", fmt.Errorf("invalid auth-link URL: %w", err)
	}

	var discordID string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil // unlinked account
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("auth-link API returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return err
		}
		var link linkResponse
		if err := sonic.Unmarshal(body, &link); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode auth-link response: %w", err))
		}
		if link.Linked {
			discordID = link.DiscordID
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(c.cfg.RetryDelay),
		uint64(c.cfg.RetryAttempts)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return discordID, nil
}

// Probe checks API reachability at startup. Failure is logged by the caller;
// the bot runs without links when the API is down.
func (c *Client) Probe(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	endpoint, err := url.JoinPath(c.cfg.URL, "api", "health")
	if err != nil {
		return fmt.Errorf("invalid auth-link URL: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth-link API returned %d", resp.StatusCode)
	}
	return nil
}
