package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/standup/go/clients"
)

const DefaultAPIURL = "https://discord.com/api"

var ErrEmptyAccessToken = errors.New("token response has no access_token")

type Config struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	BotToken     string
}

// Client talks to the Discord API for activity instance checks and OAuth code exchange
type Client struct {
	base   *clients.BaseClient
	config Config
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	return &Client{
		base:   clients.NewBaseClient(strings.TrimRight(cfg.APIURL, "/")),
		config: cfg,
	}
}

// WithHTTPClient swaps the transport, mainly for tests
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.base.SetHTTPClient(hc)
	return c
}

// ValidateInstance reports whether instanceID is a live activity instance.
// Any answer other than 200 counts as invalid; transport failures are returned.
func (c *Client) ValidateInstance(ctx context.Context, instanceID string) (bool, error) {
	endpoint := fmt.Sprintf("/applications/%s/activity-instances/%s",
		url.PathEscape(c.config.ClientID), url.PathEscape(instanceID))

	status, err := c.base.Status(ctx, http.MethodGet, endpoint, map[string]string{
		"Authorization": "Bot " + c.config.BotToken,
	})
	if err != nil {
		return false, fmt.Errorf("validate instance: %w", err)
	}

	if status != http.StatusOK {
		log.Warn().
			Int("status", status).
			Str("instance_id", instanceID).
			Msg("activity instance validation failed")
		return false, nil
	}
	return true, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// ExchangeCode trades an OAuth authorization code for an access token
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	}

	body, err := c.base.Post(ctx, "/oauth2/token", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", ErrEmptyAccessToken
	}
	return resp.AccessToken, nil
}
