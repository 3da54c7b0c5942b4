// Package rest implements one-shot actions against the HTTP API.
//
// Every action is a single synchronous exchange: secure-connect, write one
// request, read one response, disconnect. The stream is released on the
// error paths too.
package rest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/transport"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SessionStartLimit is the server-enforced session start quota. The server
// is the sole source of truth; it is never decremented locally.
type SessionStartLimit struct {
	Total      int `json:"total"`
	Remaining  int `json:"remaining"`
	ResetAfter int `json:"reset_after"`
}

// GatewayBot is the gateway bootstrap material returned by the API.
type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// Client performs one-shot API exchanges.
type Client struct {
	cfg         *config.Config
	establisher *transport.Establisher
}

// Cfg configures a Client.
type Cfg func(*Client) error

// WithConfig sets the bot configuration.
func WithConfig(cfg *config.Config) Cfg {
	return func(c *Client) error {
		c.cfg = cfg
		return nil
	}
}

// WithEstablisher sets the transport establisher.
func WithEstablisher(est *transport.Establisher) Cfg {
	return func(c *Client) error {
		c.establisher = est
		return nil
	}
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfgs ...Cfg) (*Client, error) {
	client := &Client{}
	for _, cfg := range cfgs {
		if err := cfg(client); err != nil {
			return nil, errors.Wrap(err, "apply Client cfg failed")
		}
	}
	if client.cfg == nil {
		return nil, errors.New("Client requires a configuration")
	}
	if client.establisher == nil {
		return nil, errors.New("Client requires an establisher")
	}
	return client, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "https://"+c.cfg.Hostname+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "new request failed")
	}
	req.Header.Set("User-Agent", "oh-no-bot")
	req.Header.Set("Authorization", c.cfg.Authorization())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// exchange runs one request/response round trip over a fresh secure stream.
// The 204 status yields an empty result rather than a parse error.
func (c *Client) exchange(ctx context.Context, hosts transport.HostSet, req *http.Request) (json.RawMessage, error) {
	stream, err := c.establisher.SecureConnect(ctx, c.cfg.Hostname, hosts)
	if err != nil {
		return nil, err
	}
	defer stream.Disconnect()

	if err := req.Write(stream); err != nil {
		logger.WithError(err).Error("failed to send http request")
		return nil, errors.Wrapf(ErrSend, "%s %s", req.Method, req.URL.Path)
	}

	resp, err := http.ReadResponse(bufio.NewReader(stream), req)
	if err != nil {
		logger.WithError(err).Error("failed to receive response")
		return nil, errors.Wrapf(ErrReceive, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Error("failed to receive response body")
		return nil, errors.Wrapf(ErrReceive, "%s %s", req.Method, req.URL.Path)
	}

	logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
		"status": resp.StatusCode,
	}).Debug("received http response")

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if !json.Valid(body) {
		logger.WithField("body", string(body)).Warn("failed to parse response body")
		return nil, errors.Wrapf(ErrParse, "%s %s", req.Method, req.URL.Path)
	}
	return body, nil
}

// GetGatewayBot fetches the gateway URL, shard count and session start quota.
func (c *Client) GetGatewayBot(ctx context.Context, hosts transport.HostSet) (GatewayBot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.HTTPAPILocation+"/gateway/bot", nil)
	if err != nil {
		return GatewayBot{}, err
	}
	raw, err := c.exchange(ctx, hosts, req)
	if err != nil {
		return GatewayBot{}, err
	}
	var result GatewayBot
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.WithError(err).Warn("failed to parse gateway bot response")
		return GatewayBot{}, errors.Wrap(ErrParse, "gateway bot")
	}
	return result, nil
}

// SendMessage posts a text message to a channel.
func (c *Client) SendMessage(ctx context.Context, hosts transport.HostSet, channelID, text string) error {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return errors.Wrap(err, "marshal message body failed")
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.HTTPAPILocation+"/channels/"+channelID+"/messages", body)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, hosts, req)
	return err
}

// Kick removes a member from a guild.
func (c *Client) Kick(ctx context.Context, hosts transport.HostSet, guildID, userID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.cfg.HTTPAPILocation+"/guilds/"+guildID+"/members/"+userID, nil)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, hosts, req)
	return err
}

// DeleteMessage deletes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, hosts transport.HostSet, channelID, messageID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.cfg.HTTPAPILocation+"/channels/"+channelID+"/messages/"+messageID, nil)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, hosts, req)
	return err
}
