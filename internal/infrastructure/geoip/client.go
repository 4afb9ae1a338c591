// Package geoip resolves click IPs to coarse location for BotUser
// enrichment. Lookups run detached, never on the hot path.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "http://ip-api.com/json"

type Location struct {
	City    string `json:"city"`
	State   string `json:"regionName"`
	Country string `json:"country"`
	Status  string `json:"status"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	if ip == "" {
		return nil, fmt.Errorf("empty ip")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?fields=status,city,regionName,country", c.baseURL, ip), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip lookup returned %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, err
	}
	if loc.Status != "success" {
		return nil, fmt.Errorf("geoip lookup failed for %s", ip)
	}
	return &loc, nil
}
