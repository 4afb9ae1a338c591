package domain

import "time"

// TrackingPayload bridges an ad click to its eventual Purchase event.
// Stored in the tracking cache under several indices with a 30-day TTL.
type TrackingPayload struct {
	Token           string    `json:"token"`
	BotID           uint      `json:"bot_id"`
	ChatID          int64     `json:"chat_id"`
	PoolID          uint      `json:"pool_id,omitempty"`
	Fbclid          string    `json:"fbclid,omitempty"`
	Fbp             string    `json:"fbp,omitempty"`
	Fbc             string    `json:"fbc,omitempty"`
	PageViewEventID string    `json:"pageview_event_id,omitempty"`
	PageViewAt      time.Time `json:"pageview_at,omitempty"`
	CampaignCode    string    `json:"grim,omitempty"`
	UTMSource       string    `json:"utm_source,omitempty"`
	UTMMedium       string    `json:"utm_medium,omitempty"`
	UTMCampaign     string    `json:"utm_campaign,omitempty"`
	ClickIP         string    `json:"click_ip,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	ExternalIDs     []string  `json:"external_ids,omitempty"`
}

// Merge fills empty fields of p from other, never overwriting captured data.
func (p *TrackingPayload) Merge(other *TrackingPayload) {
	if other == nil {
		return
	}
	if p.Token == "" {
		p.Token = other.Token
	}
	if p.BotID == 0 {
		p.BotID = other.BotID
	}
	if p.ChatID == 0 {
		p.ChatID = other.ChatID
	}
	if p.PoolID == 0 {
		p.PoolID = other.PoolID
	}
	if p.Fbclid == "" {
		p.Fbclid = other.Fbclid
	}
	if p.Fbp == "" {
		p.Fbp = other.Fbp
	}
	if p.Fbc == "" {
		p.Fbc = other.Fbc
	}
	if p.PageViewEventID == "" {
		p.PageViewEventID = other.PageViewEventID
	}
	if p.PageViewAt.IsZero() {
		p.PageViewAt = other.PageViewAt
	}
	if p.CampaignCode == "" {
		p.CampaignCode = other.CampaignCode
	}
	if p.UTMSource == "" {
		p.UTMSource = other.UTMSource
	}
	if p.UTMMedium == "" {
		p.UTMMedium = other.UTMMedium
	}
	if p.UTMCampaign == "" {
		p.UTMCampaign = other.UTMCampaign
	}
	if p.ClickIP == "" {
		p.ClickIP = other.ClickIP
	}
	if p.UserAgent == "" {
		p.UserAgent = other.UserAgent
	}
	if len(p.ExternalIDs) == 0 {
		p.ExternalIDs = other.ExternalIDs
	}
}
