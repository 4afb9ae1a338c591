package mappers

import (
	"encoding/json"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
)

func ToDomainBot(m *models.BotModel) *domain.Bot {
	return &domain.Bot{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Token:        m.Token,
		Username:     m.Username,
		Active:       m.Active,
		Running:      m.Running,
		TotalSales:   m.TotalSales,
		TotalRevenue: m.TotalRevenue,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func ToGORMBot(b *domain.Bot) *models.BotModel {
	return &models.BotModel{
		ID:           b.ID,
		TenantID:     b.TenantID,
		Token:        b.Token,
		Username:     b.Username,
		Active:       b.Active,
		Running:      b.Running,
		TotalSales:   b.TotalSales,
		TotalRevenue: b.TotalRevenue,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func ToDomainBotConfig(m *models.BotConfigModel) (*domain.BotConfig, error) {
	cfg := &domain.BotConfig{
		ID:               m.ID,
		BotID:            m.BotID,
		WelcomeText:      m.WelcomeText,
		WelcomeMediaURL:  m.WelcomeMediaURL,
		WelcomeMediaKind: domain.MediaKind(m.WelcomeMediaKind),
		DownsellsEnabled: m.DownsellsEnabled,
		AccessText:       m.AccessText,
		AccessURL:        m.AccessURL,
		FlowEnabled:      m.FlowEnabled,
		FlowStartNode:    m.FlowStartNode,
		UpdatedAt:        m.UpdatedAt,
	}

	for raw, dst := range map[string]any{
		m.MainButtons:     &cfg.MainButtons,
		m.RedirectButtons: &cfg.RedirectButtons,
		m.Downsells:       &cfg.Downsells,
		m.Upsells:         &cfg.Upsells,
		m.FlowNodes:       &cfg.FlowNodes,
	} {
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func ToGORMBotConfig(cfg *domain.BotConfig) (*models.BotConfigModel, error) {
	m := &models.BotConfigModel{
		ID:               cfg.ID,
		BotID:            cfg.BotID,
		WelcomeText:      cfg.WelcomeText,
		WelcomeMediaURL:  cfg.WelcomeMediaURL,
		WelcomeMediaKind: string(cfg.WelcomeMediaKind),
		DownsellsEnabled: cfg.DownsellsEnabled,
		AccessText:       cfg.AccessText,
		AccessURL:        cfg.AccessURL,
		FlowEnabled:      cfg.FlowEnabled,
		FlowStartNode:    cfg.FlowStartNode,
		UpdatedAt:        cfg.UpdatedAt,
	}

	encode := func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var err error
	if m.MainButtons, err = encode(cfg.MainButtons); err != nil {
		return nil, err
	}
	if m.RedirectButtons, err = encode(cfg.RedirectButtons); err != nil {
		return nil, err
	}
	if m.Downsells, err = encode(cfg.Downsells); err != nil {
		return nil, err
	}
	if m.Upsells, err = encode(cfg.Upsells); err != nil {
		return nil, err
	}
	if m.FlowNodes, err = encode(cfg.FlowNodes); err != nil {
		return nil, err
	}

	return m, nil
}

func ToDomainBotUser(m *models.BotUserModel) *domain.BotUser {
	return &domain.BotUser{
		ID:                  m.ID,
		BotID:               m.BotID,
		ChatID:              m.ChatID,
		DisplayName:         m.DisplayName,
		Archived:            m.Archived,
		WelcomeSent:         m.WelcomeSent,
		WelcomeSentAt:       m.WelcomeSentAt,
		LastInteraction:     m.LastInteraction,
		Fbclid:              m.Fbclid,
		Fbp:                 m.Fbp,
		Fbc:                 m.Fbc,
		UTMSource:           m.UTMSource,
		UTMMedium:           m.UTMMedium,
		UTMCampaign:         m.UTMCampaign,
		CampaignCode:        m.CampaignCode,
		TrackingToken:       m.TrackingToken,
		ClickIP:             m.ClickIP,
		UserAgent:           m.UserAgent,
		Device:              m.Device,
		OS:                  m.OS,
		Browser:             m.Browser,
		GeoCity:             m.GeoCity,
		GeoState:            m.GeoState,
		GeoCountry:          m.GeoCountry,
		ClickedAt:           m.ClickedAt,
		MetaPageViewSent:    m.MetaPageViewSent,
		MetaViewContentSent: m.MetaViewContentSent,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func ToGORMBotUser(u *domain.BotUser) *models.BotUserModel {
	return &models.BotUserModel{
		ID:                  u.ID,
		BotID:               u.BotID,
		ChatID:              u.ChatID,
		DisplayName:         u.DisplayName,
		Archived:            u.Archived,
		WelcomeSent:         u.WelcomeSent,
		WelcomeSentAt:       u.WelcomeSentAt,
		LastInteraction:     u.LastInteraction,
		Fbclid:              u.Fbclid,
		Fbp:                 u.Fbp,
		Fbc:                 u.Fbc,
		UTMSource:           u.UTMSource,
		UTMMedium:           u.UTMMedium,
		UTMCampaign:         u.UTMCampaign,
		CampaignCode:        u.CampaignCode,
		TrackingToken:       u.TrackingToken,
		ClickIP:             u.ClickIP,
		UserAgent:           u.UserAgent,
		Device:              u.Device,
		OS:                  u.OS,
		Browser:             u.Browser,
		GeoCity:             u.GeoCity,
		GeoState:            u.GeoState,
		GeoCountry:          u.GeoCountry,
		ClickedAt:           u.ClickedAt,
		MetaPageViewSent:    u.MetaPageViewSent,
		MetaViewContentSent: u.MetaViewContentSent,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}
