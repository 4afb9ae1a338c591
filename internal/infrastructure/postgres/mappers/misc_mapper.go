package mappers

import (
	"encoding/json"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
)

func ToDomainGateway(m *models.GatewayModel) *domain.Gateway {
	return &domain.Gateway{
		ID:                     m.ID,
		TenantID:               m.TenantID,
		Kind:                   m.Kind,
		Credentials:            m.Credentials,
		SplitPercent:           m.SplitPercent,
		Active:                 m.Active,
		Verified:               m.Verified,
		TotalTransactions:      m.TotalTransactions,
		SuccessfulTransactions: m.SuccessfulTransactions,
		ProducerID:             m.ProducerID,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func ToDomainPool(m *models.PoolModel) *domain.Pool {
	return &domain.Pool{
		ID:               m.ID,
		TenantID:         m.TenantID,
		Slug:             m.Slug,
		Active:           m.Active,
		Strategy:         domain.PoolStrategy(m.Strategy),
		LastChosenIndex:  m.LastChosenIndex,
		HealthyBots:      m.HealthyBots,
		TotalBots:        m.TotalBots,
		PixelID:          m.PixelID,
		PixelAccessToken: m.PixelAccessToken,
		TrackingEnabled:  m.TrackingEnabled,
		EventsEnabled:    m.EventsEnabled,
		CloakerEnabled:   m.CloakerEnabled,
		CloakerParam:     m.CloakerParam,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func ToDomainPoolBot(m *models.PoolBotModel) *domain.PoolBot {
	return &domain.PoolBot{
		ID:                  m.ID,
		PoolID:              m.PoolID,
		BotID:               m.BotID,
		Weight:              m.Weight,
		Priority:            m.Priority,
		Enabled:             m.Enabled,
		Status:              domain.PoolBotStatus(m.Status),
		ActiveConnections:   m.ActiveConnections,
		ConsecutiveFailures: m.ConsecutiveFailures,
		CircuitOpenUntil:    m.CircuitOpenUntil,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func ToDomainWebhookEvent(m *models.WebhookEventModel) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:          m.ID,
		GatewayKind: m.GatewayKind,
		DedupKey:    m.DedupKey,
		TxID:        m.TxID,
		TxHash:      m.TxHash,
		Status:      m.Status,
		RawPayload:  m.RawPayload,
		ReceivedAt:  m.ReceivedAt,
	}
}

func ToDomainPendingMatch(m *models.WebhookPendingMatchModel) *domain.WebhookPendingMatch {
	return &domain.WebhookPendingMatch{
		ID:          m.ID,
		GatewayKind: m.GatewayKind,
		DedupKey:    m.DedupKey,
		TxID:        m.TxID,
		TxHash:      m.TxHash,
		Payload:     m.Payload,
		Attempts:    m.Attempts,
		LastAttempt: m.LastAttempt,
		Status:      domain.PendingMatchStatus(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func ToDomainSubscription(m *models.SubscriptionModel) *domain.Subscription {
	return &domain.Subscription{
		ID:            m.ID,
		PaymentID:     m.PaymentID,
		BotID:         m.BotID,
		ChatID:        m.ChatID,
		DurationValue: m.DurationValue,
		DurationUnit:  m.DurationUnit,
		VIPChatID:     m.VIPChatID,
		Status:        domain.SubscriptionStatus(m.Status),
		ErrorCount:    m.ErrorCount,
		StartedAt:     m.StartedAt,
		ExpiresAt:     m.ExpiresAt,
		RemovedAt:     m.RemovedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func ToGORMSubscription(s *domain.Subscription) *models.SubscriptionModel {
	return &models.SubscriptionModel{
		ID:            s.ID,
		PaymentID:     s.PaymentID,
		BotID:         s.BotID,
		ChatID:        s.ChatID,
		DurationValue: s.DurationValue,
		DurationUnit:  s.DurationUnit,
		VIPChatID:     s.VIPChatID,
		Status:        string(s.Status),
		ErrorCount:    s.ErrorCount,
		StartedAt:     s.StartedAt,
		ExpiresAt:     s.ExpiresAt,
		RemovedAt:     s.RemovedAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func ToDomainCampaign(m *models.RemarketingCampaignModel) (*domain.RemarketingCampaign, error) {
	c := &domain.RemarketingCampaign{
		ID:           m.ID,
		BotID:        m.BotID,
		Audience:     domain.RemarketingAudience(m.Audience),
		Text:         m.Text,
		MediaURL:     m.MediaURL,
		MediaKind:    domain.MediaKind(m.MediaKind),
		SentCount:    m.SentCount,
		FailedCount:  m.FailedCount,
		ClickedCount: m.ClickedCount,
		ScheduledAt:  m.ScheduledAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Buttons != "" {
		if err := json.Unmarshal([]byte(m.Buttons), &c.Buttons); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func ToDomainBotMessage(m *models.BotMessageModel) *domain.BotMessage {
	return &domain.BotMessage{
		ID:         m.ID,
		BotID:      m.BotID,
		ChatID:     m.ChatID,
		TelegramID: m.TelegramID,
		Direction:  domain.MessageDirection(m.Direction),
		Text:       m.Text,
		MediaURL:   m.MediaURL,
		MediaKind:  domain.MediaKind(m.MediaKind),
		CreatedAt:  m.CreatedAt,
	}
}
