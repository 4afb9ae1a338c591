package mappers

import (
	"encoding/json"

	"github.com/vendabots/fleet-runtime/internal/domain"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
)

func ToDomainPayment(m *models.PaymentModel) (*domain.Payment, error) {
	p := &domain.Payment{
		ID:            m.ID,
		BotID:         m.BotID,
		ExternalID:    m.ExternalID,
		GatewayKind:   m.GatewayKind,
		GatewayTxID:   m.GatewayTxID,
		GatewayTxHash: m.GatewayTxHash,
		Amount:        m.Amount,
		Status:        domain.PaymentStatus(m.Status),
		PixCode:       m.PixCode,
		QRCodeURL:     m.QRCodeURL,

		CustomerChatID:   m.CustomerChatID,
		CustomerName:     m.CustomerName,
		CustomerUsername: m.CustomerUsername,
		ProductName:      m.ProductName,
		ButtonIndex:      m.ButtonIndex,

		OrderBumpShown:    m.OrderBumpShown,
		OrderBumpAccepted: m.OrderBumpAccepted,
		OrderBumpValue:    m.OrderBumpValue,
		IsDownsell:        m.IsDownsell,
		DownsellIndex:     m.DownsellIndex,
		IsUpsell:          m.IsUpsell,
		UpsellIndex:       m.UpsellIndex,
		FromRemarketing:   m.FromRemarketing,

		DeliveryToken:    m.DeliveryToken,
		MetaPurchaseSent: m.MetaPurchaseSent,
		HasSubscription:  m.HasSubscription,

		Fbclid:          m.Fbclid,
		Fbp:             m.Fbp,
		Fbc:             m.Fbc,
		UTMSource:       m.UTMSource,
		UTMMedium:       m.UTMMedium,
		UTMCampaign:     m.UTMCampaign,
		CampaignCode:    m.CampaignCode,
		TrackingToken:   m.TrackingToken,
		PageViewEventID: m.PageViewEventID,
		ClickIP:         m.ClickIP,
		UserAgent:       m.UserAgent,
		Device:          m.Device,
		OS:              m.OS,
		Browser:         m.Browser,

		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		PaidAt:    m.PaidAt,
	}

	if m.ButtonConfig != "" {
		var btn domain.MainButton
		if err := json.Unmarshal([]byte(m.ButtonConfig), &btn); err != nil {
			return nil, err
		}
		p.ButtonConfig = &btn
	}

	return p, nil
}

func ToGORMPayment(p *domain.Payment) (*models.PaymentModel, error) {
	m := &models.PaymentModel{
		ID:            p.ID,
		BotID:         p.BotID,
		ExternalID:    p.ExternalID,
		GatewayKind:   p.GatewayKind,
		GatewayTxID:   p.GatewayTxID,
		GatewayTxHash: p.GatewayTxHash,
		Amount:        p.Amount,
		Status:        string(p.Status),
		PixCode:       p.PixCode,
		QRCodeURL:     p.QRCodeURL,

		CustomerChatID:   p.CustomerChatID,
		CustomerName:     p.CustomerName,
		CustomerUsername: p.CustomerUsername,
		ProductName:      p.ProductName,
		ButtonIndex:      p.ButtonIndex,

		OrderBumpShown:    p.OrderBumpShown,
		OrderBumpAccepted: p.OrderBumpAccepted,
		OrderBumpValue:    p.OrderBumpValue,
		IsDownsell:        p.IsDownsell,
		DownsellIndex:     p.DownsellIndex,
		IsUpsell:          p.IsUpsell,
		UpsellIndex:       p.UpsellIndex,
		FromRemarketing:   p.FromRemarketing,

		DeliveryToken:    p.DeliveryToken,
		MetaPurchaseSent: p.MetaPurchaseSent,
		HasSubscription:  p.HasSubscription,

		Fbclid:          p.Fbclid,
		Fbp:             p.Fbp,
		Fbc:             p.Fbc,
		UTMSource:       p.UTMSource,
		UTMMedium:       p.UTMMedium,
		UTMCampaign:     p.UTMCampaign,
		CampaignCode:    p.CampaignCode,
		TrackingToken:   p.TrackingToken,
		PageViewEventID: p.PageViewEventID,
		ClickIP:         p.ClickIP,
		UserAgent:       p.UserAgent,
		Device:          p.Device,
		OS:              p.OS,
		Browser:         p.Browser,

		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		PaidAt:    p.PaidAt,
	}

	if p.ButtonConfig != nil {
		b, err := json.Marshal(p.ButtonConfig)
		if err != nil {
			return nil, err
		}
		m.ButtonConfig = string(b)
	}

	return m, nil
}
