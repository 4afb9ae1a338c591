package postgres

import (
	"log"

	"github.com/vendabots/fleet-runtime/internal/config"
	"github.com/vendabots/fleet-runtime/internal/infrastructure/postgres/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func MustInitDB(cfg *config.FleetConfig) *gorm.DB {
	dsn := cfg.FleetDB.Dsn
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	db.AutoMigrate(
		&models.BotModel{},
		&models.BotConfigModel{},
		&models.BotUserModel{},
		&models.TenantTotalModel{},
		&models.PaymentModel{},
		&models.CommissionModel{},
		&models.GatewayModel{},
		&models.PoolModel{},
		&models.PoolBotModel{},
		&models.WebhookEventModel{},
		&models.WebhookPendingMatchModel{},
		&models.SubscriptionModel{},
		&models.RemarketingCampaignModel{},
		&models.RemarketingBlacklistModel{},
		&models.BotMessageModel{},
	)

	return db
}
