package telegram

import (
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

func TestPersistent502(t *testing.T) {
	assert.False(t, persistent502(nil))
	assert.False(t, persistent502(&models.WebhookInfo{}))

	fresh := &models.WebhookInfo{
		LastErrorMessage: "Wrong response from the webhook: 502 Bad Gateway",
		LastErrorDate:    int(time.Now().Unix()),
	}
	assert.True(t, persistent502(fresh))

	stale := &models.WebhookInfo{
		LastErrorMessage: "Wrong response from the webhook: 502 Bad Gateway",
		LastErrorDate:    int(time.Now().Add(-time.Hour).Unix()),
	}
	assert.False(t, persistent502(stale), "an hour-old error is not persistent")

	other := &models.WebhookInfo{
		LastErrorMessage: "Connection timed out",
		LastErrorDate:    int(time.Now().Unix()),
	}
	assert.False(t, persistent502(other))
}
