package domain

import "errors"

var (
	ErrNoActiveGateway        = errors.New("no active verified gateway")
	ErrBelowMinimum           = errors.New("amount below provider minimum")
	ErrPixRefused             = errors.New("pix refused by provider")
	ErrRateLimited            = errors.New("pending payment rate limit")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrBotNotFound            = errors.New("bot not found")
	ErrBotUserNotFound        = errors.New("bot user not found")
	ErrCredentialsDecrypt     = errors.New("failed to decrypt gateway credentials")
	ErrDuplicateWebhook       = errors.New("duplicate webhook")
	ErrAlreadyPaid            = errors.New("payment already paid")
	ErrStatusQueryUnsupported = errors.New("provider does not support status queries")
	ErrNoEligiblePoolBot      = errors.New("no eligible bot in pool")
)
