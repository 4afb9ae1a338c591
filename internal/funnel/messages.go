package funnel

import (
	"fmt"
	"time"
)

// Customer-facing copy. Portuguese by product requirement; the fleet
// serves Brazilian PIX buyers.

const (
	msgNoGateway = "⚠️ Pagamentos temporariamente indisponíveis. Fale com o suporte."

	msgPixRefused = "⚠️ Não foi possível gerar o PIX agora. Tente novamente em instantes."

	msgPaymentPending = "⏳ Ainda não identificamos o pagamento.\n\nCopie o código PIX abaixo e pague no app do seu banco:\n\n%s"

	msgAccessDefault = "✅ Pagamento confirmado! Seu acesso foi liberado."

	msgVerifyButton = "✅ Verificar pagamento"

	msgPixCreated = "💸 Pague via PIX copia e cola:\n\n%s\n\nApós pagar, toque em \"%s\"."

	msgBumpPrompt = "🔥 Oferta exclusiva antes de finalizar:\n\n%s\n\n+ R$ %.2f"

	msgBumpYes = "✅ Sim, quero adicionar"
	msgBumpNo  = "❌ Não, obrigado"
)

func rateLimitMessage(wait time.Duration) string {
	secs := int(wait.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("⏳ Você já tem um pagamento em andamento. Aguarde %ds para gerar outro PIX.", secs)
}
