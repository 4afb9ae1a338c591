package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/vendabots/fleet-runtime/internal/crypto"
	"github.com/vendabots/fleet-runtime/internal/domain"
)

// Registry builds Provider instances from gateway rows, decrypting the
// credential blob with the process key.
type Registry struct {
	box *crypto.Box
}

func NewRegistry(box *crypto.Box) *Registry {
	return &Registry{box: box}
}

// ForGateway decrypts the row's credentials and returns the matching
// provider. A decryption failure is surfaced with the gateway id so the
// tenant can be told to re-enter credentials.
func (r *Registry) ForGateway(gw *domain.Gateway) (Provider, error) {
	plain, err := r.box.Decrypt(gw.Credentials)
	if err != nil {
		return nil, fmt.Errorf("gateway %d: %w: %v", gw.ID, domain.ErrCredentialsDecrypt, err)
	}

	switch gw.Kind {
	case "paradise":
		var creds ParadiseCredentials
		if err := json.Unmarshal([]byte(plain), &creds); err != nil {
			return nil, fmt.Errorf("gateway %d: bad paradise credentials: %w", gw.ID, err)
		}
		return NewParadise(creds), nil
	case "pushynpay":
		var creds PushynCredentials
		if err := json.Unmarshal([]byte(plain), &creds); err != nil {
			return nil, fmt.Errorf("gateway %d: bad pushynpay credentials: %w", gw.ID, err)
		}
		return NewPushyn(creds), nil
	case "umbrella":
		var creds UmbrellaCredentials
		if err := json.Unmarshal([]byte(plain), &creds); err != nil {
			return nil, fmt.Errorf("gateway %d: bad umbrella credentials: %w", gw.ID, err)
		}
		return NewUmbrella(creds), nil
	default:
		return nil, fmt.Errorf("gateway %d: unknown kind %q", gw.ID, gw.Kind)
	}
}

// ParserFor returns a credential-less provider good only for
// InterpretWebhook, which is pure. Webhook ingestion must not pay the
// decryption cost before dedup.
func (r *Registry) ParserFor(kind string) (Provider, error) {
	switch kind {
	case "paradise":
		return NewParadise(ParadiseCredentials{}), nil
	case "pushynpay":
		return NewPushyn(PushynCredentials{}), nil
	case "umbrella":
		return NewUmbrella(UmbrellaCredentials{}), nil
	default:
		return nil, fmt.Errorf("unknown gateway kind %q", kind)
	}
}

// Kinds lists the provider kinds the registry can build, in selection
// preference order.
func (r *Registry) Kinds() []string {
	return []string{"paradise", "pushynpay", "umbrella"}
}
