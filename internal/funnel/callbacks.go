package funnel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

type CallbackKind int

const (
	CbUnknown CallbackKind = iota
	CbBuy
	CbVerify
	CbBumpYes
	CbBumpNo
	CbMultiBumpYes
	CbMultiBumpNo
	CbDownsell
	CbDownsellPct
	CbDownsellBumpYes
	CbDownsellBumpNo
	CbRemarketing
)

// Callback is the decoded form of one callback_data string. Field use
// depends on Kind; unused fields are zero.
type Callback struct {
	Kind          CallbackKind
	Index         int   // main button or bump index
	PaymentID     uint  // verify
	ChatID        int64 // multi-bump
	Cents         int64 // price carried in the data to survive config edits
	DownsellIndex int
	CampaignID    uint // remarketing
	ButtonIndex   int  // remarketing
}

// ParseCallback decodes every generation of the callback vocabulary. All
// formats stay under Telegram's 64-byte limit, which is why prices travel
// as integer cents.
func ParseCallback(data string) Callback {
	switch {
	case strings.HasPrefix(data, "buy_"):
		if i, ok := atoi(data[len("buy_"):]); ok {
			return Callback{Kind: CbBuy, Index: i}
		}

	case strings.HasPrefix(data, "verify_"):
		if id, ok := atoi64(data[len("verify_"):]); ok {
			return Callback{Kind: CbVerify, PaymentID: uint(id)}
		}

	case strings.HasPrefix(data, "multi_bump_yes_"), strings.HasPrefix(data, "multi_bump_no_"):
		yes := strings.HasPrefix(data, "multi_bump_yes_")
		rest := strings.TrimPrefix(strings.TrimPrefix(data, "multi_bump_yes_"), "multi_bump_no_")
		parts := strings.Split(rest, "_")
		if len(parts) != 3 {
			break
		}
		chat, ok1 := atoi64(parts[0])
		bumpI, ok2 := atoi(parts[1])
		cents, ok3 := atoi64(parts[2])
		if ok1 && ok2 && ok3 {
			kind := CbMultiBumpNo
			if yes {
				kind = CbMultiBumpYes
			}
			return Callback{Kind: kind, ChatID: chat, Index: bumpI, Cents: cents}
		}

	case strings.HasPrefix(data, "bump_yes_"):
		if i, ok := atoi(data[len("bump_yes_"):]); ok {
			return Callback{Kind: CbBumpYes, Index: i}
		}

	case strings.HasPrefix(data, "bump_no_"):
		if i, ok := atoi(data[len("bump_no_"):]); ok {
			return Callback{Kind: CbBumpNo, Index: i}
		}

	// downsell_bump_* must match before downsell_*.
	case strings.HasPrefix(data, "downsell_bump_yes_"), strings.HasPrefix(data, "downsell_bump_no_"):
		yes := strings.HasPrefix(data, "downsell_bump_yes_")
		rest := strings.TrimPrefix(strings.TrimPrefix(data, "downsell_bump_yes_"), "downsell_bump_no_")
		parts := strings.Split(rest, "_")
		if len(parts) != 2 {
			break
		}
		d, ok1 := atoi(parts[0])
		cents, ok2 := atoi64(parts[1])
		if ok1 && ok2 {
			kind := CbDownsellBumpNo
			if yes {
				kind = CbDownsellBumpYes
			}
			return Callback{Kind: kind, DownsellIndex: d, Cents: cents}
		}

	case strings.HasPrefix(data, "downsell_"):
		parts := strings.Split(data[len("downsell_"):], "_")
		if len(parts) != 3 {
			break
		}
		d, ok1 := atoi(parts[0])
		cents, ok2 := atoi64(parts[1])
		mainI, ok3 := atoi(parts[2])
		if ok1 && ok2 && ok3 {
			return Callback{Kind: CbDownsell, DownsellIndex: d, Cents: cents, Index: mainI}
		}

	case strings.HasPrefix(data, "dwnsl_"):
		// Percentage-mode variant with the argument order flipped.
		parts := strings.Split(data[len("dwnsl_"):], "_")
		if len(parts) != 3 {
			break
		}
		d, ok1 := atoi(parts[0])
		mainI, ok2 := atoi(parts[1])
		cents, ok3 := atoi64(parts[2])
		if ok1 && ok2 && ok3 {
			return Callback{Kind: CbDownsellPct, DownsellIndex: d, Cents: cents, Index: mainI}
		}

	case strings.HasPrefix(data, "rmkt_"):
		parts := strings.Split(data[len("rmkt_"):], "_")
		if len(parts) != 2 {
			break
		}
		campaign, ok1 := atoi64(parts[0])
		btn, ok2 := atoi(parts[1])
		if ok1 && ok2 {
			return Callback{Kind: CbRemarketing, CampaignID: uint(campaign), ButtonIndex: btn}
		}
	}

	return Callback{Kind: CbUnknown}
}

func (e *Engine) dispatchCallback(ctx context.Context, u *domain.Update, cb Callback) error {
	switch cb.Kind {
	case CbBuy:
		return e.handleBuy(ctx, u, cb.Index)
	case CbVerify:
		return e.HandleVerify(ctx, u, cb.PaymentID)
	case CbBumpYes, CbBumpNo:
		return e.handleBumpAnswer(ctx, u, cb.Index, cb.Kind == CbBumpYes)
	case CbMultiBumpYes, CbMultiBumpNo:
		if cb.ChatID != 0 && cb.ChatID != u.ChatID {
			return fmt.Errorf("multi-bump callback for chat %d pressed in chat %d", cb.ChatID, u.ChatID)
		}
		return e.handleMultiBumpAnswer(ctx, u, cb.Index, cb.Cents, cb.Kind == CbMultiBumpYes)
	case CbDownsell, CbDownsellPct:
		return e.handleDownsellBuy(ctx, u, cb.DownsellIndex, cb.Index, cb.Cents)
	case CbDownsellBumpYes, CbDownsellBumpNo:
		return e.handleDownsellBumpAnswer(ctx, u, cb.DownsellIndex, cb.Cents, cb.Kind == CbDownsellBumpYes)
	case CbRemarketing:
		return e.HandleRemarketingClick(ctx, u, cb.CampaignID, cb.ButtonIndex)
	}
	return nil
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil && n >= 0
}

func atoi64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
