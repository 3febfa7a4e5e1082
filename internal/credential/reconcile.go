package credential

import (
	"context"
	"fmt"

	"github.com/dtroode/gophdate-session/internal/model"
)

// Repair describes what a reconciliation pass changed.
type Repair int

const (
	RepairNone Repair = iota
	RepairCookieFromDurable
	RepairDurableFromCookie
)

func (r Repair) String() string {
	switch r {
	case RepairCookieFromDurable:
		return "cookie_from_durable"
	case RepairDurableFromCookie:
		return "durable_from_cookie"
	default:
		return "none"
	}
}

// Reconcile compares the access tokens held by both backings and copies
// the durable record over the cookies when they differ. When only the
// cookies hold a token, the durable backing is repopulated from them.
func Reconcile(ctx context.Context, durable, cookie model.Backing) (Repair, error) {
	d, err := durable.Read(ctx)
	if err != nil {
		return RepairNone, fmt.Errorf("failed to read %s backing: %w", durable.Name(), err)
	}
	c, err := cookie.Read(ctx)
	if err != nil {
		return RepairNone, fmt.Errorf("failed to read %s backing: %w", cookie.Name(), err)
	}

	switch {
	case d.AuthToken != "" && d.AuthToken != c.AuthToken:
		if err := cookie.Write(ctx, d); err != nil {
			return RepairNone, fmt.Errorf("failed to repair %s backing: %w", cookie.Name(), err)
		}
		return RepairCookieFromDurable, nil
	case c.AuthToken != "" && d.AuthToken == "":
		if err := durable.Write(ctx, c); err != nil {
			return RepairNone, fmt.Errorf("failed to repair %s backing: %w", durable.Name(), err)
		}
		return RepairDurableFromCookie, nil
	default:
		return RepairNone, nil
	}
}
