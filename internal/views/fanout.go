package views

import (
	"context"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// Fanout forwards revalidations to every member.
type Fanout []service.Revalidator

// Revalidate implements service.Revalidator.
func (f Fanout) Revalidate(ctx context.Context, views ...string) {
	for _, r := range f {
		if r != nil {
			r.Revalidate(ctx, views...)
		}
	}
}

// Nop ignores revalidations. It is used where nothing is cached.
type Nop struct{}

// Revalidate implements service.Revalidator.
func (Nop) Revalidate(context.Context, ...string) {}
