package broadcast

import (
	"context"
	nativeerrors "errors"

	"github.com/lotusgame/duel-server-go/internal/match"
)

// Fanout publishes every update to all of its publishers. Every publisher is
// tried; the returned error joins all failures.
type Fanout []match.Publisher

func (f Fanout) Publish(ctx context.Context, matchID string, view match.View) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, matchID, view); err != nil {
			errs = append(errs, err)
		}
	}
	return nativeerrors.Join(errs...)
}
