package history

import (
	"context"
	"errors"
	"fmt"
)

// Tee appends to every recorder and lists from the first one.
type Tee []Recorder

func (t Tee) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, r := range t {
		if err := r.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) List(ctx context.Context, model string) ([]Record, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("no history recorders configured")
	}
	return t[0].List(ctx, model)
}
