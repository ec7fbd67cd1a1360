// Package notify delivers catalog change signals to the embedding index.
package notify

import (
	"context"
	"errors"

	"github.com/docrecon/docrecon/internal/domain"
)

// Fanout signals every notifier in turn and joins their errors. A failing
// notifier does not stop the rest.
type Fanout []domain.RefreshNotifier

// NewFanout drops nil notifiers. It returns nil when none remain.
func NewFanout(notifiers ...domain.RefreshNotifier) domain.RefreshNotifier {
	active := make(Fanout, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return active
}

// NotifyCatalogChanged implements domain.RefreshNotifier
func (f Fanout) NotifyCatalogChanged(ctx context.Context, inserted int) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyCatalogChanged(ctx, inserted); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
