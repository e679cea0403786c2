// Package selection holds a viewer's in-progress date range for one cabin.
// State is keyed by viewer and cabin and lives in an external store, so two
// people looking at the same cabin never see each other's picks.
package selection

import (
	"context"
	"strconv"
	"strings"

	"github.com/iliyamo/cabin-reservation/internal/model"
)

// Selection is the range a viewer is building for a cabin.  SetRange does
// no validation; availability is checked when the range is rendered or
// submitted.
type Selection struct {
	CabinID uint64          `json:"cabinId"`
	Range   model.DateRange `json:"range"`
}

// SetRange replaces the current range.
func (s *Selection) SetRange(r model.DateRange) { s.Range = r.Normalize() }

// ResetRange clears both ends.
func (s *Selection) ResetRange() { s.Range = model.EmptyRange() }

// CanClear reports whether a "Clear" action makes sense, i.e. either end
// is set.
func (s Selection) CanClear() bool { return s.Range.From != nil || s.Range.To != nil }

// Store persists selections per (viewer, cabin).  Get returns an empty
// selection when nothing was stored.
type Store interface {
	Get(ctx context.Context, viewer string, cabinID uint64) (Selection, error)
	Set(ctx context.Context, viewer string, sel Selection) error
	Reset(ctx context.Context, viewer string, cabinID uint64) error
}

type viewerKey struct{}

// WithViewer returns a context carrying the viewer key of the request.
func WithViewer(ctx context.Context, viewer string) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewer)
}

// ViewerFromContext returns the viewer key stored by WithViewer.
func ViewerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(viewerKey{}).(string)
	return v, ok && v != ""
}

// ForGuest narrows a browser's viewer key to one signed-in guest, so two
// guests sharing a browser keep separate selections and the anonymous
// selection is untouched by either.  Applying it twice is a no-op.
func ForGuest(viewer string, guestID uint64) string {
	suffix := ":guest:" + strconv.FormatUint(guestID, 10)
	if strings.HasSuffix(viewer, suffix) {
		return viewer
	}
	return viewer + suffix
}
