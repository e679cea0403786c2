package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/availability"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/pricing"
	"github.com/iliyamo/cabin-reservation/internal/repository"
	"github.com/iliyamo/cabin-reservation/internal/selection"
)

// CatalogService serves the read side of the booking flow: cabins,
// settings, booked days and the viewer's current selection.
type CatalogService struct {
	base
	cabins     CabinStore
	bookings   BookingStore
	selections selection.Store
}

func NewCatalogService(cabins CabinStore, bookings BookingStore, selections selection.Store,
	log *slog.Logger, timeout time.Duration, now func() time.Time) *CatalogService {
	return &CatalogService{
		base:       newBase(log, timeout, now),
		cabins:     cabins,
		bookings:   bookings,
		selections: selections,
	}
}

// SelectionView is what the date selector renders for one cabin.
// DisplayRange is empty whenever Range collides with a booked day, and the
// price fields are only meaningful when Priced is true.
type SelectionView struct {
	CabinID      uint64          `json:"cabin_id"`
	Range        model.DateRange `json:"range"`
	DisplayRange model.DateRange `json:"display_range"`
	NumNights    int             `json:"num_nights"`
	CabinPrice   float64         `json:"cabin_price"`
	Priced       bool            `json:"priced"`
	CanClear     bool            `json:"can_clear"`
	Today        string          `json:"today"`
	BookedDates  []string        `json:"booked_dates"`
}

func (s *CatalogService) Cabins(ctx context.Context) ([]model.Cabin, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	out, err := s.cabins.List(sctx)
	if err != nil {
		return nil, s.persistence("Could not load cabins", err)
	}
	return out, nil
}

func (s *CatalogService) Cabin(ctx context.Context, id uint64) (*model.Cabin, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.cabin(sctx, id)
}

func (s *CatalogService) cabin(ctx context.Context, id uint64) (*model.Cabin, error) {
	c, err := s.cabins.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("cabin")
	}
	if err != nil {
		return nil, s.persistence("Could not load cabin", err)
	}
	return c, nil
}

func (s *CatalogService) Settings(ctx context.Context) (model.BookingSettings, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	st, err := s.cabins.Settings(sctx)
	if err != nil {
		return st, s.persistence("Could not load settings", err)
	}
	return st, nil
}

// BookedDates returns the reserved days of a cabin from today on.
func (s *CatalogService) BookedDates(ctx context.Context, cabinID uint64) ([]time.Time, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if _, err := s.cabin(sctx, cabinID); err != nil {
		return nil, err
	}
	return s.bookedDates(sctx, cabinID)
}

func (s *CatalogService) bookedDates(ctx context.Context, cabinID uint64) ([]time.Time, error) {
	days, err := s.bookings.BookedDatesByCabin(ctx, cabinID, s.today())
	if err != nil {
		return nil, s.persistence("Could not load booked dates", err)
	}
	return availability.Normalize(days), nil
}

// Selection returns the viewer's current selection for a cabin, cleaned
// against the booked days and priced.
func (s *CatalogService) Selection(ctx context.Context, cabinID uint64) (*SelectionView, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	sel, err := s.selections.Get(sctx, viewer, cabinID)
	if err != nil {
		return nil, s.persistence("Could not load your selection", err)
	}
	return s.view(sctx, sel)
}

// SetSelection replaces the viewer's range for a cabin.  No availability
// check happens here; the returned view shows whether it is bookable.
func (s *CatalogService) SetSelection(ctx context.Context, cabinID uint64, r model.DateRange) (*SelectionView, error) {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	sel := selection.Selection{CabinID: cabinID}
	sel.SetRange(r)
	if err := s.selections.Set(sctx, viewer, sel); err != nil {
		return nil, s.persistence("Could not save your selection", err)
	}
	return s.view(sctx, sel)
}

// ClearSelection resets the viewer's range for a cabin.
func (s *CatalogService) ClearSelection(ctx context.Context, cabinID uint64) error {
	viewer, err := requireViewer(ctx)
	if err != nil {
		return err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.selections.Reset(sctx, viewer, cabinID); err != nil {
		return s.persistence("Could not clear your selection", err)
	}
	return nil
}

func (s *CatalogService) view(ctx context.Context, sel selection.Selection) (*SelectionView, error) {
	c, err := s.cabin(ctx, sel.CabinID)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookedDates(ctx, sel.CabinID)
	if err != nil {
		return nil, err
	}
	display := availability.DeriveDisplayRange(sel.Range, booked)
	quote := pricing.QuoteRange(display, c.Terms())
	days := make([]string, len(booked))
	for i, d := range booked {
		days[i] = d.Format(model.DateLayout)
	}
	return &SelectionView{
		CabinID:      sel.CabinID,
		Range:        sel.Range,
		DisplayRange: display,
		NumNights:    quote.NumNights,
		CabinPrice:   quote.CabinPrice,
		Priced:       quote.Priced,
		CanClear:     sel.CanClear(),
		Today:        s.today().Format(model.DateLayout),
		BookedDates:  days,
	}, nil
}

func requireViewer(ctx context.Context) (string, error) {
	viewer, ok := selection.ViewerFromContext(ctx)
	if !ok {
		return "", apperror.Validation("Missing selection cookie", map[string]any{"field": "selection_id"})
	}
	return viewer, nil
}

func (s *CatalogService) persistence(msg string, err error) error {
	s.log.Error(msg, "error", err)
	return apperror.Persistence(msg, err)
}
