package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/cache"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/repository"
)

// GuestService edits the booking-related part of a guest profile: the
// identity document and nationality shown on reservations.
type GuestService struct {
	base
	sessions SessionProvider
	guests   GuestStore
	views    ViewInvalidator
	validate *validator.Validate
}

func NewGuestService(sessions SessionProvider, guests GuestStore, views ViewInvalidator,
	v *validator.Validate, log *slog.Logger, timeout time.Duration) *GuestService {
	if v == nil {
		v = NewValidator()
	}
	return &GuestService{
		base:     newBase(log, timeout, nil),
		sessions: sessions,
		guests:   guests,
		views:    views,
		validate: v,
	}
}

// Profile returns the current guest.
func (s *GuestService) Profile(ctx context.Context) (*model.Guest, error) {
	sess, ok := s.sessions.CurrentSession(ctx)
	if !ok {
		return nil, apperror.Unauthenticated("You must be logged in")
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	g, err := s.guests.GetByID(sctx, sess.GuestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("guest")
	}
	if err != nil {
		s.log.Error("Could not load profile", "error", err)
		return nil, apperror.Persistence("Could not load profile", err)
	}
	return &g, nil
}

// UpdateProfile validates the national ID and stores the nationality split
// into country and flag.
func (s *GuestService) UpdateProfile(ctx context.Context, in ProfileInput) (*Result, error) {
	sess, ok := s.sessions.CurrentSession(ctx)
	if !ok {
		return nil, apperror.Unauthenticated("You must be logged in")
	}
	if err := validateStruct(s.validate, in); err != nil {
		if appErr, ok := apperror.As(err); ok && !nationalIDRegex.MatchString(in.NationalID) {
			appErr.Message = "Please provide a valid national ID"
		}
		return nil, err
	}
	country, flag := SplitNationality(in.Nationality)
	p := model.GuestProfile{NationalID: in.NationalID, Nationality: country, CountryFlag: flag}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.guests.UpdateProfile(sctx, sess.GuestID, p); err != nil {
		s.log.Error("Guest could not be updated", "guest_id", sess.GuestID, "error", err)
		return nil, apperror.Persistence("Guest could not be updated", err)
	}
	s.log.Info("guest profile updated", "guest_id", sess.GuestID)

	if s.views != nil {
		vctx, vcancel := s.sideEffectCtx(ctx)
		defer vcancel()
		if err := s.views.Invalidate(vctx, cache.ProfileTag(sess.GuestID)); err != nil {
			s.log.Warn("cache invalidation failed", "guest_id", sess.GuestID, "error", err)
		}
	}
	return &Result{RedirectTo: RedirectAccount}, nil
}
