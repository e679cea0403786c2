package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cabin-reservation/internal/availability"
	"github.com/iliyamo/cabin-reservation/internal/logger"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/queue"
	"github.com/iliyamo/cabin-reservation/internal/repository"
	"github.com/iliyamo/cabin-reservation/internal/selection"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type staticSessions struct {
	sess model.Session
	ok   bool
}

func (s staticSessions) CurrentSession(context.Context) (model.Session, bool) { return s.sess, s.ok }

func guest(id uint64) staticSessions {
	return staticSessions{sess: model.Session{GuestID: id, Role: model.RoleGuest}, ok: true}
}

func staff(id uint64) staticSessions {
	return staticSessions{sess: model.Session{GuestID: id, Role: model.RoleStaff}, ok: true}
}

var anonymous = staticSessions{}

// memBookings is an in-memory booking table.  The err fields force the
// matching call to fail; calls counts every store call.
type memBookings struct {
	mu     sync.Mutex
	rows   map[uint64]model.Booking
	nextID uint64
	calls  int

	insertErr error
	updateErr error
	deleteErr error
	listErr   error

	// beforeDelete runs under the lock just ahead of the conditional delete
	beforeDelete func(rows map[uint64]model.Booking)
}

func newMemBookings(rows ...model.Booking) *memBookings {
	m := &memBookings{rows: map[uint64]model.Booking{}, nextID: 100}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memBookings) InsertBooking(_ context.Context, b *model.Booking, guard func([]time.Time) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.insertErr != nil {
		return m.insertErr
	}
	var same []model.Booking
	for _, r := range m.rows {
		if r.CabinID == b.CabinID {
			same = append(same, r)
		}
	}
	if guard != nil {
		if err := guard(availability.ExpandBookedDates(same)); err != nil {
			return err
		}
	}
	m.nextID++
	b.ID = m.nextID
	b.CreatedAt = fixedNow
	m.rows[b.ID] = *b
	return nil
}

func (m *memBookings) UpdateBooking(_ context.Context, id uint64, p model.BookingPatch) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.NumGuests = p.NumGuests
	r.Observations = p.Observations
	m.rows[id] = r
	return &r, nil
}

func (m *memBookings) DeleteBooking(_ context.Context, id, guestID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if m.beforeDelete != nil {
		m.beforeDelete(m.rows)
	}
	r, ok := m.rows[id]
	if !ok || r.GuestID != guestID || r.Status != model.StatusUnconfirmed {
		return repository.ErrConflict
	}
	delete(m.rows, id)
	return nil
}

func (m *memBookings) BookingsByGuest(_ context.Context, guestID uint64) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Booking
	for _, r := range m.rows {
		if r.GuestID == guestID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBookings) BookedDatesByCabin(_ context.Context, cabinID uint64, _ time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var same []model.Booking
	for _, r := range m.rows {
		if r.CabinID == cabinID {
			same = append(same, r)
		}
	}
	return availability.ExpandBookedDates(same), nil
}

func (m *memBookings) ReservationsByGuest(ctx context.Context, guestID uint64) ([]model.ReservationView, error) {
	owned, err := m.BookingsByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ReservationView, len(owned))
	for i, b := range owned {
		out[i] = model.ReservationView{Booking: b, CabinName: "cabin"}
	}
	return out, nil
}

func (m *memBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, id uint64, from, to model.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	r, ok := m.rows[id]
	if !ok || r.Status != from {
		return repository.ErrConflict
	}
	r.Status = to
	m.rows[id] = r
	return nil
}

func (m *memBookings) has(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

type fakeCabins struct {
	cabins   map[uint64]model.Cabin
	settings model.BookingSettings
	calls    int
	getFn    func(id uint64) (*model.Cabin, error)
}

func newFakeCabins() *fakeCabins {
	return &fakeCabins{
		cabins: map[uint64]model.Cabin{
			1: {ID: 1, Name: "001", MaxCapacity: 4, RegularPrice: 100, Discount: 20},
			2: {ID: 2, Name: "002", MaxCapacity: 2, RegularPrice: 250, Discount: 0},
		},
		settings: model.BookingSettings{MinBookingLength: 1, MaxBookingLength: 30, MaxGuestsPerBooking: 8},
	}
}

func (f *fakeCabins) List(context.Context) ([]model.Cabin, error) {
	f.calls++
	out := make([]model.Cabin, 0, len(f.cabins))
	for _, c := range f.cabins {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCabins) GetByID(_ context.Context, id uint64) (*model.Cabin, error) {
	f.calls++
	if f.getFn != nil {
		return f.getFn(id)
	}
	c, ok := f.cabins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCabins) Settings(context.Context) (model.BookingSettings, error) {
	f.calls++
	return f.settings, nil
}

type recordingViews struct {
	tags [][]string
	err  error
}

func (r *recordingViews) Invalidate(_ context.Context, tags ...string) error {
	r.tags = append(r.tags, tags)
	return r.err
}

type recordingEvents struct {
	events []queue.BookingEvent
	err    error
}

func (r *recordingEvents) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

// fakeSelections records resets.  Get/Set keep nothing.
type fakeSelections struct {
	resetFn func(viewer string, cabinID uint64) error
	resets  []string
}

func (f *fakeSelections) Get(_ context.Context, _ string, cabinID uint64) (selection.Selection, error) {
	return selection.Selection{CabinID: cabinID}, nil
}

func (f *fakeSelections) Set(context.Context, string, selection.Selection) error { return nil }

func (f *fakeSelections) Reset(_ context.Context, viewer string, cabinID uint64) error {
	f.resets = append(f.resets, viewer)
	if f.resetFn != nil {
		return f.resetFn(viewer, cabinID)
	}
	return nil
}

type harness struct {
	svc        *BookingService
	bookings   *memBookings
	cabins     *fakeCabins
	views      *recordingViews
	events     *recordingEvents
	selections *fakeSelections
}

func newHarness(sessions SessionProvider, rows ...model.Booking) *harness {
	h := &harness{
		bookings:   newMemBookings(rows...),
		cabins:     newFakeCabins(),
		views:      &recordingViews{},
		events:     &recordingEvents{},
		selections: &fakeSelections{},
	}
	h.svc = NewBookingService(BookingDeps{
		Sessions:   sessions,
		Bookings:   h.bookings,
		Cabins:     h.cabins,
		Selections: h.selections,
		Views:      h.views,
		Events:     h.events,
		Log:        logger.Discard().Logger,
		Now:        func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) storeCalls() int { return h.bookings.calls + h.cabins.calls }
