package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/auth"
	"github.com/iliyamo/cabin-reservation/internal/availability"
	"github.com/iliyamo/cabin-reservation/internal/cache"
	"github.com/iliyamo/cabin-reservation/internal/config"
	"github.com/iliyamo/cabin-reservation/internal/handler"
	"github.com/iliyamo/cabin-reservation/internal/logger"
	"github.com/iliyamo/cabin-reservation/internal/middleware"
	"github.com/iliyamo/cabin-reservation/internal/model"
	"github.com/iliyamo/cabin-reservation/internal/queue"
	"github.com/iliyamo/cabin-reservation/internal/repository"
	"github.com/iliyamo/cabin-reservation/internal/selection"
	"github.com/iliyamo/cabin-reservation/internal/service"
	"github.com/iliyamo/cabin-reservation/internal/utils"
)

const secret = "router-secret"

var today = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

// bookingTable is an in-memory BookingStore.
type bookingTable struct {
	mu     sync.Mutex
	rows   map[uint64]model.Booking
	nextID uint64
	calls  int
}

func (t *bookingTable) InsertBooking(_ context.Context, b *model.Booking, guard func([]time.Time) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	var same []model.Booking
	for _, r := range t.rows {
		if r.CabinID == b.CabinID {
			same = append(same, r)
		}
	}
	if err := guard(availability.ExpandBookedDates(same)); err != nil {
		return err
	}
	t.nextID++
	b.ID = t.nextID
	t.rows[b.ID] = *b
	return nil
}

func (t *bookingTable) UpdateBooking(_ context.Context, id uint64, p model.BookingPatch) (*model.Booking, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	r, ok := t.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.NumGuests, r.Observations = p.NumGuests, p.Observations
	t.rows[id] = r
	return &r, nil
}

func (t *bookingTable) DeleteBooking(_ context.Context, id, guestID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	r, ok := t.rows[id]
	if !ok || r.GuestID != guestID || r.Status != model.StatusUnconfirmed {
		return repository.ErrConflict
	}
	delete(t.rows, id)
	return nil
}

func (t *bookingTable) BookingsByGuest(_ context.Context, guestID uint64) ([]model.Booking, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	var out []model.Booking
	for _, r := range t.rows {
		if r.GuestID == guestID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *bookingTable) BookedDatesByCabin(_ context.Context, cabinID uint64, _ time.Time) ([]time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	var same []model.Booking
	for _, r := range t.rows {
		if r.CabinID == cabinID {
			same = append(same, r)
		}
	}
	return availability.ExpandBookedDates(same), nil
}

func (t *bookingTable) ReservationsByGuest(ctx context.Context, guestID uint64) ([]model.ReservationView, error) {
	owned, _ := t.BookingsByGuest(ctx, guestID)
	out := make([]model.ReservationView, len(owned))
	for i, b := range owned {
		out[i] = model.ReservationView{Booking: b, CabinName: "001"}
	}
	return out, nil
}

func (t *bookingTable) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	r, ok := t.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t *bookingTable) UpdateStatus(_ context.Context, id uint64, from, to model.BookingStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	r, ok := t.rows[id]
	if !ok || r.Status != from {
		return repository.ErrConflict
	}
	r.Status = to
	t.rows[id] = r
	return nil
}

func (t *bookingTable) has(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rows[id]
	return ok
}

type cabinTable struct{}

var cabin1 = model.Cabin{ID: 1, Name: "001", MaxCapacity: 4, RegularPrice: 100, Discount: 20}

func (cabinTable) List(context.Context) ([]model.Cabin, error) { return []model.Cabin{cabin1}, nil }

func (cabinTable) GetByID(_ context.Context, id uint64) (*model.Cabin, error) {
	if id != cabin1.ID {
		return nil, repository.ErrNotFound
	}
	c := cabin1
	return &c, nil
}

func (cabinTable) Settings(context.Context) (model.BookingSettings, error) {
	return model.BookingSettings{MinBookingLength: 1, MaxBookingLength: 30, MaxGuestsPerBooking: 8}, nil
}

type app struct {
	e        *echo.Echo
	bookings *bookingTable
	redis    *miniredis.Miniredis
}

func newApp(t *testing.T, rows ...model.Booking) *app {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.Discard().Logger
	now := func() time.Time { return today }
	bt := &bookingTable{rows: map[uint64]model.Booking{}, nextID: 100}
	for _, r := range rows {
		bt.rows[r.ID] = r
	}
	views := cache.NewTagged(rdb, "cache", time.Minute)
	selections := selection.NewRedisStore(rdb, "selection", time.Hour)
	sessions := auth.ContextProvider{}

	bookings := service.NewBookingService(service.BookingDeps{
		Sessions:   sessions,
		Bookings:   bt,
		Cabins:     cabinTable{},
		Selections: selections,
		Views:      views,
		Events:     queue.Noop{},
		Log:        log,
		Now:        now,
	})
	catalog := service.NewCatalogService(cabinTable{}, bt, selections, log, 0, now)

	e := echo.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log)
	cacheCfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	Register(e, Handlers{
		Auth:     handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil),
		Cabins:   handler.NewCabinHandler(catalog),
		Bookings: handler.NewBookingHandler(bookings),
		Account:  handler.NewAccountHandler(service.NewGuestService(sessions, nil, views, nil, log, 0)),
		Health:   handler.Health(nil),
	}, Middleware{
		JWTSecret: secret,
		Viewer:    middleware.Viewer(false, time.Hour),
		Cache:     middleware.NewResponseCache(cacheCfg, views, log),
	})
	return &app{e: e, bookings: bt, redis: mr}
}

type call struct {
	method, path string
	form         url.Values
	json         string
	authz        string
	cookies      []*http.Cookie
}

func (a *app) do(c call) *httptest.ResponseRecorder {
	var req *http.Request
	switch {
	case c.form != nil:
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	case c.json != "":
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.json))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	default:
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.authz != "" {
		req.Header.Set(echo.HeaderAuthorization, c.authz)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, guestID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, guestID, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperror.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func bookingForm() url.Values {
	return url.Values{
		"cabinId":      {"1"},
		"startDate":    {"2026-11-02"},
		"endDate":      {"2026-11-05"},
		"cabinPrice":   {"240"},
		"numGuests":    {"2"},
		"observations": {"vegetarian"},
	}
}

func owned(id, guestID uint64) model.Booking {
	return model.Booking{
		ID: id, GuestID: guestID, CabinID: 1,
		StartDate: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 3, 0, 0, 0, 0, time.UTC),
		NumNights: 2, NumGuests: 2, CabinPrice: 160, TotalPrice: 160, Status: model.StatusUnconfirmed,
	}
}

func TestCreateBooking_GuestGetsPricedRow(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodPost, path: "/v1/bookings", form: bookingForm(), authz: bearer(t, 7, model.RoleGuest)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res service.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, service.RedirectThankYou, res.RedirectTo)
	require.NotNil(t, res.Booking)
	assert.Equal(t, 240.0, res.Booking.TotalPrice)
	assert.Equal(t, uint64(7), res.Booking.GuestID)
	assert.Equal(t, model.StatusUnconfirmed, res.Booking.Status)
	assert.True(t, a.bookings.has(res.Booking.ID))
}

func TestCreateBooking_AnonymousIsUnauthenticated(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodPost, path: "/v1/bookings", form: bookingForm()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeUnauthenticated, errorCode(t, rec))
	assert.Zero(t, a.bookings.calls)
}

func TestCreateBooking_NonNumericGuestsIsValidation(t *testing.T) {
	a := newApp(t)
	form := bookingForm()
	form.Set("numGuests", "two")
	rec := a.do(call{method: http.MethodPost, path: "/v1/bookings", form: form, authz: bearer(t, 7, model.RoleGuest)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperror.CodeValidation, errorCode(t, rec))
}

func TestDeleteBooking_CrossGuestForbidden(t *testing.T) {
	a := newApp(t, owned(1, 7))
	rec := a.do(call{method: http.MethodDelete, path: "/v1/bookings/1", authz: bearer(t, 8, model.RoleGuest)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, a.bookings.has(1))

	rec = a.do(call{method: http.MethodDelete, path: "/v1/bookings/1", authz: bearer(t, 7, model.RoleGuest)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), service.RedirectReservations)
	assert.False(t, a.bookings.has(1))
}

func TestUpdateBooking_FormPostAndPatch(t *testing.T) {
	a := newApp(t, owned(1, 7))
	form := url.Values{"bookingId": {"1"}, "numGuests": {"3"}, "observations": {"crib"}}
	rec := a.do(call{method: http.MethodPost, path: "/v1/bookings/1", form: form, authz: bearer(t, 7, model.RoleGuest)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, a.bookings.rows[1].NumGuests)

	rec = a.do(call{method: http.MethodPatch, path: "/v1/bookings/1", json: `{"numGuests":"4"}`, authz: bearer(t, 7, model.RoleGuest)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, a.bookings.rows[1].NumGuests)

	form.Set("bookingId", "2")
	rec = a.do(call{method: http.MethodPost, path: "/v1/bookings/1", form: form, authz: bearer(t, 7, model.RoleGuest)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBookedDatesCacheDroppedAfterCreate(t *testing.T) {
	a := newApp(t)
	get := call{method: http.MethodGet, path: "/v1/cabins/1/booked-dates"}

	rec := a.do(get)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), "2026-11-02")

	rec = a.do(get)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = a.do(call{method: http.MethodPost, path: "/v1/bookings", form: bookingForm(), authz: bearer(t, 7, model.RoleGuest)})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(get)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "2026-11-02")
}

func TestSelectionFollowsViewerCookie(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodPut, path: "/v1/cabins/1/selection", json: `{"from":"2026-11-02","to":"2026-11-05"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, middleware.ViewerCookie, cookies[0].Name)

	rec = a.do(call{method: http.MethodGet, path: "/v1/cabins/1/selection", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)
	var v service.SelectionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Priced)
	assert.Equal(t, 3, v.NumNights)
	assert.Equal(t, 240.0, v.CabinPrice)
	assert.True(t, v.CanClear)

	// a different browser sees nothing
	rec = a.do(call{method: http.MethodGet, path: "/v1/cabins/1/selection"})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(t, v.Priced)
	assert.False(t, v.CanClear)

	rec = a.do(call{method: http.MethodDelete, path: "/v1/cabins/1/selection", cookies: cookies})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(call{method: http.MethodGet, path: "/v1/cabins/1/selection", cookies: cookies})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(t, v.CanClear)
}

func TestSelectionScopedPerGuestOnSharedBrowser(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodGet, path: "/v1/cabins/1/selection"})
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = a.do(call{method: http.MethodPut, path: "/v1/cabins/1/selection", cookies: cookies,
		authz: bearer(t, 7, model.RoleGuest), json: `{"from":"2026-11-02","to":"2026-11-05"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	get := func(authz string) service.SelectionView {
		rec := a.do(call{method: http.MethodGet, path: "/v1/cabins/1/selection", cookies: cookies, authz: authz})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var v service.SelectionView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		return v
	}

	assert.True(t, get(bearer(t, 7, model.RoleGuest)).CanClear)
	// another guest on the same browser
	assert.False(t, get(bearer(t, 8, model.RoleGuest)).CanClear)
	// the same browser after logout
	assert.False(t, get("").CanClear)
}

func TestAccountAndStaffGuards(t *testing.T) {
	a := newApp(t, owned(1, 7))

	rec := a.do(call{method: http.MethodGet, path: "/v1/account/reservations"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: "/v1/account/reservations", authz: bearer(t, 7, model.RoleGuest)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cabinName":"001"`)

	rec = a.do(call{method: http.MethodPatch, path: "/v1/staff/bookings/1/status", json: `{"status":"confirmed"}`, authz: bearer(t, 7, model.RoleGuest)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(call{method: http.MethodPatch, path: "/v1/staff/bookings/1/status", json: `{"status":"confirmed"}`, authz: bearer(t, 99, model.RoleStaff)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusConfirmed, a.bookings.rows[1].Status)
}

func TestPublicCatalogue(t *testing.T) {
	a := newApp(t)
	rec := a.do(call{method: http.MethodGet, path: "/v1/cabins/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"001"`)

	rec = a.do(call{method: http.MethodGet, path: "/v1/cabins/9"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: "/v1/cabins/abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, "ok", rec.Body.String())
}
