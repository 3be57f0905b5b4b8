package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"github.com/slotpark/slotpark/services/parking-service/internal/model"
	"github.com/slotpark/slotpark/services/parking-service/internal/schedule"
)

type fakeSlots struct {
	slots map[string]*model.Slot
}

func (f *fakeSlots) GetSlot(_ context.Context, id string) (*model.Slot, error) {
	s, ok := f.slots[id]
	if !ok {
		return nil, booking.ErrSlotNotFound
	}
	return s, nil
}

func (f *fakeSlots) SweepExpiredQuick(_ context.Context, now time.Time) (int, error) {
	count := 0
	for _, s := range f.slots {
		if s.QuickAvailable && s.QuickUntil != nil && s.QuickUntil.Before(now) {
			s.QuickAvailable = false
			count++
		}
	}
	return count, nil
}

func (f *fakeSlots) ListSlots(_ context.Context, status string, listedOnly bool, _ int) ([]model.Slot, error) {
	var out []model.Slot
	for _, s := range f.slots {
		if status != "" && s.Status != status {
			continue
		}
		if listedOnly && !s.ListedForRent {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSlots) ListSlotsByOwner(_ context.Context, ownerResidentID string, _ int) ([]model.Slot, error) {
	var out []model.Slot
	for _, s := range f.slots {
		if s.OwnerResidentID != nil && *s.OwnerResidentID == ownerResidentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSlots) CreateSlot(_ context.Context, s *model.Slot) (string, error) {
	id := "slot-" + strconv.Itoa(len(f.slots)+1)
	s.ID = id
	f.slots[id] = s
	return id, nil
}

func (f *fakeSlots) UpdateSlot(_ context.Context, s *model.Slot) error {
	if _, ok := f.slots[s.ID]; !ok {
		return booking.ErrSlotNotFound
	}
	f.slots[s.ID] = s
	return nil
}

func (f *fakeSlots) SetQuickPost(_ context.Context, slotID string, until time.Time) error {
	s, ok := f.slots[slotID]
	if !ok {
		return booking.ErrSlotNotFound
	}
	s.QuickAvailable = true
	s.QuickUntil = &until
	s.ListedForRent = true
	return nil
}

func (f *fakeSlots) ClearQuickPost(_ context.Context, slotID string) error {
	s, ok := f.slots[slotID]
	if !ok {
		return booking.ErrSlotNotFound
	}
	s.QuickAvailable = false
	return nil
}

type fakeSchedules struct {
	windows   map[string][]model.Window
	blackouts map[string][]model.Blackout
}

func (f *fakeSchedules) ListWindows(_ context.Context, slotID string) ([]model.Window, error) {
	return f.windows[slotID], nil
}

func (f *fakeSchedules) ListBlackouts(_ context.Context, slotID string) ([]model.Blackout, error) {
	return f.blackouts[slotID], nil
}

func (f *fakeSchedules) CreateWindow(_ context.Context, w *model.Window) (string, error) {
	w.ID = "win-" + strconv.Itoa(len(f.windows[w.SlotID])+1)
	f.windows[w.SlotID] = append(f.windows[w.SlotID], *w)
	return w.ID, nil
}

func (f *fakeSchedules) DeleteWindow(_ context.Context, slotID, windowID string) error {
	wins := f.windows[slotID]
	for i, w := range wins {
		if w.ID == windowID {
			f.windows[slotID] = append(wins[:i], wins[i+1:]...)
			return nil
		}
	}
	return booking.ErrWindowNotFound
}

func (f *fakeSchedules) CreateBlackout(_ context.Context, b *model.Blackout) (string, error) {
	b.ID = "blk-" + strconv.Itoa(len(f.blackouts[b.SlotID])+1)
	f.blackouts[b.SlotID] = append(f.blackouts[b.SlotID], *b)
	return b.ID, nil
}

func (f *fakeSchedules) DeleteBlackout(_ context.Context, slotID, blackoutID string) error {
	bls := f.blackouts[slotID]
	for i, b := range bls {
		if b.ID == blackoutID {
			f.blackouts[slotID] = append(bls[:i], bls[i+1:]...)
			return nil
		}
	}
	return booking.ErrBlackoutNotFound
}

type fakeBookings struct {
	bookings   map[string]*model.Booking
	keys       map[string]string
	failCreate error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: map[string]*model.Booking{}, keys: map[string]string{}}
}

func (f *fakeBookings) FindByIdempotencyKey(_ context.Context, residentID, key string) (*model.Booking, error) {
	if id, ok := f.keys[residentID+"|"+key]; ok {
		return f.bookings[id], nil
	}
	return nil, nil
}

func (f *fakeBookings) ListConfirmedIntervals(_ context.Context, slotID string, from, to time.Time) ([]schedule.Interval, error) {
	var out []schedule.Interval
	for _, b := range f.bookings {
		if b.SlotID != slotID || b.Status != model.BookingStatusConfirmed {
			continue
		}
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, schedule.Interval{Start: b.StartTime, End: b.EndTime})
		}
	}
	return out, nil
}

func (f *fakeBookings) CreateConfirmed(_ context.Context, b *model.Booking, idemKey string) (*model.Booking, bool, error) {
	if f.failCreate != nil {
		return nil, false, f.failCreate
	}
	f.bookings[b.ID] = b
	if idemKey != "" {
		f.keys[b.ResidentID+"|"+idemKey] = b.ID
	}
	return b, false, nil
}

func (f *fakeBookings) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeBookings) MarkCancelled(_ context.Context, id, reason string, at time.Time) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	if b.Status != model.BookingStatusConfirmed {
		return nil, booking.ErrNotConfirmed
	}
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &at
	b.CancelReason = reason
	return b, nil
}

func (f *fakeBookings) ListByResident(_ context.Context, residentID string, _ int) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.ResidentID == residentID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) ListBySlot(_ context.Context, slotID string, _ int) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.SlotID == slotID {
			out = append(out, *b)
		}
	}
	return out, nil
}

type testEnv struct {
	slots     *fakeSlots
	schedules *fakeSchedules
	bookings  *fakeBookings
	booking   *BookingHandler
	slot      *SlotHandler
	sched     *ScheduleHandler
	admin     *AdminHandler
}

func newTestEnv() *testEnv {
	slots := &fakeSlots{slots: map[string]*model.Slot{}}
	schedules := &fakeSchedules{windows: map[string][]model.Window{}, blackouts: map[string][]model.Blackout{}}
	bookings := newFakeBookings()
	rules := booking.Rules{MinDurationHours: 1, MaxDurationHours: 168, MaxAdvanceDays: 30, CancelGraceHours: 1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := booking.NewEngine(rules, schedule.NewResolver(time.UTC), slots, schedules, bookings, logger)

	return &testEnv{
		slots:     slots,
		schedules: schedules,
		bookings:  bookings,
		booking:   NewBookingHandler(eng, bookings, slots, logger),
		slot:      NewSlotHandler(eng, slots, logger),
		sched:     NewScheduleHandler(schedules, slots, logger),
		admin:     NewAdminHandler(eng, logger),
	}
}

func ownedSlot(id, owner string, hourly *float64) *model.Slot {
	return &model.Slot{
		ID:              id,
		Number:          "P-" + id,
		Type:            model.SlotTypeUncovered,
		Status:          model.SlotStatusAvailable,
		OwnerResidentID: &owner,
		ListedForRent:   hourly != nil,
		HourlyRate:      hourly,
	}
}

func sharedSlot(id string) *model.Slot {
	return &model.Slot{
		ID:     id,
		Number: "P-" + id,
		Type:   model.SlotTypeUncovered,
		Status: model.SlotStatusAvailable,
	}
}

func newRequest(t *testing.T, method, target string, body any, residentID, role string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if residentID != "" {
		req.Header.Set("X-Resident-Id", residentID)
	}
	if role != "" {
		req.Header.Set("X-Resident-Role", role)
	}
	return req
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

// futureRange picks an interval safely inside the advance horizon
// regardless of when the test runs.
func futureRange(length time.Duration) (time.Time, time.Time) {
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)
	return start, start.Add(length)
}

func TestCreateBooking_Admitted(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = sharedSlot("s1")
	start, end := futureRange(4 * time.Hour)

	req := newRequest(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"slot_id":    "s1",
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["booking_id"] == "" || body["booking_id"] == nil {
		t.Fatalf("expected booking_id in response, got %v", body)
	}
	if body["status"] != model.BookingStatusConfirmed {
		t.Fatalf("expected confirmed booking, got %v", body["status"])
	}
}

func TestCreateBooking_MissingIdentity(t *testing.T) {
	env := newTestEnv()
	req := newRequest(t, http.MethodPost, "/api/v1/bookings", map[string]any{"slot_id": "s1"}, "", "")
	rr := httptest.NewRecorder()
	env.booking.Create(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity headers, got %d", rr.Code)
	}
}

func TestCreateBooking_ConflictMapsTo409(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = sharedSlot("s1")
	start, end := futureRange(4 * time.Hour)
	env.bookings.bookings["b0"] = &model.Booking{
		ID: "b0", SlotID: "s1", ResidentID: "res-2", BookedByID: "res-2",
		StartTime: start.Add(time.Hour), EndTime: end.Add(time.Hour),
		Status: model.BookingStatusConfirmed,
	}

	req := newRequest(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"slot_id":    "s1",
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.Create(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlap, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["code"] != booking.CodeSchedulingConflict {
		t.Fatalf("expected scheduling_conflict code, got %v", body["code"])
	}
}

func TestCreateBooking_HorizonMapsTo422(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = sharedSlot("s1")
	start := time.Now().UTC().Add(31 * 24 * time.Hour)

	req := newRequest(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"slot_id":    "s1",
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(2 * time.Hour).Format(time.RFC3339),
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.Create(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 beyond the horizon, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["code"] != booking.CodeAdvanceHorizon {
		t.Fatalf("expected advance_horizon_exceeded, got %v", body["code"])
	}
	if body["rule"] != "max_advance_days" {
		t.Fatalf("expected the limiting rule in the body, got %v", body["rule"])
	}
}

func TestCreateBooking_RaceGetsRetryAfter(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = sharedSlot("s1")
	env.bookings.failCreate = booking.ErrOverlapRace
	start, end := futureRange(2 * time.Hour)

	req := newRequest(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"slot_id":    "s1",
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.Create(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a lost race, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After hint, got %q", rr.Header().Get("Retry-After"))
	}
	body := decodeMap(t, rr)
	if body["code"] != "not_finalized" {
		t.Fatalf("expected not_finalized code, got %v", body["code"])
	}
}

func TestCreateBooking_StoreDownMapsTo503(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = sharedSlot("s1")
	env.bookings.failCreate = errors.New("connection refused")
	start, end := futureRange(2 * time.Hour)

	req := newRequest(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"slot_id":    "s1",
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.Create(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store is down, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCancelBooking_NotOwnerMapsTo403(t *testing.T) {
	env := newTestEnv()
	start, end := futureRange(2 * time.Hour)
	env.bookings.bookings["b1"] = &model.Booking{
		ID: "b1", SlotID: "s1", ResidentID: "res-1", BookedByID: "res-1",
		StartTime: start, EndTime: end, Status: model.BookingStatusConfirmed,
	}

	req := newRequest(t, http.MethodPost, "/api/v1/bookings/cancel", map[string]any{
		"booking_id": "b1",
	}, "res-2", "resident")
	rr := httptest.NewRecorder()
	env.booking.Cancel(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 cancelling another resident's booking, got %d", rr.Code)
	}
	body := decodeMap(t, rr)
	if body["code"] != booking.CodeCancelDenied {
		t.Fatalf("expected cancel_denied, got %v", body["code"])
	}
}

func TestCancelBooking_OwnerSucceeds(t *testing.T) {
	env := newTestEnv()
	start, end := futureRange(2 * time.Hour)
	env.bookings.bookings["b1"] = &model.Booking{
		ID: "b1", SlotID: "s1", ResidentID: "res-1", BookedByID: "res-1",
		StartTime: start, EndTime: end, Status: model.BookingStatusConfirmed,
	}

	req := newRequest(t, http.MethodPost, "/api/v1/bookings/cancel", map[string]any{
		"booking_id": "b1",
		"reason":     "plans changed",
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.Cancel(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["status"] != model.BookingStatusCancelled {
		t.Fatalf("expected cancelled status, got %v", body["status"])
	}
	if body["cancel_reason"] != "plans changed" {
		t.Fatalf("expected cancel reason in response, got %v", body["cancel_reason"])
	}
}

func TestListBookings_SlotTimelineRestricted(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)
	start, end := futureRange(2 * time.Hour)
	env.bookings.bookings["b1"] = &model.Booking{
		ID: "b1", SlotID: "s1", ResidentID: "res-1", BookedByID: "res-1",
		StartTime: start, EndTime: end, Status: model.BookingStatusConfirmed,
	}

	req := newRequest(t, http.MethodGet, "/api/v1/bookings?slot_id=s1", nil, "res-2", "resident")
	rr := httptest.NewRecorder()
	env.booking.List(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a stranger reading the slot timeline, got %d", rr.Code)
	}

	req = newRequest(t, http.MethodGet, "/api/v1/bookings?slot_id=s1", nil, "res-owner", "resident")
	rr = httptest.NewRecorder()
	env.booking.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for the owner, got %d", rr.Code)
	}

	var items []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 booking on the timeline, got %d", len(items))
	}
}

func TestListBookings_Mine(t *testing.T) {
	env := newTestEnv()
	start, end := futureRange(2 * time.Hour)
	env.bookings.bookings["b1"] = &model.Booking{
		ID: "b1", SlotID: "s1", ResidentID: "res-1", BookedByID: "res-1",
		StartTime: start, EndTime: end, Status: model.BookingStatusConfirmed,
	}
	env.bookings.bookings["b2"] = &model.Booking{
		ID: "b2", SlotID: "s2", ResidentID: "res-2", BookedByID: "res-2",
		StartTime: start, EndTime: end, Status: model.BookingStatusConfirmed,
	}

	req := newRequest(t, http.MethodGet, "/api/v1/bookings", nil, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.booking.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var items []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0]["booking_id"] != "b1" {
		t.Fatalf("expected only res-1's booking, got %v", items)
	}
}

func TestAvailability_CarriesReason(t *testing.T) {
	env := newTestEnv()
	slot := ownedSlot("s1", "res-owner", nil)
	slot.Status = model.SlotStatusMaintenance
	env.slots.slots["s1"] = slot
	start, end := futureRange(2 * time.Hour)

	target := "/api/v1/slots/availability?slot_id=s1&start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339)
	req := newRequest(t, http.MethodGet, target, nil, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.slot.Availability(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for an availability read, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["available"] != false {
		t.Fatalf("expected unavailable, got %v", body)
	}
	if body["reason"] != booking.CodeSlotNotAvailable {
		t.Fatalf("expected slot_not_available reason, got %v", body["reason"])
	}
}

func TestQuote_AmountAndNotListed(t *testing.T) {
	env := newTestEnv()
	hourly := 10.0
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", &hourly)
	env.slots.slots["s2"] = ownedSlot("s2", "res-owner", nil)
	start, end := futureRange(5 * time.Hour)

	target := "/api/v1/slots/quote?slot_id=s1&start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339)
	req := newRequest(t, http.MethodGet, target, nil, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.slot.Quote(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["amount"] != 50.0 {
		t.Fatalf("expected amount 50.00, got %v", body["amount"])
	}

	target = "/api/v1/slots/quote?slot_id=s2&start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339)
	req = newRequest(t, http.MethodGet, target, nil, "res-1", "resident")
	rr = httptest.NewRecorder()
	env.slot.Quote(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unpriced slot, got %d", rr.Code)
	}
	body = decodeMap(t, rr)
	if body["code"] != booking.CodeNotListed {
		t.Fatalf("expected not_listed, got %v", body["code"])
	}
}

func TestQuickPost_OwnerOnly(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)

	req := newRequest(t, http.MethodPost, "/api/v1/slots/quickpost", map[string]any{
		"slot_id": "s1",
		"hours":   24,
	}, "res-2", "resident")
	rr := httptest.NewRecorder()
	env.slot.QuickPost(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-owner, got %d", rr.Code)
	}

	req = newRequest(t, http.MethodPost, "/api/v1/slots/quickpost", map[string]any{
		"slot_id": "s1",
		"hours":   24,
	}, "res-owner", "resident")
	rr = httptest.NewRecorder()
	env.slot.QuickPost(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	s := env.slots.slots["s1"]
	if !s.QuickAvailable || s.QuickUntil == nil || !s.ListedForRent {
		t.Fatalf("expected quick posting recorded on the slot, got %+v", s)
	}
}

func TestQuickPost_HoursBounds(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)

	for _, hours := range []int{0, -3, 169} {
		req := newRequest(t, http.MethodPost, "/api/v1/slots/quickpost", map[string]any{
			"slot_id": "s1",
			"hours":   hours,
		}, "res-owner", "resident")
		rr := httptest.NewRecorder()
		env.slot.QuickPost(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("hours=%d: expected 400, got %d", hours, rr.Code)
		}
	}
}

func TestCreateSlot_OwnerDefaultsToRequester(t *testing.T) {
	env := newTestEnv()

	req := newRequest(t, http.MethodPost, "/api/v1/slots", map[string]any{
		"number": "A-12",
		"type":   model.SlotTypeCovered,
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.slot.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	slotID, _ := body["slot_id"].(string)
	s := env.slots.slots[slotID]
	if s == nil || s.OwnerResidentID == nil || *s.OwnerResidentID != "res-1" {
		t.Fatalf("expected the requester as owner, got %+v", s)
	}
}

func TestCreateSlot_AssigningOwnerNeedsAdmin(t *testing.T) {
	env := newTestEnv()

	req := newRequest(t, http.MethodPost, "/api/v1/slots", map[string]any{
		"number":            "A-13",
		"owner_resident_id": "res-9",
	}, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.slot.Create(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a resident assigning owners, got %d", rr.Code)
	}

	req = newRequest(t, http.MethodPost, "/api/v1/slots", map[string]any{
		"number":            "A-13",
		"owner_resident_id": "res-9",
	}, "admin-1", "admin")
	rr = httptest.NewRecorder()
	env.slot.Create(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for an admin, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateSlot_StatusValidated(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)

	req := newRequest(t, http.MethodPost, "/api/v1/slots/update", map[string]any{
		"slot_id": "s1",
		"status":  "parked",
	}, "res-owner", "resident")
	rr := httptest.NewRecorder()
	env.slot.Update(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown status, got %d", rr.Code)
	}

	req = newRequest(t, http.MethodPost, "/api/v1/slots/update", map[string]any{
		"slot_id": "s1",
		"status":  model.SlotStatusMaintenance,
	}, "res-owner", "resident")
	rr = httptest.NewRecorder()
	env.slot.Update(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if env.slots.slots["s1"].Status != model.SlotStatusMaintenance {
		t.Fatalf("expected status updated, got %s", env.slots.slots["s1"].Status)
	}
}

func TestCreateWindow_ShapeValidation(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"both shapes", map[string]any{
			"slot_id": "s1", "weekdays": []int{1}, "start_date": "2026-02-01", "end_date": "2026-02-07",
			"start_clock": "08:00", "end_clock": "18:00",
		}},
		{"neither shape", map[string]any{
			"slot_id": "s1", "start_clock": "08:00", "end_clock": "18:00",
		}},
		{"weekday out of range", map[string]any{
			"slot_id": "s1", "weekdays": []int{7}, "start_clock": "08:00", "end_clock": "18:00",
		}},
		{"clocks reversed", map[string]any{
			"slot_id": "s1", "weekdays": []int{1}, "start_clock": "18:00", "end_clock": "08:00",
		}},
		{"clock past 24", map[string]any{
			"slot_id": "s1", "weekdays": []int{1}, "start_clock": "08:00", "end_clock": "25:00",
		}},
		{"dates reversed", map[string]any{
			"slot_id": "s1", "start_date": "2026-02-07", "end_date": "2026-02-01",
			"start_clock": "08:00", "end_clock": "18:00",
		}},
	}
	for _, tc := range cases {
		req := newRequest(t, http.MethodPost, "/api/v1/slots/windows", tc.body, "res-owner", "resident")
		rr := httptest.NewRecorder()
		env.sched.CreateWindow(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, rr.Code, rr.Body.String())
		}
	}
}

func TestCreateWindow_MidnightEndAllowed(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)

	req := newRequest(t, http.MethodPost, "/api/v1/slots/windows", map[string]any{
		"slot_id":     "s1",
		"weekdays":    []int{1, 2, 3, 4, 5},
		"start_clock": "18:00",
		"end_clock":   "24:00",
	}, "res-owner", "resident")
	rr := httptest.NewRecorder()
	env.sched.CreateWindow(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(env.schedules.windows["s1"]) != 1 {
		t.Fatalf("expected 1 window stored, got %d", len(env.schedules.windows["s1"]))
	}
}

func TestDeleteBlackout_UnknownMapsTo404(t *testing.T) {
	env := newTestEnv()
	env.slots.slots["s1"] = ownedSlot("s1", "res-owner", nil)

	req := newRequest(t, http.MethodPost, "/api/v1/slots/blackouts/delete", map[string]any{
		"slot_id":     "s1",
		"blackout_id": "blk-9",
	}, "res-owner", "resident")
	rr := httptest.NewRecorder()
	env.sched.DeleteBlackout(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown blackout, got %d", rr.Code)
	}
}

func TestAdminSweep_RoleEnforced(t *testing.T) {
	env := newTestEnv()
	expired := time.Now().UTC().Add(-time.Hour)
	slot := ownedSlot("s1", "res-owner", nil)
	slot.QuickAvailable = true
	slot.QuickUntil = &expired
	env.slots.slots["s1"] = slot

	req := newRequest(t, http.MethodPost, "/api/v1/admin/sweep", nil, "res-1", "resident")
	rr := httptest.NewRecorder()
	env.admin.Sweep(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a resident, got %d", rr.Code)
	}

	req = newRequest(t, http.MethodPost, "/api/v1/admin/sweep", nil, "admin-1", "admin")
	rr = httptest.NewRecorder()
	env.admin.Sweep(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeMap(t, rr)
	if body["expired"] != 1.0 {
		t.Fatalf("expected 1 expired posting, got %v", body["expired"])
	}
}

func TestRejectionStatusMapping(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{booking.CodeBadShape, http.StatusBadRequest},
		{booking.CodeInvalidInput, http.StatusBadRequest},
		{booking.CodeOwnershipDenied, http.StatusForbidden},
		{booking.CodeCancelDenied, http.StatusForbidden},
		{booking.CodeSchedulingConflict, http.StatusConflict},
		{booking.CodeCancelInvalidStatus, http.StatusConflict},
		{booking.CodeDurationTooShort, http.StatusUnprocessableEntity},
		{booking.CodeDurationTooLong, http.StatusUnprocessableEntity},
		{booking.CodeAdvanceHorizon, http.StatusUnprocessableEntity},
		{booking.CodeSlotNotAvailable, http.StatusUnprocessableEntity},
		{booking.CodeAvailabilityDenied, http.StatusUnprocessableEntity},
		{booking.CodeCancelGraceExpired, http.StatusUnprocessableEntity},
		{booking.CodeNotListed, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if got := rejectionStatus(tc.code); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.code, tc.want, got)
		}
	}
}
