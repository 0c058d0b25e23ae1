// Package controller holds the calendar view state: the selected week, the
// committed event set, fetch deduplication, preference toggles, the per-day
// link boards and session expiry handling.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"unical/internal/backend"
	"unical/internal/compose"
	"unical/internal/cycle"
	"unical/internal/deadline"
	"unical/internal/links"
	appLog "unical/internal/log"
	"unical/internal/model"
	"unical/internal/normalize"
	"unical/internal/prefs"
	"unical/internal/tz"
	"unical/internal/week"
)

var (
	// ErrSessionExpired is returned when the backend rejects the session.
	ErrSessionExpired = errors.New("controller: session expired")
	// ErrNoWeek is returned when an operation needs a committed week.
	ErrNoWeek = errors.New("controller: no week loaded")
)

// NoticeSessionExpired is the user-facing session expiry message.
const NoticeSessionExpired = "Сессия истекла. Войдите снова."

// Backend is the set of upstream calls the controller makes.
type Backend interface {
	links.Saver
	Login(ctx context.Context, p backend.Platform, creds backend.Credentials) (string, error)
	FetchEvents(ctx context.Context, q backend.Query) (*normalize.Payload, error)
	RefreshCache(ctx context.Context, q backend.Query) (*normalize.Payload, error)
	ExportCalendar(ctx context.Context, q backend.Query) ([]byte, error)
	GetLinks(ctx context.Context, lessonIDs []string) (map[string]string, error)
}

// Options configures a Controller.
type Options struct {
	// Location is the viewer zone.
	Location *time.Location
	// SlotLocation is the zone the clock slots are defined in.
	SlotLocation *time.Location
	Slots        []week.ClockSlot
	// CalendarID is used when the preference store holds none.
	CalendarID  string
	ReauthDelay time.Duration
	Now         func() time.Time
}

var tokenKeys = map[backend.Platform]string{
	backend.PlatformUniversity: prefs.KeyTokenUniversity,
	backend.PlatformProvider:   prefs.KeyTokenProvider,
	backend.PlatformLMS:        prefs.KeyTokenLMS,
}

// Controller is safe for concurrent use. Network calls run without the lock
// held; results are committed only if they still match the selected week.
type Controller struct {
	api   Backend
	store prefs.Store
	opts  Options
	norm  *tz.Normalizer

	mu            sync.Mutex
	selected      Range
	lastTriggered string
	inFlight      map[string]bool
	committed     Range
	events        []model.NormalizedEvent
	fetchErr      error
	selectedEvent string
	notice        string
	noticeShown   bool
	boards        map[string]*cycle.Board
}

// New creates a Controller.
func New(api Backend, store prefs.Store, opts Options) *Controller {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SlotLocation == nil {
		opts.SlotLocation = opts.Location
	}
	if len(opts.Slots) == 0 {
		opts.Slots = week.DefaultClockSlots
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		api:      api,
		store:    store,
		opts:     opts,
		norm:     tz.New(opts.Location),
		inFlight: make(map[string]bool),
		boards:   make(map[string]*cycle.Board),
	}
}

// Location returns the viewer zone.
func (c *Controller) Location() *time.Location {
	return c.opts.Location
}

// Today returns the current date in the viewer zone.
func (c *Controller) Today() time.Time {
	return tz.StartOfDay(c.opts.Now().In(c.opts.Location))
}

// SelectWeek selects the week containing day and fetches it unless the
// same range was the last one triggered, is still in flight, or is already
// committed.
func (c *Controller) SelectWeek(ctx context.Context, day time.Time) error {
	r := WeekRange(day, c.opts.Location)
	key := r.Key()

	c.mu.Lock()
	c.selected = r
	if key == c.lastTriggered || c.inFlight[key] || key == c.committed.Key() {
		c.lastTriggered = key
		c.mu.Unlock()
		appLog.Debug("week fetch skipped", "range", key)
		return nil
	}
	c.mu.Unlock()

	return c.fetch(ctx, r, false)
}

// Refresh refetches the selected week through the cache-bypassing endpoint.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	r := c.selected
	c.mu.Unlock()
	if r.Start.IsZero() {
		r = WeekRange(c.opts.Now(), c.opts.Location)
		c.mu.Lock()
		c.selected = r
		c.mu.Unlock()
	}
	return c.fetch(ctx, r, true)
}

func (c *Controller) fetch(ctx context.Context, r Range, refresh bool) error {
	key := r.Key()

	c.mu.Lock()
	c.lastTriggered = key
	c.inFlight[key] = true
	c.mu.Unlock()

	q, err := c.query(ctx, r)
	var payload *normalize.Payload
	if err == nil {
		if refresh {
			payload, err = c.api.RefreshCache(ctx, q)
		} else {
			payload, err = c.api.FetchEvents(ctx, q)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)

	if c.selected.Key() != key {
		if c.lastTriggered == key {
			c.lastTriggered = ""
		}
		appLog.Info("stale week result discarded", "range", key, "selected", c.selected.Key())
		return nil
	}

	if err != nil {
		c.lastTriggered = ""
		if errors.Is(err, backend.ErrUnauthorized) {
			c.expireLocked(ctx)
			return ErrSessionExpired
		}
		c.fetchErr = err
		c.committed = Range{}
		c.events = nil
		c.resetDayStateLocked()
		appLog.Error("week fetch failed", err, "range", key)
		return fmt.Errorf("controller: fetch week: %w", err)
	}

	res := normalize.Normalize(payload, c.norm)
	c.events = normalize.Window(res.Events, r.Start, r.End)
	c.committed = r
	c.fetchErr = nil
	c.resetDayStateLocked()
	appLog.Info("week committed", "range", key, "events", len(c.events), "skipped", len(res.Skipped), "refresh", refresh)
	return nil
}

func (c *Controller) query(ctx context.Context, r Range) (backend.Query, error) {
	q := backend.Query{
		CalendarID: c.opts.CalendarID,
		Timezone:   c.opts.Location.String(),
		TimeMin:    r.Start,
		TimeMax:    r.End,
		Tokens:     make(map[backend.Platform]string),
	}
	if id, ok, err := c.store.Get(ctx, prefs.KeyCalendarID); err != nil {
		return q, err
	} else if ok && id != "" {
		q.CalendarID = id
	}
	for p, key := range tokenKeys {
		tok, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return q, err
		}
		if ok {
			q.Tokens[p] = tok
		}
	}
	return q, nil
}

// expireLocked clears session state, keeping the preserved preferences, and
// raises the expiry notice once per login.
func (c *Controller) expireLocked(ctx context.Context) {
	if err := c.store.ClearExcept(ctx, prefs.Preserved); err != nil {
		appLog.Error("session clear failed", err)
	}
	c.events = nil
	c.committed = Range{}
	c.fetchErr = nil
	c.selectedEvent = ""
	c.lastTriggered = ""
	c.resetDayStateLocked()
	if !c.noticeShown {
		c.notice = NoticeSessionExpired
		c.noticeShown = true
	}
	appLog.Info("session expired")
}

func (c *Controller) resetDayStateLocked() {
	c.boards = make(map[string]*cycle.Board)
}

// View is the computed display model of the selected week.
type View struct {
	Range         Range                      `json:"range"`
	Committed     *Range                     `json:"committed,omitempty"`
	Loading       bool                       `json:"loading"`
	Error         string                     `json:"error,omitempty"`
	Grid          *week.Grid                 `json:"grid,omitempty"`
	List          *week.List                 `json:"list,omitempty"`
	Deadlines     map[string][]deadline.Item `json:"deadlines"`
	SelectedEvent string                     `json:"selected_event,omitempty"`
	Notice        string                     `json:"notice,omitempty"`
	ReauthAfter   time.Duration              `json:"-"`
}

// View computes the current display model. While a fetch is outstanding
// the previously committed data stays visible. After a failed fetch no
// grid is produced. A pending session notice is reported by exactly one
// View call.
func (c *Controller) View(ctx context.Context) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Range:         c.selected,
		Loading:       c.inFlight[c.selected.Key()],
		SelectedEvent: c.selectedEvent,
	}
	if c.notice != "" {
		v.Notice = c.notice
		v.ReauthAfter = c.opts.ReauthDelay
		c.notice = ""
	}
	if c.fetchErr != nil {
		v.Error = c.fetchErr.Error()
		return v, nil
	}
	if c.committed.Start.IsZero() {
		return v, nil
	}

	committed := c.committed
	v.Committed = &committed

	slots, err := week.Slots(c.opts.Slots, c.opts.SlotLocation, c.opts.Location, committed.Start)
	if err != nil {
		return v, err
	}
	grid := week.BuildGrid(c.events, committed.Start, slots)
	list := week.BuildList(c.events, committed.Start)
	v.Grid = &grid
	v.List = &list

	if prefs.Bool(ctx, c.store, prefs.KeyDeadlinesVisible, true) {
		dates := week.Dates(committed.Start)
		v.Deadlines = deadline.Aggregate(c.events, dates[:], c.opts.Now())
	}
	return v, nil
}

// Events returns a copy of the committed events.
func (c *Controller) Events() []model.NormalizedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.NormalizedEvent(nil), c.events...)
}

// ToggleSelect selects id, or clears the selection if id is already
// selected. It returns the new selection.
func (c *Controller) ToggleSelect(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedEvent == id {
		c.selectedEvent = ""
	} else {
		c.selectedEvent = id
	}
	return c.selectedEvent
}

// ToggleDeadlines flips the persisted deadline-row visibility.
func (c *Controller) ToggleDeadlines(ctx context.Context) (bool, error) {
	visible := !prefs.Bool(ctx, c.store, prefs.KeyDeadlinesVisible, true)
	if err := prefs.SetBool(ctx, c.store, prefs.KeyDeadlinesVisible, visible); err != nil {
		return !visible, err
	}
	return visible, nil
}

// board returns the link board for date, building it on first use. The
// lock must not be held.
func (c *Controller) board(ctx context.Context, date time.Time) (*cycle.Board, error) {
	date = tz.StartOfDay(date.In(c.opts.Location))
	key := tz.DateKey(date)

	c.mu.Lock()
	if c.committed.Start.IsZero() {
		c.mu.Unlock()
		return nil, ErrNoWeek
	}
	if b, ok := c.boards[key]; ok {
		c.mu.Unlock()
		return b, nil
	}
	day := week.ForDay(c.events, date)
	committed := c.committed.Key()
	c.mu.Unlock()

	var ids []string
	for _, ev := range day {
		if cycle.Eligible(ev) {
			ids = append(ids, ev.ID)
		}
	}
	stored, err := c.api.GetLinks(ctx, ids)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			c.mu.Lock()
			c.expireLocked(ctx)
			c.mu.Unlock()
			return nil, ErrSessionExpired
		}
		appLog.Error("stored links unavailable", err, "date", key)
		stored = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.committed.Key() != committed {
		return nil, ErrNoWeek
	}
	if b, ok := c.boards[key]; ok {
		return b, nil
	}
	b := cycle.NewBoard(day, stored)
	c.boards[key] = b
	return b, nil
}

// Cards returns the link board cards for date.
func (c *Controller) Cards(ctx context.Context, date time.Time) ([]cycle.Card, error) {
	b, err := c.board(ctx, date)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return b.Cards(), nil
}

// ToggleGroup expands or collapses a cycle group on date's board.
func (c *Controller) ToggleGroup(ctx context.Context, date time.Time, code string) ([]cycle.Card, error) {
	b, err := c.board(ctx, date)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := b.Toggle(code); err != nil {
		return nil, err
	}
	return b.Cards(), nil
}

// SetLink edits one event's link on date's board.
func (c *Controller) SetLink(ctx context.Context, date time.Time, eventID, url string) ([]cycle.Card, error) {
	b, err := c.board(ctx, date)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := b.SetLink(eventID, url); err != nil {
		return nil, err
	}
	return b.Cards(), nil
}

// SetGroupLink writes url to every member of a cycle group on date's board.
func (c *Controller) SetGroupLink(ctx context.Context, date time.Time, code, url string) ([]cycle.Card, error) {
	b, err := c.board(ctx, date)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := b.SetGroupLink(code, url); err != nil {
		return nil, err
	}
	return b.Cards(), nil
}

// SaveLinks persists the changed links of date's board one by one.
func (c *Controller) SaveLinks(ctx context.Context, date time.Time) (links.Tally, error) {
	b, err := c.board(ctx, date)
	if err != nil {
		return links.Tally{}, err
	}

	c.mu.Lock()
	pending := b.Pending()
	c.mu.Unlock()

	items := make([]links.Item, len(pending))
	urls := make(map[string]string, len(pending))
	for i, ch := range pending {
		items[i] = links.Item{LessonID: ch.EventID, URL: ch.URL}
		urls[ch.EventID] = ch.URL
	}
	tally := links.SaveAll(ctx, c.api, items)

	c.mu.Lock()
	for _, id := range tally.Stored {
		b.MarkStored(id, urls[id])
	}
	c.mu.Unlock()
	return tally, nil
}

// Message composes the broadcast text for date from the committed week and
// the links currently on date's board.
func (c *Controller) Message(ctx context.Context, date time.Time) (string, error) {
	b, err := c.board(ctx, date)
	if err != nil {
		return "", err
	}
	date = tz.StartOfDay(date.In(c.opts.Location))

	c.mu.Lock()
	defer c.mu.Unlock()
	return compose.Compose(date, c.events, b.Links()), nil
}

// Export returns the backend's calendar file for the selected week.
func (c *Controller) Export(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	r := c.selected
	c.mu.Unlock()
	if r.Start.IsZero() {
		return nil, ErrNoWeek
	}

	q, err := c.query(ctx, r)
	if err != nil {
		return nil, err
	}
	body, err := c.api.ExportCalendar(ctx, q)
	if errors.Is(err, backend.ErrUnauthorized) {
		c.mu.Lock()
		c.expireLocked(ctx)
		c.mu.Unlock()
		return nil, ErrSessionExpired
	}
	return body, err
}

// Login authenticates against one platform and stores its token. Any
// non-success is reported as invalid credentials without retry.
func (c *Controller) Login(ctx context.Context, p backend.Platform, creds backend.Credentials) error {
	tok, err := c.api.Login(ctx, p, creds)
	if err != nil {
		appLog.Error("login failed", err, "platform", p)
		return fmt.Errorf("controller: invalid credentials for %s: %w", p, err)
	}
	if err := c.store.Set(ctx, tokenKeys[p], tok); err != nil {
		return err
	}

	c.mu.Lock()
	c.noticeShown = false
	c.notice = ""
	// Force the next selection to refetch with the new token.
	c.lastTriggered = ""
	c.mu.Unlock()
	appLog.Info("login succeeded", "platform", p)
	return nil
}

// Logout clears the session, keeping the preserved preferences.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.store.ClearExcept(ctx, prefs.Preserved); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
	c.committed = Range{}
	c.fetchErr = nil
	c.selectedEvent = ""
	c.lastTriggered = ""
	c.notice = ""
	c.noticeShown = false
	c.resetDayStateLocked()
	return nil
}
