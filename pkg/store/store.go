// Package store implements the optimistic ticket cache. Mutations apply to
// the local working set synchronously, detach their gateway writes, and
// schedule a delayed reconciliation read. The remote side acknowledges
// nothing, so consistency is eventual: a reconciliation that lands before an
// in-flight write can transiently hide an optimistic entry, and racing
// refreshes resolve last-response-wins.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ubitech/deskmate/pkg/bus"
	"github.com/ubitech/deskmate/pkg/errors"
	"github.com/ubitech/deskmate/pkg/gateway"
	"github.com/ubitech/deskmate/pkg/logging"
	"github.com/ubitech/deskmate/pkg/ticket"
)

const (
	// DefaultCreateRefreshDelay is how long after a create the store waits
	// before reconciling, giving the sheet time to land the row.
	DefaultCreateRefreshDelay = 2 * time.Second

	// DefaultMutateRefreshDelay is the reconciliation delay after log
	// appends and closes.
	DefaultMutateRefreshDelay = 3 * time.Second

	defaultWriteTimeout = 30 * time.Second

	// defaultInitialLog seeds the troubleshooting log when the caller
	// supplies none.
	defaultInitialLog = "No troubleshooting steps recorded by AI."
)

// Store is an optimistic cache over the remote ticket sheet.
// All methods are safe for concurrent use.
type Store struct {
	mu             sync.RWMutex
	tickets        []ticket.Ticket
	syncing        bool
	lastError      string
	identifiedUser string

	gw     *gateway.Client
	events bus.MessageBus
	logger *logging.Logger
	closed atomic.Bool

	createDelay  time.Duration
	mutateDelay  time.Duration
	writeTimeout time.Duration

	now     func() time.Time
	randInt func(n int) int
}

// Option configures a Store.
type Option func(*Store)

// WithBus routes state-change notifications through the given message bus.
func WithBus(b bus.MessageBus) Option {
	return func(s *Store) { s.events = b }
}

// WithLogger attaches a structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDelays overrides the reconciliation delays.
func WithDelays(create, mutate time.Duration) Option {
	return func(s *Store) {
		s.createDelay = create
		s.mutateDelay = mutate
	}
}

// WithClock injects the time source used for date and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRand injects the random source used for id generation.
func WithRand(randInt func(n int) int) Option {
	return func(s *Store) { s.randInt = randInt }
}

// New constructs a Store against the given gateway. The cache starts empty;
// call Refresh to load the initial snapshot.
func New(gw *gateway.Client, opts ...Option) *Store {
	s := &Store{
		gw:           gw,
		events:       bus.NewMemoryBus(),
		logger:       logging.NewNopLogger(),
		createDelay:  DefaultCreateRefreshDelay,
		mutateDelay:  DefaultMutateRefreshDelay,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
		randInt:      rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops background reconciliation. In-flight gateway writes run to
// completion; their results are discarded.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Event is the payload published on store subjects.
type Event struct {
	TicketID string `json:"ticketId,omitempty"`
	Count    int    `json:"count,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Subscribe registers a handler for store state changes. The pattern
// "deskmate.store.*" receives every event.
func (s *Store) Subscribe(ctx context.Context, pattern string, handler bus.MessageHandler) (bus.Subscription, error) {
	return s.events.Subscribe(ctx, pattern, handler)
}

func (s *Store) publish(subject string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.events.Publish(context.Background(), subject, data); err != nil {
		s.logger.Debug(logging.CategoryStore, "publish_failed", "event not published", map[string]any{
			"subject": subject,
		})
	}
}

// Tickets returns a copy of the cached working set, most recent first.
func (s *Store) Tickets() []ticket.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ticket.Ticket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

// Syncing reports whether a reconciliation read is in flight.
func (s *Store) Syncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// LastError returns the most recent reconciliation failure, empty when the
// last refresh succeeded.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// IdentifiedUser returns the requester identity (email or PIN) most recently
// surfaced by a search or create.
func (s *Store) IdentifiedUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identifiedUser
}

// SetIdentifiedUser records the requester identity the conversation is
// currently about.
func (s *Store) SetIdentifiedUser(q string) {
	s.mu.Lock()
	s.identifiedUser = q
	s.mu.Unlock()
}

// Refresh reconciles the cache against a full remote snapshot. On success
// the working set is wholesale-replaced, newest first, and lastError is
// cleared. On failure the previous working set is retained and lastError is
// set. Errors are reported through state, never returned.
func (s *Store) Refresh(ctx context.Context) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()
	s.publish(bus.SubjectStoreSyncing, Event{})

	snapshot, err := s.gw.Snapshot(ctx)

	s.mu.Lock()
	s.syncing = false
	if err != nil {
		s.lastError = "Sync Failed. Please check internet connection."
		s.mu.Unlock()

		s.logger.Warn(logging.CategoryStore, "refresh_failed", "snapshot not applied", map[string]any{
			"error": err.Error(),
		})
		s.publish(bus.SubjectStoreError, Event{Error: err.Error()})
		return
	}

	// The sheet appends rows; reverse so the newest ticket leads.
	replacement := make([]ticket.Ticket, len(snapshot))
	for i, t := range snapshot {
		replacement[len(snapshot)-1-i] = t
	}
	s.tickets = replacement
	s.lastError = ""
	s.mu.Unlock()

	s.logger.Info(logging.CategoryStore, "refreshed", "cache replaced from snapshot", map[string]any{
		"count": len(replacement),
	})
	s.publish(bus.SubjectStoreRefreshed, Event{Count: len(replacement)})
}

// CreateRequest carries the field set for a new ticket. The conversation
// layer is responsible for having collected whatever fields the ticket type
// requires; the store applies structural defaults only.
type CreateRequest struct {
	Subject            string
	Category           string
	Description        string
	Location           string
	Severity           string
	PID                string
	Requester          string // email or employee PIN
	ContactNumber      string
	ImmediateSuperior  string
	SuperiorContact    string
	TroubleshootingLog string
	AttachmentURL      string

	// Account-request extras folded into the description.
	RequesterName string
	Department    string
	Position      string
}

// Create inserts an optimistic ticket at the head of the working set and
// returns it immediately. The gateway write is detached and a one-shot
// reconciliation is scheduled; neither outcome is awaited. Ids are drawn
// from a bounded numeric range with no uniqueness check against in-flight
// creates.
func (s *Store) Create(req CreateRequest) ticket.Ticket {
	now := s.now()

	description := req.Description
	if req.RequesterName != "" || req.Position != "" {
		description = fmt.Sprintf("[Requester Info]\nName: %s\nPosition: %s\nDept: %s\n\n[Issue]\n%s",
			orNA(req.RequesterName), orNA(req.Position), orNA(req.Department), req.Description)
	}

	initialLog := req.TroubleshootingLog
	if initialLog == "" {
		initialLog = defaultInitialLog
	}

	isEmail := strings.Contains(req.Requester, "@")
	email := "N/A"
	pin := ""
	if isEmail {
		email = req.Requester
	} else {
		pin = req.Requester
	}

	t := ticket.Ticket{
		ID:                 fmt.Sprintf("%d", 10000+s.randInt(90000)),
		DateCreated:        now.Format("January 2, 2006"),
		PID:                req.PID,
		RequesterEmail:     email,
		EmployeePIN:        pin,
		ImmediateSuperior:  req.ImmediateSuperior,
		SuperiorContact:    req.SuperiorContact,
		Subject:            req.Subject,
		Category:           req.Category,
		Description:        description,
		Technician:         ticket.TechnicianUnassigned,
		Location:           req.Location,
		Status:             ticket.StatusOpen,
		Severity:           ticket.ParseSeverity(req.Severity),
		ContactNumber:      req.ContactNumber,
		TroubleshootingLog: initialLog,
		AttachmentURL:      req.AttachmentURL,
	}

	s.mu.Lock()
	s.tickets = append([]ticket.Ticket{t}, s.tickets...)
	s.mu.Unlock()

	s.logger.Info(logging.CategoryStore, "created", "optimistic ticket inserted", map[string]any{
		"ticketId": t.ID,
		"subject":  t.Subject,
	})
	s.publish(bus.SubjectStoreCreated, Event{TicketID: t.ID})

	s.detachWrite("create", func(ctx context.Context) error {
		return s.gw.Create(ctx, t)
	})
	s.scheduleRefresh(s.createDelay)

	return t
}

// AppendLog appends one timestamped line to a ticket's troubleshooting log.
// The local mutation is immediate; the gateway write is detached. Unknown
// ids are a caller-visible miss.
func (s *Store) AppendLog(id, text string) error {
	entry := fmt.Sprintf("[%s]: %s", s.now().Format("15:04"), text)

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeTicketNotFound, "ticket "+id+" not found").
			WithContext("ticketId", id)
	}
	s.tickets[idx].AppendLogLine(entry)
	s.mu.Unlock()

	s.publish(bus.SubjectStoreUpdated, Event{TicketID: id})

	s.detachWrite("updateLog", func(ctx context.Context) error {
		return s.gw.AppendLog(ctx, id, entry)
	})
	s.scheduleRefresh(s.mutateDelay)
	return nil
}

// CloseTicket marks a ticket closed and appends a closing note. Repeat calls
// leave the status at Closed but each appends one more note line.
func (s *Store) CloseTicket(id, reason string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeTicketNotFound, "ticket "+id+" not found").
			WithContext("ticketId", id)
	}
	s.tickets[idx].Status = ticket.StatusClosed
	s.tickets[idx].AppendLogLine("[System]: Closed - " + reason)
	s.mu.Unlock()

	s.publish(bus.SubjectStoreClosed, Event{TicketID: id})

	s.detachWrite("closeTicket", func(ctx context.Context) error {
		return s.gw.CloseTicket(ctx, id, reason)
	})
	s.scheduleRefresh(s.mutateDelay)
	return nil
}

// GetByID returns the cached ticket with the exact id.
func (s *Store) GetByID(id string) (ticket.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.tickets[idx], true
	}
	return ticket.Ticket{}, false
}

// Search matches tickets whose pid or requester email contains the query
// (case-insensitive) or whose employee PIN equals it. Pure cache read; an
// empty query yields no matches.
func (s *Store) Search(query string) []ticket.Ticket {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ticket.Ticket
	for _, t := range s.tickets {
		if strings.Contains(strings.ToLower(t.PID), q) ||
			(t.EmployeePIN != "" && strings.ToLower(t.EmployeePIN) == q) ||
			(t.RequesterEmail != "" && strings.Contains(strings.ToLower(t.RequesterEmail), q)) {
			out = append(out, t)
		}
	}
	return out
}

// indexLocked finds a ticket position by id. Callers hold s.mu.
func (s *Store) indexLocked(id string) int {
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

// detachWrite launches a gateway write in the background. There is exactly
// one attempt; failures are logged and otherwise dropped, detectable only by
// absence at the next reconciliation.
func (s *Store) detachWrite(action string, write func(ctx context.Context) error) {
	if s.closed.Load() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		if err := write(ctx); err != nil {
			s.logger.Warn(logging.CategoryStore, "write_dropped", action+" write failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()
}

// scheduleRefresh arms a one-shot, non-cancellable reconciliation timer.
// It fires regardless of any refresh already in flight.
func (s *Store) scheduleRefresh(delay time.Duration) {
	if s.closed.Load() {
		return
	}
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
		s.Refresh(ctx)
	})
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
