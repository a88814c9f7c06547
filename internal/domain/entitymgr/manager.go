package entitymgr

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

// MinSearchLen is the shortest non-empty query that reaches the server.
const MinSearchLen = 2

// Status is the manager's load state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Action names a remote operation in logs, scoped messages and the journal.
type Action string

const (
	ActionLoad   Action = "load"
	ActionSearch Action = "search"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutation is passed to after-hooks.
type Mutation struct {
	Entity string
	Action Action
	ID     id.ID
	Data   Record // nil for delete
}

// Config configures a Manager.
type Config struct {
	Def     metadata.EntityDef
	Binding Binding
	Logger  *logger.Logger
	Hooks   *domain.HookRegistry[Mutation] // optional
}

// View is a consistent snapshot of the manager state for rendering.
type View struct {
	Def           metadata.EntityDef
	Items         []Record
	Query         string
	Status        Status
	Err           *apperror.AppError
	Form          *Form
	PendingDelete id.ID // zero when no confirmation is pending
	Busy          bool
}

// Manager keeps the local list of one collection in sync with the remote
// store. Every mutation is followed by a full reload; nothing is patched
// locally. Safe for concurrent use.
//
// Reads are latest-wins: each read gets a sequence number, a new read
// cancels the previous one, and a response older than the latest issued
// read is dropped.
type Manager struct {
	def      metadata.EntityDef
	binding  Binding
	log      *logger.Logger
	hooks    *domain.HookRegistry[Mutation]
	validate *validator.Validate

	mu            sync.Mutex
	items         []Record
	query         string
	status        Status
	err           *apperror.AppError
	form          *Form
	pendingDelete id.ID
	seq           uint64
	cancelRead    context.CancelFunc
	reading       int
	mutating      bool
}

// New creates a Manager. Nothing is fetched until Load.
func New(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = domain.NewHookRegistry[Mutation]()
	}
	return &Manager{
		def:      cfg.Def,
		binding:  cfg.Binding,
		log:      log.WithComponent("entitymgr").With("entity", cfg.Def.Name),
		hooks:    hooks,
		validate: validator.New(),
		status:   StatusIdle,
	}
}

// Def returns the entity definition.
func (m *Manager) Def() metadata.EntityDef { return m.def }

// Hooks returns the hook registry for external registration.
func (m *Manager) Hooks() *domain.HookRegistry[Mutation] { return m.hooks }

// View returns a snapshot safe to read without holding the manager.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Record, len(m.items))
	for i, it := range m.items {
		items[i] = it.Clone()
	}
	return View{
		Def:           m.def,
		Items:         items,
		Query:         m.query,
		Status:        m.status,
		Err:           m.err,
		Form:          m.form.clone(),
		PendingDelete: m.pendingDelete,
		Busy:          m.busyLocked(),
	}
}

// Load replaces the list with GetAll, or with Search when a query is active.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	q := m.query
	m.mu.Unlock()
	return m.read(ctx, q)
}

// Search runs a server search. An empty query lists everything; a
// one-character query makes no remote call and reports triggered=false.
// The active query only changes when a call is made.
func (m *Manager) Search(ctx context.Context, query string) (triggered bool, err error) {
	if n := utf8.RuneCountInString(query); n > 0 && n < MinSearchLen {
		return false, nil
	}
	m.mu.Lock()
	m.query = query
	m.mu.Unlock()
	return true, m.read(ctx, query)
}

func (m *Manager) read(ctx context.Context, query string) error {
	action := ActionLoad
	if query != "" {
		action = ActionSearch
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	if m.cancelRead != nil {
		m.cancelRead()
	}
	rctx, cancel := context.WithCancel(ctx)
	m.cancelRead = cancel
	m.reading++
	m.status = StatusLoading
	m.mu.Unlock()

	var (
		items []Record
		err   error
	)
	if query == "" {
		items, err = m.binding.GetAll(rctx)
	} else {
		items, err = m.binding.Search(rctx, query)
	}
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reading--

	if seq != m.seq {
		m.log.WithContext(ctx).Debugw("stale response dropped", "action", action, "seq", seq, "latest", m.seq)
		if m.status == StatusLoading {
			m.status = m.settledStatusLocked()
		}
		return apperror.NewCanceled(errors.New("superseded by a newer request"))
	}
	m.cancelRead = nil

	if err != nil {
		if apperror.IsCanceled(err) || errors.Is(err, context.Canceled) {
			// The caller went away; nothing to show.
			m.status = m.settledStatusLocked()
			return apperror.NewCanceled(err)
		}
		return m.failLocked(ctx, action, err)
	}

	m.items = items
	m.status = StatusSuccess
	m.err = nil
	return nil
}

// OpenCreate opens an empty form pre-filled from InitialFormData.
func (m *Manager) OpenCreate() *Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.form = &Form{Mode: FormCreate, Data: m.def.InitialFormData.Clone()}
	return m.form.clone()
}

// OpenEdit opens a form pre-filled from the listed item with the given id.
func (m *Manager) OpenEdit(itemID id.ID) (*Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.findLocked(itemID)
	if !ok {
		return nil, apperror.NewNotFound(m.def.Label, itemID)
	}
	m.form = &Form{Mode: FormEdit, ID: itemID, Data: prefill(m.def, item)}
	return m.form.clone(), nil
}

// CloseForm discards the open form.
func (m *Manager) CloseForm() {
	m.mu.Lock()
	m.form = nil
	m.mu.Unlock()
}

// Submit validates data, creates or updates the record of the open form,
// reloads the list and closes the form. On failure the form stays open
// and carries the error.
func (m *Manager) Submit(ctx context.Context, data Record) error {
	m.mu.Lock()
	if m.form == nil {
		m.mu.Unlock()
		return apperror.NewValidation("no form is open")
	}
	if m.busyLocked() {
		m.mu.Unlock()
		return apperror.NewBusy(m.def.Label)
	}
	form := m.form
	form.Data = data.Clone()
	if err := checkRequired(m.validate, m.def, data); err != nil {
		appErr := apperror.Normalize(err)
		form.Err = appErr
		m.mu.Unlock()
		return appErr
	}
	m.mutating = true
	m.status = StatusLoading
	m.mu.Unlock()

	body := payload(m.def, data)
	action := ActionCreate
	var (
		saved Record
		err   error
	)
	if form.Mode == FormEdit {
		action = ActionUpdate
		saved, err = m.binding.Update(ctx, form.ID, body)
	} else {
		saved, err = m.binding.Create(ctx, body)
	}

	m.mu.Lock()
	m.mutating = false
	if err != nil {
		appErr := m.failLocked(ctx, action, err)
		if m.form == form {
			form.Err = appErr
		}
		m.mu.Unlock()
		return appErr
	}
	if m.form == form {
		m.form = nil
	}
	m.mu.Unlock()

	savedID := form.ID
	if sid, ok := RecordID(saved); ok {
		savedID = sid
	}
	m.runHooks(ctx, Mutation{Entity: m.def.Name, Action: action, ID: savedID, Data: body})

	return m.Load(ctx)
}

// RequestDelete asks for confirmation before deleting itemID.
func (m *Manager) RequestDelete(itemID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findLocked(itemID); !ok {
		return apperror.NewNotFound(m.def.Label, itemID)
	}
	m.pendingDelete = itemID
	return nil
}

// CancelDelete drops a pending confirmation.
func (m *Manager) CancelDelete() {
	m.mu.Lock()
	m.pendingDelete = 0
	m.mu.Unlock()
}

// ConfirmDelete deletes the pending item and reloads. A failed delete
// leaves the list as it was.
func (m *Manager) ConfirmDelete(ctx context.Context) error {
	m.mu.Lock()
	target := m.pendingDelete
	if target.IsZero() {
		m.mu.Unlock()
		return apperror.NewValidation("nothing to delete: confirmation was not requested")
	}
	if m.busyLocked() {
		m.mu.Unlock()
		return apperror.NewBusy(m.def.Label)
	}
	m.pendingDelete = 0
	m.mutating = true
	m.status = StatusLoading
	m.mu.Unlock()

	err := m.binding.Delete(ctx, target)

	m.mu.Lock()
	m.mutating = false
	if err != nil {
		appErr := m.failLocked(ctx, ActionDelete, err)
		m.mu.Unlock()
		return appErr
	}
	m.mu.Unlock()

	m.runHooks(ctx, Mutation{Entity: m.def.Name, Action: ActionDelete, ID: target})
	return m.Load(ctx)
}

// Close cancels an in-flight read.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
}

func (m *Manager) runHooks(ctx context.Context, mut Mutation) {
	event := domain.AfterCreate
	switch mut.Action {
	case ActionUpdate:
		event = domain.AfterUpdate
	case ActionDelete:
		event = domain.AfterDelete
	}
	if err := m.hooks.Run(ctx, event, mut); err != nil {
		m.log.WithContext(ctx).Warnw("after-hook failed", "action", mut.Action, "id", mut.ID, "error", err)
	}
}

// failLocked records err as the banner error scoped to the entity label.
// The item list is left untouched.
func (m *Manager) failLocked(ctx context.Context, action Action, err error) *apperror.AppError {
	appErr := apperror.Normalize(err).Scoped(string(action), m.def.Label)
	m.log.WithContext(ctx).Errorw("catalog call failed", "action", action, "error", err)
	m.err = appErr
	m.status = StatusError
	return appErr
}

func (m *Manager) busyLocked() bool {
	return m.reading > 0 || m.mutating
}

func (m *Manager) settledStatusLocked() Status {
	switch {
	case m.reading > 0 || m.mutating:
		return StatusLoading
	case m.err != nil:
		return StatusError
	case m.items != nil:
		return StatusSuccess
	}
	return StatusIdle
}

func (m *Manager) findLocked(itemID id.ID) (Record, bool) {
	for _, it := range m.items {
		if rid, ok := RecordID(it); ok && rid == itemID {
			return it, true
		}
	}
	return nil, false
}
