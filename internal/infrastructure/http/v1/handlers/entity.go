package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain"
	"vinoteka/internal/domain/audit"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/cache"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/infrastructure/http/v1/middleware"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

type entityListBody struct {
	Def        metadata.EntityDef
	Columns    []string
	Rows       []entityRow
	Query      string
	Notice     string
	Errors     []*apperror.AppError
	Searchable bool
}

type entityRow struct {
	ID    string
	Cells []cell
}

type cell struct {
	Text     string
	ImageURL string
}

type entityFormBody struct {
	Def    metadata.EntityDef
	Action string
	Edit   bool
	Inputs []formInput
	Errors []*apperror.AppError
}

type entityDeleteBody struct {
	Def   metadata.EntityDef
	ID    string
	Title string
}

// EntityHandler serves the schema-driven admin pages of every registered
// entity. Each session gets its own entitymgr.Manager per entity.
type EntityHandler struct {
	*BaseHandler
	client   *catalogapi.Client
	resolver *reference.Resolver
	views    *cache.ViewCache
	journal  audit.Journal
	log      *logger.Logger
}

// NewEntityHandler creates an entity handler. journal may be nil.
func NewEntityHandler(base *BaseHandler, client *catalogapi.Client, resolver *reference.Resolver,
	views *cache.ViewCache, journal audit.Journal, log *logger.Logger) *EntityHandler {
	return &EntityHandler{
		BaseHandler: base,
		client:      client,
		resolver:    resolver,
		views:       views,
		journal:     journal,
		log:         log,
	}
}

// manager returns the session's manager for def.
func (h *EntityHandler) manager(c *gin.Context, def metadata.EntityDef) (*entitymgr.Manager, error) {
	sid := h.Session(c).ID.String()
	return h.views.Manager(sid, def.Name, func() (*entitymgr.Manager, error) {
		hooks := domain.NewHookRegistry[entitymgr.Mutation]()
		if h.journal != nil {
			audit.Attach(hooks, h.journal)
		}
		// Option lists that include this collection are stale now.
		invalidate := func(context.Context, entitymgr.Mutation) error {
			h.resolver.InvalidateCollection(def.Collection)
			return nil
		}
		hooks.OnAfterCreate(invalidate)
		hooks.OnAfterUpdate(invalidate)
		hooks.OnAfterDelete(invalidate)

		return entitymgr.New(entitymgr.Config{
			Def:     def,
			Binding: h.client.Collection(def.Collection),
			Logger:  h.log,
			Hooks:   hooks,
		}), nil
	})
}

// resolve returns the manager and definition of the :entity route.
func (h *EntityHandler) resolve(c *gin.Context) (*entitymgr.Manager, metadata.EntityDef, bool) {
	def, ok := middleware.GetEntity(c)
	if !ok {
		h.Error(c, apperror.NewNotFound("entity", c.Param("entity")))
		return nil, def, false
	}
	m, err := h.manager(c, def)
	if err != nil {
		h.Error(c, err)
		return nil, def, false
	}
	return m, def, true
}

// ensureLoaded loads a manager that never fetched, so ids from links can
// be found.
func (h *EntityHandler) ensureLoaded(ctx context.Context, m *entitymgr.Manager) error {
	if m.View().Status != entitymgr.StatusIdle {
		return nil
	}
	return m.Load(ctx)
}

func parseItemID(c *gin.Context) (id.ID, error) {
	v, err := id.Parse(c.Param("id"))
	if err != nil {
		return 0, apperror.NewValidation("invalid id").WithDetail("id", c.Param("id"))
	}
	return v, nil
}

// List handles GET /admin/:entity
// ?q= runs a search; without it the list is reloaded with the active query.
func (h *EntityHandler) List(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var notice string
	var err error
	if q, searching := c.GetQuery("q"); searching && def.Searchable {
		var triggered bool
		triggered, err = m.Search(ctx, strings.TrimSpace(q))
		if !triggered {
			notice = fmt.Sprintf("Type at least %d characters to search.", entitymgr.MinSearchLen)
			if m.View().Status == entitymgr.StatusIdle {
				err = m.Load(ctx)
			}
		}
	} else {
		err = m.Load(ctx)
	}
	if apperror.IsUnauthorized(err) {
		h.Expire(c)
		return
	}

	view := m.View()
	body := entityListBody{
		Def:        def,
		Columns:    columnLabels(def),
		Query:      view.Query,
		Notice:     notice,
		Searchable: def.Searchable,
	}
	if view.Err != nil {
		body.Errors = append(body.Errors, view.Err)
	}

	opts, optErr := h.resolver.Resolve(ctx, def)
	if optErr != nil {
		body.Errors = append(body.Errors, apperror.Normalize(optErr))
	}
	for _, item := range view.Items {
		body.Rows = append(body.Rows, h.row(def, item, opts))
	}

	h.Render(c, http.StatusOK, "entity_list.html", def.Label, body)
}

// New handles GET /admin/:entity/new
func (h *EntityHandler) New(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	form := m.OpenCreate()
	h.renderForm(c, http.StatusOK, def, form, nil)
}

// Edit handles GET /admin/:entity/:id/edit
func (h *EntityHandler) Edit(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	itemID, err := parseItemID(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.ensureLoaded(c.Request.Context(), m); err != nil {
		h.fail(c, err)
		return
	}
	form, err := m.OpenEdit(itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.renderForm(c, http.StatusOK, def, form, nil)
}

// Create handles POST /admin/:entity
func (h *EntityHandler) Create(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	if f := m.View().Form; f == nil || f.Mode != entitymgr.FormCreate {
		m.OpenCreate()
	}
	h.submit(c, m, def, "created")
}

// Update handles POST /admin/:entity/:id
func (h *EntityHandler) Update(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	itemID, err := parseItemID(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	if f := m.View().Form; f == nil || f.Mode != entitymgr.FormEdit || f.ID != itemID {
		if err := h.ensureLoaded(c.Request.Context(), m); err != nil {
			h.fail(c, err)
			return
		}
		if _, err := m.OpenEdit(itemID); err != nil {
			h.Error(c, err)
			return
		}
	}
	h.submit(c, m, def, "saved")
}

func (h *EntityHandler) submit(c *gin.Context, m *entitymgr.Manager, def metadata.EntityDef, verb string) {
	ctx := c.Request.Context()

	data, err := parseRecord(c, def)
	if err != nil {
		form := m.View().Form
		form.Data = data
		h.renderForm(c, http.StatusUnprocessableEntity, def, form, apperror.Normalize(err))
		return
	}

	err = m.Submit(ctx, data)
	view := m.View()
	if err != nil && view.Form != nil {
		// The form stays open with the error.
		if apperror.IsUnauthorized(err) {
			h.Expire(c)
			return
		}
		appErr := apperror.Normalize(err)
		status := appErr.HTTPStatus
		if appErr.Code == apperror.CodeValidation {
			status = http.StatusUnprocessableEntity
		}
		h.renderForm(c, status, def, view.Form, appErr)
		return
	}
	// Saved; a failed reload shows as the list banner.
	h.Flash(c, session.FlashSuccess, fmt.Sprintf("%s %s", def.Label, verb))
	h.Redirect(c, "/admin/"+def.Name)
}

// ConfirmDelete handles GET /admin/:entity/:id/delete
func (h *EntityHandler) ConfirmDelete(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	itemID, err := parseItemID(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.ensureLoaded(c.Request.Context(), m); err != nil {
		h.fail(c, err)
		return
	}
	if err := m.RequestDelete(itemID); err != nil {
		h.Error(c, err)
		return
	}

	title := itemID.String()
	for _, item := range m.View().Items {
		if rid, _ := entitymgr.RecordID(item); rid == itemID {
			title = itemTitle(item, itemID)
			break
		}
	}
	h.Render(c, http.StatusOK, "entity_delete.html", "Delete "+def.Label, entityDeleteBody{
		Def:   def,
		ID:    itemID.String(),
		Title: title,
	})
}

// Delete handles POST /admin/:entity/:id/delete
// Only a delete confirmed on the confirmation page reaches the catalog.
func (h *EntityHandler) Delete(c *gin.Context) {
	m, def, ok := h.resolve(c)
	if !ok {
		return
	}
	itemID, err := parseItemID(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	list := "/admin/" + def.Name

	if c.PostForm("cancel") != "" {
		m.CancelDelete()
		h.Redirect(c, list)
		return
	}
	if m.View().PendingDelete != itemID {
		h.Redirect(c, fmt.Sprintf("%s/%s/delete", list, itemID))
		return
	}

	if err := m.ConfirmDelete(c.Request.Context()); err != nil {
		if apperror.IsUnauthorized(err) {
			h.Expire(c)
			return
		}
		h.Flash(c, session.FlashError, apperror.Normalize(err).Message)
		h.Redirect(c, list)
		return
	}
	h.Flash(c, session.FlashSuccess, def.Label+" deleted")
	h.Redirect(c, list)
}

// fail ends a page request on a failed catalog call.
func (h *EntityHandler) fail(c *gin.Context, err error) {
	if apperror.IsUnauthorized(err) {
		h.Expire(c)
		return
	}
	h.Error(c, err)
}

func (h *EntityHandler) renderForm(c *gin.Context, status int, def metadata.EntityDef, form *entitymgr.Form, formErr *apperror.AppError) {
	ctx := c.Request.Context()
	body := entityFormBody{
		Def:    def,
		Action: "/admin/" + def.Name,
		Edit:   form.Mode == entitymgr.FormEdit,
	}
	if body.Edit {
		body.Action = fmt.Sprintf("/admin/%s/%s", def.Name, form.ID)
	}
	if formErr == nil {
		formErr = form.Err
	}
	if formErr != nil {
		body.Errors = append(body.Errors, formErr)
	}

	opts, err := h.resolver.Resolve(ctx, def)
	if err != nil {
		body.Errors = append(body.Errors, apperror.Normalize(err))
	}
	body.Inputs = formInputs(def, form.Data, opts, h.client.ImageURL)

	title := "New " + def.Label
	if body.Edit {
		title = fmt.Sprintf("Edit %s %s", def.Label, form.ID)
	}
	h.Render(c, status, "entity_form.html", title, body)
}

func (h *EntityHandler) row(def metadata.EntityDef, item metadata.Record, opts map[string]reference.Options) entityRow {
	rid, _ := entitymgr.RecordID(item)
	row := entityRow{ID: rid.String(), Cells: make([]cell, 0, len(def.Columns))}
	for _, col := range def.Columns {
		v, _ := item.Get(col)
		f, ok := def.Field(col)
		if !ok {
			row.Cells = append(row.Cells, cell{Text: text(v)})
			continue
		}
		if f.Type == metadata.TypeImage {
			if s := text(v); s != "" {
				row.Cells = append(row.Cells, cell{ImageURL: h.client.ImageURL(s)})
				continue
			}
		}
		row.Cells = append(row.Cells, cell{Text: display(f, v, opts[f.Name])})
	}
	return row
}

func columnLabels(def metadata.EntityDef) []string {
	labels := make([]string, len(def.Columns))
	for i, col := range def.Columns {
		labels[i] = strings.ToUpper(col)
		if f, ok := def.Field(col); ok {
			labels[i] = f.Label
		} else if col == "id" {
			labels[i] = "ID"
		}
	}
	return labels
}

// display renders a stored value for the list. Reference ids show their
// option label.
func display(f metadata.FieldDef, v any, opts reference.Options) string {
	switch f.Type {
	case metadata.TypeBoolean:
		if b, _ := v.(bool); b {
			return "Yes"
		}
		return "No"
	case metadata.TypeSelect:
		if vid, ok := id.FromAny(v); ok {
			return opts.Label(vid)
		}
		return ""
	case metadata.TypeMultiselect:
		selected := selectedIDs(v)
		parts := make([]string, 0, len(selected))
		for _, o := range opts {
			if pct, ok := selected[o.Value]; ok {
				parts = append(parts, shareLabel(o.Label, pct))
				delete(selected, o.Value)
			}
		}
		rest := make([]id.ID, 0, len(selected))
		for vid := range selected {
			rest = append(rest, vid)
		}
		slices.Sort(rest)
		for _, vid := range rest {
			parts = append(parts, shareLabel(vid.String(), selected[vid]))
		}
		return strings.Join(parts, ", ")
	}
	return text(v)
}

func shareLabel(label, pct string) string {
	if pct == "" {
		return label
	}
	return fmt.Sprintf("%s (%s%%)", label, pct)
}

// itemTitle picks a human name for confirmation prompts.
func itemTitle(item metadata.Record, itemID id.ID) string {
	for _, key := range []string{"name", "title", "localized.en.title"} {
		if s, ok := item.Get(key); ok {
			if t := text(s); t != "" {
				return t
			}
		}
	}
	return itemID.String()
}
