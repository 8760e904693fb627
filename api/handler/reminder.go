package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/remindly/backend/api/transport"
	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/middleware"
	"github.com/remindly/backend/pkg/httpcontext"
	reminderUC "github.com/remindly/backend/usecase/reminder"
)

type ReminderHandler struct {
	baseHandler
	uc *reminderUC.UseCase
}

func NewReminderHandler(uc *reminderUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Create reminder from natural language
// @Tags reminders
// @Router /api/v1/reminders/from-text [post]
func (h *ReminderHandler) CreateFromText(ctx *fasthttp.RequestCtx) {
	var req transport.FromTextRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}
	if req.Text == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing text", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateFromText(stdCtx, middleware.Owner(ctx), req.Text, req.Timezone)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusCreated, transport.NewSuccess(created, map[string]string{
		"message": fireTimeMessage(created),
	}))
}

// @Summary Create reminder
// @Tags reminders
// @Router /api/v1/reminders [post]
func (h *ReminderHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.ReminderRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "scheduled_time must be RFC3339", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Create(stdCtx, reminderUC.CreateInput{
		OwnerID:           middleware.Owner(ctx),
		Content:           req.Content,
		ScheduledTime:     scheduled,
		Recurring:         req.Recurring,
		RecurrencePattern: req.RecurrencePattern,
		Context:           req.Context,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary List reminders
// @Tags reminders
// @Router /api/v1/reminders [get]
func (h *ReminderHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminders, err := h.uc.List(
		stdCtx,
		middleware.Owner(ctx),
		string(ctx.QueryArgs().Peek("status")),
		parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
	)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reminders)
}

// @Summary List upcoming reminders
// @Tags reminders
// @Router /api/v1/reminders/upcoming [get]
func (h *ReminderHandler) Upcoming(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reminders, err := h.uc.Upcoming(stdCtx, middleware.Owner(ctx), parseInt(string(ctx.QueryArgs().Peek("limit")), 10))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reminders)
}

// @Summary Get reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [get]
func (h *ReminderHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.reminderID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	rem, err := h.uc.Get(stdCtx, middleware.Owner(ctx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, rem)
}

// @Summary Update reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [put]
func (h *ReminderHandler) Update(ctx *fasthttp.RequestCtx) {
	id, ok := h.reminderID(ctx)
	if !ok {
		return
	}

	var req transport.ReminderUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	in := reminderUC.UpdateInput{
		Content:           req.Content,
		Recurring:         req.Recurring,
		RecurrencePattern: req.RecurrencePattern,
	}
	if req.ScheduledTime != nil {
		scheduled, err := time.Parse(time.RFC3339, *req.ScheduledTime)
		if err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "scheduled_time must be RFC3339", nil))
			return
		}
		in.ScheduledTime = &scheduled
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.Update(stdCtx, middleware.Owner(ctx), id, in)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Cancel reminder
// @Tags reminders
// @Router /api/v1/reminders/{id} [delete]
func (h *ReminderHandler) Cancel(ctx *fasthttp.RequestCtx) {
	id, ok := h.reminderID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Cancel(stdCtx, middleware.Owner(ctx), id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"id": id, "status": string(domain.StatusCancelled)})
}

func (h *ReminderHandler) reminderID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing reminder id", nil))
		return "", false
	}
	return id, true
}

// fireTimeMessage says when the reminder will fire, phrased for a person
// and rendered in the timezone the request was parsed with.
func fireTimeMessage(rem *domain.Reminder) string {
	at := rem.ScheduledTime
	if tz := rem.Context["timezone"]; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			at = at.In(loc)
		}
	}
	return "Reminder set for " + at.Format("Monday, January 02 at 03:04 PM")
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
