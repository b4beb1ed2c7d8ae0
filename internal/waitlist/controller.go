package waitlist

import (
	"errors"
	"net/http"
	"time"

	"waitline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Authorizer decides whether the caller may manage the waitlist of an event.
// eventID is uuid.Nil for operations spanning every event.
type Authorizer func(c *gin.Context, eventID uuid.UUID) bool

// RoleAuthorizer allows callers whose token role is one of roles
func RoleAuthorizer(roles ...string) Authorizer {
	return func(c *gin.Context, _ uuid.UUID) bool {
		role, _ := c.Get("user_role")
		roleStr, ok := role.(string)
		if !ok {
			return false
		}
		for _, r := range roles {
			if r == roleStr {
				return true
			}
		}
		return false
	}
}

// DefaultAuthorizer lets administrators and organizers manage waitlists
func DefaultAuthorizer() Authorizer {
	return RoleAuthorizer("ADMIN", "ORGANIZER")
}

type Controller struct {
	service   Service
	queries   *Queries
	authorize Authorizer
	now       func() time.Time
}

func NewController(service Service, queries *Queries, authorize Authorizer) *Controller {
	if authorize == nil {
		authorize = DefaultAuthorizer()
	}
	return &Controller{
		service:   service,
		queries:   queries,
		authorize: authorize,
		now:       time.Now,
	}
}

// JoinWaitlist godoc
// @Summary  Join the waitlist of an event
// @Tags     waitlist
// @Param    event_id path string true "Event ID"
// @Param    request body JoinWaitlistRequest false "Optional note"
// @Success  201 {object} response.StandardApiResponse
// @Router   /waitlist/{event_id} [post]
func (c *Controller) JoinWaitlist(ctx *gin.Context) {
	eventID, ok := pathUUID(ctx, "event_id")
	if !ok {
		return
	}
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var request JoinWaitlistRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&request); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	entry, err := c.service.AddToWaitingList(ctx.Request.Context(), eventID, userID, request.Note)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Successfully joined waitlist", ToResponse(*entry), nil)
}

// LeaveWaitlist godoc
// @Summary  Leave the waitlist of an event
// @Tags     waitlist
// @Param    event_id path string true "Event ID"
// @Success  200 {object} response.StandardApiResponse
// @Router   /waitlist/{event_id} [delete]
func (c *Controller) LeaveWaitlist(ctx *gin.Context) {
	eventID, ok := pathUUID(ctx, "event_id")
	if !ok {
		return
	}
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	if err := c.service.RemoveFromWaitingList(ctx.Request.Context(), eventID, userID); err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Successfully left waitlist", nil, nil)
}

// GetMyEntry returns the caller's active entry for an event
func (c *Controller) GetMyEntry(ctx *gin.Context) {
	eventID, ok := pathUUID(ctx, "event_id")
	if !ok {
		return
	}
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	entry, err := c.queries.Find(ctx.Request.Context(), eventID, userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if entry == nil {
		response.RespondJSON(ctx, "error", http.StatusNotFound, "You are not on the waitlist for this event", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist entry retrieved successfully", ToResponse(*entry), nil)
}

// GetMyEntries lists every waitlist entry of the caller
func (c *Controller) GetMyEntries(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	entries, err := c.queries.ListByUser(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist entries retrieved successfully", toResponses(entries), nil)
}

// RespondToOffer godoc
// @Summary  Accept or decline a waitlist offer
// @Tags     waitlist
// @Param    entry_id path string true "Entry ID"
// @Param    request body RespondOfferRequest true "Answer"
// @Success  200 {object} response.StandardApiResponse
// @Router   /waitlist/entries/{entry_id}/respond [post]
func (c *Controller) RespondToOffer(ctx *gin.Context) {
	entryID, ok := pathUUID(ctx, "entry_id")
	if !ok {
		return
	}
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var request RespondOfferRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	entry, err := c.queries.Get(ctx.Request.Context(), entryID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if entry.UserID != userID && !c.authorize(ctx, entry.EventID) {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		return
	}

	answered, err := c.service.RespondToOffer(ctx.Request.Context(), entryID, *request.Accept)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Offer response recorded", ToResponse(*answered), nil)
}

// Management operations

// GetWaitlistEntries godoc
// @Summary  List an event's waitlist in position order
// @Tags     waitlist-admin
// @Param    event_id path string true "Event ID"
// @Param    status query string false "Status filter"
// @Success  200 {object} response.StandardApiResponse
// @Router   /admin/waitlist/{event_id} [get]
func (c *Controller) GetWaitlistEntries(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	var (
		entries []WaitEntry
		err     error
	)
	if raw := ctx.Query("status"); raw != "" {
		status, ok := queryStatus(ctx, raw)
		if !ok {
			return
		}
		entries, err = c.queries.ListByEventAndStatus(ctx.Request.Context(), eventID, status)
	} else {
		entries, err = c.queries.ListByEvent(ctx.Request.Context(), eventID)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist retrieved successfully", toResponses(entries), nil)
}

// CountWaitlistEntries counts an event's entries in one status
func (c *Controller) CountWaitlistEntries(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	raw := ctx.DefaultQuery("status", string(StatusWaiting))
	status, ok := queryStatus(ctx, raw)
	if !ok {
		return
	}

	count, err := c.queries.CountByEventAndStatus(ctx.Request.Context(), eventID, status)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist count retrieved successfully",
		CountResponse{EventID: eventID, Status: status, Count: count}, nil)
}

// GetWaitlistStats returns per-status counts for an event
func (c *Controller) GetWaitlistStats(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	stats, err := c.queries.Stats(ctx.Request.Context(), eventID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist stats retrieved successfully", stats, nil)
}

// ReorderWaitlist godoc
// @Summary  Override the queue order of an event
// @Tags     waitlist-admin
// @Param    event_id path string true "Event ID"
// @Param    request body ReorderRequest true "Every active entry id in the new order"
// @Success  200 {object} response.StandardApiResponse
// @Router   /admin/waitlist/{event_id}/order [put]
func (c *Controller) ReorderWaitlist(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	var request ReorderRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	entries, err := c.service.Reorder(ctx.Request.Context(), eventID, request.EntryIDs)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist reordered successfully", toResponses(entries), nil)
}

// NotifyWaitlist godoc
// @Summary  Offer freed slots to the next users in line
// @Tags     waitlist-admin
// @Param    event_id path string true "Event ID"
// @Param    request body NotifyRequest true "Slots and response deadline"
// @Success  200 {object} response.StandardApiResponse
// @Router   /admin/waitlist/{event_id}/notify [post]
func (c *Controller) NotifyWaitlist(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	var request NotifyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	result, err := c.service.NotifyWaitlistForAvailableSlots(ctx.Request.Context(), eventID, request.Slots, request.DeadlineHours)
	if err != nil {
		respondError(ctx, err)
		return
	}

	message := "Waitlist notified successfully"
	if len(result.Warnings) > 0 {
		message = "Waitlist notified with delivery failures"
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message, toNotifyResponse(result), nil)
}

// PromoteParticipant confirms one user's participation
func (c *Controller) PromoteParticipant(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	var request PromoteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	promoted, err := c.service.PromoteToParticipant(ctx.Request.Context(), eventID, request.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	message := "User promoted to participant"
	if !promoted {
		message = "User is already a participant"
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message,
		PromoteResponse{UserID: request.UserID, Promoted: promoted}, nil)
}

// AutoPromote fills free capacity from the waitlist
func (c *Controller) AutoPromote(ctx *gin.Context) {
	eventID, ok := c.managedEvent(ctx)
	if !ok {
		return
	}

	var request AutoPromoteRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&request); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	promoted, err := c.service.AutoPromoteFromWaitingList(ctx.Request.Context(), eventID, request.Limit)
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Auto-promotion completed",
		AutoPromoteResponse{EventID: eventID, Promoted: promoted}, nil)
}

// ExpireOffers runs the offer expiry sweep on demand
func (c *Controller) ExpireOffers(ctx *gin.Context) {
	if !c.authorize(ctx, uuid.Nil) {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		return
	}

	expired, err := c.service.ExpireStaleNotifications(ctx.Request.Context(), c.now())
	if err != nil {
		respondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Expired offers processed",
		ExpireResponse{Expired: toResponses(expired)}, nil)
}

// HealthCheck reports that the waitlist module is serving
func (c *Controller) HealthCheck(ctx *gin.Context) {
	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist service is healthy",
		gin.H{"service": "waitlist", "timestamp": c.now()}, nil)
}

// managedEvent parses the event id and runs the authorization predicate
func (c *Controller) managedEvent(ctx *gin.Context) (uuid.UUID, bool) {
	eventID, ok := pathUUID(ctx, "event_id")
	if !ok {
		return uuid.Nil, false
	}
	if !c.authorize(ctx, eventID) {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		return uuid.Nil, false
	}
	return eventID, true
}

func pathUUID(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid "+name, nil, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(ctx *gin.Context) (uuid.UUID, bool) {
	raw, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return uuid.Nil, false
	}
	str, _ := raw.(string)
	userID, err := uuid.Parse(str)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Invalid user ID", nil, nil)
		return uuid.Nil, false
	}
	return userID, true
}

func queryStatus(ctx *gin.Context, raw string) (WaitlistStatus, bool) {
	status := WaitlistStatus(raw)
	if !status.IsValid() {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid status filter", nil, raw)
		return "", false
	}
	return status, true
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateActiveEntry),
		errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrOfferExpired),
		errors.Is(err, ErrWaitlistFull):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidReorder), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(ctx *gin.Context, err error) {
	code := statusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "Internal server error"
	}
	response.RespondJSON(ctx, "error", code, message, nil, nil)
}
