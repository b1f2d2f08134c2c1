package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"
	"github.com/bookline/bookline/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fail maps the engine's error taxonomy to HTTP. Unknown errors are logged
// and hidden behind a 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION", "detail": err.Error()})
	case errors.Is(err, service.ErrBatchInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "BULK_BUSY"})
	case errors.Is(err, service.ErrCalendarOwned):
		c.JSON(http.StatusForbidden, gin.H{"error": "CALENDAR_OWNED"})
	case errors.Is(err, booking.ErrIllegalTransition),
		errors.Is(err, booking.ErrInvalidProposal),
		errors.Is(err, booking.ErrNoTimeToApprove):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": booking.Code(err)})
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrStaleState):
		c.JSON(http.StatusConflict, gin.H{"error": booking.Code(err)})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL"})
	}
}

type submitRequestBody struct {
	Customer       model.CustomerInfo `json:"customer"`
	OfferingID     *string            `json:"offering_id"`
	PreferredStart *time.Time         `json:"preferred_start"`
}

func (s *Server) submitRequest(c *gin.Context) {
	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}

	req, err := s.bookings.SubmitRequest(c.Request.Context(), c.Param("businessID"), body.Customer, body.OfferingID, body.PreferredStart)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *Server) getRequest(c *gin.Context) {
	req, err := s.bookings.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type actionBody struct {
	Action         string     `json:"action"`
	ObservedStatus string     `json:"observed_status"`
	ProposedStart  *time.Time `json:"proposed_start"`
	ProposedEnd    *time.Time `json:"proposed_end"`
	Notes          string     `json:"notes"`
}

func (s *Server) applyAction(c *gin.Context) {
	var body actionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}

	action, err := booking.ParseAction(body.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNKNOWN_ACTION"})
		return
	}
	observed := model.RequestStatus(body.ObservedStatus)
	if !observed.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNKNOWN_STATUS"})
		return
	}

	input := service.ActionInput{Actor: model.ActorStaff, Notes: body.Notes}
	if body.ProposedStart != nil {
		input.ProposedStart = *body.ProposedStart
	}
	if body.ProposedEnd != nil {
		input.ProposedEnd = *body.ProposedEnd
	}

	req, err := s.bookings.ApplyAction(c.Request.Context(), c.Param("id"), action, input, observed)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type notesBody struct {
	Notes string `json:"notes"`
}

func (s *Server) updateNotes(c *gin.Context) {
	var body notesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	if err := s.bookings.UpdateNotes(c.Request.Context(), c.Param("id"), body.Notes); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getAuditTrail(c *gin.Context) {
	trail, err := s.bookings.GetAuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trail)
}

type bulkBody struct {
	RequestIDs []string `json:"request_ids"`
	Action     string   `json:"action"`
	Notes      string   `json:"notes"`
}

func (s *Server) bulkApplyAction(c *gin.Context) {
	var body bulkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	action, err := booking.ParseAction(body.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNKNOWN_ACTION"})
		return
	}

	outcome, err := s.bulk.BulkApplyAction(c.Request.Context(), c.Param("businessID"), body.RequestIDs,
		action, service.ActionInput{Actor: model.ActorStaff, Notes: body.Notes})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := time.Parse(model.DateFormat, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_FROM"})
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(model.DateFormat, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_TO"})
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_RANGE"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (s *Server) listSlots(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	var offeringID *string
	if v := c.Query("offering_id"); v != "" {
		offeringID = &v
	}

	slots, err := s.availability.ListAvailableSlots(c.Request.Context(), c.Param("businessID"), from, to, offeringID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

type candidateBody struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Server) validateCandidate(c *gin.Context) {
	var body candidateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}

	result, err := s.availability.ValidateCandidateInterval(c.Request.Context(), c.Param("businessID"),
		interval.Span{Start: body.Start, End: body.End})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listWindows(c *gin.Context) {
	windows, err := s.availability.ListWindows(c.Request.Context(), c.Param("businessID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, windows)
}

func (s *Server) replaceWindows(c *gin.Context) {
	var windows []model.AvailabilityWindow
	if err := c.ShouldBindJSON(&windows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	if err := s.availability.ReplaceWindows(c.Request.Context(), c.Param("businessID"), windows); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listExceptions(c *gin.Context) {
	exceptions, err := s.availability.ListExceptions(c.Request.Context(), c.Param("businessID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exceptions)
}

func (s *Server) createException(c *gin.Context) {
	var exc model.AvailabilityException
	if err := c.ShouldBindJSON(&exc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	exc.BusinessID = c.Param("businessID")

	created, err := s.availability.CreateException(c.Request.Context(), exc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deleteException(c *gin.Context) {
	if err := s.availability.DeleteException(c.Request.Context(), c.Param("businessID"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listBusyBlocks(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	blocks, err := s.availability.ListBusyBlocks(c.Request.Context(), c.Param("businessID"), from, to.AddDate(0, 0, 1))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

func (s *Server) createBusyBlock(c *gin.Context) {
	var block model.BusyBlock
	if err := c.ShouldBindJSON(&block); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	block.BusinessID = c.Param("businessID")

	created, err := s.availability.CreateBusyBlock(c.Request.Context(), block)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deleteBusyBlock(c *gin.Context) {
	if err := s.availability.DeleteBusyBlock(c.Request.Context(), c.Param("businessID"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getSettings(c *gin.Context) {
	businessID := c.Param("businessID")
	settings, err := s.availability.Settings(c.Request.Context(), businessID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) saveSettings(c *gin.Context) {
	var settings model.BookingSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	settings.BusinessID = c.Param("businessID")
	if err := s.availability.SaveSettings(c.Request.Context(), settings); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listOfferings(c *gin.Context) {
	offerings, err := s.offerings.List(c.Request.Context(), c.Param("businessID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offerings)
}

type offeringBody struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          *bool  `json:"active"`
}

func (s *Server) createOffering(c *gin.Context) {
	var body offeringBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	offering, err := s.offerings.Create(c.Request.Context(), c.Param("businessID"), body.Name, body.DurationMinutes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, offering)
}

func (s *Server) updateOffering(c *gin.Context) {
	var body offeringBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_JSON"})
		return
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}
	offering, err := s.offerings.Update(c.Request.Context(), c.Param("businessID"), c.Param("id"), body.Name, body.DurationMinutes, active)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, offering)
}

func (s *Server) computeMetrics(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	summary, err := s.metrics.ComputeMetrics(c.Request.Context(), c.Param("businessID"), from, to.AddDate(0, 0, 1))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) listArchived(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"archived": s.archive.List(c.Param("businessID"))})
}

func (s *Server) archiveRequest(c *gin.Context) {
	s.archive.Tag(c.Param("businessID"), c.Param("requestID"))
	c.Status(http.StatusNoContent)
}

func (s *Server) unarchiveRequest(c *gin.Context) {
	s.archive.Untag(c.Param("businessID"), c.Param("requestID"))
	c.Status(http.StatusNoContent)
}
