// Package server is the thin HTTP adapter over the booking engine. It holds
// no business rules: it decodes requests, calls the services and maps the
// error taxonomy to status codes.
package server

import (
	"net/http"

	"github.com/bookline/bookline/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	bookings     *service.BookingService
	bulk         *service.BulkService
	availability *service.AvailabilityService
	offerings    *service.OfferingService
	metrics      *service.MetricsService
	archive      *ArchiveStore
	logger       *zap.Logger
}

func New(
	bookings *service.BookingService,
	bulk *service.BulkService,
	availability *service.AvailabilityService,
	offerings *service.OfferingService,
	metrics *service.MetricsService,
	logger *zap.Logger,
) *Server {
	return &Server{
		bookings:     bookings,
		bulk:         bulk,
		availability: availability,
		offerings:    offerings,
		metrics:      metrics,
		archive:      NewArchiveStore(),
		logger:       logger,
	}
}

// Router builds the gin engine with all engine routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		businesses := api.Group("/businesses/:businessID")
		{
			businesses.POST("/requests", s.submitRequest)
			businesses.POST("/requests/bulk", s.bulkApplyAction)

			businesses.GET("/slots", s.listSlots)
			businesses.POST("/slots/validate", s.validateCandidate)

			businesses.GET("/windows", s.listWindows)
			businesses.PUT("/windows", s.replaceWindows)

			businesses.GET("/exceptions", s.listExceptions)
			businesses.POST("/exceptions", s.createException)
			businesses.DELETE("/exceptions/:id", s.deleteException)

			businesses.GET("/busy-blocks", s.listBusyBlocks)
			businesses.POST("/busy-blocks", s.createBusyBlock)
			businesses.DELETE("/busy-blocks/:id", s.deleteBusyBlock)

			businesses.GET("/settings", s.getSettings)
			businesses.PUT("/settings", s.saveSettings)

			businesses.GET("/offerings", s.listOfferings)
			businesses.POST("/offerings", s.createOffering)
			businesses.PUT("/offerings/:id", s.updateOffering)

			businesses.GET("/metrics", s.computeMetrics)

			// Archive is a presentation-layer overlay: tags only, never
			// status, never audited.
			businesses.GET("/archive", s.listArchived)
			businesses.PUT("/archive/:requestID", s.archiveRequest)
			businesses.DELETE("/archive/:requestID", s.unarchiveRequest)
		}

		requests := api.Group("/requests/:id")
		{
			requests.GET("", s.getRequest)
			requests.POST("/actions", s.applyAction)
			requests.PUT("/notes", s.updateNotes)
			requests.GET("/audit", s.getAuditTrail)
		}
	}

	return router
}

// Run serves until the listener fails.
func Run(router *gin.Engine, addr string) error {
	if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
