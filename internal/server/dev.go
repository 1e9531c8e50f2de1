// internal/server/dev.go
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	schedulertesting "github.com/smallbiznis/subtrack/internal/scheduler/testing"
)

// RegisterDevRoutes adds development-only lifecycle endpoints
func (s *Server) RegisterDevRoutes() {
	if s.cfg.Environment == "production" {
		return
	}

	dev := s.engine.Group("/dev")

	// Move cycle dates around without waiting out the calendar
	dev.POST("/cycles/:id/expire-deadline", s.DevExpireCycleDeadline)
	dev.POST("/cycles/expire-deadlines", s.DevExpireAllDeadlines)
	dev.POST("/subscriptions/:id/expire-deadlines", s.DevExpireSubscriptionDeadlines)
	dev.POST("/cycles/:id/period", s.DevSetCyclePeriod)

	// Cycle info and debugging
	dev.GET("/cycles/:id/info", s.DevGetCycleInfo)
	dev.GET("/cycles/awaiting-invoice", s.DevListAwaitingInvoice)

	// Manual trigger scheduler sweeps
	dev.POST("/scheduler/run-once", s.DevRunSchedulerOnce)

	// Reset and cleanup
	dev.POST("/cycles/:id/reinstate", s.DevReinstateCycle)
}

func (s *Server) DevExpireCycleDeadline(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	cycleID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	if err := helper.FastForwardDeadline(c.Request.Context(), cycleID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "invoice deadline expired",
		"cycle_id": id,
	})
}

func (s *Server) DevExpireAllDeadlines(c *gin.Context) {
	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	affected, err := helper.FastForwardAllAwaitingInvoice(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "all pending invoice deadlines expired",
		"affected_cycles": affected,
	})
}

func (s *Server) DevExpireSubscriptionDeadlines(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	subscriptionID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	if err := helper.FastForwardSubscriptionDeadlines(c.Request.Context(), subscriptionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "subscription invoice deadlines expired",
		"subscription_id": id,
	})
}

func (s *Server) DevSetCyclePeriod(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	cycleID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, err := time.Parse("2006-01-02", strings.TrimSpace(req.StartDate))
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "expected YYYY-MM-DD"))
		return
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(req.EndDate))
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_date", "expected YYYY-MM-DD"))
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	if err := helper.SetCyclePeriod(c.Request.Context(), cycleID, start, end); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "cycle period updated",
		"cycle_id": id,
	})
}

func (s *Server) DevGetCycleInfo(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	cycleID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	info, err := helper.GetCycleInfo(c.Request.Context(), cycleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": devCycleInfoPayload(info)})
}

func (s *Server) DevListAwaitingInvoice(c *gin.Context) {
	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	infos, err := helper.GetAwaitingInvoice(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := make([]gin.H, 0, len(infos))
	for i := range infos {
		data = append(data, devCycleInfoPayload(&infos[i]))
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (s *Server) DevRunSchedulerOnce(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.scheduler.RunOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "scheduler run completed with errors",
			"errors":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "scheduler run completed successfully",
	})
}

func (s *Server) DevReinstateCycle(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	cycleID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db, s.clock)
	if err := helper.ReinstateCancelled(c.Request.Context(), cycleID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "cycle reinstated (testing only!)",
		"cycle_id": id,
	})
}

func devCycleInfoPayload(info *schedulertesting.CycleInfo) gin.H {
	return gin.H{
		"id":                  info.ID.String(),
		"status":              info.Status,
		"cycle_start_date":    info.CycleStartDate.Format("2006-01-02"),
		"cycle_end_date":      info.CycleEndDate.Format("2006-01-02"),
		"invoice_deadline":    info.InvoiceDeadline.Format("2006-01-02"),
		"days_until_deadline": info.DaysUntilDeadline,
		"cancellable":         info.Cancellable,
	}
}
