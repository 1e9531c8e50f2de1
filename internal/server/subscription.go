package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	"github.com/smallbiznis/subtrack/pkg/db/pagination"
)

func (s *Server) ListSubscriptions(c *gin.Context) {
	var query struct {
		pagination.Request
		Status       string `form:"status"`
		DepartmentID string `form:"department_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.List(c.Request.Context(), subscriptiondomain.ListSubscriptionsRequest{
		Request:      query.Request,
		Status:       strings.TrimSpace(query.Status),
		DepartmentID: strings.TrimSpace(query.DepartmentID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp.Subscriptions, "page_info": resp.PageInfo})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	item, err := s.subscriptionSvc.GetByID(c.Request.Context(), subscriptiondomain.GetSubscriptionRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	item, err := s.subscriptionSvc.Activate(c.Request.Context(), subscriptiondomain.ActivateSubscriptionRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

func (s *Server) RejectSubscription(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.subscriptionSvc.Reject(c.Request.Context(), subscriptiondomain.RejectSubscriptionRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	item, err := s.subscriptionSvc.Cancel(c.Request.Context(), subscriptiondomain.CancelSubscriptionRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}
