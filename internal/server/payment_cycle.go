package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
)

func (s *Server) GetPaymentCycleByID(c *gin.Context) {
	view, err := s.cycleSvc.GetByID(c.Request.Context(), cycledomain.GetCycleRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (s *Server) ListSubscriptionCycles(c *gin.Context) {
	cycles, err := s.cycleSvc.ListBySubscription(c.Request.Context(), cycledomain.ListCyclesRequest{
		SubscriptionID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cycles})
}

func (s *Server) ListPendingApprovalCycles(c *gin.Context) {
	var query struct {
		DepartmentID string `form:"department_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cycles, err := s.cycleSvc.ListPendingApproval(c.Request.Context(), cycledomain.ListPendingApprovalRequest{
		DepartmentID: strings.TrimSpace(query.DepartmentID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cycles})
}

func (s *Server) ApprovePaymentCycle(c *gin.Context) {
	var req struct {
		Comments string `json:"comments"`
	}
	// An empty body is a bare approval.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	cycle, err := s.cycleSvc.Approve(c.Request.Context(), cycledomain.ApproveCycleRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Comments: req.Comments,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cycle})
}

func (s *Server) DeclinePaymentCycle(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cycle, err := s.cycleSvc.Decline(c.Request.Context(), cycledomain.DeclineCycleRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cycle})
}

func (s *Server) RecordCyclePayment(c *gin.Context) {
	var req struct {
		PaymentStatus    string `json:"payment_status"`
		AccountingStatus string `json:"accounting_status"`
		PaymentUTR       string `json:"payment_utr"`
		MandateID        string `json:"mandate_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cycle, err := s.cycleSvc.RecordPayment(c.Request.Context(), cycledomain.RecordPaymentRequest{
		ID:               strings.TrimSpace(c.Param("id")),
		PaymentStatus:    req.PaymentStatus,
		AccountingStatus: req.AccountingStatus,
		PaymentUTR:       req.PaymentUTR,
		MandateID:        req.MandateID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cycle})
}

func (s *Server) UploadCycleInvoice(c *gin.Context) {
	var req struct {
		InvoiceFileID string `json:"invoice_file_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cycle, err := s.cycleSvc.UploadInvoice(c.Request.Context(), cycledomain.UploadInvoiceRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		InvoiceFileID: strings.TrimSpace(req.InvoiceFileID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": cycle})
}
