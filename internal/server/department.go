package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	departmentdomain "github.com/smallbiznis/subtrack/internal/department/domain"
)

func (s *Server) ListDepartments(c *gin.Context) {
	departments, err := s.departmentSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": departments})
}

func (s *Server) CreateDepartment(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	department, err := s.departmentSvc.Create(c.Request.Context(), departmentdomain.CreateDepartmentRequest{
		Name: strings.TrimSpace(req.Name),
		Code: strings.TrimSpace(req.Code),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": department})
}
