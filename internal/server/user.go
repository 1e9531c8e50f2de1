package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/subtrack/internal/user/domain"
)

func (s *Server) ListUsers(c *gin.Context) {
	var query struct {
		PageToken    string `form:"page_token"`
		PageSize     int32  `form:"page_size"`
		Role         string `form:"role"`
		DepartmentID string `form:"department_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.List(c.Request.Context(), userdomain.ListUserRequest{
		PageToken:    strings.TrimSpace(query.PageToken),
		PageSize:     query.PageSize,
		Role:         strings.TrimSpace(query.Role),
		DepartmentID: strings.TrimSpace(query.DepartmentID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp.Users, "page_info": resp.PageInfo})
}

func (s *Server) GetUserByID(c *gin.Context) {
	user, err := s.userSvc.GetByID(c.Request.Context(), userdomain.GetUserRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

func (s *Server) CreateUser(c *gin.Context) {
	var req struct {
		Email        string `json:"email"`
		Name         string `json:"name"`
		Role         string `json:"role"`
		DepartmentID string `json:"department_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.userSvc.Create(c.Request.Context(), userdomain.CreateUserRequest{
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		Role:         strings.TrimSpace(req.Role),
		DepartmentID: strings.TrimSpace(req.DepartmentID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}
