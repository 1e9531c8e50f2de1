package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	servicetokendomain "github.com/smallbiznis/subtrack/internal/servicetoken/domain"
)

func (s *Server) ListServiceTokens(c *gin.Context) {
	tokens, err := s.serviceTokenSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tokens})
}

// CreateServiceToken returns the plaintext token once; only its hash is
// stored.
func (s *Server) CreateServiceToken(c *gin.Context) {
	var req servicetokendomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	secret, err := s.serviceTokenSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": secret})
}

func (s *Server) RotateServiceToken(c *gin.Context) {
	secret, err := s.serviceTokenSvc.Rotate(c.Request.Context(), strings.TrimSpace(c.Param("key_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": secret})
}

func (s *Server) RevokeServiceToken(c *gin.Context) {
	if err := s.serviceTokenSvc.Revoke(c.Request.Context(), strings.TrimSpace(c.Param("key_id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
