package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/subtrack/internal/actorcontext"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	auditcontext "github.com/smallbiznis/subtrack/internal/auditcontext"
	obscontext "github.com/smallbiznis/subtrack/internal/observability/context"
	userdomain "github.com/smallbiznis/subtrack/internal/user/domain"
)

// HeaderUserID carries the authenticated user set by the edge gateway.
// This service trusts it; request authentication lives upstream.
const HeaderUserID = "X-User-Id"

// ActorRequired resolves the header to an active user row and stores the
// actor on the request context for the service layer and the audit trail.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := snowflake.ParseString(raw)
		if err != nil || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.GetByID(c.Request.Context(), userdomain.GetUserRequest{ID: userID.String()})
		if err != nil {
			if errors.Is(err, userdomain.ErrNotFound) || errors.Is(err, userdomain.ErrInvalidID) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}
		if !user.IsActive {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := actorcontext.Actor{
			UserID: user.ID,
			Role:   string(user.Role),
			Email:  user.Email,
			Name:   user.Name,
		}
		if user.DepartmentID != nil {
			actor.DepartmentID = *user.DepartmentID
		}

		ctx := c.Request.Context()
		ctx = actorcontext.WithActor(ctx, actor)
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), user.ID.String())
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), user.ID.String())
		if actor.DepartmentID != 0 {
			ctx = obscontext.WithDepartmentID(ctx, actor.DepartmentID.String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates a route on the actor's directory role. Fine-grained
// object/action checks still happen in the service layer through casbin.
func (s *Server) RequireRole(roles ...userdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorcontext.ActorFromContext(c.Request.Context())
		if !ok || actor.UserID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if strings.EqualFold(actor.Role, string(role)) {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}
