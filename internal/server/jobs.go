package server

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	auditcontext "github.com/smallbiznis/subtrack/internal/auditcontext"
	obscontext "github.com/smallbiznis/subtrack/internal/observability/context"
	"github.com/smallbiznis/subtrack/internal/observability/logger"
	"github.com/smallbiznis/subtrack/internal/scheduler"
	servicetokendomain "github.com/smallbiznis/subtrack/internal/servicetoken/domain"
	"go.uber.org/zap"
)

const (
	jobTriggerOutcomeSuccess = "success"
	jobTriggerOutcomePartial = "partial_failure"
)

// JobTriggerAuthRequired guards the manual job endpoints. The bearer token
// is either the deployment cron secret or a service token carrying the
// jobs:trigger scope; anything else is a 401.
func (s *Server) JobTriggerAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if secret := s.cfg.CronSecret; secret != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
			ctx := c.Request.Context()
			ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "cron")
			ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "cron")
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		record, err := s.serviceTokenSvc.Validate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !record.HasScope(servicetokendomain.ScopeJobsTrigger) {
			AbortWithError(c, ErrForbidden)
			return
		}

		ctx := c.Request.Context()
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeService), record.KeyID)
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeService), record.KeyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// JobTriggerRateLimit throttles one job endpoint through the shared redis
// bucket. With no limiter configured it only tags the request log.
func (s *Server) JobTriggerRateLimit(job string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("job_name", job)

		if s.jobLimiter == nil || !s.jobLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.jobLimiter.Allow(ctx, job)
		if err != nil {
			logger.FromContext(ctx).Warn("job trigger rate limit check failed",
				zap.String("job", job),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, c.FullPath(), "job-trigger-rate")
			}
			c.Header("Retry-After", retryAfterSeconds(result.RetryAfter.Seconds()))
			AbortWithError(c, ErrRateLimited)
			return
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, c.FullPath())
		}
		c.Next()
	}
}

// A summary with errors still returns 200; callers read errors[] from the
// body. Trigger and in-process runs share the same job code paths.
func (s *Server) TriggerCycleCreation(c *gin.Context) {
	summary := s.scheduler.RunCycleCreation(c.Request.Context(), s.clock.Now())
	s.recordJobTrigger(c, scheduler.JobCycleCreation, summary.Success)
	c.JSON(http.StatusOK, summary)
}

func (s *Server) TriggerAutoCancellation(c *gin.Context) {
	summary := s.scheduler.RunAutoCancellation(c.Request.Context(), s.clock.Now())
	s.recordJobTrigger(c, scheduler.JobAutoCancellation, summary.Success)
	c.JSON(http.StatusOK, summary)
}

func (s *Server) TriggerSubscriptionExpiry(c *gin.Context) {
	summary := s.scheduler.RunSubscriptionExpiry(c.Request.Context(), s.clock.Now())
	s.recordJobTrigger(c, scheduler.JobSubscriptionExpiry, summary.Success)
	c.JSON(http.StatusOK, summary)
}

func (s *Server) recordJobTrigger(c *gin.Context, job string, success bool) {
	if s.obsMetrics == nil {
		return
	}
	outcome := jobTriggerOutcomeSuccess
	if !success {
		outcome = jobTriggerOutcomePartial
	}
	s.obsMetrics.RecordJobTrigger(c.Request.Context(), job, outcome)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func retryAfterSeconds(seconds float64) string {
	rounded := int(math.Ceil(seconds))
	if rounded < 1 {
		rounded = 1
	}
	return strconv.Itoa(rounded)
}
