package main

import (
	"database/sql"

	"venue-outreach/internal/auth"
	"venue-outreach/internal/config"
	"venue-outreach/internal/events"
	"venue-outreach/internal/httpapi"
	"venue-outreach/internal/outreach"
	"venue-outreach/internal/rbac"
	"venue-outreach/internal/reporting"
	"venue-outreach/internal/voice"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg config.Config

	auth       *auth.Manager
	store      outreach.Store
	events     events.Repository
	intake     events.Intake
	scheduler  *outreach.Scheduler
	correlator *outreach.Correlator
	reports    *reporting.Service
	db         *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.db != nil {
			if err := deps.db.PingContext(c.Request.Context()); err != nil {
				c.JSON(503, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Platform webhooks (public; secret-gated when configured).
	{
		h := voice.SignalWebhookHandler{
			Correlator: deps.correlator,
			Secret:     deps.cfg.Vapi.WebhookSecret,
		}
		r.POST("/webhooks/vapi", h.HandleSignal)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		h := httpapi.Handlers{
			Auth:      deps.auth,
			Scheduler: deps.scheduler,
			Store:     deps.store,
			Events:    deps.events,
			Intake:    deps.intake,
			Reports:   deps.reports,
		}

		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// EVENTS routes
		eventsGroup := v1.Group("/events")
		eventsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleSuperAdmin))
		{
			eventsGroup.POST("", h.CreateEvent)
			eventsGroup.POST("/:event_id/outreach", h.ScheduleOutreach)
		}

		// Read-side routes are open to analysts as well.
		readGroup := v1.Group("")
		readGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			readGroup.GET("/events/:event_id/outreach", h.OutreachSummary)
			readGroup.GET("/attempts/:attempt_id", h.GetAttempt)
			readGroup.GET("/venues/history", h.VenueHistory)
		}
	}

	// AUTH routes (token issuance, public).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", httpapi.Handlers{Auth: deps.auth}.Login)
}
