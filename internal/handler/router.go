package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/complaint-tracker/internal/middleware"
)

// Routes bundles what RegisterRoutes wires onto the engine
type Routes struct {
	Auth        *AuthHandler
	Complaints  *ComplaintHandler
	Admin       *AdminHandler
	Sessions    *middleware.SessionMiddleware
	RateLimiter *middleware.RateLimiter
}

// Health answers liveness probes
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes mounts every endpoint. LoadSession runs on all of them so
// the callback and the guards see the cookie's session.
func RegisterRoutes(router *gin.Engine, r Routes) {
	router.GET("/healthz", Health)

	router.Use(r.Sessions.LoadSession())

	loginLimit := func(c *gin.Context) { c.Next() }
	registerLimit := loginLimit
	if r.RateLimiter != nil {
		loginLimit = r.RateLimiter.Limit(middleware.LoginRateLimitConfig())
		registerLimit = r.RateLimiter.Limit(middleware.RegisterRateLimitConfig())
	}

	router.GET("/login", r.Auth.LoginPage)
	router.POST("/login", loginLimit, r.Auth.Login)
	router.GET("/register", r.Auth.RegisterPage)
	router.POST("/register", registerLimit, r.Auth.Register)
	router.GET("/logout", r.Auth.Logout)

	router.GET("/oauth2/authorize/google", r.Auth.AuthorizeGoogle)
	router.GET("/oauth2/callback/google", r.Auth.GoogleCallback)
	router.POST("/auth/google", loginLimit, r.Auth.GoogleIDToken)

	authed := router.Group("")
	authed.Use(r.Sessions.RequireAuth())
	{
		authed.GET("/dashboard", r.Complaints.Dashboard)
		authed.POST("/complaints", r.Complaints.Submit)
		authed.GET("/complaints/:id", middleware.ExtractUintParam("id", "complaintID"), r.Complaints.GetComplaint)
		authed.GET("/uploads/:name", r.Complaints.Photo)
	}

	admin := router.Group("/admin/complaints")
	admin.Use(r.Sessions.RequireAuth(), r.Sessions.RequireAdmin())
	{
		admin.GET("", r.Admin.ListComplaints)
		admin.GET("/export", r.Admin.ExportComplaints)

		withID := admin.Group("/:id")
		withID.Use(middleware.ExtractUintParam("id", "complaintID"))
		{
			withID.GET("", r.Admin.GetComplaint)
			withID.POST("/assign", r.Admin.AssignVendor)
			withID.POST("/status", r.Admin.UpdateStatus)
		}
	}
}
