package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ozergarant/internal/authz"
	"ozergarant/internal/handlers"
	"ozergarant/internal/middleware"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Deals  *handlers.DealHandler
	// nil — вебхук не публикуем (long polling)
	Integrations *handlers.IntegrationsHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, jwtSecret []byte) *gin.Engine {
	// ---- public
	r.GET("/healthz", h.Health.Health)
	r.POST("/admin/login", h.Auth.Login)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if h.Integrations != nil {
		r.POST("/integrations/telegram/webhook", h.Integrations.Webhook)
	}

	// ---- protected
	api := r.Group("/api",
		middleware.AuthMiddleware(jwtSecret),
		middleware.RequireRoles(authz.RoleAdmin, authz.RoleAudit),
		middleware.ReadOnlyGuard(),
	)

	users := api.Group("/users")
	{
		users.GET("/:id", h.Users.GetUser)
		users.GET("/:id/deals", h.Users.ListDeals)
		users.POST("/:id/ban", middleware.RequireRoles(authz.RoleAdmin), h.Users.Ban)
		users.DELETE("/:id/ban", middleware.RequireRoles(authz.RoleAdmin), h.Users.Unban)
	}

	deals := api.Group("/deals")
	{
		deals.GET("/:code", h.Deals.GetByCode)
		deals.GET("/:code/receipt", h.Deals.Receipt)
	}

	return r
}
