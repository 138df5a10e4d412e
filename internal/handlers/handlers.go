package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"natours/api/internal/crud"
	"natours/api/internal/middleware"
	"natours/api/internal/models"
	"natours/api/internal/service"
)

// HandlerSet holds everything the HTTP routes call into.
type HandlerSet struct {
	log          zerolog.Logger
	environment  string
	tours        *crud.Factory
	users        *crud.Factory
	authService  *service.AuthService
	photoService *service.PhotoService
	checks       []HealthCheck
	secureCookie bool
}

type Deps struct {
	Log          zerolog.Logger
	Environment  string
	Tours        *crud.Factory
	Users        *crud.Factory
	Auth         *service.AuthService
	Photos       *service.PhotoService
	HealthChecks []HealthCheck
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log:          d.Log,
		environment:  d.Environment,
		tours:        d.Tours,
		users:        d.Users,
		authService:  d.Auth,
		photoService: d.Photos,
		checks:       d.HealthChecks,
		secureCookie: d.Environment == "production",
	}
}

// jsonBodyLimit matches the payload cap of the public API.
const jsonBodyLimit = 10 << 10

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	authenticate := middleware.Authenticate(h.authService)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleLeadGuide)
	admin := middleware.RequireRoles(models.RoleAdmin)

	tours := v1.Group("/tours")
	{
		browse := tours.Group("", middleware.OptionalAuthenticate(h.authService), middleware.HiddenRecords())
		browse.GET("", h.ListTours)
		browse.GET("/top-5-cheap", aliasTopTours, h.ListTours)
		browse.GET("/:id", h.GetTour)
		tours.POST("", middleware.BodyLimit(jsonBodyLimit), authenticate, staff, middleware.HiddenRecords(), h.CreateTour)
		tours.PATCH("/:id", middleware.BodyLimit(jsonBodyLimit), authenticate, staff, middleware.HiddenRecords(), h.UpdateTour)
		tours.DELETE("/:id", authenticate, staff, middleware.HiddenRecords(), h.DeleteTour)
	}

	users := v1.Group("/users")
	{
		public := users.Group("", middleware.BodyLimit(jsonBodyLimit))
		public.POST("/signup", h.Signup)
		public.POST("/login", h.Login)
		public.GET("/logout", h.Logout)
		public.POST("/forgotPassword", h.ForgotPassword)
		public.PATCH("/resetPassword/:token", h.ResetPassword)

		me := users.Group("", authenticate)
		me.PATCH("/updateMyPassword", middleware.BodyLimit(jsonBodyLimit), h.UpdateMyPassword)
		me.GET("/me", h.GetMe)
		me.PATCH("/updateMe", middleware.BodyLimit(jsonBodyLimit), h.UpdateMe)
		me.PATCH("/updateMe/photo", middleware.BodyLimit(service.MaxPhotoBytes+(1<<20)), h.UpdateMyPhoto)
		me.DELETE("/deleteMe", h.DeleteMe)

		managed := users.Group("", authenticate, admin, middleware.HiddenRecords())
		managed.GET("", h.ListUsers)
		managed.GET("/:id", h.GetUser)
		managed.PATCH("/:id", middleware.BodyLimit(jsonBodyLimit), h.UpdateUser)
		managed.DELETE("/:id", h.DeleteUser)
	}
}
