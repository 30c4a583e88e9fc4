package router

import (
	"log"
	"time"

	"github.com/elearnhq/elearn-api/config"
	"github.com/elearnhq/elearn-api/database"
	"github.com/elearnhq/elearn-api/events"
	"github.com/elearnhq/elearn-api/handlers"
	auth_handlers "github.com/elearnhq/elearn-api/handlers/auth"
	course_handlers "github.com/elearnhq/elearn-api/handlers/course"
	message_handlers "github.com/elearnhq/elearn-api/handlers/message"
	notification_handlers "github.com/elearnhq/elearn-api/handlers/notification"
	people_handlers "github.com/elearnhq/elearn-api/handlers/people"
	ws_handlers "github.com/elearnhq/elearn-api/handlers/ws"
	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/realtime"
	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/auth"
	"github.com/elearnhq/elearn-api/utils/cache"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Deps carries the shared infrastructure the routes are built on.
// Cache may be nil; Broker falls back to the in-process hub when redis
// is unavailable.
type Deps struct {
	Store  database.Storage
	Broker realtime.Broker
	Bus    *events.Bus
	Cache  *cache.RedisCache
}

// BuildDeps wires the broker, bus and cache from the environment
func BuildDeps(store database.Storage, env *config.EnviornmentVariable) *Deps {
	hub := realtime.NewHub()

	deps := &Deps{
		Store:  store,
		Broker: hub,
		Bus:    events.NewBus(),
	}

	redisCache, err := cache.NewRedisCache(env.REDIS_URL)
	if err != nil {
		log.Printf("Warning: redis unavailable (%v); realtime delivery is process-local", err)
		return deps
	}

	deps.Cache = redisCache
	deps.Broker = realtime.NewRedisBroker(redisCache.GetClient(), hub)
	return deps
}

// SetupRoutes wires every HTTP and websocket route
func SetupRoutes(app *fiber.App, deps *Deps, env *config.EnviornmentVariable) {
	db := deps.Store.GetDB()
	if db == nil {
		log.Fatal("Failed to get GORM DB instance")
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        env.JWT_ISSUER,
	})

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// services
	courseService := services.NewCourseService(db, deps.Bus)
	enrollmentService := services.NewEnrollmentService(db, deps.Bus)
	progressService := services.NewProgressService(db)
	ratingService := services.NewRatingService(db)
	statusService := services.NewStatusService(db, deps.Bus)
	messageService := services.NewMessageService(db, deps.Broker)
	exploreService := services.NewExploreService(db, services.NewILikeIndex(db), deps.Cache)

	notificationService := services.NewNotificationService(db, deps.Broker)
	notificationService.Register(deps.Bus)

	// handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager)
	courseHandler := course_handlers.NewCourseHandler(db, courseService, enrollmentService, progressService, ratingService, exploreService)
	peopleHandler := people_handlers.NewPeopleHandler(db, courseService, statusService, notificationService, progressService)
	messageHandler := message_handlers.NewMessageHandler(messageService)
	notificationHandler := notification_handlers.NewNotificationHandler(notificationService)
	wsHandler := ws_handlers.NewWSHandler(deps.Broker, messageService)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	app.Get("/ping", handlers.HandleCheckHealth(deps.Store))

	api := app.Group("/api/v1")

	// auth
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// profile and people
	api.Put("/profile", authMiddleware.Required(), peopleHandler.UpdateProfile)
	api.Get("/dashboard", authMiddleware.Required(), peopleHandler.Dashboard)
	api.Get("/users/search", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleTeacher), peopleHandler.SearchUsers)
	api.Get("/users/:id", authMiddleware.Optional(), peopleHandler.GetProfile)
	api.Get("/users/:id/statuses", authMiddleware.Optional(), peopleHandler.ListStatuses)
	api.Post("/statuses", authMiddleware.Required(), peopleHandler.PostStatus)
	api.Delete("/statuses/:id", authMiddleware.Required(), peopleHandler.DeleteStatus)

	// courses
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/search", courseHandler.SearchCourses)
	courses.Post("/", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleTeacher), courseHandler.CreateCourse)
	courses.Get("/:id", authMiddleware.Optional(), courseHandler.GetCourse)
	courses.Put("/:id", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleTeacher), courseHandler.UpdateCourse)

	// enrollment
	courses.Post("/:id/enroll", authMiddleware.Required(), courseHandler.Enroll)
	courses.Get("/:id/students", authMiddleware.Required(), courseHandler.ListStudents)
	courses.Put("/:id/students/:studentID/blocked", authMiddleware.Required(), courseHandler.SetStudentBlocked)
	courses.Delete("/:id/students/:studentID", authMiddleware.Required(), courseHandler.RemoveStudent)

	// content
	courses.Post("/:id/modules", authMiddleware.Required(), courseHandler.AddModule)
	courses.Delete("/:id/modules/:moduleID", authMiddleware.Required(), courseHandler.DeleteModule)
	courses.Post("/:id/modules/:moduleID/materials", authMiddleware.Required(), courseHandler.AddMaterial)
	courses.Get("/:id/materials/:materialID", authMiddleware.Required(), courseHandler.GetMaterial)
	courses.Post("/:id/materials/:materialID/complete", authMiddleware.Required(), courseHandler.CompleteMaterial)

	// instructors
	courses.Post("/:id/instructors", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleTeacher), courseHandler.AddInstructor)
	courses.Delete("/:id/instructors/:userID", authMiddleware.Required(), authMiddleware.RequireRole(model.RoleTeacher), courseHandler.RemoveInstructor)

	// ratings
	courses.Get("/:id/ratings", courseHandler.ListRatings)
	courses.Post("/:id/ratings", authMiddleware.Required(), courseHandler.SubmitRating)

	// messaging
	conversations := api.Group("/conversations", authMiddleware.Required())
	conversations.Post("/", messageHandler.StartConversation)
	conversations.Get("/", messageHandler.ListThreads)
	conversations.Get("/:id/messages", messageHandler.History)
	conversations.Post("/:id/call", messageHandler.PlaceCall)

	// notifications
	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Put("/read-all", notificationHandler.MarkAllRead)
	notifications.Put("/:id/read", notificationHandler.MarkRead)

	// websockets; the token travels in the query string since browsers
	// cannot set headers on upgrade requests
	wsGroup := app.Group("/ws", ws_handlers.UpgradeRequired, authMiddleware.Optional())
	wsGroup.Get("/chat/:id", websocket.New(wsHandler.Chat))
	wsGroup.Get("/call/:id", websocket.New(wsHandler.Call))
	wsGroup.Get("/notifications", websocket.New(wsHandler.Notifications))
}
