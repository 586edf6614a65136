package main

import (
	"context"
	"fmt"
	"log"

	common_api "surveysync/internal/common/api"
	"surveysync/internal/config"
	"surveysync/internal/database"
	"surveysync/internal/features/postgres"
	"surveysync/internal/features/schedule"
	"surveysync/internal/features/schema"
	"surveysync/internal/features/session"
	"surveysync/internal/features/surveycto"
	"surveysync/internal/features/syncjob"
	"surveysync/internal/logger"
	"surveysync/internal/middleware"
	"surveysync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for _, route := range routes {
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Initialize Repository
			syncjob.NewInMemoryRegistry,
			syncjob.NewJobHistoryRepository,
			syncjob.NewLastSyncRepository,
			schedule.NewScheduleRepository,

			// Initialize Service
			schema.NewValidatorService,
			session.NewSessionService,
			surveycto.NewSurveyCTOService,
			postgres.NewPostgresService,
			syncjob.NewSyncJobService,
			schedule.NewScheduleService,

			// Initialize Controller
			session.NewSessionController,
			surveycto.NewSurveyCTOController,
			postgres.NewPostgresController,
			syncjob.NewSyncJobController,
			syncjob.NewWebSocketController,
			schedule.NewScheduleController,

			// Initialize API Routes
			AsRoute(session.NewSessionApi),
			AsRoute(surveycto.NewSurveyCTOApi),
			AsRoute(postgres.NewPostgresApi),
			AsRoute(syncjob.NewSyncJobApi),
			AsRoute(schedule.NewScheduleApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},

			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, scheduleService schedule.ScheduleService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return scheduleService.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return scheduleService.StopScheduler()
					},
				})
			},
		),
	)

	app.Run()
}
