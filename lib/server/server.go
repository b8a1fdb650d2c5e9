package server

import (
	"backend/lib/authentication"
	"backend/lib/battles"
	"backend/lib/maintenance"
	"backend/lib/notifications"
	"backend/lib/server/middleware"
	"backend/lib/services"
	"backend/lib/vault"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type BattleServer struct {
	*fiber.App
	Db            services.Database
	Cache         services.Cache
	Notifications *notifications.NotificationService
	VaultManager  vault.VaultManager
	StateMachine  maintenance.StateMachine
	AuthService   *authentication.AuthService

	Store      *services.BattleStore
	Users      *services.UserDirectory
	Supervisor *battles.BattleSupervisor
}

func New() (*BattleServer, error) {
	vault_manager, err := vault.NewVaultManager()
	if err != nil {
		return nil, err
	}
	notificationConfig := &notifications.Config{
		WorkerCount:     10,               // Number of workers
		WorkerQueueSize: 1000,             // Size of job queue
		RetryAttempts:   3,                // Number of retry attempts
		RetryDelay:      time.Second * 2,  // Delay between retries
		ShutdownTimeout: time.Second * 30, // Timeout for graceful shutdown
		InitialPoolSize: 100,              // Initial size of object pool
	}
	cache := services.DefaultCache()
	notifications, err := notifications.NewNotificationService(notificationConfig)
	if err != nil {
		return nil, err
	}

	server := BattleServer{
		App:           fiber.New(),
		Db:            services.DefaultDatabase(),
		Cache:         cache,
		Notifications: notifications,
		VaultManager:  vault_manager,
		StateMachine:  maintenance.NewStateMachine(),
	}

	return &server, nil
}

func (server *BattleServer) Configure() {
	err := maintenance.InitLogger("battles.log")
	if err == nil {
		server.App.Use(middleware.Logger())
	}
	server.App.Use(func(c *fiber.Ctx) error {
		c.Locals("StateMachine", &server.StateMachine)
		return c.Next()
	})

	server.App.Use(helmet.New())
	server.App.Use(recover.New())
	server.App.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
}

func (server *BattleServer) Start() {
	slog.Info("Starting the server")

	server.Configure()
	server.RegisterRoutes()

	server.StateMachine.When(
		maintenance.MODE_INIT,
		maintenance.STATE_CONFIGURING,
		maintenance.SUBSTATE_CONFIGURING_SERVICES,
		func() {
			slog.Info("Connecting services ...")
			// Connect all services
			cache_pwd, err := server.VaultManager.GetCachePwd()
			if err != nil {
				slog.Error("Cache pwd retrieval failed", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			db_pwd, err := server.VaultManager.GetDbPwd()
			if err != nil {
				slog.Error("Db pwd retrieval failed", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			err = server.Cache.Connect(cache_pwd)
			if err != nil {
				slog.Error("Cache connection failed", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			err = server.Db.Connect(db_pwd)
			if err != nil {
				slog.Error("Db connection failed", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}

			auth_config, err := authentication.BuildAuthConfig(&server.VaultManager)
			if err != nil {
				slog.Error("Cannot build Auth Service Config", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			auth_service, err := authentication.NewAuthService(auth_config)
			if err != nil {
				slog.Error("Cannot build Auth Service", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			server.AuthService = auth_service

			if err := server.Notifications.Start(context.Background(), &server.Cache); err != nil {
				slog.Error("Notifications could not start", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}

			server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_CONFIGURING, maintenance.SUBSTATE_CONFIGURING_BATTLES)
		})

	server.StateMachine.When(
		maintenance.MODE_INIT,
		maintenance.STATE_CONFIGURING,
		maintenance.SUBSTATE_CONFIGURING_BATTLES,
		func() {
			slog.Info("Starting the battle supervisor ...")

			server.Store = services.NewBattleStore(&server.Db)
			server.Users = services.NewUserDirectory(&server.Db)

			orchestrator, err := battles.NewOrchestrator(battles.OrchestratorConfig{
				Store:            server.Store,
				Users:            server.Users,
				Broadcast:        notifications.NewBattleBroadcaster(server.Notifications),
				ReadinessTimeout: battles.DefaultReadinessTimeout,
				Engines: []battles.Engine{
					battles.NewTypingEngine(),
					battles.NewCssEngine(
						services.NewImageCatalog(&server.Db),
						services.NewScreenshotRenderer(),
						&http.Client{Timeout: 15 * time.Second},
					),
				},
			})
			if err != nil {
				slog.Error("Cannot build battle orchestrator", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}

			supervisor, err := battles.NewBattleSupervisor(orchestrator, 10)
			if err != nil {
				slog.Error("Cannot build battle supervisor", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			if err := supervisor.Start(context.Background(), server.Cache.Db); err != nil {
				slog.Error("Battle supervisor could not start", "error", err)
				server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_FAILED, maintenance.SUBSTATE_FAILED)
				return
			}
			server.Supervisor = supervisor

			server.StateMachine.To(maintenance.MODE_OPERATIONAL, maintenance.STATE_RUNNING, maintenance.SUBSTATE_SAFE)
		})

	server.StateMachine.To(maintenance.MODE_INIT, maintenance.STATE_CONFIGURING, maintenance.SUBSTATE_CONFIGURING_SERVICES)
}

func (server *BattleServer) Shutdown(ctx context.Context) error {
	if server.Supervisor != nil {
		if err := server.Supervisor.Stop(ctx); err != nil {
			slog.Error("Battle supervisor shutdown failed", "error", err)
		}
	}
	if err := server.Notifications.Shutdown(ctx); err != nil {
		slog.Error("Notifications shutdown failed", "error", err)
	}
	return server.App.Shutdown()
}
