package app

import (
	"bnm_edu_backend/internal/config"
	"bnm_edu_backend/internal/controller"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/pkg/database"
	"bnm_edu_backend/pkg/logger"
	"bnm_edu_backend/pkg/mailer"
	"bnm_edu_backend/pkg/monitoring"
	"bnm_edu_backend/pkg/security"
	"bnm_edu_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	account *repository.AccountRepository
	course  *repository.CourseRepository
	news    *repository.NewsRepository
}

type services struct {
	vault    *service.CredentialVault
	tokens   *service.TokenService
	auth     *service.AuthService
	account  *service.AccountService
	progress *service.ProgressService
	content  *service.ContentService
	storage  *service.StorageService
}

type controllers struct {
	auth    *controller.AuthController
	user    *controller.UserController
	course  *controller.CourseController
	teacher *controller.TeacherController
	admin   *controller.AdminController
	news    *controller.NewsController
	health  *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		account: repository.NewAccountRepository(db),
		course:  repository.NewCourseRepository(db),
		news:    repository.NewNewsRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.vault = service.NewCredentialVault()
	s.tokens = service.NewTokenService(&cfg.JWT)
	challenges := service.NewChallengeService(cfg.Challenge.TTL)

	mail := mailer.NewMailer(&cfg.Mail)

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	s.storage = storage

	s.auth = service.NewAuthService(repos.account, s.vault, s.tokens, challenges, mail)
	s.account = service.NewAccountService(repos.account, s.vault, challenges)
	s.progress = service.NewProgressService(repos.account, rdb)
	s.content = service.NewContentService(repos.course, repos.news)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		user:    controller.NewUserController(s.account, s.storage),
		course:  controller.NewCourseController(s.content, s.progress),
		teacher: controller.NewTeacherController(s.progress),
		admin:   controller.NewAdminController(s.account),
		news:    controller.NewNewsController(s.content),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests == 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window == 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 评审列表缓存可降级，Redis 不可用只告警
		logger.Log.Warn("Redis unavailable, review cache disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	// 请求体中的未知字段一律拒绝
	binding.EnableDecoderDisallowUnknownFields = true

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("bnm-edu", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/avatars", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
