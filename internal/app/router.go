package app

import (
	"bnm_edu_backend/docs"
	"bnm_edu_backend/internal/config"
	"bnm_edu_backend/internal/middleware"
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, repos.account))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerCourseRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		auth := public.Group("/auth")
		{
			// 注册可匿名，但创建特权角色需要管理员令牌
			auth.POST("/register", middleware.TryAuthMiddleware(a.Config), c.auth.Register)
			auth.POST("/login", c.auth.Login)
			auth.POST("/send-2fa-code", c.auth.SendTwoFactorCode)
			auth.POST("/verify-2fa-code", c.auth.VerifyTwoFactorCode)
			auth.POST("/forgot-password", c.auth.ForgotPassword)
			auth.POST("/reset-password", c.auth.ResetPassword)
		}

		public.GET("/news", c.news.ListNews)
	}
}

func (a *App) registerUserRoutes(rg *gin.RouterGroup, c *controllers) {
	users := rg.Group("/users")
	{
		users.GET("/profile", c.user.GetProfile)
		users.PUT("/profile", c.user.UpdateProfile)
		users.PUT("/change-password", c.user.ChangePassword)
		users.POST("/avatar", c.user.UploadAvatar)
		users.GET("/account-by-email", middleware.RoleMiddleware(model.RoleAdmin), c.user.AccountByEmail)
	}
}

func (a *App) registerCourseRoutes(rg *gin.RouterGroup, c *controllers) {
	courses := rg.Group("/courses")
	{
		courses.POST("", middleware.RoleMiddleware(model.RoleTeacher, model.RoleAdmin), c.course.AddCourse)
		courses.GET("/progress/me", c.course.GetProgress)
		courses.POST("/submit-answer", c.course.SubmitAnswer)
		courses.GET("/check-answer", c.course.CheckAnswer)
		courses.GET("/:lesson", c.course.GetLesson)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.RoleTeacher, model.RoleAdmin))
	{
		teacher.GET("/answers", c.teacher.GetAllAnswers)
		teacher.POST("/approve-answer", c.teacher.ApproveAnswer)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.PUT("/update-user", c.admin.UpdateUser)
	}

	// 资讯管理：公共读在公开路由，写操作仅限管理员
	news := rg.Group("/news")
	news.Use(middleware.RoleMiddleware(model.RoleAdmin))
	{
		news.POST("", c.news.CreateNews)
		news.PUT("/:id", c.news.UpdateNews)
		news.DELETE("/:id", c.news.DeleteNews)
	}
}
