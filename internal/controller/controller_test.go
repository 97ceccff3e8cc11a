package controller

import (
	"bnm_edu_backend/internal/config"
	"bnm_edu_backend/internal/middleware"
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/pkg/database"
	"bnm_edu_backend/pkg/logger"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	binding.EnableDecoderDisallowUnknownFields = true
	os.Exit(m.Run())
}

type nopMailer struct{}

func (nopMailer) Send(to, subject, body string) error { return nil }

type testEnv struct {
	router *gin.Engine
	repo   *repository.AccountRepository
	tokens *service.TokenService
}

// newTestEnv 按生产路由拓扑搭一个内存栈
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}

	repo := repository.NewAccountRepository(db)
	vault := service.NewCredentialVault()
	tokens := service.NewTokenService(&cfg.JWT)
	challenges := service.NewChallengeService(10 * time.Minute)

	authSvc := service.NewAuthService(repo, vault, tokens, challenges, nopMailer{})
	accountSvc := service.NewAccountService(repo, vault, challenges)
	progressSvc := service.NewProgressService(repo, nil)
	contentSvc := service.NewContentService(repository.NewCourseRepository(db), repository.NewNewsRepository(db))

	authCtrl := NewAuthController(authSvc)
	userCtrl := NewUserController(accountSvc, nil)
	courseCtrl := NewCourseController(contentSvc, progressSvc)
	teacherCtrl := NewTeacherController(progressSvc)
	adminCtrl := NewAdminController(accountSvc)

	router := gin.New()
	api := router.Group("/api")

	api.POST("/auth/register", middleware.TryAuthMiddleware(cfg), authCtrl.Register)
	api.POST("/auth/login", authCtrl.Login)
	api.POST("/auth/send-2fa-code", authCtrl.SendTwoFactorCode)
	api.POST("/auth/verify-2fa-code", authCtrl.VerifyTwoFactorCode)
	api.POST("/auth/forgot-password", authCtrl.ForgotPassword)
	api.POST("/auth/reset-password", authCtrl.ResetPassword)

	authGroup := api.Group("")
	authGroup.Use(middleware.AuthMiddleware(cfg, repo))
	{
		authGroup.GET("/users/profile", userCtrl.GetProfile)
		authGroup.PUT("/users/profile", userCtrl.UpdateProfile)
		authGroup.POST("/courses/submit-answer", courseCtrl.SubmitAnswer)
		authGroup.GET("/courses/progress/me", courseCtrl.GetProgress)
		authGroup.GET("/courses/check-answer", courseCtrl.CheckAnswer)

		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.RoleTeacher, model.RoleAdmin))
		{
			teacher.GET("/answers", teacherCtrl.GetAllAnswers)
			teacher.POST("/approve-answer", teacherCtrl.ApproveAnswer)
		}

		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.RoleAdmin))
		{
			admin.PUT("/update-user", adminCtrl.UpdateUser)
		}
	}

	return &testEnv{router: router, repo: repo, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// seedUser 绕过注册端点直接种一个账号并签发令牌
func (e *testEnv) seedUser(t *testing.T, username, email string, role model.Role) (*model.Account, string) {
	t.Helper()

	vault := service.NewCredentialVault()
	hashed, err := vault.Hash("s3cret")
	require.NoError(t, err)

	account := &model.Account{
		Username: username,
		Email:    email,
		Password: hashed,
		Role:     role,
	}
	require.NoError(t, e.repo.Create(account))

	token, err := e.tokens.Issue(account)
	require.NoError(t, err)
	return account, token
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// 重复注册
	w = env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "other@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	require.NotEmpty(t, data["token"])
	require.Equal(t, "user", data["role"])

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "wrong",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "ghost",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
		"isAdmin":  true,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRoleElevation(t *testing.T) {
	env := newTestEnv(t)

	teacherBody := gin.H{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "s3cret",
		"role":     "teacher",
	}

	// 无令牌
	w := env.do(t, http.MethodPost, "/api/auth/register", "", teacherBody)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// 普通用户令牌
	_, userToken := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)
	w = env.do(t, http.MethodPost, "/api/auth/register", userToken, teacherBody)
	require.Equal(t, http.StatusForbidden, w.Code)

	// 管理员令牌
	_, adminToken := env.seedUser(t, "root", "root@example.com", model.RoleAdmin)
	w = env.do(t, http.MethodPost, "/api/auth/register", adminToken, teacherBody)
	require.Equal(t, http.StatusCreated, w.Code)

	stored, err := env.repo.FindByUsername("carol")
	require.NoError(t, err)
	require.Equal(t, model.RoleTeacher, stored.Role)
}

func TestTwoFactorEndpoints(t *testing.T) {
	env := newTestEnv(t)

	account, _ := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)
	_, err := env.repo.UpdateAtomic(account.ID, func(a *model.Account) error {
		a.TwoFactorEnabled = true
		return nil
	})
	require.NoError(t, err)

	// 开启2FA后密码登录只给出二次验证分支
	w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	require.Equal(t, true, data["twoFactorRequired"])
	require.Nil(t, data["token"])

	w = env.do(t, http.MethodPost, "/api/auth/send-2fa-code", "", gin.H{"email": "alice@example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)

	// 在途验证码未过期时重发被限流
	w = env.do(t, http.MethodPost, "/api/auth/send-2fa-code", "", gin.H{"email": "alice@example.com"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	stored, err := env.repo.FindByID(account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TwoFactorCode)

	w = env.do(t, http.MethodPost, "/api/auth/verify-2fa-code", "", gin.H{
		"email": "alice@example.com",
		"code":  *stored.TwoFactorCode,
	})
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeData(t, w)
	require.NotEmpty(t, data["token"])
}

func TestPasswordResetEndpoints(t *testing.T) {
	env := newTestEnv(t)

	account, _ := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)

	w := env.do(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "alice@example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)

	stored, err := env.repo.FindByID(account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetCode)
	code := *stored.ResetCode

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	w = env.do(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"email":       "alice@example.com",
		"code":        wrong,
		"newPassword": "n3w-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"email":       "alice@example.com",
		"code":        code,
		"newPassword": "n3w-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "n3w-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProfileRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/users/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	_, token := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)
	w = env.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 响应不回显密码哈希和验证码字段
	body := w.Body.String()
	require.NotContains(t, body, `"password"`)
	require.NotContains(t, body, "$2a$")
	require.NotContains(t, body, "twoFactorCode")
	require.NotContains(t, body, "resetCode")
}

func TestSubmitAnswerIdempotency(t *testing.T) {
	env := newTestEnv(t)

	_, token := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)

	body := gin.H{
		"lessonId": "web_1",
		"score":    85,
		"answers":  gin.H{"q1": "a"},
	}
	w := env.do(t, http.MethodPost, "/api/courses/submit-answer", token, body)
	require.Equal(t, http.StatusOK, w.Code)

	// 同一课时的第二次提交
	w = env.do(t, http.MethodPost, "/api/courses/submit-answer", token, body)
	require.Equal(t, http.StatusConflict, w.Code)

	// 缺字段
	w = env.do(t, http.MethodPost, "/api/courses/submit-answer", token, gin.H{"lessonId": "web_2"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/courses/check-answer?lessonId=web_1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decodeData(t, w)["answered"])

	w = env.do(t, http.MethodGet, "/api/courses/progress/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	analytics := data["analytics"].(map[string]interface{})
	require.EqualValues(t, 1, analytics["completedLessonsCount"])
}

func TestTeacherRoutesRoleGate(t *testing.T) {
	env := newTestEnv(t)

	student, studentToken := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)
	_, teacherToken := env.seedUser(t, "carol", "carol@example.com", model.RoleTeacher)

	w := env.do(t, http.MethodPost, "/api/courses/submit-answer", studentToken, gin.H{
		"lessonId": "web_1",
		"score":    90,
		"answers":  gin.H{"q1": "a"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// 学生进不了评审列表
	w = env.do(t, http.MethodGet, "/api/teacher/answers", studentToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/teacher/answers", teacherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/teacher/approve-answer", teacherToken, gin.H{
		"email":    "alice@example.com",
		"lessonId": "web_1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.repo.FindByID(student.ID)
	require.NoError(t, err)
	require.Equal(t, "approved", stored.Answers.Find("web_1").TeacherFeedback)

	// 不存在的提交
	w = env.do(t, http.MethodPost, "/api/teacher/approve-answer", teacherToken, gin.H{
		"email":    "alice@example.com",
		"lessonId": "web_99",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRoleGate(t *testing.T) {
	env := newTestEnv(t)

	env.seedUser(t, "alice", "alice@example.com", model.RoleUser)
	_, teacherToken := env.seedUser(t, "carol", "carol@example.com", model.RoleTeacher)
	_, adminToken := env.seedUser(t, "root", "root@example.com", model.RoleAdmin)

	patch := gin.H{"email": "alice@example.com", "role": "teacher"}

	// 角色精确匹配，teacher 不能用管理员端点
	w := env.do(t, http.MethodPut, "/api/admin/update-user", teacherToken, patch)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/update-user", adminToken, patch)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.repo.FindByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, model.RoleTeacher, stored.Role)

	// 换邮箱撞车
	w = env.do(t, http.MethodPut, "/api/admin/update-user", adminToken, gin.H{
		"email":    "alice@example.com",
		"newEmail": "carol@example.com",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDeletedAccountTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	account, token := env.seedUser(t, "alice", "alice@example.com", model.RoleUser)

	require.NoError(t, env.repo.DB.Delete(&model.Account{}, account.ID).Error)

	// 账号没了，旧令牌失效
	w := env.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
