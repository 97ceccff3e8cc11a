package controller

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// swagger:model RegisterRequest
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Role        string `json:"role" binding:"omitempty,oneof=user teacher admin"`
	BirthDate   string `json:"birthDate"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
	Course      string `json:"course"`
	ParentNames struct {
		Father string `json:"father"`
		Mother string `json:"mother"`
	} `json:"parentNames"`
}

// Register godoc
// @Summary 注册新账号
// @Description 注册新账号。角色默认为 user，提升角色需要管理员令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "注册信息"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "提升角色但未携带令牌"
// @Failure 403 {object} util.Response "提升角色但调用者不是管理员"
// @Failure 409 {object} util.Response "用户名或邮箱已被占用"
// @Router /auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	role := model.Role(req.Role)
	if role == "" {
		role = model.RoleUser
	}

	// 只有管理员能创建非 user 角色的账号
	if role != model.RoleUser {
		claims := util.GetUserFromContext(ctx)
		if claims == nil {
			util.Unauthorized(ctx)
			return
		}
		if claims.Role != model.RoleAdmin {
			util.Forbidden(ctx)
			return
		}
	}

	account := &model.Account{
		Username:  req.Username,
		Email:     req.Email,
		Role:      role,
		BirthDate: req.BirthDate,
		City:      req.City,
		Phone:     req.Phone,
		Course:    req.Course,
		ParentNames: model.ParentNames{
			Father: req.ParentNames.Father,
			Mother: req.ParentNames.Mother,
		},
	}

	if err := c.AuthService.Register(account, req.Password); err != nil {
		if errors.Is(err, util.ErrUserExists) {
			util.Conflict(ctx, "User already exists")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{"id": account.ID})
}

// swagger:model LoginRequest
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 登录
// @Description 用户名密码登录。启用2FA的账号返回 twoFactorRequired 分支
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录凭据"
// @Success 200 {object} util.Response{data=service.LoginResult}
// @Failure 400 {object} util.Response "密码错误"
// @Failure 404 {object} util.Response "账号不存在"
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AuthService.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		case errors.Is(err, util.ErrIncorrectPassword):
			util.BadRequest(ctx, "Incorrect password")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

type SendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SendTwoFactorCode godoc
// @Summary 发送2FA验证码
// @Description 向账号邮箱发送一次性登录验证码，投递异步进行
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body SendCodeRequest true "账号邮箱"
// @Success 202 {object} util.Response
// @Failure 400 {object} util.Response "账号未启用2FA"
// @Failure 404 {object} util.Response "账号不存在"
// @Failure 429 {object} util.Response "已有未过期验证码"
// @Router /auth/send-2fa-code [post]
func (c *AuthController) SendTwoFactorCode(ctx *gin.Context) {
	var req SendCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.SendTwoFactorCode(req.Email); err != nil {
		switch {
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		case errors.Is(err, util.ErrTwoFactorDisabled):
			util.BadRequest(ctx, "2FA is not enabled")
		case errors.Is(err, util.ErrCodeStillValid):
			util.RateLimited(ctx, "A 2FA code was already sent, wait before requesting another")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Accepted(ctx, "2FA code sent to email")
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// VerifyTwoFactorCode godoc
// @Summary 校验2FA验证码
// @Description 消费一次性验证码并签发会话令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body VerifyCodeRequest true "邮箱和验证码"
// @Success 200 {object} util.Response{data=service.LoginResult}
// @Failure 400 {object} util.Response "验证码未设置/已过期/不匹配"
// @Failure 404 {object} util.Response "账号不存在或未启用2FA"
// @Router /auth/verify-2fa-code [post]
func (c *AuthController) VerifyTwoFactorCode(ctx *gin.Context) {
	var req VerifyCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AuthService.VerifyTwoFactorCode(req.Email, req.Code)
	if err != nil {
		c.challengeError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// ForgotPassword godoc
// @Summary 发送重置密码验证码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body SendCodeRequest true "账号邮箱"
// @Success 202 {object} util.Response
// @Failure 404 {object} util.Response "账号不存在"
// @Failure 429 {object} util.Response "已有未过期验证码"
// @Router /auth/forgot-password [post]
func (c *AuthController) ForgotPassword(ctx *gin.Context) {
	var req SendCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.ForgotPassword(req.Email); err != nil {
		switch {
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		case errors.Is(err, util.ErrCodeStillValid):
			util.RateLimited(ctx, "A reset code was already sent, wait before requesting another")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Accepted(ctx, "Reset code sent to email")
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// ResetPassword godoc
// @Summary 用验证码重置密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body ResetPasswordRequest true "邮箱、验证码和新密码"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "验证码未设置/已过期/不匹配"
// @Failure 404 {object} util.Response "账号不存在"
// @Router /auth/reset-password [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.ResetPassword(req.Email, req.Code, req.NewPassword); err != nil {
		c.challengeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, util.Response{
		Code:    http.StatusOK,
		Message: "Password reset successfully",
	})
}

// challengeError 验证码类错误的统一映射。验证码细节不回显
func (c *AuthController) challengeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAccountNotFound):
		util.NotFound(ctx, "User not found")
	case errors.Is(err, util.ErrCodeNotSet):
		util.BadRequest(ctx, "Code not set")
	case errors.Is(err, util.ErrCodeExpired):
		util.BadRequest(ctx, "Code expired")
	case errors.Is(err, util.ErrCodeMismatch):
		util.BadRequest(ctx, "Invalid code")
	default:
		util.LogInternalError(ctx, err)
	}
}
