package controller

import (
	"bnm_edu_backend/internal/middleware"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/internal/util"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	AccountService *service.AccountService
	StorageService *service.StorageService
}

func NewUserController(accountService *service.AccountService, storageService *service.StorageService) *UserController {
	return &UserController{
		AccountService: accountService,
		StorageService: storageService,
	}
}

// GetProfile godoc
// @Summary 获取当前账号资料
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.Account}
// @Failure 401 {object} util.Response
// @Router /users/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	account := middleware.AccountFromContext(ctx)
	if account == nil {
		util.Unauthorized(ctx)
		return
	}
	util.Success(ctx, account)
}

// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	BirthDate        *string `json:"birthDate"`
	City             *string `json:"city"`
	Phone            *string `json:"phone"`
	TwoFactorEnabled *bool   `json:"twoFactorEnabled"`
}

// UpdateProfile godoc
// @Summary 更新当前账号资料
// @Description 只接受白名单字段。切换2FA会作废在途验证码
// @Tags 用户
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body UpdateProfileRequest true "资料补丁"
// @Success 200 {object} util.Response{data=model.Account}
// @Failure 400 {object} util.Response
// @Router /users/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	account, err := c.AccountService.UpdateProfile(claims.AccountID, service.ProfileUpdate{
		BirthDate:        req.BirthDate,
		City:             req.City,
		Phone:            req.Phone,
		TwoFactorEnabled: req.TwoFactorEnabled,
	})
	if err != nil {
		if errors.Is(err, util.ErrAccountNotFound) {
			util.NotFound(ctx, "User not found")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, account)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// ChangePassword godoc
// @Summary 修改密码
// @Tags 用户
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body ChangePasswordRequest true "当前密码和新密码"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "当前密码不正确"
// @Router /users/change-password [put]
func (c *UserController) ChangePassword(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AccountService.ChangePassword(claims.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, util.ErrIncorrectPassword):
			util.BadRequest(ctx, "Current password is incorrect")
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "Password changed successfully"})
}

// UploadAvatar godoc
// @Summary 上传头像
// @Tags 用户
// @Accept  multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param   avatar formData file true "头像文件"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Router /users/avatar [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	file, header, err := ctx.Request.FormFile("avatar")
	if err != nil {
		util.BadRequest(ctx, "avatar file is required")
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("%d%s", claims.AccountID, filepath.Ext(header.Filename))
	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	account, err := c.AccountService.SetAvatar(claims.AccountID, url)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"avatarUrl": account.AvatarURL})
}

// AccountByEmail godoc
// @Summary 按邮箱查找账号
// @Tags 管理员
// @Produce json
// @Security ApiKeyAuth
// @Param   email query string true "邮箱"
// @Success 200 {object} util.Response{data=model.Account}
// @Failure 404 {object} util.Response
// @Router /users/account-by-email [get]
func (c *UserController) AccountByEmail(ctx *gin.Context) {
	email := ctx.Query("email")
	if email == "" {
		util.BadRequest(ctx, "Email is required")
		return
	}

	account, err := c.AccountService.GetByEmail(email)
	if err != nil {
		if errors.Is(err, util.ErrAccountNotFound) {
			util.NotFound(ctx, "User not found")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, account)
}
