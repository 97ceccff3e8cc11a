package controller

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	AccountService *service.AccountService
}

func NewAdminController(accountService *service.AccountService) *AdminController {
	return &AdminController{AccountService: accountService}
}

// swagger:model AdminUpdateRequest
type AdminUpdateRequest struct {
	Email            string             `json:"email" binding:"required,email"`
	NewEmail         *string            `json:"newEmail"`
	BirthDate        *string            `json:"birthDate"`
	City             *string            `json:"city"`
	Phone            *string            `json:"phone"`
	Course           *string            `json:"course"`
	Role             *model.Role        `json:"role"`
	ParentNames      *model.ParentNames `json:"parentNames"`
	TwoFactorEnabled *bool              `json:"twoFactorEnabled"`
}

// UpdateUser godoc
// @Summary 管理员更新账号
// @Description 按旧邮箱定位账号，应用白名单字段补丁。换邮箱会检查占用
// @Tags 管理员
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body AdminUpdateRequest true "账号补丁"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "账号不存在"
// @Failure 409 {object} util.Response "新邮箱已被占用"
// @Router /admin/update-user [put]
func (c *AdminController) UpdateUser(ctx *gin.Context) {
	var req AdminUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if req.Role != nil {
		switch *req.Role {
		case model.RoleUser, model.RoleTeacher, model.RoleAdmin:
		default:
			util.BadRequest(ctx, "invalid role")
			return
		}
	}

	_, err := c.AccountService.AdminPatch(req.Email, service.AdminUpdate{
		NewEmail:         req.NewEmail,
		BirthDate:        req.BirthDate,
		City:             req.City,
		Phone:            req.Phone,
		Course:           req.Course,
		Role:             req.Role,
		ParentNames:      req.ParentNames,
		TwoFactorEnabled: req.TwoFactorEnabled,
	})
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		case errors.Is(err, util.ErrEmailTaken):
			util.Conflict(ctx, "New email is already in use")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "User updated successfully"})
}
