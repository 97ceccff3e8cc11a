package controller

import (
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type TeacherController struct {
	ProgressService *service.ProgressService
}

func NewTeacherController(progressService *service.ProgressService) *TeacherController {
	return &TeacherController{ProgressService: progressService}
}

// GetAllAnswers godoc
// @Summary 学生提交评审列表
// @Description 所有学生账号的全部提交，按提交时间倒序
// @Tags 教师
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ReviewAnswer}
// @Failure 403 {object} util.Response
// @Router /teacher/answers [get]
func (c *TeacherController) GetAllAnswers(ctx *gin.Context) {
	answers, err := c.ProgressService.ListForReview(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, answers)
}

type ApproveAnswerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	LessonID string `json:"lessonId" binding:"required"`
}

// ApproveAnswer godoc
// @Summary 批准一份提交
// @Description 将提交的反馈置为 approved
// @Tags 教师
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body ApproveAnswerRequest true "学生邮箱和课时ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "账号或提交不存在"
// @Router /teacher/approve-answer [post]
func (c *TeacherController) ApproveAnswer(ctx *gin.Context) {
	var req ApproveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ProgressService.Approve(req.Email, req.LessonID); err != nil {
		switch {
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		case errors.Is(err, util.ErrAnswerNotFound):
			util.NotFound(ctx, "Answer not found")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "Answer approved"})
}
