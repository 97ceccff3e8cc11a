package controller

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CourseController struct {
	ContentService  *service.ContentService
	ProgressService *service.ProgressService
}

func NewCourseController(contentService *service.ContentService, progressService *service.ProgressService) *CourseController {
	return &CourseController{
		ContentService:  contentService,
		ProgressService: progressService,
	}
}

// swagger:model AddCourseRequest
type AddCourseRequest struct {
	ID          string           `json:"id" binding:"required"`
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description" binding:"required"`
	CourseTitle string           `json:"courseTitle" binding:"required"`
	VideoID     string           `json:"videoId"`
	VideoURL    string           `json:"videoUrl" binding:"required"`
	Questions   []model.Question `json:"questions" binding:"required"`
	TargetAge   string           `json:"targetAge" binding:"required"`
	Category    string           `json:"category" binding:"required"`
}

// AddCourse godoc
// @Summary 添加课时
// @Tags 课程
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body AddCourseRequest true "课时内容"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /courses [post]
func (c *CourseController) AddCourse(ctx *gin.Context) {
	var req AddCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course := &model.Course{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		CourseTitle: req.CourseTitle,
		VideoID:     req.VideoID,
		VideoURL:    req.VideoURL,
		Questions:   model.QuestionList(req.Questions),
		TargetAge:   req.TargetAge,
		Category:    req.Category,
	}

	if err := c.ContentService.AddCourse(course); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"id": course.ID})
}

// GetLesson godoc
// @Summary 获取课时
// @Description 按课时ID或videoId取课时，附带随机抽取的测验题
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param   lesson path string true "课时ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response
// @Router /courses/{lesson} [get]
func (c *CourseController) GetLesson(ctx *gin.Context) {
	course, err := c.ContentService.GetLesson(ctx.Param("lesson"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx, "Lesson not found")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, course)
}

// GetProgress godoc
// @Summary 当前账号的课程进度
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProgressReport}
// @Failure 401 {object} util.Response
// @Router /courses/progress/me [get]
func (c *CourseController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	report, err := c.ProgressService.GetProgress(claims.AccountID)
	if err != nil {
		if errors.Is(err, util.ErrAccountNotFound) {
			util.NotFound(ctx, "User not found")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, report)
}

// swagger:model SubmitAnswerRequest
type SubmitAnswerRequest struct {
	LessonID     string         `json:"lessonId" binding:"required"`
	Score        *float64       `json:"score" binding:"required"`
	Answers      datatypes.JSON `json:"answers" binding:"required"`
	ProjectLinks []string       `json:"projectLinks"`
}

// SubmitAnswer godoc
// @Summary 提交课时作业
// @Description 幂等提交：同一课时的第二次提交返回409，账本状态不变
// @Tags 课程
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body SubmitAnswerRequest true "作业内容"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "字段缺失"
// @Failure 409 {object} util.Response "课时已提交"
// @Router /courses/submit-answer [post]
func (c *CourseController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Missing fields")
		return
	}

	_, err := c.ProgressService.RecordSubmission(claims.AccountID, service.SubmissionInput{
		LessonID:     req.LessonID,
		Score:        *req.Score,
		Answers:      req.Answers,
		ProjectLinks: req.ProjectLinks,
	})
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonCompleted):
			util.Conflict(ctx, "Lesson already completed")
		case errors.Is(err, util.ErrAccountNotFound):
			util.NotFound(ctx, "User not found")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "Answer saved successfully"})
}

// CheckAnswer godoc
// @Summary 课时是否已提交
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param   lessonId query string true "课时ID"
// @Success 200 {object} util.Response{data=object}
// @Router /courses/check-answer [get]
func (c *CourseController) CheckAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonID := ctx.Query("lessonId")
	if lessonID == "" {
		util.BadRequest(ctx, "lessonId is required")
		return
	}

	answered, err := c.ProgressService.HasSubmitted(claims.AccountID, lessonID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"answered": answered})
}
