package controller

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/service"
	"bnm_edu_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type NewsController struct {
	ContentService *service.ContentService
}

func NewNewsController(contentService *service.ContentService) *NewsController {
	return &NewsController{ContentService: contentService}
}

// ListNews godoc
// @Summary 资讯列表
// @Description 按创建时间倒序，可用 tag 过滤
// @Tags 资讯
// @Produce json
// @Param   tag query string false "标签过滤"
// @Success 200 {object} util.Response{data=[]model.News}
// @Router /news [get]
func (c *NewsController) ListNews(ctx *gin.Context) {
	items, err := c.ContentService.ListNews(ctx.Query("tag"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, items)
}

// swagger:model CreateNewsRequest
type CreateNewsRequest struct {
	ID          string   `json:"id" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Tags        []string `json:"tags"`
}

// CreateNews godoc
// @Summary 创建资讯
// @Tags 资讯
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   body body CreateNewsRequest true "资讯内容"
// @Success 201 {object} util.Response{data=model.News}
// @Failure 400 {object} util.Response
// @Router /news [post]
func (c *NewsController) CreateNews(ctx *gin.Context) {
	var req CreateNewsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	news := &model.News{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Tags:        model.StringList(req.Tags),
	}

	if err := c.ContentService.CreateNews(news); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, news)
}

// swagger:model UpdateNewsRequest
type UpdateNewsRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	Tags        *[]string `json:"tags"`
}

// UpdateNews godoc
// @Summary 更新资讯
// @Tags 资讯
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param   id path string true "资讯ID"
// @Param   body body UpdateNewsRequest true "资讯补丁"
// @Success 200 {object} util.Response{data=model.News}
// @Failure 404 {object} util.Response
// @Router /news/{id} [put]
func (c *NewsController) UpdateNews(ctx *gin.Context) {
	var req UpdateNewsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	news, err := c.ContentService.UpdateNews(ctx.Param("id"), func(n *model.News) {
		if req.Title != nil {
			n.Title = *req.Title
		}
		if req.Description != nil {
			n.Description = *req.Description
		}
		if req.Image != nil {
			n.Image = *req.Image
		}
		if req.Tags != nil {
			n.Tags = model.StringList(*req.Tags)
		}
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx, "News not found")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, news)
}

// DeleteNews godoc
// @Summary 删除资讯
// @Tags 资讯
// @Produce json
// @Security ApiKeyAuth
// @Param   id path string true "资讯ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /news/{id} [delete]
func (c *NewsController) DeleteNews(ctx *gin.Context) {
	found, err := c.ContentService.DeleteNews(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if !found {
		util.NotFound(ctx, "News not found")
		return
	}

	util.Success(ctx, gin.H{"message": "News deleted"})
}
