package repository

import (
	"bnm_edu_backend/internal/model"
	"strings"

	"gorm.io/gorm"
)

type NewsRepository struct {
	DB *gorm.DB
}

func NewNewsRepository(db *gorm.DB) *NewsRepository {
	return &NewsRepository{DB: db}
}

func (r *NewsRepository) Create(news *model.News) error {
	return r.DB.Create(news).Error
}

func (r *NewsRepository) FindByID(id string) (*model.News, error) {
	var news model.News
	err := r.DB.Where("id = ?", id).First(&news).Error
	if err != nil {
		return nil, err
	}
	return &news, nil
}

// List 新闻按创建时间倒序；tag 过滤不区分大小写
func (r *NewsRepository) List(tag string) ([]model.News, error) {
	var items []model.News
	if err := r.DB.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	if tag == "" {
		return items, nil
	}

	needle := strings.ToLower(tag)
	filtered := make([]model.News, 0, len(items))
	for _, n := range items {
		for _, t := range n.Tags {
			if strings.Contains(strings.ToLower(t), needle) {
				filtered = append(filtered, n)
				break
			}
		}
	}
	return filtered, nil
}

func (r *NewsRepository) Update(news *model.News) error {
	return r.DB.Save(news).Error
}

func (r *NewsRepository) Delete(id string) (int64, error) {
	res := r.DB.Where("id = ?", id).Delete(&model.News{})
	return res.RowsAffected, res.Error
}
