package repository

import (
	"bnm_edu_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

// FindByLesson 按主键或 videoId 查找课时
func (r *CourseRepository) FindByLesson(lessonID string) (*model.Course, error) {
	var course model.Course
	err := r.DB.Where("id = ? OR video_id = ?", lessonID, lessonID).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}
