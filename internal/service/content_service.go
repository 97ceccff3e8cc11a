package service

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"math/rand"
)

// quizSampleSize 每次取课时返回的随机题目数
const quizSampleSize = 5

type ContentService struct {
	CourseRepo *repository.CourseRepository
	NewsRepo   *repository.NewsRepository
}

func NewContentService(courseRepo *repository.CourseRepository, newsRepo *repository.NewsRepository) *ContentService {
	return &ContentService{
		CourseRepo: courseRepo,
		NewsRepo:   newsRepo,
	}
}

func (s *ContentService) AddCourse(course *model.Course) error {
	return s.CourseRepo.Create(course)
}

// GetLesson 取课时并随机抽取一组测验题
func (s *ContentService) GetLesson(lessonID string) (*model.Course, error) {
	course, err := s.CourseRepo.FindByLesson(lessonID)
	if err != nil {
		return nil, err
	}

	if len(course.Questions) > quizSampleSize {
		shuffled := make(model.QuestionList, len(course.Questions))
		copy(shuffled, course.Questions)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		course.Questions = shuffled[:quizSampleSize]
	}

	return course, nil
}

func (s *ContentService) CreateNews(news *model.News) error {
	return s.NewsRepo.Create(news)
}

func (s *ContentService) ListNews(tag string) ([]model.News, error) {
	return s.NewsRepo.List(tag)
}

func (s *ContentService) UpdateNews(id string, patch func(*model.News)) (*model.News, error) {
	news, err := s.NewsRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	patch(news)
	if err := s.NewsRepo.Update(news); err != nil {
		return nil, err
	}
	return news, nil
}

func (s *ContentService) DeleteNews(id string) (bool, error) {
	affected, err := s.NewsRepo.Delete(id)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
