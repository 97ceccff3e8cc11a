package service

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newContentService(t *testing.T) *ContentService {
	t.Helper()
	db := newTestDB(t)
	return NewContentService(repository.NewCourseRepository(db), repository.NewNewsRepository(db))
}

func seedCourse(t *testing.T, svc *ContentService, id string, questionCount int) {
	t.Helper()
	questions := make(model.QuestionList, questionCount)
	for i := range questions {
		questions[i] = model.Question{QuestionText: fmt.Sprintf("q%d", i)}
	}
	require.NoError(t, svc.AddCourse(&model.Course{
		ID:        id,
		Title:     "Lesson",
		VideoID:   "vid-" + id,
		Questions: questions,
	}))
}

func TestGetLessonSamplesQuestions(t *testing.T) {
	svc := newContentService(t)
	seedCourse(t, svc, "web_1", 12)

	course, err := svc.GetLesson("web_1")
	require.NoError(t, err)
	assert.Len(t, course.Questions, quizSampleSize)
}

func TestGetLessonSmallQuestionPool(t *testing.T) {
	svc := newContentService(t)
	seedCourse(t, svc, "web_1", 3)

	// 题目不足抽样数时全量返回
	course, err := svc.GetLesson("web_1")
	require.NoError(t, err)
	assert.Len(t, course.Questions, 3)
}

func TestGetLessonByVideoID(t *testing.T) {
	svc := newContentService(t)
	seedCourse(t, svc, "web_1", 1)

	course, err := svc.GetLesson("vid-web_1")
	require.NoError(t, err)
	assert.Equal(t, "web_1", course.ID)
}

func TestGetLessonMissing(t *testing.T) {
	svc := newContentService(t)

	_, err := svc.GetLesson("ghost")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNewsLifecycle(t *testing.T) {
	svc := newContentService(t)

	require.NoError(t, svc.CreateNews(&model.News{
		ID:    "n1",
		Title: "Launch",
		Tags:  model.StringList{"platform"},
	}))
	require.NoError(t, svc.CreateNews(&model.News{
		ID:    "n2",
		Title: "Course update",
		Tags:  model.StringList{"Courses"},
	}))

	all, err := svc.ListNews("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// 标签过滤大小写不敏感
	filtered, err := svc.ListNews("courses")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "n2", filtered[0].ID)

	updated, err := svc.UpdateNews("n1", func(n *model.News) {
		n.Title = "Launch day"
	})
	require.NoError(t, err)
	assert.Equal(t, "Launch day", updated.Title)

	found, err := svc.DeleteNews("n1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = svc.DeleteNews("n1")
	require.NoError(t, err)
	assert.False(t, found)
}
