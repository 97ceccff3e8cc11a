package service

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/repository"
	"bnm_edu_backend/internal/util"
	"bnm_edu_backend/pkg/logger"
	"bnm_edu_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	reviewCacheKey = "review:answers"
	reviewCacheTTL = 30 * time.Second
)

type ProgressService struct {
	AccountRepo *repository.AccountRepository
	Redis       *redis.Client
}

func NewProgressService(accountRepo *repository.AccountRepository, rdb *redis.Client) *ProgressService {
	return &ProgressService{
		AccountRepo: accountRepo,
		Redis:       rdb,
	}
}

type SubmissionInput struct {
	LessonID     string
	Score        float64
	Answers      datatypes.JSON
	ProjectLinks []string
}

// RecordSubmission 记录一次作业提交。同一课时重复提交被拒绝而不是合并，
// 重试因此不会产生重复效果；并发提交在账号原子更新内竞争，败者观察到冲突
func (s *ProgressService) RecordSubmission(accountID uint, input SubmissionInput) (*model.Answer, error) {
	var recorded *model.Answer
	_, err := s.AccountRepo.UpdateAtomic(accountID, func(a *model.Account) error {
		if a.Answers.Find(input.LessonID) != nil {
			return util.ErrLessonCompleted
		}

		answer := model.Answer{
			LessonID:        input.LessonID,
			SubmittedAt:     time.Now(),
			Score:           input.Score,
			TeacherFeedback: "",
			Answers:         input.Answers,
			ProjectLinks:    input.ProjectLinks,
		}
		a.Answers = append(a.Answers, answer)

		courseKey := model.CourseKeyFromLesson(input.LessonID)
		progress := a.ProgressFor(courseKey)
		progress.AddLesson(input.LessonID)
		progress.AddQuiz(input.LessonID + "_quiz")
		progress.AddProjects(input.ProjectLinks)

		recorded = &answer
		return nil
	})
	if err != nil {
		if err == util.ErrLessonCompleted {
			monitoring.SubmissionCounter.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	monitoring.SubmissionCounter.WithLabelValues("ok").Inc()
	s.invalidateReviewCache()
	return recorded, nil
}

type ProgressReport struct {
	Progress  map[string]ProgressEntry `json:"progress"`
	Analytics ProgressAnalytics        `json:"analytics"`
}

type ProgressEntry struct {
	LessonsCompleted []string `json:"lessonsCompleted"`
}

type ProgressAnalytics struct {
	TotalLessons          int `json:"totalLessons"`
	CompletedLessonsCount int `json:"completedLessonsCount"`
}

// GetProgress 汇总账号当前课程的进度。账号的课程偏好匹配不到账本键时
// 回退到默认课程键（刻意的默认课程策略）
func (s *ProgressService) GetProgress(accountID uint) (*ProgressReport, error) {
	account, err := s.AccountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}

	courseKey := strings.ToLower(account.Course)
	if courseKey == "" {
		courseKey = util.DefaultCourseKey
	}
	if _, ok := account.Progress[courseKey]; !ok {
		courseKey = util.DefaultCourseKey
	}

	completed := []string{}
	if p, ok := account.Progress[courseKey]; ok {
		completed = p.LessonsCompleted
	}

	return &ProgressReport{
		Progress: map[string]ProgressEntry{
			courseKey: {LessonsCompleted: completed},
		},
		Analytics: ProgressAnalytics{
			TotalLessons:          util.TotalLessons,
			CompletedLessonsCount: len(completed),
		},
	}, nil
}

// HasSubmitted 课时是否已提交过
func (s *ProgressService) HasSubmitted(accountID uint, lessonID string) (bool, error) {
	account, err := s.AccountRepo.FindByID(accountID)
	if err != nil {
		return false, err
	}
	return account.Answers.Find(lessonID) != nil, nil
}

// Approve 教师/管理员批准一份提交
func (s *ProgressService) Approve(email, lessonID string) error {
	account, err := s.AccountRepo.FindByEmail(email)
	if err != nil {
		return err
	}

	_, err = s.AccountRepo.UpdateAtomic(account.ID, func(a *model.Account) error {
		answer := a.Answers.Find(lessonID)
		if answer == nil {
			return util.ErrAnswerNotFound
		}
		answer.TeacherFeedback = util.ApprovedFeedback
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateReviewCache()
	return nil
}

// ReviewAnswer 评审视图：提交连同所属学生的信息
type ReviewAnswer struct {
	Email           string            `json:"email"`
	Username        string            `json:"username"`
	LessonID        string            `json:"lessonId"`
	Score           float64           `json:"score"`
	Answers         datatypes.JSON    `json:"answers"`
	ProjectLinks    []string          `json:"projectLinks"`
	TeacherFeedback string            `json:"teacherFeedback"`
	Progress        model.ProgressMap `json:"progress"`
	SubmittedAt     time.Time         `json:"submittedAt"`
}

// ListForReview 汇总所有学生账号的全部提交，新的在前。只读，短暂缓存
func (s *ProgressService) ListForReview(ctx context.Context) ([]ReviewAnswer, error) {
	if cached := s.cachedReview(ctx); cached != nil {
		return cached, nil
	}

	accounts, err := s.AccountRepo.ListByRole(model.RoleUser)
	if err != nil {
		return nil, err
	}

	answers := make([]ReviewAnswer, 0)
	for i := range accounts {
		account := &accounts[i]
		for _, ans := range account.Answers {
			links := ans.ProjectLinks
			if links == nil {
				links = []string{}
			}
			answers = append(answers, ReviewAnswer{
				Email:           account.Email,
				Username:        account.Username,
				LessonID:        ans.LessonID,
				Score:           ans.Score,
				Answers:         ans.Answers,
				ProjectLinks:    links,
				TeacherFeedback: ans.TeacherFeedback,
				Progress:        account.Progress,
				SubmittedAt:     ans.SubmittedAt,
			})
		}
	}

	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].SubmittedAt.After(answers[j].SubmittedAt)
	})

	s.cacheReview(ctx, answers)
	return answers, nil
}

func (s *ProgressService) cachedReview(ctx context.Context) []ReviewAnswer {
	if s.Redis == nil {
		return nil
	}
	raw, err := s.Redis.Get(ctx, reviewCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("review cache read failed", zap.Error(err))
		}
		return nil
	}
	var answers []ReviewAnswer
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil
	}
	return answers
}

func (s *ProgressService) cacheReview(ctx context.Context, answers []ReviewAnswer) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, reviewCacheKey, data, reviewCacheTTL).Err(); err != nil {
		logger.Log.Warn("review cache write failed", zap.Error(err))
	}
}

func (s *ProgressService) invalidateReviewCache() {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(context.Background(), reviewCacheKey).Err(); err != nil {
		logger.Log.Warn("review cache invalidation failed", zap.Error(err))
	}
}
