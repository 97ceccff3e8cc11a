package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParentNames 家长姓名
type ParentNames struct {
	Father string `gorm:"size:100" json:"father"`
	Mother string `gorm:"size:100" json:"mother"`
}

// CourseProgress 单个课程的进度条目。三个集合字段保持插入顺序，但语义上是集合
type CourseProgress struct {
	LessonsCompleted  []string `json:"lessonsCompleted"`
	QuizzesPassed     []string `json:"quizzesPassed"`
	ProjectsSubmitted []string `json:"projectsSubmitted"`
	CertificateIssued bool     `json:"certificateIssued"`
}

// AddLesson 集合语义：重复成员不追加
func (p *CourseProgress) AddLesson(lessonID string) {
	p.LessonsCompleted = appendUnique(p.LessonsCompleted, lessonID)
}

func (p *CourseProgress) AddQuiz(quizID string) {
	p.QuizzesPassed = appendUnique(p.QuizzesPassed, quizID)
}

func (p *CourseProgress) AddProjects(urls []string) {
	for _, u := range urls {
		p.ProjectsSubmitted = appendUnique(p.ProjectsSubmitted, u)
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// ProgressMap 进度账本：小写课程键 -> 课程进度。唯一的规范存储形态
type ProgressMap map[string]*CourseProgress

// legacyProgressEntry 旧版数据把账本存成条目数组，读取时做一次性归一化
type legacyProgressEntry struct {
	CourseKey string `json:"courseKey"`
	CourseProgress
}

func (m *ProgressMap) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*m = nil
		return nil
	}

	var canonical map[string]*CourseProgress
	if err := json.Unmarshal(data, &canonical); err == nil {
		*m = normalizeProgress(canonical)
		return nil
	}

	var legacy []legacyProgressEntry
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("unsupported progress shape: %w", err)
	}
	converted := make(map[string]*CourseProgress, len(legacy))
	for i := range legacy {
		p := legacy[i].CourseProgress
		converted[legacy[i].CourseKey] = &p
	}
	*m = normalizeProgress(converted)
	return nil
}

func (m ProgressMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// normalizeProgress 合并大小写不同的课程键并去重集合成员
func normalizeProgress(in map[string]*CourseProgress) ProgressMap {
	if in == nil {
		return nil
	}
	out := make(ProgressMap, len(in))
	for key, p := range in {
		if p == nil {
			continue
		}
		lower := strings.ToLower(key)
		target, ok := out[lower]
		if !ok {
			target = &CourseProgress{}
			out[lower] = target
		}
		for _, l := range p.LessonsCompleted {
			target.AddLesson(l)
		}
		for _, q := range p.QuizzesPassed {
			target.AddQuiz(q)
		}
		target.AddProjects(p.ProjectsSubmitted)
		if p.CertificateIssued {
			target.CertificateIssued = true
		}
	}
	return out
}

// Answer 一次课程作业提交。每个 (account, lessonId) 至多一条
type Answer struct {
	LessonID        string         `json:"lessonId"`
	SubmittedAt     time.Time      `json:"submittedAt"`
	Score           float64        `json:"score"`
	TeacherFeedback string         `json:"teacherFeedback"`
	Answers         datatypes.JSON `json:"answers"`
	ProjectLinks    []string       `json:"projectLinks"`
}

type AnswerList []Answer

func (l *AnswerList) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

func (l AnswerList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Find 按 lessonId 查找提交
func (l AnswerList) Find(lessonID string) *Answer {
	for i := range l {
		if l[i].LessonID == lessonID {
			return &l[i]
		}
	}
	return nil
}

// TimeList 追加式时间戳序列（登录历史）
type TimeList []time.Time

func (l *TimeList) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

func (l TimeList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}

// swagger:model Account
type Account struct {
	BaseModel
	Username string `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password string `gorm:"size:100;not null" json:"-"`
	Role     Role   `gorm:"size:20;default:'user'" json:"role"`

	BirthDate   string      `gorm:"size:20" json:"birthDate"`
	City        string      `gorm:"size:100" json:"city"`
	Phone       string      `gorm:"size:30" json:"phone"`
	Course      string      `gorm:"size:100" json:"course"`
	ParentNames ParentNames `gorm:"embedded;embeddedPrefix:parent_" json:"parentNames"`
	AvatarURL   string      `gorm:"size:255" json:"avatarUrl"`

	// 安全状态。验证码和过期时间必须成对设置/清除
	PasswordLastChanged time.Time  `json:"passwordLastChanged"`
	LoginHistory        TimeList   `gorm:"type:json" json:"loginHistory"`
	TwoFactorEnabled    bool       `gorm:"default:false" json:"twoFactorEnabled"`
	TwoFactorCode       *string    `gorm:"size:10" json:"-"`
	TwoFactorExpiresAt  *time.Time `json:"-"`
	ResetCode           *string    `gorm:"size:10" json:"-"`
	ResetCodeExpiresAt  *time.Time `json:"-"`

	Progress ProgressMap `gorm:"type:json" json:"progress"`
	Answers  AnswerList  `gorm:"type:json" json:"answers"`

	RegistrationDate time.Time `json:"registrationDate"`

	// 乐观锁版本号，账号文档是原子更新单元
	Version int64 `gorm:"not null;default:0" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

// CourseKeyFromLesson 课程键从 lessonId 派生：第一个下划线前的部分，统一小写
func CourseKeyFromLesson(lessonID string) string {
	key := lessonID
	if i := strings.Index(lessonID, "_"); i >= 0 {
		key = lessonID[:i]
	}
	return strings.ToLower(key)
}

// ProgressFor 懒创建课程的进度条目
func (a *Account) ProgressFor(courseKey string) *CourseProgress {
	if a.Progress == nil {
		a.Progress = make(ProgressMap)
	}
	key := strings.ToLower(courseKey)
	p, ok := a.Progress[key]
	if !ok {
		p = &CourseProgress{}
		a.Progress[key] = p
	}
	return p
}
