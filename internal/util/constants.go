package util

// TotalLessons 平台固定的课程总课时数，仅用于计算完成率
const TotalLessons = 50

// DefaultCourseKey 账号未选课程或课程无对应进度时回退的课程键
const DefaultCourseKey = "web"

// ApprovedFeedback 教师批准答案时写入的反馈值
const ApprovedFeedback = "approved"
