package dto

// TeacherCourseSummary aggregates a teacher's course for the dashboard.
type TeacherCourseSummary struct {
	Course        CourseResponse     `json:"course"`
	Materials     []MaterialResponse `json:"materials"`
	Feedback      []FeedbackResponse `json:"feedback"`
	AverageRating *float64           `json:"average_rating,omitempty"`
	ActiveCount   int                `json:"active_students"`
}

// StudentEnrollmentSummary is an enrollment shown on a student's dashboard.
type StudentEnrollmentSummary struct {
	Course     CourseResponse     `json:"course"`
	Enrollment EnrollmentResponse `json:"enrollment"`
}

// DashboardResponse is the per-role landing page payload.
type DashboardResponse struct {
	User                UserResponse               `json:"user"`
	Courses             []TeacherCourseSummary     `json:"courses,omitempty"`
	Enrollments         []StudentEnrollmentSummary `json:"enrollments,omitempty"`
	Notifications       NotificationCounts         `json:"notification_counts"`
	UnreadNotifications []NotificationResponse     `json:"unread_notifications"`
	ReadNotifications   []NotificationResponse     `json:"read_notifications"`
}
