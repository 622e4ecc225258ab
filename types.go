package blogapi

import "time"

// Post is a blog article. Tags are stored in the order they were given.
type Post struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Excerpt         string    `json:"excerpt"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	CommentsEnabled bool      `json:"commentsEnabled"`
	Published       bool      `json:"published"`
	CoverImage      string    `json:"coverImage,omitempty"`
	Views           int       `json:"views"`
	Comments        int       `json:"comments"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Comment is a reader comment on a post. It is hidden until approved.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is a newsletter subscription.
type Subscriber struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// Contact is a message sent through the contact form.
type Contact struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
	Read    bool      `json:"read"`
}

// Image is the metadata of an uploaded cover image.
type Image struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Stats is the dashboard summary returned by /api/stats.
type Stats struct {
	TotalPosts       int `json:"totalPosts"`
	TotalDrafts      int `json:"totalDrafts"`
	TotalViews       int `json:"totalViews"`
	TotalSubscribers int `json:"totalSubscribers"`
	TotalComments    int `json:"totalComments"`
}

// User describes the authenticated principal returned on login.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// PostList is the response body of the post listing endpoint.
type PostList struct {
	Posts       []Post `json:"posts"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalPosts  int    `json:"totalPosts"`
}
