package models

import "time"

// Post is a single published or draft article.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorID    uint      `gorm:"index;not null;default:0" json:"author_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Slug        string    `gorm:"size:255;index" json:"slug"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Excerpt     string    `gorm:"size:512" json:"excerpt,omitempty"`
	Category    string    `gorm:"size:64;index;not null" json:"category"`
	Tags        []string  `gorm:"serializer:json;type:text" json:"tags"`
	IsPublished bool      `gorm:"index;not null" json:"is_published"`
	IsFeatured  bool      `gorm:"not null;default:false" json:"is_featured"`
	ReadingTime int       `gorm:"not null;default:0" json:"reading_time"`
	ViewsCount  int64     `gorm:"not null;default:0" json:"views_count"`
	LikesCount  int64     `gorm:"not null;default:0" json:"likes_count"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VisibleTo reports whether viewerID may see the post. Zero means anonymous.
func (p *Post) VisibleTo(viewerID uint) bool {
	return p.IsPublished || (viewerID != 0 && p.AuthorID == viewerID)
}

// PostCreateRequest is the payload accepted by POST /api/newsposts.
type PostCreateRequest struct {
	Title       string   `json:"title" validate:"required,max=100"`
	Content     string   `json:"content" validate:"required,max=10000"`
	Excerpt     string   `json:"excerpt,omitempty" validate:"max=300"`
	Category    string   `json:"category" validate:"required,category"`
	Tags        []string `json:"tags,omitempty" validate:"max=10,dive,min=1,max=30"`
	IsPublished *bool    `json:"is_published,omitempty"`
	IsFeatured  *bool    `json:"is_featured,omitempty"`
}

// PostUpdateRequest is a partial update. Nil fields are left untouched;
// this struct is the allow-list of mutable fields.
type PostUpdateRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Content     *string   `json:"content,omitempty" validate:"omitempty,min=1,max=10000"`
	Excerpt     *string   `json:"excerpt,omitempty" validate:"omitempty,max=300"`
	Category    *string   `json:"category,omitempty" validate:"omitempty,category"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=30"`
	IsPublished *bool     `json:"is_published,omitempty"`
	IsFeatured  *bool     `json:"is_featured,omitempty"`
}

// IsEmpty reports whether no field was supplied.
func (r *PostUpdateRequest) IsEmpty() bool {
	return r.Title == nil && r.Content == nil && r.Excerpt == nil && r.Category == nil &&
		r.Tags == nil && r.IsPublished == nil && r.IsFeatured == nil
}

// PostListQuery selects one page of posts visible to ViewerID.
type PostListQuery struct {
	Category string
	ViewerID uint
	Page     int
	Size     int
}

// PostPage is the paginated list envelope.
type PostPage struct {
	Data       []Post     `json:"data"`
	Pagination Pagination `json:"pagination"`
}
