package blog

import (
	"strings"
	"time"
)

// Author is the public identity of a user as seen by the blog.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// DisplayName prefers the full name and falls back to the username.
func (a Author) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.Username
}

type Group struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Post struct {
	ID        int64     `json:"id"`
	Author    Author    `json:"author"`
	Group     *Group    `json:"group,omitempty"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PostInput is the author-editable part of a post. GroupID is the raw form
// value; empty means no group.
type PostInput struct {
	Text    string
	GroupID string
	Image   string
}

// Excerpt returns the first n characters of text, for page titles.
func Excerpt(text string, n int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
