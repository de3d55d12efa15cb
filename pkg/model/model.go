// Package model defines the ConnectHub domain entities exchanged between the
// store adapters and the orchestration layer. Entities are owned by their
// backing stores; these are the in-process projections.
package model

import (
	"time"
)

// Visibility controls who can see a post.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

// Valid reports whether v is a known visibility value.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

// UserProfile is the caller-supplied input for creating a user.
type UserProfile struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
}

// User is a user record as stored in the relational store.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostInput is the caller-supplied input for creating a post.
type PostInput struct {
	AuthorID   string     `json:"author_id"`
	Content    string     `json:"content"`
	MediaKeys  []string   `json:"media_keys,omitempty"`
	Visibility Visibility `json:"visibility"`
}

// Post is a post record as stored in the relational store.
type Post struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"author_id"`
	Content    string     `json:"content"`
	MediaKeys  []string   `json:"media_keys,omitempty"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Follow is a follow edge in the relational store. The relational edge is
// authoritative; the graph store mirrors it best-effort.
type Follow struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostAnalytics is the per-post counter document in the document store.
type PostAnalytics struct {
	PostID   string `bson:"_id" json:"post_id"`
	Views    int64  `bson:"views" json:"views"`
	Likes    int64  `bson:"likes" json:"likes"`
	Comments int64  `bson:"comments" json:"comments"`
	Shares   int64  `bson:"shares" json:"shares"`
}

// MediaMetadata describes an uploaded blob in the document store.
type MediaMetadata struct {
	ID          string            `bson:"_id" json:"id"`
	UserID      string            `bson:"user_id" json:"user_id"`
	Key         string            `bson:"key" json:"key"`
	URL         string            `bson:"url" json:"url"`
	Name        string            `bson:"name" json:"name"`
	MimeType    string            `bson:"mime_type" json:"mime_type"`
	SizeBytes   int64             `bson:"size_bytes" json:"size_bytes"`
	DerivedKeys map[string]string `bson:"derived_keys,omitempty" json:"derived_keys,omitempty"`
	CreatedAt   time.Time         `bson:"created_at" json:"created_at"`
}

// BlobResult is the outcome of a blob upload.
type BlobResult struct {
	Key           string            `json:"key"`
	URL           string            `json:"url"`
	DerivedAssets map[string]string `json:"derived_assets,omitempty"`
}

// MediaUpload is the merged result of the media upload flow: blob locations
// plus the document-store metadata id (empty when the metadata write was
// skipped or failed).
type MediaUpload struct {
	Key           string            `json:"key"`
	URL           string            `json:"url"`
	DerivedAssets map[string]string `json:"derived_assets,omitempty"`
	MetadataID    string            `json:"metadata_id,omitempty"`
}

// FeedItem is a post enriched with its best-effort analytics document.
// Analytics is nil when the document store had no record or was unreachable.
type FeedItem struct {
	Post      Post           `json:"post"`
	Analytics *PostAnalytics `json:"analytics,omitempty"`
}

// FeedPage is one page of a user's feed.
type FeedPage struct {
	Items    []FeedItem `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// Recommendation is a suggested user to follow, ranked by the graph store.
type Recommendation struct {
	User            User  `json:"user"`
	MutualFollowers int64 `json:"mutual_followers"`
}
