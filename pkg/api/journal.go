package api

import "time"

// Entry is the wire form of a journal entry. Field names follow the
// documents of the original Dreams collection.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Nickname    string    `json:"nickname"`
	Comments    []Comment `json:"comments"`
}

// Comment is the wire form of a comment nested under an entry.
type Comment struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	EntryID   string    `json:"entry_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Text      string    `json:"text"`
	Nickname  string    `json:"nickname"`
}

// CreateEntryRequest is the body of POST /api/v1/dreams
type CreateEntryRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Nickname    string `json:"nickname"`
}

// CreateCommentRequest is the body of POST /api/v1/dreams/{id}/comments
type CreateCommentRequest struct {
	Text     string `json:"text" validate:"required"`
	Nickname string `json:"nickname"`
}

// ListEntriesResponse is the body of GET /api/v1/dreams
type ListEntriesResponse struct {
	Entries []Entry `json:"entries"`
}
