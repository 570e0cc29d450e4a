package models

import "time"

// Entry is one dream journal document. ID and CreatedAt are assigned by the
// store, never by the client.
type Entry struct {
	CreatedAt   time.Time `json:"timestamp"`
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Nickname    string    `json:"nickname"`
	Comments    []Comment `json:"comments"`
}

// Comment lives under exactly one Entry.
type Comment struct {
	CreatedAt time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	EntryID   string    `json:"entry_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Text      string    `json:"text"`
	Nickname  string    `json:"nickname"`
}

// NewEntry carries the client-supplied fields of an entry being created.
type NewEntry struct {
	Title       string
	Description string
	Nickname    string
}

// NewComment carries the client-supplied fields of a comment being created.
type NewComment struct {
	Text     string
	Nickname string
}

// Clone returns a deep copy of the entry, comments included.
func (e *Entry) Clone() Entry {
	c := *e
	if e.Comments != nil {
		c.Comments = make([]Comment, len(e.Comments))
		copy(c.Comments, e.Comments)
	}
	return c
}

// CommentIndex returns the position of the comment with the given id or -1.
func (e *Entry) CommentIndex(commentID string) int {
	for i := range e.Comments {
		if e.Comments[i].ID == commentID {
			return i
		}
	}
	return -1
}
