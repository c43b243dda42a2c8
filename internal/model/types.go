package model

// Target names the placement a score belongs to: either an inline message or a chat message.
type Target struct {
	InlineMessageID string `json:"inline_message_id,omitempty"`
	ChatID          int64  `json:"chat_id,omitempty"`
	MessageID       int    `json:"message_id,omitempty"`
}

func (t Target) IsInline() bool { return t.InlineMessageID != "" }

// Valid reports whether exactly one of the two placement forms is present.
func (t Target) Valid() bool {
	hasChat := t.ChatID != 0 && t.MessageID != 0
	if t.IsInline() {
		return t.ChatID == 0 && t.MessageID == 0
	}
	return hasChat
}

type Session struct {
	ID              int64   `json:"id"`
	Game            string  `json:"game"`
	InlineMessageID *string `json:"inline_message_id,omitempty"`
	ChatID          *int64  `json:"chat_id,omitempty"`
	MessageID       *int    `json:"message_id,omitempty"`
	Count           int64   `json:"count"`
}

func (s Session) Target() Target {
	var t Target
	if s.InlineMessageID != nil {
		t.InlineMessageID = *s.InlineMessageID
	}
	if s.ChatID != nil {
		t.ChatID = *s.ChatID
	}
	if s.MessageID != nil {
		t.MessageID = *s.MessageID
	}
	return t
}

type LedgerEntry struct {
	ID        int64 `json:"id"`
	SessionID int64 `json:"session_id"`
	Time      int64 `json:"time"`
	UserID    int64 `json:"user_id"`
	Score     int64 `json:"score"`
}

type BlockEntry struct {
	UserID int64  `json:"user_id"`
	Desc   string `json:"desc"`
}

type CachedUser struct {
	ID           int64   `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     *string `json:"last_name,omitempty"`
	Username     *string `json:"username,omitempty"`
	LanguageCode *string `json:"language_code,omitempty"`
}

// LogFilter is the admin audit filter bag. A nil field is absent; a non-nil zero value is a
// real filter.
type LogFilter struct {
	Page      int
	SessionID *int64
	UserID    *int64
	MinTime   *int64
	MaxTime   *int64
	MinScore  *int64
	MaxScore  *int64
}

// LogRow is a ledger entry joined with the placement of its session.
type LogRow struct {
	Game            string  `json:"game"`
	InlineMessageID *string `json:"inline_message_id,omitempty"`
	ChatID          *int64  `json:"chat_id,omitempty"`
	MessageID       *int    `json:"message_id,omitempty"`
	SessionID       int64   `json:"session_id"`
	Time            int64   `json:"time"`
	UserID          int64   `json:"user_id"`
	Score           int64   `json:"score"`
}

type HighScore struct {
	Position int        `json:"position"`
	User     CachedUser `json:"user"`
	Score    int64      `json:"score"`
}

// ProfilePhotos lists a user's profile pictures, each in several sizes.
type ProfilePhotos struct {
	TotalCount int       `json:"total_count"`
	Photos     [][]Photo `json:"photos"`
}

type Photo struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int    `json:"file_size,omitempty"`
}
