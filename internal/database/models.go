package database

import (
	"time"
)

// messageRow is one stored chat message in the messages table. Timestamps
// are kept as Unix nanoseconds; the zone is re-attached on load.
type messageRow struct {
	ChatID    int64  `db:"chat_id"`
	MessageID int    `db:"message_id"`
	Sender    string `db:"sender"`
	Text      string `db:"text"`
	SentAt    int64  `db:"sent_at"`
}

func (r messageRow) timestamp(loc *time.Location) time.Time {
	return time.Unix(0, r.SentAt).In(loc)
}
