package syno

// Channel is one entry of the SYNO.Chat.Channel listing. Unread is only
// populated when the listing is requested with the "unread" additional.
type Channel struct {
	ChannelID        int64   `json:"channel_id"`
	Name             string  `json:"name"`
	Members          []int64 `json:"members"`
	TotalMemberCount int     `json:"total_member_count"`
	Type             string  `json:"type"`
	Unread           int     `json:"unread"`
}

// Post is one entry of the SYNO.Chat.Post listing, newest-first.
type Post struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	CreatorID int64  `json:"creator_id"`
	CreateAt  int64  `json:"create_at"` // unix milliseconds
}

// User is one entry of the SYNO.Chat.User listing.
type User struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Username string `json:"username"`
	Type     string `json:"type"`
}
