package store

// ChannelType classifies a channel for notification composition.
type ChannelType string

const (
	// ChannelDirect is a two-person conversation ("anonymous" on the wire).
	ChannelDirect ChannelType = "direct"
	// ChannelBot is a chatbot channel.
	ChannelBot ChannelType = "bot"
	// ChannelGroup is any other channel. Unknown remote values also land
	// here rather than silently mismatching a string.
	ChannelGroup ChannelType = "group"
)

// ParseChannelType maps a remote channel type string onto the closed set.
func ParseChannelType(remote string) ChannelType {
	switch remote {
	case "anonymous", "direct":
		return ChannelDirect
	case "chatbot", "bot":
		return ChannelBot
	default:
		return ChannelGroup
	}
}

// Account is a monitored chat account together with its push target.
type Account struct {
	ID           int64
	Enabled      bool
	LoginName    string
	Secret       string
	SessionToken string
	PushURL      string
	PushToken    string
}

// HasPushConfig reports whether both push fields are present.
func (a *Account) HasPushConfig() bool {
	return a.PushURL != "" && a.PushToken != ""
}

// Channel is cached channel metadata discovered via the directory listing.
type Channel struct {
	ChannelID   int64
	Name        string
	Members     []int64
	MemberCount int
	Type        ChannelType
}

// DirectoryUser is a remote chat user, cached to resolve display names.
type DirectoryUser struct {
	UserID    int64
	Nickname  string
	LoginName string
	Type      string
}

// MessageRecord is one row of the dedup ledger.
type MessageRecord struct {
	ID        int64
	ChannelID int64
	MessageID string
	Content   string
	CreatorID int64
	CreatedAt int64
	Pushed    bool
	PushedAt  int64
}
