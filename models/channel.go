package models

// ChannelConfig is the static channel definition supplied at client startup.
// Members is informational only; the relay does not enforce it.
type ChannelConfig struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Members     []string `json:"members,omitempty"`
}

// DefaultChannels is the static channel configuration used when no custom
// set is supplied.
var DefaultChannels = []ChannelConfig{
	{
		ID:          "channel_leads",
		DisplayName: "New Leads",
		Members:     []string{"user_sales_sarah", "user_sales_john", "user_sales_emily", "agent-researcher"},
	},
	{
		ID:          "channel_followups",
		DisplayName: "Follow-Ups Due",
		Members:     []string{"user_sales_sarah", "user_sales_john", "user_sales_emily", "user_sales_michael"},
	},
	{
		ID:          "channel_proposals",
		DisplayName: "Active Proposals",
		Members:     []string{"user_sales_sarah", "user_sales_john", "user_sales_michael"},
	},
	{
		ID:          "channel_alerts",
		DisplayName: "Critical Alerts",
		Members:     []string{"user_sales_sarah", "user_sales_john", "user_sales_emily", "user_sales_michael", "agent-sdr"},
	},
}

// Channel is a named topic with an ordered message history and an unread
// counter. Channels are created at startup and never destroyed at runtime.
type Channel struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"displayName"`
	Members              []string `json:"members,omitempty"`
	LastPreviewText      string   `json:"lastPreviewText,omitempty"`
	LastMessageTimestamp int64    `json:"lastMessageTimestamp,omitempty"`
	UnreadCount          int      `json:"unreadCount"`
}
