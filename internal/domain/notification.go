package domain

import "time"

// NotificationPayload is the enriched view of an event: the raw body joined
// with display metadata resolved from the user/channel directory. It is the
// message body handed to both the durable log and the publisher.
type NotificationPayload struct {
	EventID      string `json:"event_id"`
	ChannelID    string `json:"channel_id"`
	ChannelSlug  string `json:"channel_slug,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`

	ActorID        string `json:"actor_id,omitempty"`
	ActorName      string `json:"actor_name,omitempty"`
	ActorAvatarURL string `json:"actor_avatar_url,omitempty"`

	// Tip fields
	AmountCents int64  `json:"amount_cents,omitempty"`
	Currency    string `json:"currency,omitempty"`
	TipMessage  string `json:"tip_message,omitempty"`

	// Follow / subscription fields
	Action             string     `json:"action,omitempty"`
	SubscriptionID     string     `json:"subscription_id,omitempty"`
	SubscriptionStatus string     `json:"subscription_status,omitempty"`
	PeriodEnd          *time.Time `json:"period_end,omitempty"`

	Status string `json:"status,omitempty"`
}

// Notification is one durable row per (recipient, event). ID equals the
// originating event id, which makes storage upsert-safe and gives
// consumers their dedup key. Immutable once written except bulk clear.
type Notification struct {
	ID          string              `json:"id"`
	RecipientID string              `json:"recipient_id"`
	Kind        EventKind           `json:"kind"`
	Payload     NotificationPayload `json:"payload"`
	CreatedAt   time.Time           `json:"created_at"`
}
