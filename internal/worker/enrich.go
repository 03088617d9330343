package worker

import (
	"strings"
	"unicode/utf8"

	"github.com/nytron88/streamix-sub000/internal/directory"
	"github.com/nytron88/streamix-sub000/internal/domain"
)

// Upper bounds for enriched string fields. Upstream values beyond these
// are truncated so a malformed value cannot corrupt storage or overflow
// downstream consumers.
const (
	maxNameLen     = 100
	maxSlugLen     = 64
	maxTitleLen    = 120
	maxAvatarLen   = 255
	maxCurrencyLen = 8
	maxStatusLen   = 32
	maxActionLen   = 32
	maxMessageLen  = 500
)

const fallbackActorName = "Someone"

// truncate caps s at max bytes, backing off to a rune boundary so the
// result stays valid UTF-8.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// buildNotification merges the raw event with directory display metadata
// into the enriched payload. actor may be nil when the event carries no
// actor or the directory has no entry for it.
func buildNotification(rec *domain.EventRecord, ch *directory.Channel, actor *directory.User) *domain.Notification {
	payload := domain.NotificationPayload{
		EventID:      rec.ID,
		ChannelID:    rec.ChannelID,
		ChannelSlug:  truncate(ch.Slug, maxSlugLen),
		ChannelTitle: truncate(ch.Title, maxTitleLen),
	}

	if actor != nil {
		payload.ActorID = actor.ID
		payload.ActorName = truncate(actor.DisplayName, maxNameLen)
		if payload.ActorName == "" {
			payload.ActorName = truncate(actor.Username, maxNameLen)
		}
		payload.ActorAvatarURL = truncate(actor.AvatarURL, maxAvatarLen)
	} else {
		payload.ActorID = rec.ActorID()
	}
	if payload.ActorName == "" {
		payload.ActorName = fallbackActorName
	}

	switch rec.Kind {
	case domain.KindTip:
		payload.AmountCents = rec.Tip.AmountCents
		payload.Currency = truncate(strings.ToLower(rec.Tip.Currency), maxCurrencyLen)
		payload.Status = truncate(rec.Tip.Status, maxStatusLen)
		payload.TipMessage = truncate(rec.Tip.Message, maxMessageLen)
	case domain.KindFollow:
		payload.Action = truncate(rec.Follow.Action, maxActionLen)
	case domain.KindSubscription:
		payload.SubscriptionID = rec.Subscription.SubscriptionID
		payload.SubscriptionStatus = truncate(rec.Subscription.Status, maxStatusLen)
		payload.Action = truncate(rec.Subscription.Action, maxActionLen)
		if !rec.Subscription.PeriodEnd.IsZero() {
			end := rec.Subscription.PeriodEnd
			payload.PeriodEnd = &end
		}
	}

	return &domain.Notification{
		ID:          rec.ID,
		RecipientID: ch.OwnerID,
		Kind:        rec.Kind,
		Payload:     payload,
		CreatedAt:   rec.CreatedAt,
	}
}
