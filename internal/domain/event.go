package domain

import (
	"errors"
	"fmt"
	"time"
)

// EventKind identifies the domain event family a record belongs to.
type EventKind string

const (
	KindTip          EventKind = "TIP"
	KindFollow       EventKind = "FOLLOW"
	KindSubscription EventKind = "SUBSCRIPTION"
)

// Kinds lists every supported event kind.
var Kinds = []EventKind{KindTip, KindFollow, KindSubscription}

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case KindTip, KindFollow, KindSubscription:
		return true
	}
	return false
}

var (
	ErrMissingID        = errors.New("event id is required")
	ErrMissingChannelID = errors.New("event channel id is required")
	ErrUnknownKind      = errors.New("unknown event kind")
	ErrMissingBody      = errors.New("event body does not match its kind")
)

// TipBody is the kind-specific payload of a TIP event.
type TipBody struct {
	TipperID    string `json:"tipper_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// FollowBody is the kind-specific payload of a FOLLOW event.
type FollowBody struct {
	FollowerID string `json:"follower_id"`
	Action     string `json:"action"` // "FOLLOWED", "UNFOLLOWED"
}

// SubscriptionBody is the kind-specific payload of a SUBSCRIPTION event.
type SubscriptionBody struct {
	SubscriberID   string    `json:"subscriber_id,omitempty"`
	SubscriptionID string    `json:"subscription_id"`
	Status         string    `json:"status"`
	Action         string    `json:"action"` // "CREATED", "RENEWED", "CANCELED"
	PeriodEnd      time.Time `json:"period_end,omitempty"`
}

// EventRecord is the raw, immutable fact written by the producer. Exactly
// one of the kind-specific bodies is set, matching Kind. Records live in
// the event store under a bounded TTL and are never mutated in place.
type EventRecord struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`

	Tip          *TipBody          `json:"tip,omitempty"`
	Follow       *FollowBody       `json:"follow,omitempty"`
	Subscription *SubscriptionBody `json:"subscription,omitempty"`
}

// Validate checks the record structurally against its declared kind's
// required fields. The switch is exhaustive over all kinds; an unknown
// kind is an explicit error, never a silent drop.
func (e *EventRecord) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.ChannelID == "" {
		return ErrMissingChannelID
	}

	switch e.Kind {
	case KindTip:
		if e.Tip == nil {
			return ErrMissingBody
		}
		if e.Tip.AmountCents <= 0 {
			return errors.New("tip amount_cents must be positive")
		}
		if e.Tip.Currency == "" {
			return errors.New("tip currency is required")
		}
		if e.Tip.Status == "" {
			return errors.New("tip status is required")
		}
	case KindFollow:
		if e.Follow == nil {
			return ErrMissingBody
		}
		if e.Follow.FollowerID == "" {
			return errors.New("follow follower_id is required")
		}
		if e.Follow.Action == "" {
			return errors.New("follow action is required")
		}
	case KindSubscription:
		if e.Subscription == nil {
			return ErrMissingBody
		}
		if e.Subscription.SubscriptionID == "" {
			return errors.New("subscription subscription_id is required")
		}
		if e.Subscription.Status == "" {
			return errors.New("subscription status is required")
		}
		if e.Subscription.Action == "" {
			return errors.New("subscription action is required")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}

	return nil
}

// ActorID returns the user who triggered the event, if the kind carries one.
func (e *EventRecord) ActorID() string {
	switch e.Kind {
	case KindTip:
		if e.Tip != nil {
			return e.Tip.TipperID
		}
	case KindFollow:
		if e.Follow != nil {
			return e.Follow.FollowerID
		}
	case KindSubscription:
		if e.Subscription != nil {
			return e.Subscription.SubscriberID
		}
	}
	return ""
}
