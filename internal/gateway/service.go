package gateway

import (
	"context"
	"encoding/json"

	"github.com/nytron88/streamix-sub000/internal/auth"
	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/internal/hub"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
	"github.com/nytron88/streamix-sub000/pkg/pubsub"
)

// Service routes gateway connections onto fan-out topics. A room and its
// backing topic share a name, and the process holds exactly one topic
// subscription while at least one local connection is in the room.
type Service struct {
	hub *hub.Hub
	sub pubsub.Subscriber
}

func NewService(h *hub.Hub, sub pubsub.Subscriber) *Service {
	return &Service{
		hub: h,
		sub: sub,
	}
}

// HandleConnect authenticates and registers a fresh connection, placing it
// in its own user room and, for channel owners, the channel room.
func (s *Service) HandleConnect(ctx context.Context, c *hub.Client, token string) error {
	identity, err := auth.Decode(token)
	if err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "invalid or missing token"))
		return err
	}
	c.Identity = identity

	s.hub.Register(c)

	if err := s.join(ctx, c, pubsub.UserTopic(identity.UserID)); err != nil {
		s.HandleDisconnect(ctx, c)
		return err
	}
	if identity.ChannelID != "" {
		if err := s.join(ctx, c, pubsub.ChannelTopic(identity.ChannelID)); err != nil {
			s.HandleDisconnect(ctx, c)
			return err
		}
	}

	c.SendMessage(&domain.ConnectedMessage{
		Type:    domain.MsgTypeConnected,
		ConnID:  c.ID,
		UserID:  identity.UserID,
		Message: "connected",
	})

	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldConnID, c.ID).
		Str(pkglog.FieldUserID, identity.UserID).
		Msg("client connected")
	return nil
}

// HandleDisconnect removes the connection and tears down any topic
// subscriptions its departure emptied.
func (s *Service) HandleDisconnect(ctx context.Context, c *hub.Client) {
	emptied := s.hub.Unregister(c)
	for _, room := range emptied {
		if err := s.sub.Unsubscribe(ctx, room); err != nil {
			l := pkglog.L()
			l.Error().Err(err).Str(pkglog.FieldRoom, room).Msg("unsubscribe failed")
		}
	}
}

// HandleJoinUser admits the connection to a user room. Connections may
// only join their own.
func (s *Service) HandleJoinUser(ctx context.Context, c *hub.Client, userID string) {
	if userID == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "user_id is required"))
		return
	}
	if c.Identity == nil || c.Identity.UserID != userID {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "cannot join another user's room"))
		return
	}

	room := pubsub.UserTopic(userID)
	if err := s.join(ctx, c, room); err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "join failed"))
		return
	}
	c.SendMessage(&domain.JoinedMessage{Type: domain.MsgTypeJoined, Room: room})
}

// HandleLeaveUser removes the connection from a user room. The same
// ownership rule as joining applies.
func (s *Service) HandleLeaveUser(ctx context.Context, c *hub.Client, userID string) {
	if c.Identity == nil || c.Identity.UserID != userID {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, "cannot leave another user's room"))
		return
	}

	room := pubsub.UserTopic(userID)
	s.leave(ctx, c, room)
	c.SendMessage(&domain.LeftMessage{Type: domain.MsgTypeLeft, Room: room})
}

// HandleJoinChannel admits the connection to any channel room.
func (s *Service) HandleJoinChannel(ctx context.Context, c *hub.Client, channelID string) {
	if channelID == "" {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "channel_id is required"))
		return
	}

	room := pubsub.ChannelTopic(channelID)
	if err := s.join(ctx, c, room); err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "join failed"))
		return
	}
	c.SendMessage(&domain.JoinedMessage{Type: domain.MsgTypeJoined, Room: room})
}

// HandleLeaveChannel removes the connection from a channel room.
func (s *Service) HandleLeaveChannel(ctx context.Context, c *hub.Client, channelID string) {
	room := pubsub.ChannelTopic(channelID)
	s.leave(ctx, c, room)
	c.SendMessage(&domain.LeftMessage{Type: domain.MsgTypeLeft, Room: room})
}

// HandleJoinGlobal admits the connection to the firehose room.
func (s *Service) HandleJoinGlobal(ctx context.Context, c *hub.Client) {
	if err := s.join(ctx, c, pubsub.TopicGlobal); err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "join failed"))
		return
	}
	c.SendMessage(&domain.JoinedMessage{Type: domain.MsgTypeJoined, Room: pubsub.TopicGlobal})
}

// HandleLeaveGlobal removes the connection from the firehose room.
func (s *Service) HandleLeaveGlobal(ctx context.Context, c *hub.Client) {
	s.leave(ctx, c, pubsub.TopicGlobal)
	c.SendMessage(&domain.LeftMessage{Type: domain.MsgTypeLeft, Room: pubsub.TopicGlobal})
}

// Shutdown tears down every live subscription and closes all connections.
func (s *Service) Shutdown(ctx context.Context) {
	for _, room := range s.hub.Rooms() {
		if err := s.sub.Unsubscribe(ctx, room); err != nil {
			l := pkglog.L()
			l.Error().Err(err).Str(pkglog.FieldRoom, room).Msg("unsubscribe failed")
		}
	}
	s.hub.CloseAll()
}

// join places the connection in the room, opening the topic subscription
// when it is the room's first member. A failed subscribe rolls the join
// back so a later attempt retries it.
func (s *Service) join(ctx context.Context, c *hub.Client, room string) error {
	first := s.hub.Join(c, room)
	if !first {
		return nil
	}

	ch, err := s.sub.Subscribe(ctx, room)
	if err != nil {
		s.hub.Leave(c, room)
		return err
	}
	go s.relay(room, ch)
	return nil
}

// leave drops the connection from the room and closes the topic
// subscription once the room empties.
func (s *Service) leave(ctx context.Context, c *hub.Client, room string) {
	last := s.hub.Leave(c, room)
	if !last {
		return
	}
	if err := s.sub.Unsubscribe(ctx, room); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldRoom, room).Msg("unsubscribe failed")
	}
}

// relay forwards topic messages into the room until the subscription
// channel closes.
func (s *Service) relay(room string, ch <-chan *pubsub.Message) {
	for msg := range ch {
		out := &domain.NotificationMessage{
			Type:    msg.Type,
			Room:    room,
			Payload: msg.Payload,
		}
		data, err := json.Marshal(out)
		if err != nil {
			l := pkglog.L()
			l.Error().Err(err).Str(pkglog.FieldRoom, room).Msg("marshal relay message")
			continue
		}
		s.hub.Broadcast(room, data)
	}
}
