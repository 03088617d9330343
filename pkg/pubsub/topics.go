package pubsub

import "fmt"

// Topic naming conventions for the notification fan-out. A gateway room
// maps 1:1 onto the topic with the same name.
const (
	topicUserFmt    = "user:%s"
	topicChannelFmt = "channel:%s"

	// TopicGlobal carries every notification.
	TopicGlobal = "global"

	// TopicViewerDeltas carries viewer-count increments for the
	// viewer-count sub-pipeline.
	TopicViewerDeltas = "viewers:deltas"
)

// Message types.
const (
	TypeNotification = "notification"
	TypeViewerDelta  = "viewer_delta"
	TypeViewerCount  = "viewer_count"
)

// UserTopic returns the recipient-specific topic for a user.
func UserTopic(userID string) string {
	return fmt.Sprintf(topicUserFmt, userID)
}

// ChannelTopic returns the channel-specific topic.
func ChannelTopic(channelID string) string {
	return fmt.Sprintf(topicChannelFmt, channelID)
}

// ViewerDelta is the payload of a viewer-count increment message.
type ViewerDelta struct {
	ContentID string `json:"content_id"`
	Delta     int64  `json:"delta"`
}

// ViewerCount is the payload broadcast when a content's live count changes.
type ViewerCount struct {
	ContentID string `json:"content_id"`
	Count     int64  `json:"count"`
}
