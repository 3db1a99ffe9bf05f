package events

import (
	"strings"

	"github.com/google/uuid"
)

// Event types follow the format domain.action
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageDeleted = "message.deleted"
	EventTypeMessagesRead   = "messages.read"
	EventTypeMatchCreated   = "match.created"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeConversation = "conversation"
	AggregateTypeMatch        = "match"
)

// Realtime group prefixes. A connection joins conversation groups explicitly and its own user group on connect.
const (
	GroupPrefixConversation = "conversation:"
	GroupPrefixUser         = "user:"
)

// ChannelPrefix prefixes redis pub/sub channels that mirror a group.
const ChannelPrefix = "channel:"

// ChannelPatterns are the redis patterns a bridge subscribes to.
var ChannelPatterns = []string{
	ChannelPrefix + GroupPrefixConversation + "*",
	ChannelPrefix + GroupPrefixUser + "*",
}

func ConversationGroup(conversationID uuid.UUID) string {
	return GroupPrefixConversation + conversationID.String()
}

func UserGroup(userID uuid.UUID) string {
	return GroupPrefixUser + userID.String()
}

// ChannelForGroup is the redis channel that mirrors group.
func ChannelForGroup(group string) string {
	return ChannelPrefix + group
}

// GroupFromChannel maps a redis channel back to its local group name.
func GroupFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefix) {
		return "", false
	}
	group := strings.TrimPrefix(channel, ChannelPrefix)
	if strings.HasPrefix(group, GroupPrefixConversation) || strings.HasPrefix(group, GroupPrefixUser) {
		return group, true
	}
	return "", false
}
