package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for row change notifications.
//
//	realtime:{table}:{rowKey}
const (
	ChannelRealtime = "realtime:%s:%s"
	PatternRealtime = "realtime:%s:*"
)

// Event types for row changes.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// RealtimeChannel returns the channel a row change of table is published on.
func RealtimeChannel(table, key string) string {
	return fmt.Sprintf(ChannelRealtime, table, key)
}

// RealtimePattern returns the pattern matching every change of table.
func RealtimePattern(table string) string {
	return fmt.Sprintf(PatternRealtime, table)
}

// ParseRealtimeChannel splits a realtime channel into table and key.
func ParseRealtimeChannel(channel string) (table, key string, err error) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 || parts[0] != "realtime" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[1], parts[2], nil
}
