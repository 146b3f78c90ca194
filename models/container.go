package models

import "time"

// ContainerKind distinguishes channels from threads.
type ContainerKind string

const (
	KindChannel ContainerKind = "channel"
	KindThread  ContainerKind = "thread"
)

// Container is a text-capable channel or thread that holds messages.
type Container struct {
	ID       string
	Name     string
	Kind     ContainerKind
	ParentID string // threads only
	Archived bool   // threads only
}

// IsThread reports whether the container is a thread.
func (c Container) IsThread() bool {
	return c.Kind == KindThread
}

// MessageRef is the only part of a message kept in memory: enough to delete it.
type MessageRef struct {
	ID        string
	Timestamp time.Time
}

// Buckets holds one container's messages split by bulk eligibility.
type Buckets struct {
	Recent []MessageRef
	Old    []MessageRef
}

// Total returns the number of messages in both buckets.
func (b Buckets) Total() int {
	return len(b.Recent) + len(b.Old)
}

// GuildTree is the result of enumerating a guild.
type GuildTree struct {
	GuildID   string
	GuildName string
	Channels  []Container
	Threads   []Container
}

// Empty reports whether there is nothing to wipe.
func (g GuildTree) Empty() bool {
	return len(g.Channels) == 0 && len(g.Threads) == 0
}
