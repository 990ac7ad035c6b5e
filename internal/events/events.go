// Package events defines the topics emitted when scheduling state changes
// and the publishers that carry them to NATS.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/rnwolf/dbr/internal/model"
)

// Event topics. The stored and streamed topic is the constant itself; on NATS
// the organization id is spliced in after the "dbr" root (see Subject).
const (
	TopicOrganizationCreated = "dbr.organization.created"
	TopicCCRCreated          = "dbr.ccr.created"
	TopicBoardCreated        = "dbr.board.created"

	TopicWorkItemCreated = "dbr.work_item.created"
	TopicWorkItemUpdated = "dbr.work_item.updated"

	TopicDependencyAdded   = "dbr.dependency.added"
	TopicDependencyRemoved = "dbr.dependency.removed"

	TopicScheduleCreated      = "dbr.schedule.created"
	TopicScheduleTransitioned = "dbr.schedule.transitioned"
	TopicTimeAdvanced         = "dbr.time.advanced"
)

const root = "dbr"

// Subject returns the NATS subject for a topic within an organization:
// "dbr.schedule.created" in org-1 becomes "dbr.org-1.schedule.created".
func Subject(orgID, topic string) string {
	rest := strings.TrimPrefix(topic, root+".")
	if orgID == "" {
		return root + "._." + rest
	}
	return root + "." + orgID + "." + rest
}

// OrganizationSubjects is the wildcard matching every subject of one organization.
func OrganizationSubjects(orgID string) string {
	return root + "." + orgID + ".>"
}

// AllSubjects matches every event of every organization.
const AllSubjects = root + ".>"

// MatchTopic reports whether a dot-separated topic matches a NATS-style
// pattern: "*" matches one segment, a trailing ">" one or more.
func MatchTopic(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" && i == len(pat)-1 {
			return len(top) > i
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// Payloads

type OrganizationCreated struct {
	Organization *model.Organization `json:"organization"`
}

type CCRCreated struct {
	CCR *model.CCR `json:"ccr"`
}

type BoardCreated struct {
	Board *model.BoardConfig `json:"board"`
}

type WorkItemCreated struct {
	WorkItem *model.WorkItem `json:"work_item"`
}

type WorkItemUpdated struct {
	WorkItem *model.WorkItem `json:"work_item"`
	Changes  map[string]any  `json:"changes"` // field name -> new value
}

type DependencyAdded struct {
	Dependency *model.WorkItemDependency `json:"dependency"`
}

type DependencyRemoved struct {
	Dependency *model.WorkItemDependency `json:"dependency"`
}

type ScheduleCreated struct {
	Schedule *model.Schedule `json:"schedule"`
}

type ScheduleTransitioned struct {
	ScheduleID string               `json:"schedule_id"`
	From       model.ScheduleStatus `json:"from"`
	To         model.ScheduleStatus `json:"to"`
	Position   int                  `json:"position"`
}

type TimeAdvanced struct {
	AdvancedCount     int       `json:"advanced_count"`
	CompletedCount    int       `json:"completed_count"`
	RemainingCount    int       `json:"remaining_count"`
	PromotedWorkItems []string  `json:"promoted_work_items,omitempty"`
	Now               time.Time `json:"now"`
}

// Publisher emits recorded events to the bus.
type Publisher interface {
	Publish(ctx context.Context, ev *model.Event) error
	Close() error
}

// Subscriber receives events from the bus.
type Subscriber interface {
	// Subscribe delivers decoded events for a subject pattern on the
	// returned channel. Call the returned cancel function to unsubscribe
	// and close the channel.
	Subscribe(pattern string) (<-chan *model.Event, func(), error)
	Close() error
}

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *model.Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
