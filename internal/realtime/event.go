// Package realtime fans out identifier-only change notifications to everyone
// watching a discussed subject. It is never a source of truth: subscribers
// re-fetch from the store when they receive an event, and anyone offline at
// publish time simply misses it.
package realtime

import (
	"strconv"
	"strings"
)

const topicPrefix = "discussion:"

// Topic returns the pub/sub channel name for a subject.
func Topic(subjectID string) string {
	return topicPrefix + subjectID
}

// SubjectFromTopic is the inverse of Topic.
func SubjectFromTopic(topic string) (string, bool) {
	subjectID, ok := strings.CutPrefix(topic, topicPrefix)
	return subjectID, ok && subjectID != ""
}

type Kind string

const (
	KindCommentCreated   Kind = "comment-created"
	KindCommentUpdated   Kind = "comment-updated"
	KindReactionSet      Kind = "reaction-set"
	KindReactionRemoved  Kind = "reaction-removed"
	KindRatingCreated    Kind = "rating-created"
	KindRatingUpdated    Kind = "rating-updated"
	KindHighlightToggled Kind = "highlight-toggled"
)

// Tags attached to events. They let a subscriber skip a re-fetch it does not need.
const (
	TagReply   = "reply"
	TagDeleted = "deleted"
	TagEdited  = "edited"
)

// Event never carries comment bodies, only enough identifiers for a
// subscriber to decide whether to re-fetch.
type Event struct {
	Kind         Kind     `json:"kind"`
	SubjectID    string   `json:"subject_id"`
	CommentID    string   `json:"comment_id,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	ReactionType string   `json:"type,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

func commentID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func CommentCreated(subjectID string, id int64, isReply bool) Event {
	ev := Event{Kind: KindCommentCreated, SubjectID: subjectID, CommentID: commentID(id)}
	if isReply {
		ev.Tags = []string{TagReply}
	}
	return ev
}

func CommentEdited(subjectID string, id int64) Event {
	return Event{Kind: KindCommentUpdated, SubjectID: subjectID, CommentID: commentID(id), Tags: []string{TagEdited}}
}

func CommentDeleted(subjectID string, id int64) Event {
	return Event{Kind: KindCommentUpdated, SubjectID: subjectID, CommentID: commentID(id), Tags: []string{TagDeleted}}
}

func ReactionSet(subjectID string, id int64, userID, reactionType string) Event {
	return Event{Kind: KindReactionSet, SubjectID: subjectID, CommentID: commentID(id), UserID: userID, ReactionType: reactionType}
}

func ReactionRemoved(subjectID string, id int64, userID string) Event {
	return Event{Kind: KindReactionRemoved, SubjectID: subjectID, CommentID: commentID(id), UserID: userID}
}

func HighlightToggled(subjectID string, id int64) Event {
	return Event{Kind: KindHighlightToggled, SubjectID: subjectID, CommentID: commentID(id)}
}

// RatingChanged is published by the rating collaborator; created selects
// between rating-created and rating-updated.
func RatingChanged(subjectID, userID string, created bool) Event {
	kind := KindRatingUpdated
	if created {
		kind = KindRatingCreated
	}
	return Event{Kind: kind, SubjectID: subjectID, UserID: userID}
}
