package models

import (
	"time"
)

// RecentWindow is how long after publication a question counts as recent.
const RecentWindow = 24 * time.Hour

// Question is a poll prompt that becomes visible once PubDate has passed.
type Question struct {
	ID      int64     `json:"id"`
	Text    string    `json:"question_text"`
	PubDate time.Time `json:"pub_date"`
	Choices []Choice  `json:"choices,omitempty"`
}

// WasPublishedRecently reports whether the question was published within
// RecentWindow before now. Questions dated in the future are never recent.
func (q *Question) WasPublishedRecently(now time.Time) bool {
	return q.PubDate.After(now.Add(-RecentWindow)) && !q.PubDate.After(now)
}

// IsPublished reports whether the question is visible at now.
func (q *Question) IsPublished(now time.Time) bool {
	return !q.PubDate.After(now)
}

// TotalVotes sums the votes over all loaded choices.
func (q *Question) TotalVotes() int64 {
	var total int64
	for _, c := range q.Choices {
		total += c.Votes
	}
	return total
}
