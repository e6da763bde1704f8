package model

import (
	"time"
)

type ReportType string

const (
	ReportTypeUnusedSpace ReportType = "unused_space"
	ReportTypeTreeLoss    ReportType = "tree_loss"
	ReportTypeHeatHotspot ReportType = "heat_hotspot"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeUnusedSpace, ReportTypeTreeLoss, ReportTypeHeatHotspot:
		return true
	}
	return false
}

type ReportStatus string

const (
	StatusPendingAnalysis ReportStatus = "pending_analysis"
	StatusPendingReview   ReportStatus = "pending_review"
	StatusUnderReview     ReportStatus = "under_review"
	StatusApproved        ReportStatus = "approved"
	StatusRejected        ReportStatus = "rejected"
	StatusImplemented     ReportStatus = "implemented"
)

// Allowed forward edges of the lifecycle. Rejected is reachable from every
// non-terminal status and is not listed here.
var statusEdges = map[ReportStatus][]ReportStatus{
	StatusPendingAnalysis: {StatusPendingReview},
	StatusPendingReview:   {StatusUnderReview},
	StatusUnderReview:     {StatusApproved, StatusImplemented},
	StatusApproved:        {StatusImplemented},
	StatusRejected:        nil,
	StatusImplemented:     nil,
}

func (s ReportStatus) Valid() bool {
	_, ok := statusEdges[s]
	return ok
}

// Reviewable reports whether a human reviewer may set this status.
func (s ReportStatus) Reviewable() bool {
	switch s {
	case StatusUnderReview, StatusApproved, StatusRejected, StatusImplemented:
		return true
	}
	return false
}

func (s ReportStatus) Terminal() bool {
	return s == StatusRejected || s == StatusImplemented
}

// CanTransitionTo reports whether next is one step along the lifecycle.
// Rejection is allowed from any non-terminal status.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == StatusRejected {
		return true
	}
	for _, to := range statusEdges[s] {
		if to == next {
			return true
		}
	}
	return false
}

type VoteType string

const (
	VoteUpvote   VoteType = "upvote"
	VoteDownvote VoteType = "downvote"
)

func (v VoteType) Valid() bool {
	return v == VoteUpvote || v == VoteDownvote
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type ExpertReview struct {
	Note           string    `json:"note,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	ReviewedBy     string    `json:"reviewedBy"`
	ReviewedAt     time.Time `json:"reviewedAt"`
}

type Report struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	ReportType         ReportType    `json:"reportType"`
	OriginalReportType ReportType    `json:"originalReportType,omitempty"`
	Location           Location      `json:"location"`
	ImageURL           string        `json:"imageUrl"`
	AdditionalInfo     string        `json:"additionalInfo"`
	UserID             string        `json:"userId"`
	Status             ReportStatus  `json:"status"`
	Upvotes            int           `json:"upvotes"`
	Downvotes          int           `json:"downvotes"`
	AIAnalysis         *Analysis     `json:"aiAnalysis"`
	ExpertReview       *ExpertReview `json:"expertReview"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

type ReportVote struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"reportId"`
	UserID    string    `json:"userId"`
	VoteType  VoteType  `json:"voteType"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"reportId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Request/Response DTOs
type CreateReportRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Location       *Location  `json:"location"`
	ReportType     ReportType `json:"reportType"`
	ImageURL       string     `json:"imageUrl"`
	AdditionalInfo string     `json:"additionalInfo"`
}

type ReportFilter struct {
	Status     ReportStatus
	ReportType ReportType
	UserID     string
	Page       int
	Limit      int
}

type UpdateStatusRequest struct {
	Status       ReportStatus  `json:"status"`
	ExpertReview *ExpertReview `json:"expertReview"`
}

type VoteRequest struct {
	ReportID string   `json:"reportId"`
	VoteType VoteType `json:"voteType"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// Offset returns the zero-based index of the first item on a page.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

type ReportListResponse struct {
	Reports    []Report   `json:"reports"`
	Pagination Pagination `json:"pagination"`
}

type ReportDetail struct {
	Report
	Votes    []ReportVote `json:"votes"`
	Comments []Comment    `json:"comments"`
}
