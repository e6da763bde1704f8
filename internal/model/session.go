package model

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

type BallotChoice string

const (
	BallotSupport BallotChoice = "support"
	BallotOppose  BallotChoice = "oppose"
	BallotAbstain BallotChoice = "abstain"
)

func (b BallotChoice) Valid() bool {
	switch b {
	case BallotSupport, BallotOppose, BallotAbstain:
		return true
	}
	return false
}

const (
	DefaultVotingType       = "community"
	DefaultMinVotesRequired = 10
)

type VotingSession struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	ReportIDs        []string      `json:"reportIds"`
	VotingType       string        `json:"votingType"`
	StartDate        time.Time     `json:"startDate"`
	EndDate          time.Time     `json:"endDate"`
	MinVotesRequired int           `json:"minVotesRequired"`
	Status           SessionStatus `json:"status"`
	CreatedBy        string        `json:"createdBy"`
	CreatedAt        time.Time     `json:"createdAt"`
	TotalVotes       int           `json:"totalVotes"`
	SupportVotes     int           `json:"supportVotes"`
	OpposeVotes      int           `json:"opposeVotes"`
	AbstainVotes     int           `json:"abstainVotes"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	ClosedBy         string        `json:"closedBy,omitempty"`
	ClosedAt         *time.Time    `json:"closedAt,omitempty"`
	ClosureReason    string        `json:"closureReason,omitempty"`
}

// Open reports whether ballots may be cast at t.
func (s *VotingSession) Open(t time.Time) bool {
	return !t.Before(s.StartDate) && !t.After(s.EndDate)
}

func (s *VotingSession) HasReport(reportID string) bool {
	for _, id := range s.ReportIDs {
		if id == reportID {
			return true
		}
	}
	return false
}

type SessionVote struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	UserID    string       `json:"userId"`
	Vote      BallotChoice `json:"vote"`
	ReportID  string       `json:"reportId,omitempty"`
	VotedAt   time.Time    `json:"votedAt"`
}

// Request/Response DTOs
type CreateSessionRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ReportIDs        []string  `json:"reportIds"`
	StartDate        time.Time `json:"startDate"`
	EndDate          time.Time `json:"endDate"`
	VotingType       string    `json:"votingType"`
	MinVotesRequired *int      `json:"minVotesRequired"`
}

type SessionFilter struct {
	Status     SessionStatus
	VotingType string
	Page       int
	Limit      int
}

type SessionVoteRequest struct {
	SessionID string       `json:"sessionId"`
	Vote      BallotChoice `json:"vote"`
	ReportID  string       `json:"reportId"`
}

type SessionVoteResponse struct {
	Message       string        `json:"message"`
	SessionStatus SessionStatus `json:"sessionStatus"`
}

type CloseSessionRequest struct {
	Status SessionStatus `json:"status"`
	Reason string        `json:"reason"`
}

type SessionView struct {
	VotingSession
	Reports      []Report      `json:"reports"`
	UserHasVoted bool          `json:"userHasVoted"`
	UserVote     *BallotChoice `json:"userVote"`
}

type SessionListResponse struct {
	Sessions   []SessionView `json:"sessions"`
	Pagination Pagination    `json:"pagination"`
}

type VoteBreakdown struct {
	Total   int `json:"total,omitempty"`
	Support int `json:"support"`
	Oppose  int `json:"oppose"`
	Abstain int `json:"abstain"`
}

func (b *VoteBreakdown) Add(choice BallotChoice) {
	switch choice {
	case BallotSupport:
		b.Support++
	case BallotOppose:
		b.Oppose++
	case BallotAbstain:
		b.Abstain++
	}
}

type SessionResults struct {
	Session         VotingSession            `json:"session"`
	TotalVotes      int                      `json:"totalVotes"`
	VoteBreakdown   VoteBreakdown            `json:"voteBreakdown"`
	ReportBreakdown map[string]VoteBreakdown `json:"reportBreakdown"`
	Votes           []SessionVote            `json:"votes"`
}
