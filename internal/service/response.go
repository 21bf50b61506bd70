package service

import (
	"net/http"

	"osrs-tracker/internal/domain"
)

// Result is the tagged outcome every public operation returns. Callers
// branch on Success rather than catching errors; Status is the HTTP
// code the transport layer should use and is never serialized.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"-"`
}

type PlayerResult struct {
	Result
	Player *domain.Player `json:"player,omitempty"`
}

type GroupIDResult struct {
	Result
	GroupID string `json:"groupId,omitempty"`
}

type GroupGainsResult struct {
	Result
	MembersProcessed int `json:"membersProcessed,omitempty"`
}

// Ranking is one row of a group leaderboard for a period.
type Ranking struct {
	Rank            int    `json:"rank"`
	Username        string `json:"username"`
	OverallXPGained int64  `json:"overallXpGained"`
}

type RankingsResult struct {
	Result
	Rankings []Ranking `json:"rankings,omitempty"`
}

func ok(message string) Result {
	return Result{Success: true, Message: message, Status: http.StatusOK}
}

func fail(status int, message string) Result {
	return Result{Success: false, Message: message, Status: status}
}

func failErr(status int, message string, err error) Result {
	return Result{Success: false, Message: message, Error: err.Error(), Status: status}
}
