package domain

import (
	"time"
)

// Period is a gains window granularity.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

func (p Period) String() string {
	return string(p)
}

type SkillStat struct {
	Name  string `json:"name"`
	Rank  int    `json:"rank"`
	Level int    `json:"level"`
	XP    int64  `json:"xp"`
}

type ActivityStat struct {
	Name  string `json:"name"`
	Rank  int    `json:"rank"`
	Score int    `json:"score"`
}

// Snapshot is one immutable point-in-time capture of a player's stats.
// Snapshots are append-only; nothing ever updates or deletes one.
type Snapshot struct {
	ID           string         `json:"-"`
	Username     string         `json:"-"`
	TakenAt      time.Time      `json:"timestamp"`
	OverallLevel int            `json:"overallLevel"`
	OverallXP    int64          `json:"overallXp"`
	Skills       []SkillStat    `json:"skills"`
	Activities   []ActivityStat `json:"activities"`
}

// Player holds the latest ingested stats for one player. Username is
// always the lowercased form; lookups normalize before querying.
type Player struct {
	Username     string         `json:"username"`
	OverallLevel int            `json:"overallLevel"`
	OverallXP    int64          `json:"overallXp"`
	Skills       []SkillStat    `json:"skills"`
	Activities   []ActivityStat `json:"activities"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type Group struct {
	ID        string    `json:"groupId"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type SkillGain struct {
	Name        string `json:"name"`
	XPGained    int64  `json:"xpGained"`
	LevelGained int    `json:"levelGained"`
}

type ActivityGain struct {
	Name   string `json:"name"`
	Gained int    `json:"gained"`
}

// GainRecord is the persisted delta between the earliest and latest
// snapshot inside one period window. Uniquely keyed by
// (Username, DateKey, Period); recomputation replaces the prior record.
type GainRecord struct {
	Username         string         `json:"username"`
	DateKey          string         `json:"date"` // period start, YYYY-MM-DD in UTC
	Period           Period         `json:"period"`
	OverallXPGained  int64          `json:"overallXpGained"`
	SkillsGained     []SkillGain    `json:"skillsGained"`
	ActivitiesGained []ActivityGain `json:"activitiesGained"`
	CreatedAt        time.Time      `json:"-"`
	UpdatedAt        time.Time      `json:"-"`
}
