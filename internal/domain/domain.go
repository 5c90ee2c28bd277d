// Package domain defines the records exchanged over the /api/v1 JSON API.
// The server store produces them and the remote client consumes them, so
// the JSON field names are part of the wire contract.
package domain

import (
	"encoding/json"
	"time"

	"github.com/basket/go-craft/internal/progression"
)

type ActionStatus string

const (
	StatusNotStarted ActionStatus = "未着手"
	StatusInProgress ActionStatus = "進行中"
	StatusDone       ActionStatus = "完了"
	StatusWithdrawn  ActionStatus = "取下げ"
)

func (s ActionStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusDone, StatusWithdrawn:
		return true
	}
	return false
}

type ActionType string

const (
	ActionTask  ActionType = "タスク"
	ActionQuest ActionType = "クエスト"
)

func (t ActionType) Valid() bool { return t == ActionTask || t == ActionQuest }

const (
	QuestOneTime   = "one_time"
	QuestRecurring = "recurring"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// User is the full user record.
type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	Name             *string   `json:"name"`
	Timezone         string    `json:"timezone"`
	Level            int       `json:"level"`
	ExperiencePoints int       `json:"experience_points"`
	XPToNextLevel    int       `json:"xp_to_next_level"`
	XPPercentage     int       `json:"xp_percentage"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (u User) Progression() progression.Progression {
	return progression.Progression{Level: u.Level, XP: u.ExperiencePoints}
}

// Summary is the short form returned with completions and awards.
func (u User) Summary() UserSummary {
	return NewSummary(u.ID, u.Progression())
}

// UserSummary carries a user's id and progression with derived gauges.
type UserSummary struct {
	ID               int64 `json:"id"`
	Level            int   `json:"level"`
	ExperiencePoints int   `json:"experience_points"`
	XPToNextLevel    int   `json:"xp_to_next_level"`
	XPPercentage     int   `json:"xp_percentage"`
}

func NewSummary(userID int64, p progression.Progression) UserSummary {
	return UserSummary{
		ID:               userID,
		Level:            p.Level,
		ExperiencePoints: p.XP,
		XPToNextLevel:    p.ToNextLevel(),
		XPPercentage:     p.Percentage(),
	}
}

func (s UserSummary) Progression() progression.Progression {
	return progression.Progression{Level: s.Level, XP: s.ExperiencePoints}
}

// Tag is a master, role category or similar reference attached to a work item.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PersonTag struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Role *string `json:"role"`
}

type WorkItem struct {
	ID               int64       `json:"id"`
	UserID           int64       `json:"user_id"`
	Name             string      `json:"name"`
	EnergyPercentage float64     `json:"energy_percentage"`
	Reframe          *string     `json:"reframe"`
	Motivations      []Tag       `json:"motivations"`
	Preferences      []Tag       `json:"preferences"`
	People           []PersonTag `json:"people"`
	RoleCategories   []Tag       `json:"role_categories"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type Action struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	DueDate     *string      `json:"due_date"`
	PeriodType  *string      `json:"period_type"`
	Status      ActionStatus `json:"status"`
	ActionType  ActionType   `json:"action_type"`
	XPPoints    int          `json:"xp_points"`
	Difficulty  *string      `json:"difficulty"`
	QuestType   *string      `json:"quest_type"`
	WorkItemID  *int64       `json:"work_item_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (a Action) IsQuest() bool { return a.ActionType == ActionQuest }

// OneTime reports whether completing the action removes it.
func (a Action) OneTime() bool {
	return a.IsQuest() && a.QuestType != nil && *a.QuestType == QuestOneTime
}

func (a Action) Recurring() bool {
	return a.IsQuest() && a.QuestType != nil && *a.QuestType == QuestRecurring
}

type ActionPlan struct {
	ID                    int64     `json:"id"`
	UserID                int64     `json:"user_id"`
	NextActions           *string   `json:"next_actions"`
	Collaborators         *string   `json:"collaborators"`
	ObstaclesAndSolutions *string   `json:"obstacles_and_solutions"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type Reflection struct {
	ID                     int64     `json:"id"`
	UserID                 int64     `json:"user_id"`
	Question1Change        string    `json:"question1_change"`
	Question2EmotionReason string    `json:"question2_emotion_reason"`
	Question3Surprise      string    `json:"question3_surprise"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Master is a motivation or preference master row. Rows without a user are
// shared by everyone.
type Master struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Person struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Role      *string   `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RoleCategory struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UserSettings struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	WeekStartDay  string    `json:"week_start_day"`
	MonthStartDay int       `json:"month_start_day"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot is the server side of the dashboard.
type Snapshot struct {
	User       User        `json:"user"`
	WorkItems  []WorkItem  `json:"work_items"`
	Actions    []Action    `json:"actions"`
	ActionPlan *ActionPlan `json:"action_plan"`
}

type CompletionKind int

const (
	// Retained means the action still exists after completion.
	Retained CompletionKind = iota
	// Removed means a one-time quest was deleted by its completion.
	Removed
)

func (k CompletionKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "retained"
}

const (
	MessageCompleted        = "Quest completed"
	MessageCompletedRemoved = "Quest completed and removed"
)

// Completion is the result of completing an action. Action is nil when Kind
// is Removed.
type Completion struct {
	Kind     CompletionKind `json:"-"`
	Message  string         `json:"message"`
	Action   *Action        `json:"action,omitempty"`
	XPGained int            `json:"xp_gained"`
	User     UserSummary    `json:"user"`
}

func (c *Completion) UnmarshalJSON(data []byte) error {
	type wire Completion
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Completion(w)
	c.Kind = Retained
	if c.Action == nil {
		c.Kind = Removed
	}
	return nil
}

// Event is published on the bus and streamed to websocket clients.
type Event struct {
	Topic            string `json:"topic"`
	UserID           int64  `json:"user_id"`
	ActionID         int64  `json:"action_id,omitempty"`
	XPGained         int    `json:"xp_gained,omitempty"`
	Level            int    `json:"level"`
	ExperiencePoints int    `json:"experience_points"`
	LevelsGained     int    `json:"levels_gained,omitempty"`

	// Count and PeriodType describe a recurring reset.
	Count      int    `json:"count,omitempty"`
	PeriodType string `json:"period_type,omitempty"`
}
