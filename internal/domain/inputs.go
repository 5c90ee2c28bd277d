package domain

// Input types carry create and update requests. A nil field is left
// unchanged on update.

type UserInput struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

type WorkItemInput struct {
	UserID           int64    `json:"user_id,omitempty"`
	Name             *string  `json:"name,omitempty"`
	EnergyPercentage *float64 `json:"energy_percentage,omitempty"`
	Reframe          *string  `json:"reframe,omitempty"`
}

type ActionInput struct {
	UserID      int64         `json:"user_id,omitempty"`
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	DueDate     *string       `json:"due_date,omitempty"`
	PeriodType  *string       `json:"period_type,omitempty"`
	Status      *ActionStatus `json:"status,omitempty"`
	ActionType  *ActionType   `json:"action_type,omitempty"`
	XPPoints    *int          `json:"xp_points,omitempty"`
	Difficulty  *string       `json:"difficulty,omitempty"`
	QuestType   *string       `json:"quest_type,omitempty"`
	WorkItemID  *int64        `json:"work_item_id,omitempty"`
}

type ActionPlanInput struct {
	UserID                int64   `json:"user_id,omitempty"`
	NextActions           *string `json:"next_actions,omitempty"`
	Collaborators         *string `json:"collaborators,omitempty"`
	ObstaclesAndSolutions *string `json:"obstacles_and_solutions,omitempty"`
}

type ReflectionInput struct {
	UserID                 int64   `json:"user_id,omitempty"`
	Question1Change        *string `json:"question1_change,omitempty"`
	Question2EmotionReason *string `json:"question2_emotion_reason,omitempty"`
	Question3Surprise      *string `json:"question3_surprise,omitempty"`
}

// NamedInput serves masters, role categories and people. Role is only
// meaningful for people.
type NamedInput struct {
	UserID      int64   `json:"user_id,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Role        *string `json:"role,omitempty"`
}

type SettingsInput struct {
	WeekStartDay  *string `json:"week_start_day,omitempty"`
	MonthStartDay *int    `json:"month_start_day,omitempty"`
}

// TagKind names a work item join table.
type TagKind string

const (
	TagMotivations    TagKind = "motivations"
	TagPreferences    TagKind = "preferences"
	TagPeople         TagKind = "people"
	TagRoleCategories TagKind = "role_categories"
)

func (k TagKind) Valid() bool {
	switch k {
	case TagMotivations, TagPreferences, TagPeople, TagRoleCategories:
		return true
	}
	return false
}

// MasterKind names a master table.
type MasterKind string

const (
	MotivationMasters MasterKind = "motivation_masters"
	PreferenceMasters MasterKind = "preference_masters"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
