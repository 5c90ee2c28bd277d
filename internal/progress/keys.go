package progress

// Storage keys. The names are shared with existing browser-side data and
// must not change.
const (
	KeyCards        = "step1-cards"
	KeyReflection   = "step2-reflection"
	KeyMotivations  = "step3SelectedMotivations"
	KeyPreferences  = "step3SelectedPreferences"
	KeyAssignments  = "step4CardAssignments"
	KeyPlacements   = "step4Placements"
	KeyPeople       = "step5People"
	KeyCardPlans    = "step5CardPlans"
	KeyRoles        = "step6-roles"
	KeyWorkItems    = "step6-work-items"
	KeyActionPlan   = "step7-1-plan"
	KeyQuests       = "step7-2-quests"
	KeyUserLevel    = "user-level"
	KeyUserXP       = "user-xp"
	KeyActiveUserID = "activeUserId"
	KeyLegacyUserID = "userId"
)

// WorkbookKeys lists every key cleared by a full workbook reset. Identity
// keys are kept.
var WorkbookKeys = []string{
	KeyCards,
	KeyReflection,
	KeyMotivations,
	KeyPreferences,
	KeyAssignments,
	KeyPlacements,
	KeyPeople,
	KeyCardPlans,
	KeyRoles,
	KeyWorkItems,
	KeyActionPlan,
	KeyQuests,
	KeyUserLevel,
	KeyUserXP,
}
