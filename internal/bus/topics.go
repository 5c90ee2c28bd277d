package bus

// Progression topics. Every payload is a domain.Event.
const (
	TopicProgress       = "progress."
	TopicQuestCompleted = "progress.quest_completed"
	TopicXPAwarded      = "progress.xp_awarded"
	TopicLevelUp        = "progress.level_up"
	TopicQuestsReset    = "progress.quests_reset"
)

// Topics lists every progression topic in publish order.
func Topics() []string {
	return []string{TopicQuestCompleted, TopicXPAwarded, TopicLevelUp, TopicQuestsReset}
}
