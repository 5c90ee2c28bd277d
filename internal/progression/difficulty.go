package progression

// Difficulty of a server-side quest.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// XPForDifficulty maps a quest difficulty to its reward. Unknown or empty
// difficulties are worth nothing.
func XPForDifficulty(d Difficulty) int {
	switch d {
	case Easy:
		return 10
	case Medium:
		return 30
	case Hard:
		return 50
	default:
		return 0
	}
}

// LocalQuestXP maps the workbook's quest difficulty picker (easy, normal,
// hard) to a reward. Anything unrecognized counts as normal.
func LocalQuestXP(d string) int {
	switch d {
	case "easy":
		return 10
	case "hard":
		return 50
	default:
		return 30
	}
}
