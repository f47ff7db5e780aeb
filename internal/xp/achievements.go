package xp

// Achievement codes.
const (
	AchievementFirstWin        = "first_win"
	AchievementTaskMaster      = "task_master"
	AchievementShipSaver       = "engineer_save"
	AchievementDetectiveStreak = "detective_streak"
)

const (
	TaskMasterThreshold      = 10
	DetectiveStreakThreshold = 3
)

// Achievement is a one-time badge.
type Achievement struct {
	Name        string
	Description string
}

// Achievements lists every badge by code.
var Achievements = map[string]Achievement{
	AchievementFirstWin:        {Name: "First Victory", Description: "Win your first game"},
	AchievementTaskMaster:      {Name: "Task Master", Description: "Complete 10 tasks"},
	AchievementShipSaver:       {Name: "Ship Saver", Description: "Successfully fix the ship"},
	AchievementDetectiveStreak: {Name: "Detective Streak", Description: "Find 3 impostors"},
}
