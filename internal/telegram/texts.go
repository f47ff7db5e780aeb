package telegram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vntrieu/impostor/internal/store"
	"github.com/vntrieu/impostor/internal/xp"
)

const helpText = `🆘 Impostor Bot Help

In a group:
/startgame [ranked] - open a lobby
/join - join the lobby
/begin - start early (creator only)
/end - stop the match (creator only)

Anywhere:
/rules - how to play
/roles - the roles
/stats - your XP and achievements

Night prompts and votes arrive in DM, so start a private chat with the bot first.`

const rulesText = `📜 Game Rules

• Crewmates complete tasks at night and vote out impostors by day
• Impostors eliminate one crewmate each night
• Crew wins when every impostor is gone
• Impostors win when they match the crew in number
• Too many failed task nights and the ship explodes, unless the Engineer fixes it`

const rolesText = `🎭 Available Roles

🔧 Crewmate - complete tasks and vote
🔪 Impostor - eliminate the crew
🕵️ Detective - investigate a player every other night
🔫 Sheriff - one shot; hit an impostor or die with your target
⚙️ Engineer - fix the ship once per game`

func statsText(userID int64, u *store.User) string {
	if u == nil {
		return fmt.Sprintf("📊 Stats for Player %d\n\nNo games played yet.", userID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Stats for Player %d\n\nXP: %d\nStreak: %d wins\nGames: %d played, %d won",
		userID, u.XP, u.Streak, u.GamesPlayed, u.GamesWon)

	codes := make([]string, 0, len(u.Achievements))
	for code, ok := range u.Achievements {
		if ok {
			codes = append(codes, code)
		}
	}
	if len(codes) > 0 {
		sort.Strings(codes)
		b.WriteString("\n\n🏆 Achievements:")
		for _, code := range codes {
			name := code
			if a, ok := xp.Achievements[code]; ok {
				name = a.Name
			}
			b.WriteString("\n• " + name)
		}
	}
	return b.String()
}
