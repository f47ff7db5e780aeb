package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vntrieu/impostor/internal/games"
)

// Callback ops. Button data is "<op>:<match id>[:...]" and stays under Telegram's 64-byte limit
// for UUID match ids.
const (
	opNight = "n"
	opVote  = "v"
	opFixer = "f"
	opTask  = "t"
	opJoin  = "j"
	opBegin = "b"
	opEnd   = "e"
)

var errBadCallback = errors.New("malformed callback data")

var kindCodes = map[games.ActionKind]string{
	games.ActionKill:        "k",
	games.ActionInvestigate: "i",
	games.ActionShoot:       "s",
	games.ActionSkip:        "x",
}

// Callback is a decoded inline button press.
type Callback struct {
	Op      string
	MatchID string
	Kind    games.ActionKind
	Target  *int64
	Fix     bool
}

// EncodeOption packs a prompt option into button data.
func EncodeOption(matchID string, opt games.Option) (string, error) {
	switch opt.Action {
	case games.OptionNightAction:
		code, ok := kindCodes[opt.Kind]
		if !ok {
			return "", fmt.Errorf("encode option: unknown action kind %q", opt.Kind)
		}
		return strings.Join([]string{opNight, matchID, code, strconv.FormatInt(opt.Target, 10)}, ":"), nil
	case games.OptionVote:
		target := "-"
		if opt.Target != 0 {
			target = strconv.FormatInt(opt.Target, 10)
		}
		return strings.Join([]string{opVote, matchID, target}, ":"), nil
	case games.OptionFixer:
		fix := "0"
		if opt.Fix {
			fix = "1"
		}
		return strings.Join([]string{opFixer, matchID, fix}, ":"), nil
	case games.OptionTask:
		return opTask + ":" + matchID, nil
	}
	return "", fmt.Errorf("encode option: unknown action %q", opt.Action)
}

// ParseCallback decodes button data produced by EncodeOption or the lobby keyboard.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 || parts[1] == "" {
		return Callback{}, errBadCallback
	}
	cb := Callback{Op: parts[0], MatchID: parts[1]}
	args := parts[2:]

	switch cb.Op {
	case opTask, opJoin, opBegin, opEnd:
		if len(args) != 0 {
			return Callback{}, errBadCallback
		}
	case opNight:
		if len(args) != 2 {
			return Callback{}, errBadCallback
		}
		for kind, code := range kindCodes {
			if code == args[0] {
				cb.Kind = kind
			}
		}
		if cb.Kind == "" {
			return Callback{}, errBadCallback
		}
		target, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return Callback{}, errBadCallback
		}
		if target != 0 {
			cb.Target = &target
		}
	case opVote:
		if len(args) != 1 {
			return Callback{}, errBadCallback
		}
		if args[0] != "-" {
			target, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return Callback{}, errBadCallback
			}
			cb.Target = &target
		}
	case opFixer:
		if len(args) != 1 || (args[0] != "0" && args[0] != "1") {
			return Callback{}, errBadCallback
		}
		cb.Fix = args[0] == "1"
	default:
		return Callback{}, errBadCallback
	}
	return cb, nil
}
