package bluebubbles

import "fmt"

// Tapback codes as reported by the BlueBubbles server. 2xxx adds a
// reaction, 3xxx removes the matching one.
const (
	tapbackLove     = 2000
	tapbackLike     = 2001
	tapbackDislike  = 2002
	tapbackLaugh    = 2003
	tapbackEmphasis = 2004
	tapbackQuestion = 2005

	tapbackRemoveOffset = 1000
)

var tapbackEmoji = map[int]string{
	tapbackLove:     "❤️",
	tapbackLike:     "\U0001f44d",
	tapbackDislike:  "\U0001f44e",
	tapbackLaugh:    "\U0001f602",
	tapbackEmphasis: "‼️",
	tapbackQuestion: "❓",
}

// tapbackToReaction maps a raw tapback code to an emoji and an
// added/removed action. Unknown codes are kept rather than dropped so
// downstream consumers still see that something happened.
func tapbackToReaction(code int) (emoji string, removed bool) {
	if e, ok := tapbackEmoji[code]; ok {
		return e, false
	}
	if e, ok := tapbackEmoji[code-tapbackRemoveOffset]; ok {
		return e, true
	}
	return fmt.Sprintf("reaction:%d", code), false
}
