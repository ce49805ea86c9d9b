package bluebubbles

import "testing"

func TestTapbackToReaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		code        int
		wantEmoji   string
		wantRemoved bool
	}{
		{"love added", 2000, "❤️", false},
		{"like added", 2001, "\U0001f44d", false},
		{"dislike added", 2002, "\U0001f44e", false},
		{"laugh added", 2003, "\U0001f602", false},
		{"emphasis added", 2004, "‼️", false},
		{"question added", 2005, "❓", false},
		{"like removed", 3001, "\U0001f44d", true},
		{"question removed", 3005, "❓", true},
		{"unknown code kept", 2999, "reaction:2999", false},
		{"unknown removal code kept", 9000, "reaction:9000", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			emoji, removed := tapbackToReaction(tt.code)
			if emoji != tt.wantEmoji {
				t.Fatalf("emoji = %q, want %q", emoji, tt.wantEmoji)
			}
			if removed != tt.wantRemoved {
				t.Fatalf("removed = %v, want %v", removed, tt.wantRemoved)
			}
		})
	}
}
