package channel

import "testing"

func TestDisplayText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  NormalizedMessage
		want string
	}{
		{
			name: "text passes through",
			msg:  NormalizedMessage{Text: "hello"},
			want: "hello",
		},
		{
			name: "text wins over attachments",
			msg: NormalizedMessage{Text: "look", Attachments: []Attachment{
				{GUID: "a", MimeType: "image/jpeg"},
			}},
			want: "look",
		},
		{
			name: "single image",
			msg: NormalizedMessage{Attachments: []Attachment{
				{GUID: "a", MimeType: "image/jpeg"},
			}},
			want: "<media:image> (1 image)",
		},
		{
			name: "several images",
			msg: NormalizedMessage{Attachments: []Attachment{
				{GUID: "a", MimeType: "image/jpeg"},
				{GUID: "b", MimeType: "image/png"},
				{GUID: "c", MimeType: "image/heic"},
			}},
			want: "<media:image> (3 images)",
		},
		{
			name: "single video",
			msg: NormalizedMessage{Attachments: []Attachment{
				{GUID: "a", MimeType: "video/mp4"},
			}},
			want: "<media:video> (1 video)",
		},
		{
			name: "audio",
			msg: NormalizedMessage{Attachments: []Attachment{
				{GUID: "a", MimeType: "audio/amr"},
				{GUID: "b", MimeType: "audio/mpeg"},
			}},
			want: "<media:audio> (2 audios)",
		},
		{
			name: "mixed categories",
			msg: NormalizedMessage{Attachments: []Attachment{
				{GUID: "a", MimeType: "image/jpeg"},
				{GUID: "b", MimeType: "video/mp4"},
			}},
			want: "<media:attachment> (2 attachments)",
		},
		{
			name: "unknown mime",
			msg: NormalizedMessage{Attachments: []Attachment{
				{GUID: "a", MimeType: "application/pdf"},
			}},
			want: "<media:attachment> (1 attachment)",
		},
		{
			name: "sticker without attachments",
			msg:  NormalizedMessage{BalloonBundleID: "com.apple.Stickers.UserGenerated"},
			want: "<media:sticker>",
		},
		{
			name: "nothing at all",
			msg:  NormalizedMessage{},
			want: "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.msg.DisplayText(); got != tt.want {
				t.Fatalf("DisplayText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasContentMatchesDisplayText(t *testing.T) {
	t.Parallel()

	cases := []NormalizedMessage{
		{},
		{Text: "   "},
		{Text: "hi"},
		{Attachments: []Attachment{{GUID: "a"}}},
		{BalloonBundleID: "com.apple.messages.handwriting"},
	}
	for _, msg := range cases {
		hasText := msg.DisplayText() != ""
		if msg.HasContent() != hasText {
			t.Fatalf("HasContent() = %v but DisplayText() = %q for %+v",
				msg.HasContent(), msg.DisplayText(), msg)
		}
	}
}
