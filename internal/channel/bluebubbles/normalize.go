package bluebubbles

import (
	"strconv"
	"strings"

	"github.com/bluetaphq/bluetap/internal/channel"
)

// CanonicalHandle canonicalizes a raw gateway handle. Service prefixes are
// stripped, email addresses lowercased, and North American phone numbers
// brought to E.164 form while short codes keep their bare digits. Empty
// result means the handle is unusable and the record must be dropped.
func CanonicalHandle(raw string) string {
	id := strings.TrimSpace(raw)
	for _, prefix := range []string{"mailto:", "tel:", "imessage:"} {
		id = strings.TrimPrefix(id, prefix)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.Contains(id, "@") {
		return strings.ToLower(id)
	}
	if phone := canonicalPhone(id); phone != "" {
		return phone
	}
	return id
}

// canonicalPhone cleans separators out of a phone-like handle. Ten-digit
// numbers get a +1 country code, eleven-digit numbers starting with 1 get a
// plus, short codes stay bare. Returns "" for non-phone input.
func canonicalPhone(raw string) string {
	hasPlus := strings.HasPrefix(raw, "+")
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
			continue
		default:
			return ""
		}
	}
	cleaned := digits.String()
	if cleaned == "" {
		return ""
	}
	if hasPlus {
		return "+" + cleaned
	}
	if len(cleaned) == 10 {
		return "+1" + cleaned
	}
	if len(cleaned) == 11 && cleaned[0] == '1' {
		return "+" + cleaned
	}
	return cleaned
}

// chatContext carries the sender, chat, and group fields shared between
// message and reaction records.
type chatContext struct {
	senderID       string
	senderName     string
	fromMe         bool
	isGroup        bool
	timestampMs    int64
	chatID         string
	chatGUID       string
	chatIdentifier string
	chatName       string
}

// resolveChatContext extracts the shared fields from a record. ok is false
// when the sender cannot be canonicalized.
func resolveChatContext(msg record) (chatContext, bool) {
	var cc chatContext

	rawSender, senderName := senderFields(msg)
	cc.senderID = CanonicalHandle(rawSender)
	if cc.senderID == "" {
		return chatContext{}, false
	}
	cc.senderName = senderName
	cc.fromMe, _ = msg.flag("isFromMe", "fromMe")
	cc.timestampMs = normalizeTimestamp(msg)

	chat, hasChat := chatRecord(msg)
	participantCount := 0
	if hasChat {
		guid, _ := chat.str("guid", "chatGuid")
		cc.chatGUID = strings.TrimSpace(guid)
		identifier, _ := chat.str("chatIdentifier", "identifier")
		cc.chatIdentifier = strings.TrimSpace(identifier)
		cc.chatID = chatPrimaryID(chat)
		name, _ := chat.str("displayName", "name")
		cc.chatName = strings.TrimSpace(name)
		participantCount = len(chat.list("participants"))
	} else {
		participantCount = len(msg.list("participants"))
	}

	explicitGroup, _ := msg.flag("isGroup")
	chatGroup := false
	if hasChat {
		chatGroup, _ = chat.flag("isGroup")
	}
	cc.isGroup = explicitGroup || chatGroup || participantCount > 2

	return cc, true
}

// chatRecord locates the chat sub-record: chat, then a conversation alias,
// then the first element of a chats array. Gateways disagree on which one
// they populate.
func chatRecord(msg record) (record, bool) {
	if chat, ok := msg.child("chat"); ok {
		return chat, true
	}
	if chat, ok := msg.child("conversation"); ok {
		return chat, true
	}
	if items := msg.list("chats"); len(items) > 0 {
		if chat, ok := recordFrom(items[0]); ok {
			return chat, true
		}
	}
	return nil, false
}

func chatPrimaryID(chat record) string {
	if id, ok := chat.str("id", "chatId"); ok {
		return strings.TrimSpace(id)
	}
	if id, ok := chat.num("id", "chatId"); ok {
		return strconv.FormatInt(int64(id), 10)
	}
	return ""
}

// senderFields resolves the raw sender handle and display name, preferring
// a handle/sender sub-record over flat fields.
func senderFields(msg record) (string, string) {
	for _, key := range []string{"handle", "sender"} {
		sub, ok := msg.child(key)
		if !ok {
			continue
		}
		id, _ := sub.str("address", "handle", "id")
		if strings.TrimSpace(id) == "" {
			continue
		}
		name, _ := sub.str("displayName", "name")
		return id, strings.TrimSpace(name)
	}
	id, _ := msg.str("senderId", "sender", "from")
	name, _ := msg.str("senderName")
	return id, strings.TrimSpace(name)
}

// normalizeTimestamp reads the record timestamp and converts it to epoch
// milliseconds. Values below 10^12 are treated as epoch seconds.
func normalizeTimestamp(msg record) int64 {
	raw, ok := msg.num("dateCreated", "date", "timestamp")
	if !ok || raw <= 0 {
		return 0
	}
	if raw < 1e12 {
		raw *= 1000
	}
	return int64(raw)
}

// NormalizeMessage converts an extracted gateway record into the canonical
// message shape. Nil means the record is unusable and must be dropped.
func NormalizeMessage(msg record) *channel.NormalizedMessage {
	if msg == nil {
		return nil
	}
	cc, ok := resolveChatContext(msg)
	if !ok {
		return nil
	}
	text, _ := msg.str("text", "body", "subject")
	messageID, _ := msg.str("guid")
	balloon, _ := msg.str("balloonBundleId")
	return &channel.NormalizedMessage{
		Text:            strings.TrimSpace(text),
		SenderID:        cc.senderID,
		SenderName:      cc.senderName,
		MessageID:       strings.TrimSpace(messageID),
		TimestampMs:     cc.timestampMs,
		IsGroup:         cc.isGroup,
		FromMe:          cc.fromMe,
		ChatID:          cc.chatID,
		ChatGUID:        cc.chatGUID,
		ChatIdentifier:  cc.chatIdentifier,
		ChatName:        cc.chatName,
		Attachments:     extractAttachments(msg),
		BalloonBundleID: strings.TrimSpace(balloon),
	}
}

// NormalizeReaction converts a record into the canonical reaction shape. A
// record counts as a reaction only when it carries both an associated
// message guid and a numeric associated type; anything else returns nil.
func NormalizeReaction(msg record) *channel.NormalizedReaction {
	if msg == nil {
		return nil
	}
	target, _ := msg.str("associatedMessageGuid")
	target = strings.TrimSpace(target)
	if target == "" {
		return nil
	}
	code, ok := msg.num("associatedMessageType")
	if !ok {
		return nil
	}
	cc, ok := resolveChatContext(msg)
	if !ok {
		return nil
	}
	emoji, removed := tapbackToReaction(int(code))
	action := channel.ReactionAdded
	if removed {
		action = channel.ReactionRemoved
	}
	return &channel.NormalizedReaction{
		Action:         action,
		Emoji:          emoji,
		SenderID:       cc.senderID,
		SenderName:     cc.senderName,
		MessageID:      stripPartPrefix(target),
		TimestampMs:    cc.timestampMs,
		IsGroup:        cc.isGroup,
		FromMe:         cc.fromMe,
		ChatID:         cc.chatID,
		ChatGUID:       cc.chatGUID,
		ChatIdentifier: cc.chatIdentifier,
		ChatName:       cc.chatName,
	}
}

// stripPartPrefix removes the "p:0/" part-index prefix the gateway places
// in front of associated message guids.
func stripPartPrefix(guid string) string {
	if parts := strings.SplitN(guid, "/", 2); len(parts) == 2 {
		return parts[1]
	}
	return guid
}

func extractAttachments(msg record) []channel.Attachment {
	items := msg.list("attachments")
	if len(items) == 0 {
		return nil
	}
	attachments := make([]channel.Attachment, 0, len(items))
	for _, item := range items {
		sub, ok := recordFrom(item)
		if !ok {
			continue
		}
		var att channel.Attachment
		att.GUID, _ = sub.str("guid")
		att.UTI, _ = sub.str("uti")
		att.MimeType, _ = sub.str("mimeType")
		att.TransferName, _ = sub.str("transferName")
		if v, ok := sub.num("totalBytes"); ok {
			att.TotalBytes = int64(v)
		}
		if v, ok := sub.num("height"); ok {
			att.Height = int(v)
		}
		if v, ok := sub.num("width"); ok {
			att.Width = int(v)
		}
		if v, ok := sub.num("originalROWID", "originalRowId"); ok {
			att.OriginalRowID = int64(v)
		}
		attachments = append(attachments, att)
	}
	return attachments
}
