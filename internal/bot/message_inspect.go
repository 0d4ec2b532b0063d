package bot

import (
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
)

var linkMarkers = []string{"http://", "https://", "t.me/", "telegram.me/"}

// MessageHasLink reports whether the message carries a URL, either as a
// Telegram entity or as bare text in the body or caption.
func MessageHasLink(msg *api.Message) bool {
	if msg == nil {
		return false
	}
	for _, entity := range allEntities(msg) {
		switch entity.Type {
		case "url", "text_link":
			return true
		}
	}
	haystack := strings.ToLower(msg.Text + " " + msg.Caption)
	for _, marker := range linkMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

// MessageHasMention reports whether the message @-mentions an account. Only
// entity mentions count, a bare "@" in running text does not.
func MessageHasMention(msg *api.Message) bool {
	if msg == nil {
		return false
	}
	for _, entity := range allEntities(msg) {
		switch entity.Type {
		case "mention", "text_mention":
			return true
		}
	}
	return false
}

func MessageIsForwarded(msg *api.Message) bool {
	if msg == nil {
		return false
	}
	return msg.ForwardOrigin != nil || msg.IsAutomaticForward
}

func allEntities(msg *api.Message) []api.MessageEntity {
	if len(msg.CaptionEntities) == 0 {
		return msg.Entities
	}
	entities := make([]api.MessageEntity, 0, len(msg.Entities)+len(msg.CaptionEntities))
	entities = append(entities, msg.Entities...)
	entities = append(entities, msg.CaptionEntities...)
	return entities
}
