package intake

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
)

const (
	replyWelcome = "Hello! Welcome to the Government Complaint Registration System. Please tell me about any issue you're facing."

	replyUnsupportedKind           = "Please send text, audio, image, or location message."
	replyAudioFailed               = "Sorry, I couldn't understand the audio. Please type your complaint or try again."
	replyDescribeFirst             = "Please first describe your issue."
	replyLocationBeforeDescription = "I received your location. Please first describe your issue, then I'll use your location for the complaint."
	replyLocationAsTextOrShare     = "Please share your location coordinates as text or use the location feature."
	replyLocationFirst             = "Please share your location coordinates first."
	replyPhotoNeeded               = "Please share an image of the issue."
	replyAlreadySubmitted          = "Your complaint has already been submitted. Please start a new conversation to report another issue."

	// replyLocationPrompt служит единственным ответом на отклонённое место.
	replyLocationPrompt = "Please share your exact location. You can use WhatsApp's location feature " +
		"(attachment, then Location, then Send your current location), " +
		"or type the specific area name or address where the issue is located."

	replyComplaintCheckFailed = "Sorry, I couldn't process your message right now. Please describe your issue again in a moment."
	replyLocationCheckFailed  = "Sorry, I couldn't check that location right now. " + replyLocationPrompt
	replyImageRejected        = "This photo doesn't seem to match the issue you described. Could you send a photo that shows the problem?"
	replyImageCheckFailed     = "Sorry, I couldn't check the photo right now. Please send it again in a moment."
	replyFinalizeFailed       = "Sorry, we couldn't register your complaint right now. Please send the photo again in a moment."

	// ReplyTurnFailed отправляется, когда ход сорвался из-за хранилища.
	ReplyTurnFailed = "Sorry, something went wrong on our side. Please send your message again in a moment."
	// ReplyBusy отправляется, когда предыдущее сообщение того же номера ещё обрабатывается.
	ReplyBusy = "We're still processing your previous message. Please wait a moment and try again."
)

// Prose хранит текст для пользователя: либо сгенерирован моделью, либо взят из
// шаблона, если модель не ответила.
type Prose struct {
	Text     string
	Fallback bool
}

func generated(text string) Prose {
	return Prose{Text: text}
}

func fallback(text string) Prose {
	return Prose{Text: text, Fallback: true}
}

func fallbackAcknowledgement(description string) string {
	return fmt.Sprintf("I understand your concern about %s. Can you please share the location of the issue?", description)
}

func fallbackPhotoRequest(description string) string {
	return fmt.Sprintf("Can you please share a photo of the %s?", description)
}

// confirmationReply собирает итоговое сообщение после регистрации жалобы.
func confirmationReply(r *entity.ComplaintReport) string {
	days := "days"
	if r.ResolutionDays == 1 {
		days = "day"
	}

	var b strings.Builder
	b.WriteString("COMPLAINT REGISTERED SUCCESSFULLY\n\n")
	fmt.Fprintf(&b, "Report ID: %s\n", r.ReportID)
	fmt.Fprintf(&b, "Description: %s\n", r.Description)
	fmt.Fprintf(&b, "Location: %s\n", r.Coordinates)
	fmt.Fprintf(&b, "Category: %s\n", r.Category.Label())
	fmt.Fprintf(&b, "Priority: %s\n", r.Priority.Label())
	fmt.Fprintf(&b, "Department: %s\n", r.Department)
	fmt.Fprintf(&b, "Expected Resolution: %d %s\n\n", r.ResolutionDays, days)
	b.WriteString("Thank you for reporting! We will update you on the status soon.")
	return b.String()
}

var (
	codeFencePattern  = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9_-]*[ \t]*$")
	headingPattern    = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	listMarkerPattern = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•]|\d{1,2}[.)])[ \t]+`)
	boldPattern       = regexp.MustCompile(`\*\*([^*\n]+)\*\*|__([^_\n]+)__`)
	italicPattern     = regexp.MustCompile(`(^|[\s(])[*_]([^*_\n]+)[*_]([\s).,!?:;]|$)`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// plainText убирает markdown из текста модели: WhatsApp показывает его как есть.
func plainText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = codeFencePattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	s = headingPattern.ReplaceAllString(s, "")
	s = listMarkerPattern.ReplaceAllString(s, "")
	s = boldPattern.ReplaceAllString(s, "$1$2")
	s = italicPattern.ReplaceAllString(s, "$1$2$3")
	s = strings.ReplaceAll(s, "`", "")
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && strings.Count(s, `"`) == 2 {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
