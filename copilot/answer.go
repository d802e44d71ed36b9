package copilot

import (
	"strings"
	"time"

	"github.com/etcop/copilot-gateway/internal/i18n"
)

// AnswerBody is the canonical set of fields an answer may carry, whether it
// arrives nested under an "answer" object or flattened at the top level.
type AnswerBody struct {
	Response       string       `json:"response"`
	ConversationID string       `json:"conversation_id"`
	Role           string       `json:"role"`
	MessageID      string       `json:"message_id"`
	AssistantID    string       `json:"assistant_id"`
	Error          *AnswerError `json:"error,omitempty"`
}

// AnswerError is the classified error shape the backend embeds in an answer.
type AnswerError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Detail is one entry of the backend's validation-error detail array.
type Detail struct {
	Message string `json:"message"`
}

// RawAnswer is the wire shape of a backend reply. The backend emits two
// variants: a wrapped one with the fields nested under "answer", and a direct
// one with the same fields at the top level. Both are decoded here once and
// resolved by Body, instead of probing fields all over the place.
type RawAnswer struct {
	Answer *AnswerBody `json:"answer,omitempty"`

	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`

	Detail []Detail `json:"detail,omitempty"`
}

// Body resolves the two raw variants into one canonical body. The nested
// "answer" object always wins over top-level fields.
func (r *RawAnswer) Body() AnswerBody {
	if r.Answer != nil {
		return *r.Answer
	}
	return AnswerBody{
		Response:       r.Response,
		ConversationID: r.ConversationID,
		Role:           r.Role,
	}
}

// detailMessage returns the first detail message, if any.
func (r *RawAnswer) detailMessage() (string, bool) {
	if len(r.Detail) == 0 {
		return "", false
	}
	return r.Detail[0].Message, true
}

// Answer is the normalized result served to HTTP clients and recorded in the
// conversation history.
type Answer struct {
	AppID          string `json:"app_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Response       string `json:"response"`
	Timestamp      string `json:"timestamp"`
}

// timestampLayout matches the SQL-timestamp style the UI already parses.
const timestampLayout = "2006-01-02 15:04:05.000"

// Normalize shapes a raw backend reply into an Answer.
//
// A nested error object fails with its message and code. A role marker of
// "null" or "error" means the backend produced no usable answer: when the
// reply carries a detail array its first message is surfaced as a classified
// "Copilot error"; without one the reply is served as-is. The conversation id
// falls back to the one supplied by the caller, and every normalized answer
// gets a fresh timestamp.
func Normalize(raw *RawAnswer, fallbackConversationID, lang string) (*Answer, error) {
	if raw == nil {
		return nil, NewServiceError(i18n.Message(lang, i18n.MsgConnError))
	}

	body := raw.Body()
	if body.Error != nil {
		if body.Error.Code != 0 {
			return nil, NewServiceErrorWithCode(body.Error.Message, body.Error.Code)
		}
		return nil, NewServiceError(body.Error.Message)
	}

	if strings.EqualFold(body.Role, "null") || strings.EqualFold(body.Role, "error") {
		if detail, ok := raw.detailMessage(); ok {
			return nil, NewServiceError(i18n.Messagef(lang, i18n.MsgCopilotError, detail))
		}
	}

	conversationID := body.ConversationID
	if conversationID == "" {
		conversationID = fallbackConversationID
	}

	return &Answer{
		ConversationID: conversationID,
		Response:       body.Response,
		Timestamp:      time.Now().Format(timestampLayout),
	}, nil
}
