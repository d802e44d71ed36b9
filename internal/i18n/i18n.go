// Package i18n holds the gateway module messages and their translations.
// The same tables back both the /labels endpoint and the localized error
// messages returned to the UI.
package i18n

import (
	"fmt"
	"strings"
)

// BaseLanguage is the language the module messages are authored in.
const BaseLanguage = "en_US"

// Message identifiers of the gateway module.
const (
	MsgMissingQuestion = "ETCOP_MissingQuestion"
	MsgMissingAppID    = "ETCOP_MissingAppId"
	MsgAppNotFound     = "ETCOP_AppNotFound"
	MsgMissingAppType  = "ETCOP_MissingAppType"
	MsgConnError       = "ETCOP_ConnError"
	MsgCopilotError    = "ETCOP_CopilotError"
	MsgFileTooBig      = "ETCOP_FileTooBig"
	MsgErrorSavingFile = "ETCOP_ErrorSavingFile"
	MsgConvNotFound    = "ETCOP_ConversationNotFound"
	MsgMissingConv     = "ETCOP_MissingConversation"
	MsgNewConversation = "ETCOP_NewConversation"
	MsgSendPlaceholder = "ETCOP_SendPlaceholder"
)

// messages is the base-language message table, keyed by message id.
var messages = map[string]string{
	MsgMissingQuestion: "The question is required",
	MsgMissingAppID:    "The assistant id is required",
	MsgAppNotFound:     "Assistant %s not found",
	MsgMissingAppType:  "Assistant type %s is not supported",
	MsgConnError:       "Error connecting with the Copilot service",
	MsgCopilotError:    "Copilot error: %s",
	MsgFileTooBig:      "The file %s exceeds the maximum allowed size",
	MsgErrorSavingFile: "Error saving file %s",
	MsgConvNotFound:    "Conversation %s not found",
	MsgMissingConv:     "The conversation id is required",
	MsgNewConversation: "New conversation",
	MsgSendPlaceholder: "Ask your assistant a question",
}

// translations maps a language code to its translated message table.
// Ids missing from a language fall back to the base text.
var translations = map[string]map[string]string{
	"es_ES": {
		MsgMissingQuestion: "La pregunta es obligatoria",
		MsgMissingAppID:    "El identificador del asistente es obligatorio",
		MsgAppNotFound:     "No se ha encontrado el asistente %s",
		MsgMissingConv:     "El identificador de la conversación es obligatorio",
		MsgConnError:       "Error al conectar con el servicio Copilot",
		MsgCopilotError:    "Error de Copilot: %s",
		MsgNewConversation: "Nueva conversación",
		MsgSendPlaceholder: "Haz una pregunta a tu asistente",
	},
}

// Message resolves a message id for the given language. Unknown ids are
// returned as-is so a missing entry stays visible instead of vanishing.
func Message(lang, id string) string {
	if !strings.EqualFold(lang, BaseLanguage) {
		if table, ok := translations[lang]; ok {
			if text, ok := table[id]; ok {
				return text
			}
		}
	}
	if text, ok := messages[id]; ok {
		return text
	}
	return id
}

// Messagef resolves a message id and formats it with args.
func Messagef(lang, id string, args ...any) string {
	return fmt.Sprintf(Message(lang, id), args...)
}

// Labels returns the full message table for the given language. When the
// language differs from the base module language the translation table is
// consulted first, falling back per id to the base text.
func Labels(lang string) map[string]string {
	labels := make(map[string]string, len(messages))
	for id, text := range messages {
		labels[id] = text
	}
	if strings.EqualFold(lang, BaseLanguage) {
		return labels
	}
	if table, ok := translations[lang]; ok {
		for id, text := range table {
			labels[id] = text
		}
	}
	return labels
}

// Languages lists the languages with a translation table, base language first.
func Languages() []string {
	langs := []string{BaseLanguage}
	for lang := range translations {
		langs = append(langs, lang)
	}
	return langs
}
