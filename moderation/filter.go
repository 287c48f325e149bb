package moderation

import (
	"collab-lab/observability"
	"log/slog"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Below this confidence no language is reported.
const minLanguageConfidence = 0.5

// Too short to guess a language from.
const minLanguageRunes = 12

// ChatFilter censors chat messages and tags them with their detected
// language (ISO 639-1).
type ChatFilter struct {
	moderator *Moderator
	log       *slog.Logger
}

// NewChatFilter builds a filter. A nil moderator only tags languages.
func NewChatFilter(moderator *Moderator, log *slog.Logger) ChatFilter {
	return ChatFilter{moderator: moderator, log: log}
}

// NewDefaultChatFilter censors the embedded word lists.
func NewDefaultChatFilter(censoredChar rune, log *slog.Logger) (ChatFilter, error) {
	data, err := NewCensoredLoader(CensoredFS).LoadAll(CensoredDir)
	if err != nil {
		return ChatFilter{}, err
	}
	moderator, err := NewModerator(data.Words, censoredChar, log)
	if err != nil {
		return ChatFilter{}, err
	}
	log.Info("Chat moderation enabled", "words", len(data.Words), "languages", data.Languages)
	return NewChatFilter(&moderator, log), nil
}

// Verdict is what the filter decided about one chat message.
type Verdict struct {
	Content  string
	Language string
	// Listed words found in the message, once each.
	Censored []string
}

// Inspect censors text and detects its language. The language is guessed
// from the uncensored text.
func (f ChatFilter) Inspect(text string) Verdict {
	v := Verdict{Content: text, Language: detectLanguage(text)}
	if f.moderator != nil {
		v.Content, v.Censored = f.moderator.Censor(text)
	}
	return v
}

func (f ChatFilter) Filter(text string) (string, string) {
	v := f.Inspect(text)
	if len(v.Censored) > 0 {
		observability.ChatWordsCensored.Add(float64(len(v.Censored)))
		f.log.Debug("Chat message censored", "words", v.Censored)
	}
	return v.Content, v.Language
}

func detectLanguage(text string) string {
	if utf8.RuneCountInString(text) < minLanguageRunes {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Confidence < minLanguageConfidence {
		return ""
	}
	return info.Lang.Iso6391()
}
