package classifier

import (
	"strings"

	"github.com/prosparity/linkedin-bot/internal/models"
)

// family is one keyword group checked during classification.
type family struct {
	intent   models.Intent
	keywords map[string]struct{}
}

// families are evaluated in order; the first match wins. A message carrying
// both a greeting token and an interest token is a greeting. Reordering this
// list changes observable behavior, so it is fixed.
var families = []family{
	{models.IntentGreeting, keywordSet("hi", "hello", "hey", "greetings")},
	{models.IntentGoodbye, keywordSet("bye", "goodbye", "see you")},
	{models.IntentInterestLead, keywordSet("pricing", "services", "demo", "quote", "consultation", "contact")},
	{models.IntentWebsiteRequest, keywordSet("website", "web", "link", "site")},
}

func keywordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Classify maps a raw inbound message to exactly one intent using
// case-insensitive token matching. Messages matching no family are general.
func Classify(text string) models.Intent {
	tokens := tokenize(text)
	lowered := strings.ToLower(text)
	for _, f := range families {
		for keyword := range f.keywords {
			if strings.ContainsRune(keyword, ' ') {
				// Multi-word keywords ("see you") match as a phrase.
				if strings.Contains(lowered, keyword) {
					return f.intent
				}
				continue
			}
			if _, ok := tokens[keyword]; ok {
				return f.intent
			}
		}
	}
	return models.IntentGeneral
}

// tokenize lowercases and splits on anything that is not a letter or digit,
// so "hi," and "Hi" both produce the token "hi".
func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '\'' ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9')
}
