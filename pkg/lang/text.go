package lang

import "fmt"

type Localization struct {
	tag  Tag
	text string
}

// TextSet holds one user-facing string with per-language variants.
type TextSet struct {
	Default      string
	translations map[Tag]string
}

func NewTrans(tag Tag, text string) Localization {
	return Localization{
		tag:  tag,
		text: text,
	}
}

func NewSet(defaultText string, localizations ...Localization) TextSet {
	set := TextSet{
		Default:      defaultText,
		translations: make(map[Tag]string),
	}
	for _, localization := range localizations {
		set.translations[localization.tag] = localization.text
	}
	return set
}

func (l TextSet) Text(tag Tag) string {
	if text, ok := l.translations[tag]; ok {
		return text
	}
	return l.Default
}

func (l TextSet) Format(tag Tag, a ...any) string {
	return fmt.Sprintf(l.Text(tag), a...)
}
