// Package reason holds the static reason catalogs for the recovery actions
// (cancel, release, reject). Each action has its own enumerated codes plus
// OTHER, which requires free text. Labels are locale-parameterized.
package reason

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// Action identifies which recovery flow a reason belongs to.
type Action string

const (
	ActionCancel  Action = "cancel"
	ActionRelease Action = "release"
	ActionReject  Action = "reject"
)

// CodeOther is shared by every catalog and requires non-empty free text.
const CodeOther = "OTHER"

var (
	ErrUnknownAction = errors.New("unknown reason action")
	ErrUnknownCode   = errors.New("unknown reason code")
	ErrTextRequired  = errors.New("reason text required")
)

// Option is one selectable reason.
type Option struct {
	Code  string
	Label string
}

// Catalog is the per-action reason list for one locale.
type Catalog map[Action][]Option

var supported = []language.Tag{
	language.English, // default
	language.Hindi,
	language.Spanish,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]Catalog{
	language.English: {
		ActionCancel: {
			{Code: "NO_LONGER_NEEDED", Label: "No longer needed"},
			{Code: "POSTED_BY_MISTAKE", Label: "Posted by mistake"},
			{Code: "FOUND_HELP_ELSEWHERE", Label: "Found help elsewhere"},
			{Code: "HELPER_NO_SHOW", Label: "Helper did not show up"},
			{Code: CodeOther, Label: "Other"},
		},
		ActionRelease: {
			{Code: "CANT_REACH_LOCATION", Label: "Can't reach the location"},
			{Code: "RUNNING_LATE", Label: "Running too late"},
			{Code: "TASK_UNCLEAR", Label: "Task details unclear"},
			{Code: "EMERGENCY", Label: "Personal emergency"},
			{Code: CodeOther, Label: "Other"},
		},
		ActionReject: {
			{Code: "TOO_FAR", Label: "Helper is too far away"},
			{Code: "LOW_RATING", Label: "Helper rating too low"},
			{Code: "PREFER_SOMEONE_ELSE", Label: "Waiting for someone else"},
			{Code: CodeOther, Label: "Other"},
		},
	},
	language.Hindi: {
		ActionCancel: {
			{Code: "NO_LONGER_NEEDED", Label: "अब ज़रूरत नहीं"},
			{Code: "POSTED_BY_MISTAKE", Label: "गलती से पोस्ट हुआ"},
			{Code: "FOUND_HELP_ELSEWHERE", Label: "मदद कहीं और मिल गई"},
			{Code: "HELPER_NO_SHOW", Label: "हेल्पर नहीं आया"},
			{Code: CodeOther, Label: "अन्य"},
		},
		ActionRelease: {
			{Code: "CANT_REACH_LOCATION", Label: "जगह तक नहीं पहुंच सकता"},
			{Code: "RUNNING_LATE", Label: "बहुत देर हो रही है"},
			{Code: "TASK_UNCLEAR", Label: "काम स्पष्ट नहीं है"},
			{Code: "EMERGENCY", Label: "आपात स्थिति"},
			{Code: CodeOther, Label: "अन्य"},
		},
		ActionReject: {
			{Code: "TOO_FAR", Label: "हेल्पर बहुत दूर है"},
			{Code: "LOW_RATING", Label: "रेटिंग कम है"},
			{Code: "PREFER_SOMEONE_ELSE", Label: "किसी और का इंतज़ार"},
			{Code: CodeOther, Label: "अन्य"},
		},
	},
	language.Spanish: {
		ActionCancel: {
			{Code: "NO_LONGER_NEEDED", Label: "Ya no lo necesito"},
			{Code: "POSTED_BY_MISTAKE", Label: "Publicado por error"},
			{Code: "FOUND_HELP_ELSEWHERE", Label: "Encontré ayuda en otro lado"},
			{Code: "HELPER_NO_SHOW", Label: "El ayudante no llegó"},
			{Code: CodeOther, Label: "Otro"},
		},
		ActionRelease: {
			{Code: "CANT_REACH_LOCATION", Label: "No puedo llegar al lugar"},
			{Code: "RUNNING_LATE", Label: "Voy demasiado tarde"},
			{Code: "TASK_UNCLEAR", Label: "La tarea no está clara"},
			{Code: "EMERGENCY", Label: "Emergencia personal"},
			{Code: CodeOther, Label: "Otro"},
		},
		ActionReject: {
			{Code: "TOO_FAR", Label: "El ayudante está muy lejos"},
			{Code: "LOW_RATING", Label: "Calificación muy baja"},
			{Code: "PREFER_SOMEONE_ELSE", Label: "Espero a otra persona"},
			{Code: CodeOther, Label: "Otro"},
		},
	},
}

// CatalogFor returns the catalog best matching the given BCP 47 locale tag.
// Unknown or empty locales fall back to English.
func CatalogFor(locale string) Catalog {
	tag, _ := language.MatchStrings(matcher, locale)
	base := tag
	for {
		if c, ok := catalogs[base]; ok {
			return c
		}
		parent := base.Parent()
		if parent == language.Und || parent == base {
			return catalogs[language.English]
		}
		base = parent
	}
}

// Options returns the selectable reasons for an action in the given locale.
func Options(action Action, locale string) ([]Option, error) {
	c := CatalogFor(locale)
	opts, ok := c[action]
	if !ok {
		return nil, ErrUnknownAction
	}
	return opts, nil
}

// Validate checks a chosen code (and free text, when the code is OTHER)
// against the catalog for the action. Validation is locale-independent: codes
// are the same in every catalog.
func Validate(action Action, code, text string) error {
	opts, err := Options(action, "en")
	if err != nil {
		return err
	}
	found := false
	for _, o := range opts {
		if o.Code == code {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownCode
	}
	if code == CodeOther && strings.TrimSpace(text) == "" {
		return ErrTextRequired
	}
	return nil
}
