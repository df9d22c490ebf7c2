package domain

import (
	"sort"
	"strings"
)

// UntitledTranslation is returned when a translation object carries no usable text.
const UntitledTranslation = "Untitled"

const (
	preferredLanguage = "tr"
	fallbackLanguage  = "en"
	translationKey    = "key"
)

// ResolveTranslatedName turns a name value into display text.
//
// Plain strings are returned trimmed. Translation objects, either flat
// ({"tr": ..., "en": ..., "key": ...}) or nested under "translations", resolve in
// this order: "tr", "en", the first other language in sorted order, the "key"
// field, then UntitledTranslation. The boolean is false when value carries no
// name at all (nil, empty string, or an unsupported type).
func ResolveTranslatedName(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		trimmed := strings.TrimSpace(typed)
		return trimmed, trimmed != ""
	case map[string]string:
		converted := make(map[string]any, len(typed))
		for key, text := range typed {
			converted[key] = text
		}
		return resolveTranslationObject(converted), true
	case map[string]any:
		return resolveTranslationObject(typed), true
	case Snapshot:
		return resolveTranslationObject(map[string]any(typed)), true
	default:
		return "", false
	}
}

func resolveTranslationObject(object map[string]any) string {
	languages := object
	if nested, ok := object["translations"].(map[string]any); ok {
		languages = nested
	}

	if text, ok := translationText(languages, preferredLanguage); ok {
		return text
	}
	if text, ok := translationText(languages, fallbackLanguage); ok {
		return text
	}

	codes := make([]string, 0, len(languages))
	for code := range languages {
		if code == translationKey || code == "translations" {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if text, ok := translationText(languages, code); ok {
			return text
		}
	}

	if text, ok := translationText(object, translationKey); ok {
		return text
	}
	return UntitledTranslation
}

func translationText(object map[string]any, key string) (string, bool) {
	raw, ok := object[key].(string)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}

// NameFromSnapshots derives a display name from the "name" field of the first
// snapshot that has one.
func NameFromSnapshots(snapshots ...Snapshot) (string, bool) {
	for _, snapshot := range snapshots {
		if snapshot == nil {
			continue
		}
		if name, ok := ResolveTranslatedName(snapshot["name"]); ok {
			return name, true
		}
	}
	return "", false
}

// CodeFromSnapshots returns the first non-empty "code" string across snapshots.
func CodeFromSnapshots(snapshots ...Snapshot) *string {
	for _, snapshot := range snapshots {
		if snapshot == nil {
			continue
		}
		if code, ok := snapshot["code"].(string); ok {
			if trimmed := strings.TrimSpace(code); trimmed != "" {
				return &trimmed
			}
		}
	}
	return nil
}
