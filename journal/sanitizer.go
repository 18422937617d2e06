package journal

import (
	"sync"

	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-profilesync/pkg/types"
)

var defaultMaskerOnce sync.Once

// DefaultMasker returns the shared masker with the journal denylist applied.
func DefaultMasker() *masker.Masker {
	defaultMaskerOnce.Do(func() {
		if masker.Default == nil {
			return
		}
		registerDefaultMaskFields(masker.Default)
	})
	return masker.Default
}

// SanitizeFields masks sensitive values in a log or journal payload. A nil
// masker falls back to DefaultMasker; masking failures drop the payload.
func SanitizeFields(mask *masker.Masker, fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	if mask == nil {
		mask = DefaultMasker()
	}
	if mask == nil {
		return map[string]any{}
	}
	masked, err := mask.Mask(types.CloneFields(fields))
	if err != nil {
		return map[string]any{}
	}
	out, ok := masked.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}

// SanitizeEntry masks the entry's data payload.
func SanitizeEntry(mask *masker.Masker, entry types.JournalEntry) types.JournalEntry {
	if len(entry.Data) == 0 {
		return entry
	}
	entry.Data = SanitizeFields(mask, entry.Data)
	return entry
}

// ChangeFields converts a canonical change set into a loggable payload.
func ChangeFields(changes map[types.CanonicalField]string) map[string]any {
	out := make(map[string]any, len(changes))
	for field, value := range changes {
		out[string(field)] = value
	}
	return out
}

func registerDefaultMaskFields(mask *masker.Masker) {
	if mask == nil {
		return
	}
	mask.RegisterMaskField("secret", "filled4")
	mask.RegisterMaskField("token", "filled4")
	mask.RegisterMaskField("password", "filled4")
	mask.RegisterMaskField("email", "filled4")
}
