package domain

// ModifierKey designates the key that bypasses download interception.
// Bypass itself is not implemented; the setting is stored and surfaced only.
type ModifierKey string

const (
	ModifierKeyAlt   ModifierKey = "alt"
	ModifierKeyCtrl  ModifierKey = "ctrl"
	ModifierKeyShift ModifierKey = "shift"
	ModifierKeyNone  ModifierKey = "none"
)

// PluginSettings is the process-wide agent configuration. It is loaded once
// at startup and mutated only through the settings service.
type PluginSettings struct {
	ServerURL              string      `json:"serverUrl"`
	IsInterceptEnabled     bool        `json:"isInterceptEnabled"`
	MinFileSizeToIntercept int         `json:"minFileSizeToIntercept"` // megabytes
	IgnoredDomains         []string    `json:"ignoredDomains"`
	ModifierKey            ModifierKey `json:"modifierKey"`
}

// DefaultSettings returns the settings used before the user has saved any.
func DefaultSettings() PluginSettings {
	return PluginSettings{
		ServerURL:              "http://127.0.0.1:8000",
		IsInterceptEnabled:     true,
		MinFileSizeToIntercept: 0,
		IgnoredDomains:         []string{},
		ModifierKey:            ModifierKeyNone,
	}
}
