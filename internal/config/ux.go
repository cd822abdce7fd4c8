package config

// UIConfig configures the terminal console.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark
}

// IsDark reports whether the dark palette was requested.
func (u UIConfig) IsDark() bool {
	return u.Theme == "dark"
}
