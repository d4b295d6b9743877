package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

var offsetPattern = regexp.MustCompile(`^[+-]\d{2}:\d{2}$`)

// Settings is the user-editable configuration, persisted as YAML.
type Settings struct {
	Server        ServerSettings       `yaml:"server"`
	Calendar      CalendarSettings     `yaml:"calendar"`
	Notifications NotificationSettings `yaml:"notifications"`
	Source        SourceSettings       `yaml:"source"`
	Store         StoreSettings        `yaml:"store"`
}

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// Address returns host:port for net/http.
func (s ServerSettings) Address() string {
	return s.Bind + AddrSeparator + strconv.Itoa(s.Port)
}

// CalendarSettings controls how "today" is observed and how events are rendered.
type CalendarSettings struct {
	// UTCOffset is a fixed offset such as "+03:30". No time-zone database is consulted.
	UTCOffset string `yaml:"utc_offset"`
	Language  string `yaml:"language"`
	// ReminderTrigger is an ISO-8601 duration such as "-P1D"; empty disables alarms.
	ReminderTrigger string `yaml:"reminder_trigger"`
}

// Offset parses UTCOffset. Validate must have succeeded first.
func (c CalendarSettings) Offset() time.Duration {
	d, _ := ParseUTCOffset(c.UTCOffset)
	return d
}

// NotificationSettings mirrors the widget's notification toggles.
type NotificationSettings struct {
	Enabled bool `yaml:"enabled"`
	DND     bool `yaml:"dnd"`
}

// Muted reports whether nothing should be delivered.
func (n NotificationSettings) Muted() bool {
	return !n.Enabled || n.DND
}

// SourceSettings describes where contact birthdays are imported from.
type SourceSettings struct {
	Mode           string `yaml:"mode"`
	LocalPath      string `yaml:"local_path"`
	URL            string `yaml:"url"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"` // optional; the keyring is preferred
	RefreshMinutes int    `yaml:"refresh_minutes"`
}

// StoreSettings locates the SQLite event database.
type StoreSettings struct {
	Path string `yaml:"path"`
}

// NewDefaultSettings returns the settings used when no file exists.
func NewDefaultSettings() *Settings {
	return &Settings{
		Server: ServerSettings{
			Bind: DefaultBindAddr,
			Port: DefaultPort,
		},
		Calendar: CalendarSettings{
			UTCOffset: DefaultUTCOffset,
			Language:  DefaultLanguage,
		},
		Notifications: NotificationSettings{
			Enabled: true,
		},
		Source: SourceSettings{
			Mode:           SourceModeNone,
			RefreshMinutes: DefaultRefreshMin,
		},
		Store: StoreSettings{
			Path: DefaultDBFile,
		},
	}
}

// Validate checks every section.
func (s *Settings) Validate() error {
	languages := make([]interface{}, len(SupportedLanguages))
	for i, l := range SupportedLanguages {
		languages[i] = l
	}

	err := validation.Errors{
		"server": validation.ValidateStruct(&s.Server,
			validation.Field(&s.Server.Port, validation.Required, validation.Min(MinPort), validation.Max(MaxPort)),
		),
		"calendar": validation.ValidateStruct(&s.Calendar,
			validation.Field(&s.Calendar.UTCOffset, validation.Required, validation.Match(offsetPattern).Error(ErrOffsetFormat)),
			validation.Field(&s.Calendar.Language, validation.Required, validation.In(languages...)),
		),
		"source": validation.ValidateStruct(&s.Source,
			validation.Field(&s.Source.Mode, validation.In(SourceModeWeb, SourceModeLocal)),
			validation.Field(&s.Source.LocalPath, validation.When(s.Source.Mode == SourceModeLocal, validation.Required)),
			validation.Field(&s.Source.URL, validation.When(s.Source.Mode == SourceModeWeb, validation.Required)),
			validation.Field(&s.Source.RefreshMinutes, validation.Min(DisabledInterval)),
		),
		"store": validation.ValidateStruct(&s.Store,
			validation.Field(&s.Store.Path, validation.Required),
		),
	}.Filter()
	if err != nil {
		return err
	}

	if _, err := ParseUTCOffset(s.Calendar.UTCOffset); err != nil {
		return err
	}
	return nil
}

// ParseUTCOffset converts "+03:30" or "-05:00" to a duration.
func ParseUTCOffset(s string) (time.Duration, error) {
	if !offsetPattern.MatchString(s) {
		return 0, fmt.Errorf("%s: %q", ErrOffsetFormat, s)
	}
	hours, _ := strconv.Atoi(s[1:3])
	minutes, _ := strconv.Atoi(s[4:6])
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("%s: %q", ErrOffsetFormat, s)
	}
	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}

// LoadSettings reads a YAML file on top of the defaults, expanding environment
// variables first. A missing file yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := NewDefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", ErrSettingsRead, path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), s); err != nil {
		return nil, fmt.Errorf("%s %s: %w", ErrSettingsParse, path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrSettingsInvalid, err)
	}
	return s, nil
}

// Save writes the settings as YAML with owner-only permissions.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, FilePermUserRW)
}
