package flight

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Setting keys as stored in the ledger.
const (
	SettingRefreshInterval = "refresh_interval"
	SettingRetentionDays   = "retention_days"
	SettingClientTracking  = "client_tracking"
)

var (
	// ErrUnknownSetting is returned for keys other than the Setting* constants
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidSetting is returned when a value does not parse or is out of range
	ErrInvalidSetting = errors.New("invalid setting value")
)

// Settings are the deployment-wide tunables.
type Settings struct {
	// RefreshInterval is the polling period in seconds. 0 disables polling.
	RefreshInterval int `json:"refresh_interval"`

	// RetentionDays is how long records are kept (>= 1)
	RetentionDays int `json:"retention_days"`

	// ClientTracking allows interactive clients to write positions
	ClientTracking bool `json:"client_tracking"`
}

// DefaultSettings returns the values used when nothing valid is stored.
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval: 30,
		RetentionDays:   14,
		ClientTracking:  true,
	}
}

// Refresh returns RefreshInterval as a duration.
func (s Settings) Refresh() time.Duration {
	return time.Duration(s.RefreshInterval) * time.Second
}

// Retention returns RetentionDays as a duration.
func (s Settings) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// SettingsFromValues builds Settings from stored key/value rows.
// Unknown keys are ignored; malformed values keep their default.
func SettingsFromValues(values map[string]string) Settings {
	s := DefaultSettings()
	for key, value := range values {
		// Errors leave the default in place
		_ = s.apply(key, value)
	}
	return s
}

// ValidateSetting checks a single key/value pair without applying it.
func ValidateSetting(key, value string) error {
	s := DefaultSettings()
	return s.apply(key, value)
}

// Values returns the settings as stored key/value rows.
func (s Settings) Values() map[string]string {
	return map[string]string{
		SettingRefreshInterval: strconv.Itoa(s.RefreshInterval),
		SettingRetentionDays:   strconv.Itoa(s.RetentionDays),
		SettingClientTracking:  strconv.FormatBool(s.ClientTracking),
	}
}

func (s *Settings) apply(key, value string) error {
	switch key {
	case SettingRefreshInterval:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidSetting, key, value)
		}
		s.RefreshInterval = n
	case SettingRetentionDays:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: %s must be an integer >= 1, got %q", ErrInvalidSetting, key, value)
		}
		s.RetentionDays = n
	case SettingClientTracking:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidSetting, key, value)
		}
		s.ClientTracking = b
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	return nil
}
