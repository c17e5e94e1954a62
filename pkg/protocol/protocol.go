// Package protocol defines the JSON wire contract of the albinos service.
//
// Every message is a single JSON object. Requests carry a REQUEST_NAME field
// selecting the command; replies carry a REQUEST_STATE field. Subscription
// events are unsolicited objects written on the same stream as replies, so
// clients must accept back-to-back concatenated objects.
package protocol

import (
	"os"
	"path/filepath"
)

// DefaultSocketName is the well-known socket file name every client and
// the service agree on.
const DefaultSocketName = "raven-os_service_albinos.sock"

// DefaultSocketPath returns the default endpoint under the system temp
// directory.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), DefaultSocketName)
}

// Request names accepted by the service.
const (
	ConfigCreate           = "CONFIG_CREATE"
	ConfigLoad             = "CONFIG_LOAD"
	ConfigUnload           = "CONFIG_UNLOAD"
	ConfigInclude          = "CONFIG_INCLUDE"
	SettingUpdate          = "SETTING_UPDATE"
	SettingRemove          = "SETTING_REMOVE"
	SettingGet             = "SETTING_GET"
	ConfigGetSettings      = "CONFIG_GET_SETTINGS"
	ConfigGetSettingsNames = "CONFIG_GET_SETTINGS_NAMES"
	AliasSet               = "ALIAS_SET"
	AliasUnset             = "ALIAS_UNSET"
	SubscribeSetting       = "SUBSCRIBE_SETTING"
	UnsubscribeSetting     = "UNSUBSCRIBE_SETTING"
)

// State is the REQUEST_STATE value of a reply.
type State string

const (
	StateSuccess        State = "SUCCESS"
	StateUnknownRequest State = "UNKNOWN_REQUEST"
	StateUnknownID      State = "UNKNOWN_ID"
	StateUnknownKey     State = "UNKNOWN_KEY"
	StateUnknownSetting State = "UNKNOWN_SETTING"
	StateDBError        State = "DB_ERROR"
	StateInternalError  State = "INTERNAL_ERROR"
	StateReadOnly       State = "READ_ONLY"
)

// EventType tags a subscription event.
type EventType string

const (
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Request is the inbound envelope. Only the fields relevant to the named
// command are set; pointer fields distinguish "absent" from zero values.
type Request struct {
	Name             string         `json:"REQUEST_NAME"`
	ConfigName       string         `json:"CONFIG_NAME,omitempty"`
	ConfigKey        *string        `json:"CONFIG_KEY,omitempty"`
	ReadonlyKey      *string        `json:"READONLY_CONFIG_KEY,omitempty"`
	ConfigID         *uint64        `json:"CONFIG_ID,omitempty"`
	Src              *uint64        `json:"SRC,omitempty"`
	SettingName      *string        `json:"SETTING_NAME,omitempty"`
	AliasName        *string        `json:"ALIAS_NAME,omitempty"`
	SettingsToUpdate map[string]any `json:"SETTINGS_TO_UPDATE,omitempty"`
}

// StateAnswer is a reply carrying only a state.
type StateAnswer struct {
	State State `json:"REQUEST_STATE"`
}

// CreateAnswer replies to CONFIG_CREATE. Both keys are empty strings when
// the state is not SUCCESS.
type CreateAnswer struct {
	ConfigKey   string `json:"CONFIG_KEY"`
	ReadonlyKey string `json:"READONLY_CONFIG_KEY"`
	State       State  `json:"REQUEST_STATE"`
}

// LoadAnswer replies to CONFIG_LOAD. ConfigID is the session-local handle,
// never the persistent identifier.
type LoadAnswer struct {
	ConfigName string `json:"CONFIG_NAME"`
	ConfigID   uint64 `json:"CONFIG_ID"`
	State      State  `json:"REQUEST_STATE"`
}

// SettingGetAnswer replies to SETTING_GET.
type SettingGetAnswer struct {
	Value any   `json:"SETTING_VALUE"`
	State State `json:"REQUEST_STATE"`
}

// SettingsAnswer replies to CONFIG_GET_SETTINGS.
type SettingsAnswer struct {
	Settings map[string]any `json:"SETTINGS"`
	State    State          `json:"REQUEST_STATE"`
}

// SettingsNamesAnswer replies to CONFIG_GET_SETTINGS_NAMES. The array is
// sorted; consumers treat it as a set.
type SettingsNamesAnswer struct {
	Names []string `json:"SETTINGS_NAMES"`
	State State    `json:"REQUEST_STATE"`
}

// Event is the unsolicited subscription notification. ConfigID is the
// receiving session's own handle for the configuration.
type Event struct {
	ConfigID    uint64    `json:"CONFIG_ID"`
	SettingName string    `json:"SETTING_NAME"`
	Type        EventType `json:"SUBSCRIPTION_EVENT_TYPE"`
}

// Reply is the union of all reply shapes, used by clients to decode
// whatever the service sent back.
type Reply struct {
	State         State          `json:"REQUEST_STATE"`
	ConfigName    string         `json:"CONFIG_NAME"`
	ConfigID      uint64         `json:"CONFIG_ID"`
	ConfigKey     string         `json:"CONFIG_KEY"`
	ReadonlyKey   string         `json:"READONLY_CONFIG_KEY"`
	SettingValue  any            `json:"SETTING_VALUE"`
	Settings      map[string]any `json:"SETTINGS"`
	SettingsNames []string       `json:"SETTINGS_NAMES"`
}
