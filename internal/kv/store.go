package kv

import "errors"

// Store is a flat key-value abstraction shared by every component that
// needs to remember something across page loads. Values are strings;
// callers serialize anything richer themselves.
//
// Stores are read and written from the single SDK goroutine without any
// locking discipline of their own. Two hosts writing to the same durable
// store (two tabs against one file, two processes against one Redis key
// space) can race on session creation; that limitation is inherited from
// the original design and is not papered over here.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)
	// Set writes the value for key, overwriting any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Well-known keys persisted by the SDK.
const (
	KeyDeviceUUID        = "device_uuid"
	KeySDKToken          = "sdk_token"
	KeyUserID            = "user_id"
	KeySessionID         = "session_id"
	KeySessionNumber     = "session_number"
	KeySessionStart      = "session_start_time"
	KeyLastActive        = "last_active_time"
	KeyFirstLaunchSent   = "first_launch_sent"
	KeyActiveTrigger     = "active_trigger"
	KeyActiveTriggerList = "active_trigger_list"
	KeyUTMParams         = "utm_params"
)

// Has reports whether key has a value in s.
func Has(s Store, key string) bool {
	_, err := s.Get(key)
	return err == nil
}

// GetDefault returns the value for key, or def when absent.
func GetDefault(s Store, key, def string) string {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	return v
}
