package reservas

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Settings reads and writes operational parameters through a Store.
type Settings struct {
	store Store
}

// SettingsSnapshot is the current value of every known setting.
type SettingsSnapshot struct {
	MaxCapacity        int
	ReservationsPaused bool
}

// NewSettings wires Settings over store.
func NewSettings(store Store) (*Settings, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	return &Settings{store: store}, nil
}

// GetValue returns the stored value for key, or fallback when absent.
// The fallback is not written back.
func (settings *Settings) GetValue(ctx context.Context, key string, fallback string) (string, error) {
	normalizedKey, err := normalizeSettingKey(key)
	if err != nil {
		return "", err
	}
	entry, found, err := settings.store.GetSetting(ctx, normalizedKey)
	if err != nil {
		return "", err
	}
	if !found {
		return fallback, nil
	}
	return entry.Value, nil
}

// SetValue upserts key. The latest write wins.
func (settings *Settings) SetValue(ctx context.Context, key string, value string, description string) error {
	normalizedKey, err := normalizeSettingKey(key)
	if err != nil {
		return err
	}
	return settings.store.UpsertSetting(ctx, SettingEntry{
		Key:         normalizedKey,
		Value:       value,
		Description: description,
	})
}

// MaxCapacity returns the seat ceiling per slot. A stored value that is not a
// positive integer falls back to the default.
func (settings *Settings) MaxCapacity(ctx context.Context) (int, error) {
	raw, err := settings.GetValue(ctx, SettingMaxCapacity, strconv.Itoa(DefaultMaxCapacity))
	if err != nil {
		return 0, err
	}
	capacity, parseErr := strconv.Atoi(strings.TrimSpace(raw))
	if parseErr != nil || capacity <= 0 {
		return DefaultMaxCapacity, nil
	}
	return capacity, nil
}

// ReservationsPaused reports whether new bookings are blocked.
func (settings *Settings) ReservationsPaused(ctx context.Context) (bool, error) {
	raw, err := settings.GetValue(ctx, SettingReservationsPaused, strconv.FormatBool(false))
	if err != nil {
		return false, err
	}
	paused, parseErr := strconv.ParseBool(strings.TrimSpace(raw))
	if parseErr != nil {
		return false, nil
	}
	return paused, nil
}

// UpdateMaxCapacity validates and stores a new seat ceiling.
func (settings *Settings) UpdateMaxCapacity(ctx context.Context, capacity int) error {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return fmt.Errorf("%w: %d outside %d..%d", ErrInvalidCapacity, capacity, MinCapacity, MaxCapacity)
	}
	return settings.SetValue(ctx, SettingMaxCapacity, strconv.Itoa(capacity), settingMaxCapacityDescription)
}

// SetReservationsPaused stores the pause flag.
func (settings *Settings) SetReservationsPaused(ctx context.Context, paused bool) error {
	return settings.SetValue(ctx, SettingReservationsPaused, strconv.FormatBool(paused), settingReservationsPausedDescription)
}

// Snapshot reads every known setting.
func (settings *Settings) Snapshot(ctx context.Context) (SettingsSnapshot, error) {
	capacity, err := settings.MaxCapacity(ctx)
	if err != nil {
		return SettingsSnapshot{}, err
	}
	paused, err := settings.ReservationsPaused(ctx)
	if err != nil {
		return SettingsSnapshot{}, err
	}
	return SettingsSnapshot{MaxCapacity: capacity, ReservationsPaused: paused}, nil
}

func normalizeSettingKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidSettingKey)
	}
	return trimmed, nil
}
