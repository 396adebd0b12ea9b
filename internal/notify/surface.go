package notify

import "context"

// Permission is the OS notification permission state.
type Permission string

const (
	PermissionDefault     Permission = "default"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported"
)

// NativeNotification is what the presenter asks the OS surface to show.
type NativeNotification struct {
	Title   string
	Body    string
	Icon    string
	Badge   string
	Tag     string
	Silent  bool
	OnClick func()
}

type NativeHandle interface {
	Close() error
}

// Native is the OS-level notification capability.
type Native interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Show(n NativeNotification) (NativeHandle, error)
}

// Environment is the host surface the presenter runs in.
type Environment interface {
	SecureContext() bool
	Hidden() bool
	Focus()
	Navigate(path string)
}

// FlagStore persists small string flags. storage.Flags implements it.
type FlagStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}
