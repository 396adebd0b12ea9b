package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pelusa-v/pelusa-live/internal/notify"
)

// terminal is the notification surface of the interactive client: native
// notifications are printed lines and "hidden" is toggled by /hide and /show.
type terminal struct {
	mu         sync.Mutex
	out        io.Writer
	permission notify.Permission
	hidden     bool
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out, permission: notify.PermissionDefault}
}

func (t *terminal) Supported() bool { return true }

func (t *terminal) Permission() notify.Permission {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.permission
}

func (t *terminal) RequestPermission(context.Context) (notify.Permission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.permission = notify.PermissionGranted
	return t.permission, nil
}

func (t *terminal) Show(n notify.NativeNotification) (notify.NativeHandle, error) {
	t.printf("\a[%s] %s: %s\n", n.Tag, n.Title, n.Body)
	return noopHandle{}, nil
}

func (t *terminal) SecureContext() bool { return true }

func (t *terminal) Hidden() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hidden
}

func (t *terminal) SetHidden(hidden bool) {
	t.mu.Lock()
	t.hidden = hidden
	t.mu.Unlock()
}

func (t *terminal) Focus() { t.SetHidden(false) }

func (t *terminal) Navigate(path string) { t.printf("-> %s\n", path) }

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

type noopHandle struct{}

func (noopHandle) Close() error { return nil }
