// Package sdnotify wraps the systemd readiness protocol.
//
// All calls are no-ops outside a systemd unit (NOTIFY_SOCKET unset).
package sdnotify

import "github.com/coreos/go-systemd/v22/daemon"

func Ready() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

func Stopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

func Status(msg string) {
	_, _ = daemon.SdNotify(false, "STATUS="+msg)
}
