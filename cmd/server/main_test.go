package main

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

func TestSdNotify_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if err := sdNotify(sdReady); !errors.Is(err, errNoNotifySocket) {
		t.Fatalf("sdNotify() = %v, want errNoNotifySocket", err)
	}
}

func TestSdNotify_MissingSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "gone.sock"))

	err := sdNotify(sdStopping)
	if err == nil {
		t.Fatal("expected error for missing socket")
	}
	if !strings.Contains(err.Error(), "dial failed") || !strings.Contains(err.Error(), sdStopping) {
		t.Errorf("error = %q, want dial failure naming %s", err, sdStopping)
	}
}

func TestSdNotify_DeliversState(t *testing.T) {
	for _, state := range []string{sdReady, sdStopping} {
		t.Run(state, func(t *testing.T) {
			sock := filepath.Join(t.TempDir(), "notify.sock")

			var lc net.ListenConfig
			conn, err := lc.ListenPacket(context.Background(), "unixgram", sock)
			if err != nil {
				t.Fatalf("listen unixgram: %v", err)
			}
			defer func() { _ = conn.Close() }()

			t.Setenv("NOTIFY_SOCKET", sock)
			if err := sdNotify(state); err != nil {
				t.Fatalf("sdNotify(%q) = %v", state, err)
			}

			buf := make([]byte, 64)
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got := string(buf[:n]); got != state {
				t.Errorf("payload = %q, want %q", got, state)
			}
		})
	}
}
