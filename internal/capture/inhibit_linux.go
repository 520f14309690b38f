//go:build linux

package capture

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"rdcp/internal/global"
)

const (
	screenSaverDest = "org.freedesktop.ScreenSaver"
	screenSaverPath = "/org/freedesktop/ScreenSaver"
)

// Holds a desktop screensaver inhibition for the lifetime of an
// authenticated viewer so the streamed screen does not blank
type Inhibitor struct {
	conn   *dbus.Conn
	cookie uint32
	active bool
}

// Connects to the session bus. Callers on headless hosts get an error
// and should continue without inhibition.
func NewInhibitor() (inhibitor *Inhibitor, err error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		err = fmt.Errorf("failed to connect to session bus: %v", err)
		return
	}

	inhibitor = &Inhibitor{conn: conn}
	return
}

func (inhibitor *Inhibitor) Inhibit(reason string) (err error) {
	if inhibitor.active {
		return
	}

	obj := inhibitor.conn.Object(screenSaverDest, screenSaverPath)
	call := obj.Call(screenSaverDest+".Inhibit", 0, global.ProgName, reason)
	if call.Err != nil {
		err = fmt.Errorf("screensaver inhibit call failed: %v", call.Err)
		return
	}

	err = call.Store(&inhibitor.cookie)
	if err != nil {
		err = fmt.Errorf("failed to read inhibit cookie: %v", err)
		return
	}

	inhibitor.active = true
	return
}

func (inhibitor *Inhibitor) Release() (err error) {
	if !inhibitor.active {
		return
	}

	obj := inhibitor.conn.Object(screenSaverDest, screenSaverPath)
	call := obj.Call(screenSaverDest+".UnInhibit", 0, inhibitor.cookie)
	if call.Err != nil {
		err = fmt.Errorf("screensaver uninhibit call failed: %v", call.Err)
		return
	}

	inhibitor.active = false
	return
}

func (inhibitor *Inhibitor) Close() error {
	if inhibitor.active {
		inhibitor.Release()
	}
	return inhibitor.conn.Close()
}
