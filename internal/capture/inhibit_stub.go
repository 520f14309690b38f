//go:build !linux

package capture

import "fmt"

// Screensaver inhibition is only wired on Linux desktops
type Inhibitor struct{}

func NewInhibitor() (inhibitor *Inhibitor, err error) {
	err = fmt.Errorf("screensaver inhibition not supported on this platform")
	return
}

func (inhibitor *Inhibitor) Inhibit(reason string) error { return nil }
func (inhibitor *Inhibitor) Release() error              { return nil }
func (inhibitor *Inhibitor) Close() error                { return nil }
