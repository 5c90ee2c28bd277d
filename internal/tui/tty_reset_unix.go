//go:build !windows

package tui

import (
	"os"
	"os/exec"

	"github.com/mattn/go-isatty"
)

// restoreTerminal puts the controlling terminal back into cooked mode after
// the board exits, in case bubbletea was interrupted mid-frame.
func restoreTerminal() {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return
	}
	defer tty.Close()
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = tty
	_ = cmd.Run()
}
