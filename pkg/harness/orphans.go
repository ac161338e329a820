package harness

import (
	"errors"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

var browserProcessNames = []string{"chrome", "chromium", "headless_shell", "firefox", "webkit", "playwright"}

// browserChildren lists the browser processes still parented to this one.
func browserChildren() ([]string, error) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	children, err := self.Children()
	if errors.Is(err, process.ErrorNoChildren) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, child := range children {
		name, err := child.Name()
		if err != nil {
			continue
		}
		if isBrowserProcess(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func isBrowserProcess(name string) bool {
	name = strings.ToLower(name)
	for _, n := range browserProcessNames {
		if strings.Contains(name, n) {
			return true
		}
	}
	return false
}
