package shared

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// openCommand builds the platform command that hands target to the default viewer.
func openCommand(target string) (*exec.Cmd, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}

// OpenBrowser opens each generated image URL in the system browser.
//
// All URLs are attempted; the returned error joins every failure.
func OpenBrowser(urls ...string) error {
	var errs []error
	for _, u := range urls {
		cmd, err := openCommand(u)
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			errs = append(errs, fmt.Errorf("failed to open %s: %w", u, err))
		}
	}
	return errors.Join(errs...)
}
