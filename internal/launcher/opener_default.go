//go:build !linux && !darwin && !windows

package launcher

func browserCommand(url string) (string, []string) {
	return "xdg-open", []string{url}
}
