//go:build linux

package launcher

func browserCommand(url string) (string, []string) {
	return "xdg-open", []string{url}
}
