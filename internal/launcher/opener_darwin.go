//go:build darwin

package launcher

func browserCommand(url string) (string, []string) {
	return "open", []string{url}
}
