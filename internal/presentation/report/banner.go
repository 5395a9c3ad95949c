package report

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{` _   _ _           _           _     `, "#f59e0b"},
	{`| | | (_)_   _____| |     __ _| |__  `, "#f97316"},
	{`| |_| | \ \ / / _ \ |    / _' | '_ \ `, "#ef4444"},
	{`|  _  | |\ V /  __/ |___| (_| | |_) |`, "#ec4899"},
	{`|_| |_|_| \_/ \___|_____|\__,_|_.__/ `, "#d946ef"},
}

// PrintBanner writes the HiveLab banner in the colors w supports.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
