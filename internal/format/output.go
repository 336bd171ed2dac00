package format

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"requestbin/internal/bin"
)

var (
	nameColor      = color.New(color.FgGreen, color.Bold)
	methodColor    = color.New(color.FgMagenta, color.Bold)
	urlColor       = color.New(color.FgBlue)
	headerKeyColor = color.New(color.FgCyan)
	dimColor       = color.New(color.Faint)
	privateColor   = color.New(color.FgYellow, color.Bold)
)

// sanitize escapes control characters so captured data cannot drive the
// terminal.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r == '\x1b':
			b.WriteString("\\x1b")
		case unicode.IsControl(r):
			fmt.Fprintf(&b, "\\x%02x", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PrintBin writes the bin summary followed by its requests, newest first.
func PrintBin(w io.Writer, b *bin.Bin, verbose bool) {
	nameColor.Fprintf(w, "%s", sanitize(b.Name))
	if b.Private {
		privateColor.Fprint(w, " [private]")
	}
	fmt.Fprintln(w)
	dimColor.Fprintf(w, "  color: rgb(%d, %d, %d)  requests: %d\n\n", b.Color[0], b.Color[1], b.Color[2], b.RequestCount())
	for _, r := range b.Requests() {
		PrintRequest(w, r, verbose)
	}
}

// PrintRequest writes one capture. Headers are printed only when verbose.
func PrintRequest(w io.Writer, r *bin.Request, verbose bool) {
	methodColor.Fprintf(w, "%s ", sanitize(r.Method))
	urlColor.Fprintf(w, "%s", sanitize(r.URL))
	dimColor.Fprintf(w, "  %s  %s  from %s  %d bytes\n",
		r.ID, r.Created().Format("2006-01-02 15:04:05"), sanitize(r.RemoteAddr), r.ContentLength)

	if verbose {
		for _, kv := range r.Headers {
			headerKeyColor.Fprintf(w, "  %s", sanitize(kv.Key))
			fmt.Fprintf(w, ": %s\n", sanitize(kv.Value))
		}
	}
	if len(r.FormData) > 0 {
		for _, kv := range r.FormData {
			fmt.Fprintf(w, "  %s = %s\n", sanitize(kv.Key), sanitize(kv.Value))
		}
	} else if len(r.QueryString) > 0 {
		keys := make([]string, 0, len(r.QueryString))
		for k := range r.QueryString {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  ?%s = %s\n", sanitize(k), sanitize(r.QueryString[k]))
		}
	}
	if r.Body != "" {
		fmt.Fprintf(w, "\n%s\n", sanitize(r.Body))
	}
	fmt.Fprintln(w)
}
