package base

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
)

// FlagSet wraps flag.FlagSet with help output in the CLI's style.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet creates a FlagSet and silences the default usage output; the
// command's Help() prints flags instead.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.Usage = func() {}
	f.SetOutput(&bytes.Buffer{})
	return &FlagSet{FlagSet: f}
}

// Help returns the options section of a command's help text.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&b, "\n  -%s", fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&b, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&b, "\n      %s\n", fl.Usage)
	})
	return strings.TrimRight(b.String(), "\n")
}
