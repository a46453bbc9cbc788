package version

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"avb/domain/app"
)

// Tag is set with -ldflags "-X avb/presentation/runners/version.Tag=..." by release builds.
var Tag = "dev-build"

// Current returns the trimmed build tag.
func Current() string {
	return strings.TrimSpace(Tag)
}

type Runner struct {
	out io.Writer
}

func NewRunner() *Runner {
	return &Runner{out: os.Stdout}
}

func (r *Runner) Run(_ context.Context) {
	_, _ = fmt.Fprintf(r.out, "%s %s\n", app.Name, Current())
}
