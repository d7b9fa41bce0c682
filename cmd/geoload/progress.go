package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"geoload/internal/datasource/file"
)

// progressSource wraps a local file with a byte progress bar on stderr. A
// full pre-scan opens the file twice; the bar restarts for each pass.
type progressSource struct {
	file.Local
	bar    *progressbar.ProgressBar
	passes int
}

// newProgressSource enables the bar only when stderr is a terminal.
func newProgressSource(l file.Local, enabled bool, w io.Writer) *progressSource {
	s := &progressSource{Local: l}
	f, isFile := w.(*os.File)
	if !enabled || !isFile || !isatty.IsTerminal(f.Fd()) {
		return s
	}
	s.bar = progressbar.NewOptions64(l.Size(),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return s
}

func (s *progressSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.bar == nil {
		return s.Local.Open(ctx)
	}
	s.passes++
	s.bar.Reset()
	if s.passes == 1 {
		s.bar.Describe("reading")
	} else {
		s.bar.Describe("loading")
	}
	return s.Local.OpenWrapped(ctx, func(r io.Reader) io.Reader {
		pr := progressbar.NewReader(r, s.bar)
		return &pr
	})
}

func (s *progressSource) finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
}
