package cli

import (
	"fmt"
	"io"

	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/chmouel/lazybranch/internal/deletion"
)

type progressReporter interface {
	step(deletion.Progress)
	finish()
}

// lineReporter prints one line per finished operation. It is used when
// prompts may interleave with progress output.
type lineReporter struct {
	out io.Writer
}

func newLineReporter(out io.Writer) *lineReporter {
	if out == nil {
		out = io.Discard
	}
	return &lineReporter{out: out}
}

func (r *lineReporter) step(p deletion.Progress) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", p.Completed, p.Total, p.Label)
}

func (r *lineReporter) finish() {}

// barReporter renders a single mpb bar for the whole batch.
type barReporter struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

func newBarReporter(out io.Writer, total int) *barReporter {
	if out == nil {
		out = io.Discard
	}
	name := "Deleting"
	p := mpb.New(mpb.WithOutput(out), mpb.WithWidth(60))
	bar := p.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 2, C: decor.DidentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.CountersNoUnit("(%d/%d)", decor.WCSyncSpace),
		),
	)
	return &barReporter{progress: p, bar: bar}
}

func (r *barReporter) step(deletion.Progress) {
	r.bar.Increment()
}

// finish stops a bar left short by a cancelled batch so Wait returns.
func (r *barReporter) finish() {
	if !r.bar.Completed() {
		r.bar.Abort(false)
	}
	r.progress.Wait()
}
