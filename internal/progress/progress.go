// Package progress renders clone stage transitions on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/vbp1/pgdbcopy/internal/clone"
)

// Mode selects how progress is shown.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeBar   Mode = "bar"
	ModePlain Mode = "plain"
	ModeNone  Mode = "none"
)

// ParseMode validates a --progress value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeAuto, ModeBar, ModePlain, ModeNone:
		return m, nil
	}
	return "", fmt.Errorf("invalid progress mode %q (want auto|bar|plain|none)", s)
}

// Resolve turns auto into bar on a terminal and plain otherwise.
func (m Mode) Resolve(out io.Writer) Mode {
	if m != ModeAuto {
		return m
	}
	if f, ok := out.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
			return ModeBar
		}
	}
	return ModePlain
}

// Display follows the stages of a single clone run. In bar mode nothing is
// drawn until the first event, so a rejected request leaves no trace.
type Display struct {
	mode  Mode
	out   io.Writer
	label string
	total int
	now   func() time.Time

	once sync.Once
	p    *mpb.Progress
	bar  *mpb.Bar

	mu       sync.Mutex
	finished int
	current  clone.Stage
}

// New returns a Display writing to out. label prefixes the bar.
func New(mode Mode, out io.Writer, label string) *Display {
	return &Display{
		mode:  mode.Resolve(out),
		out:   out,
		label: label,
		total: len(clone.Stages()),
		now:   time.Now,
	}
}

func (d *Display) startBar() {
	d.p = mpb.New(mpb.WithOutput(d.out), mpb.WithWidth(40), mpb.WithRefreshRate(100*time.Millisecond))
	name := d.label + " "
	d.bar = d.p.New(int64(d.total), mpb.BarStyle().Rbound("|").Lbound("|"),
		mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name), C: decor.DSyncWidth}), decor.Percentage()),
		mpb.AppendDecorators(decor.Any(func(decor.Statistics) string {
			d.mu.Lock()
			defer d.mu.Unlock()
			return string(d.current)
		})))
}

// Mode returns the resolved mode.
func (d *Display) Mode() Mode { return d.mode }

// Observe is a clone.Observer.
func (d *Display) Observe(e clone.Event) {
	if d.mode == ModeNone {
		return
	}
	d.mu.Lock()
	d.current = e.Stage
	if e.State != clone.StateRunning {
		d.finished++
	}
	finished := d.finished
	d.mu.Unlock()

	switch d.mode {
	case ModeBar:
		d.once.Do(d.startBar)
		if e.State == clone.StateRunning {
			return
		}
		d.bar.Increment()
		// stages after a failure never run
		if e.Stage == clone.StageNotify {
			d.bar.SetTotal(-1, true)
		}
	case ModePlain:
		if e.State == clone.StateRunning {
			fmt.Fprintf(d.out, "[%s] %-13s %s\n", d.now().Format("2006-01-02 15:04:05"), e.Stage, e.State)
			return
		}
		line := fmt.Sprintf("[%s] %-13s %s (%d/%d)", d.now().Format("2006-01-02 15:04:05"), e.Stage, e.State, finished, d.total)
		if e.Err != nil {
			first, _, _ := strings.Cut(e.Err.Error(), "\n")
			line += ": " + first
		}
		fmt.Fprintln(d.out, line)
	}
}

// Wait flushes the bar. Call it after the run has finished; it is a no-op
// when no event was observed.
func (d *Display) Wait() {
	if d.p == nil {
		return
	}
	if !d.bar.Completed() {
		d.bar.Abort(false)
	}
	d.p.Wait()
}
