package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbp1/pgdbcopy/internal/clone"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"auto", "bar", "PLAIN", "none"} {
		_, err := ParseMode(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseMode("fancy")
	assert.Error(t, err)
}

func TestAutoIsPlainOffTerminal(t *testing.T) {
	assert.Equal(t, ModePlain, ModeAuto.Resolve(&bytes.Buffer{}))
	assert.Equal(t, ModeNone, ModeNone.Resolve(&bytes.Buffer{}))
}

func TestPlainLines(t *testing.T) {
	var buf bytes.Buffer
	d := New(ModePlain, &buf, "shop_test")
	d.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	d.Observe(clone.Event{Stage: clone.StageDropTarget, State: clone.StateRunning})
	d.Observe(clone.Event{Stage: clone.StageDropTarget, State: clone.StateSkipped})
	d.Observe(clone.Event{Stage: clone.StageCreateTarget, State: clone.StateRunning})
	d.Observe(clone.Event{Stage: clone.StageCreateTarget, State: clone.StateFailed, Err: errors.New("permission denied\nDETAIL: x")})
	d.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[2024-05-01 12:00:00] DropTarget    skipped (1/7)", lines[1])
	assert.Contains(t, lines[3], "CreateTarget  failed (2/7): permission denied")
	assert.NotContains(t, buf.String(), "DETAIL")
}

func TestNoneWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	d := New(ModeNone, &buf, "shop_test")
	for _, s := range clone.Stages() {
		d.Observe(clone.Event{Stage: s, State: clone.StateRunning})
		d.Observe(clone.Event{Stage: s, State: clone.StateDone})
	}
	d.Wait()
	assert.Empty(t, buf.String())
}

func TestBarCompletesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	d := New(ModeBar, &buf, "shop_test")
	d.Observe(clone.Event{Stage: clone.StageDropTarget, State: clone.StateFailed, Err: errors.New("boom")})
	d.Observe(clone.Event{Stage: clone.StageCleanup, State: clone.StateDone})
	d.Observe(clone.Event{Stage: clone.StageNotify, State: clone.StateDone})

	done := make(chan struct{})
	go func() { d.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bar did not finish")
	}
	assert.True(t, d.bar.Completed())
}

func TestBarDrawsNothingWithoutEvents(t *testing.T) {
	var buf bytes.Buffer
	d := New(ModeBar, &buf, "shop_test")
	d.Wait()
	assert.Nil(t, d.p)
	assert.Empty(t, buf.String())
}
