package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbp1/pgdbcopy/internal/clone"
)

type sent struct {
	from    string
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	msgs []sent
	err  error
}

func (m *fakeMailer) Send(_ context.Context, from string, to []string, subject, body string) error {
	m.msgs = append(m.msgs, sent{from, to, subject, body})
	return m.err
}

func TestResolve(t *testing.T) {
	users := Users{"alice": "alice@example.com"}

	s := New(Config{From: "ops@example.com"}, users, &fakeMailer{})
	from, to, err := s.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", from)
	assert.Equal(t, []string{"alice@example.com"}, to)

	from, to, err = s.Resolve("bob")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", from)
	assert.Equal(t, []string{"ops@example.com"}, to)

	s = New(Config{OpsMailbox: "dba@example.com"}, users, &fakeMailer{})
	from, to, err = s.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", from)
	assert.Equal(t, []string{"alice@example.com", "dba@example.com"}, to)

	_, _, err = New(Config{}, users, &fakeMailer{}).Resolve("bob")
	require.ErrorIs(t, err, ErrNoAddress)
}

func TestNotifySuccessMentionsBothDatabases(t *testing.T) {
	m := &fakeMailer{}
	s := New(Config{From: "ops@example.com"}, Users{"alice": "alice@example.com"}, m)

	s.Notify(context.Background(), "alice", clone.Outcome{Source: "shop", Target: "shop_test"})

	require.Len(t, m.msgs, 1)
	msg := m.msgs[0]
	assert.Equal(t, []string{"alice@example.com"}, msg.to)
	assert.Equal(t, "pgdbcopy: result of clone of database shop", msg.subject)
	assert.Contains(t, msg.body, "shop")
	assert.Contains(t, msg.body, "shop_test")
	assert.Contains(t, msg.body, "cloned successfully")
}

func TestFormatFailures(t *testing.T) {
	tests := []struct {
		stage clone.Stage
		want  string
	}{
		{clone.StageDropTarget, "Error dropping database shop_test."},
		{clone.StageCreateTarget, "Error creating database shop_test."},
		{clone.StageDumpSource, "Error dumping database shop."},
		{clone.StageRestoreTarget, "Error restoring database shop_test."},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			_, body := Format(clone.Outcome{Source: "shop", Target: "shop_test", Stage: tt.stage, Detail: "tool said no"})
			assert.Equal(t, tt.want+"\n\ntool said no\n", body)
		})
	}
}

func TestFormatPostProcessIsDistinct(t *testing.T) {
	_, body := Format(clone.Outcome{Source: "shop", Target: "shop_test", Stage: clone.StagePostProcess, Detail: `ERROR:  relation "ir_cron" does not exist`})
	assert.Contains(t, body, "post-processing failed")
	assert.Contains(t, body, "The data is complete")
	assert.Contains(t, body, `relation "ir_cron" does not exist`)
	assert.NotContains(t, body, "Error ")
}

func TestNotifyDeliveryFailureIsSwallowed(t *testing.T) {
	m := &fakeMailer{err: errors.New("connection refused")}
	s := New(Config{From: "ops@example.com"}, nil, m)

	s.Notify(context.Background(), "alice", clone.Outcome{Source: "shop", Target: "shop_test", Stage: clone.StageDumpSource})

	assert.Len(t, m.msgs, 1, "exactly one attempt, no retry")
}

func TestNotifyWithoutAddressSendsNothing(t *testing.T) {
	m := &fakeMailer{}
	New(Config{}, nil, m).Notify(context.Background(), "alice", clone.Outcome{})
	assert.Empty(t, m.msgs)
}
