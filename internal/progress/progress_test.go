package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ReportDrain(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	q := NewQueue(WithClock(clockwork.NewFakeClockAt(start)))

	q.Report("collect", "found 12 events")
	q.Report("resolve", "guessed 3 postal codes")
	assert.Equal(t, 2, q.Len())

	msgs := q.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, "collect", msgs[0].Stage)
	assert.Equal(t, "found 12 events", msgs[0].Text)
	assert.Equal(t, start, msgs[0].Time)
	assert.Equal(t, "[resolve] guessed 3 postal codes", msgs[1].String())

	assert.Nil(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentReport(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Report("collect", "tick")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 1000)
}

func TestQueue_PollDeliversOnTickAndOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	q := NewQueue(WithClock(fc))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Message, 10)
	done := make(chan struct{})
	go func() {
		q.Poll(ctx, 100*time.Millisecond, func(m Message) { got <- m })
		close(done)
	}()

	q.Report("collect", "first")

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, fc.BlockUntilContext(waitCtx, 1))
	fc.Advance(100 * time.Millisecond)

	select {
	case m := <-got:
		assert.Equal(t, "first", m.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered on tick")
	}

	q.Report("render", "last")
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not stop")
	}
	require.Len(t, got, 1)
	assert.Equal(t, "last", (<-got).Text)
}

func TestReportf(t *testing.T) {
	q := NewQueue()
	Reportf(q, "collect", "found %d events", 4)
	Reportf(nil, "collect", "ignored")
	Reportf(Nop{}, "collect", "ignored")

	msgs := q.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, "found 4 events", msgs[0].Text)
}

func TestMessageStringWithoutStage(t *testing.T) {
	assert.Equal(t, "done", Message{Text: "done"}.String())
}

func TestLog_Bounded(t *testing.T) {
	l := NewLog(2)
	l.Append(Message{Text: "a"}, Message{Text: "b"})
	l.Append(Message{Text: "c"})

	msgs := l.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Text)
	assert.Equal(t, "c", msgs[1].Text)

	msgs[0].Text = "mutated"
	assert.Equal(t, "b", l.Messages()[0].Text)
}

func TestLog_Unbounded(t *testing.T) {
	l := NewLog(0)
	for i := 0; i < 50; i++ {
		l.Append(Message{Text: "x"})
	}
	assert.Len(t, l.Messages(), 50)
}
