package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dynamokv/internal/cluster"
	"dynamokv/internal/config"
	"dynamokv/internal/message"
	"dynamokv/internal/node"
	"dynamokv/internal/quorum"
	"dynamokv/internal/sim"
	"dynamokv/internal/storage"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	goleak.VerifyTestMain(m)
}

func TestLogBuffer_KeepsMostRecent(t *testing.T) {
	lb := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		lb.Add(cluster.NodeID(i), "line")
	}

	all := lb.Recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, cluster.NodeID(3), all[0].NodeID)
	assert.Equal(t, cluster.NodeID(5), all[2].NodeID)
	assert.Equal(t, uint64(5), all[2].Seq)

	assert.Len(t, lb.Recent(10), 3)
	recent := lb.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, cluster.NodeID(5), recent[0].NodeID)
}

func TestLogBuffer_ForNode(t *testing.T) {
	lb := NewLogBuffer(10)
	lb.Add(10, "a")
	lb.Add(20, "b")
	lb.Add(10, "c")

	got := lb.ForNode(10)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Message)
	assert.Equal(t, "c", got[1].Message)
}

func TestConsole_RenderLogs(t *testing.T) {
	con := NewWithBuffer(10, nil)
	obs10, obs20 := con.Observer(10), con.Observer(20)
	obs10.OnLogLine("first")
	obs20.OnLogLine("second")
	obs10.OnLogLine("third")

	var out bytes.Buffer
	con.RenderLogs(&out, 2)
	assert.NotContains(t, out.String(), "first")
	assert.Contains(t, out.String(), "second")
	assert.Contains(t, out.String(), "third")

	out.Reset()
	con.RenderLogs(&out, 0, 10)
	assert.Contains(t, out.String(), "first")
	assert.Contains(t, out.String(), "third")
	assert.NotContains(t, out.String(), "second")
	assert.Less(t, strings.Index(out.String(), "first"), strings.Index(out.String(), "third"))
}

func TestFormatLogEntry(t *testing.T) {
	e := LogEntry{
		Timestamp: time.Date(2024, 1, 1, 9, 5, 7, 0, time.UTC),
		NodeID:    20,
		Message:   "Joined, 2 keys stored",
	}
	assert.Equal(t, "09:05:07.00: [Node_20] Joined, 2 keys stored", FormatLogEntry(e))
}

func TestFormatFeedback(t *testing.T) {
	vv := storage.NewValue("x", 2)
	fb := message.Feedback{RequestID: 3, Kind: quorum.Get, Status: message.OK, Value: &vv}
	assert.Equal(t, "client 1: FEEDBACK: GET #3 [OK] | x (v2)", FormatFeedback(1, fb))

	fb = message.Feedback{Kind: quorum.Update, Status: message.Error, TimedOut: true}
	assert.Equal(t, "client 2: FEEDBACK: UPDATE #0 [ERROR] (no answer from coordinator)", FormatFeedback(2, fb))
}

func TestConsole_ObservesSystem(t *testing.T) {
	var out bytes.Buffer
	con := NewWithBuffer(100, nil)

	cfg := config.Default()
	cfg.Timeout = 300 * time.Millisecond
	s, err := sim.New(sim.Options{
		Config:     cfg,
		Observer:   con.Observer,
		OnFeedback: con.OnFeedback,
	})
	require.NoError(t, err)
	defer s.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.CreateNode(ctx, 10, -1))
	require.NoError(t, s.CreateNode(ctx, 20, 10))

	c := s.NewClient()
	fb, err := s.UpdateSync(ctx, c, 10, 15, "hello")
	require.NoError(t, err)
	require.True(t, fb.Succeeded())

	require.Eventually(t, func() bool {
		snap, ok := con.Store(20)
		if !ok {
			return false
		}
		_, ok = snap.Get(15)
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, con.Logs().ForNode(10))

	con.RenderStores(&out)
	rendered := out.String()
	assert.Contains(t, rendered, "VERSION")
	assert.Contains(t, rendered, "hello")

	out.Reset()
	RenderStatus(&out, s.Status())
	assert.Contains(t, out.String(), node.Normal.String())
	assert.Equal(t, 2, strings.Count(out.String(), "NORMAL"))
}

func TestConsole_EchoesLogLines(t *testing.T) {
	var out bytes.Buffer
	con := New(&out)

	obs := con.Observer(7)
	obs.OnLogLine("Started as the first node")
	obs.OnStoreChanged(storage.Snapshot{{Key: 1, Value: storage.NewValue("a", 0)}})

	assert.Contains(t, out.String(), "[Node_7] Started as the first node")
	snap, ok := con.Store(7)
	require.True(t, ok)
	assert.Equal(t, "1   -> a               (v0)", snap.String())
}
