package console

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/node"
	"dynamokv/internal/sim"
	"dynamokv/internal/storage"
)

// DefaultBufferSize is the number of log lines kept by New.
const DefaultBufferSize = 1000

var (
	okColor    = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor = color.New(color.FgRed, color.Bold).SprintFunc()
	nodeColor  = color.New(color.FgCyan).SprintFunc()
)

// Console collects what the nodes report and renders it. Log lines are
// optionally echoed to an output as they arrive.
type Console struct {
	logs *LogBuffer
	echo io.Writer

	mu     sync.RWMutex
	stores map[cluster.NodeID]storage.Snapshot
}

// New creates a console. echo may be nil.
func New(echo io.Writer) *Console {
	return NewWithBuffer(DefaultBufferSize, echo)
}

// NewWithBuffer creates a console keeping at most size log lines.
func NewWithBuffer(size int, echo io.Writer) *Console {
	return &Console{
		logs:   NewLogBuffer(size),
		echo:   echo,
		stores: make(map[cluster.NodeID]storage.Snapshot),
	}
}

// Logs returns the log buffer.
func (c *Console) Logs() *LogBuffer {
	return c.logs
}

// Observer returns the observer to install on node id.
func (c *Console) Observer(id cluster.NodeID) node.Observer {
	return &nodeObserver{console: c, id: id}
}

// Store returns the last snapshot reported by a node.
func (c *Console) Store(id cluster.NodeID) (storage.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stores[id]
	return s, ok
}

// OnFeedback prints a client feedback, green for OK and red for ERROR.
func (c *Console) OnFeedback(client int, fb message.Feedback) {
	if c.echo == nil {
		return
	}
	fmt.Fprintln(c.echo, FormatFeedback(client, fb))
}

// FormatFeedback renders a feedback line with a colored status.
func FormatFeedback(client int, fb message.Feedback) string {
	status := okColor(fb.Status.String())
	if !fb.Succeeded() {
		status = errorColor(fb.Status.String())
	}
	line := fmt.Sprintf("client %d: FEEDBACK: %s #%d [%s]", client, fb.Kind, fb.RequestID, status)
	if fb.Value != nil {
		line += " | " + fb.Value.String()
	}
	if fb.TimedOut {
		line += " (no answer from coordinator)"
	}
	return line
}

// RenderStores writes one table per node listing its keys.
func (c *Console) RenderStores(w io.Writer) {
	c.mu.RLock()
	ids := make([]cluster.NodeID, 0, len(c.stores))
	for id := range c.stores {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Node", "Key", "Value", "Version"})
	for _, id := range ids {
		snap, _ := c.Store(id)
		for _, e := range snap {
			value := "null"
			if e.Value.Value != nil {
				value = *e.Value.Value
			}
			t.AppendRow(table.Row{id, e.Key, value, int64(e.Value.Version)})
		}
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// RenderStatus writes the membership status of every node.
func RenderStatus(w io.Writer, status []sim.NodeStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Node", "State", "Members", "Keys", "Delay"})
	for _, st := range status {
		state := st.State.String()
		switch {
		case st.Crashed && st.Recovering:
			state = "RECOVERING"
		case st.Crashed:
			state = errorColor("CRASHED")
		case st.Joining:
			state = "JOINING"
		}
		t.AppendRow(table.Row{nodeColor(st.ID), state, fmt.Sprint(st.Members), st.Keys, st.Delay})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// RenderLogs writes the last count log lines, oldest first. With ids only
// the lines of those nodes are shown.
func (c *Console) RenderLogs(w io.Writer, count int, ids ...cluster.NodeID) {
	var entries []LogEntry
	if len(ids) == 0 {
		entries = c.logs.Recent(count)
	} else {
		for _, id := range ids {
			entries = append(entries, c.logs.ForNode(id)...)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
		if count > 0 && len(entries) > count {
			entries = entries[len(entries)-count:]
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Time", "Node", "Line"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Timestamp.Format("15:04:05.00"), nodeColor(e.NodeID), e.Message})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

type nodeObserver struct {
	console *Console
	id      cluster.NodeID
}

func (o *nodeObserver) OnLogLine(line string) {
	entry := o.console.logs.Add(o.id, line)
	if o.console.echo != nil {
		fmt.Fprintln(o.console.echo, FormatLogEntry(entry))
	}
}

func (o *nodeObserver) OnStoreChanged(snapshot storage.Snapshot) {
	o.console.mu.Lock()
	defer o.console.mu.Unlock()
	o.console.stores[o.id] = snapshot
}
