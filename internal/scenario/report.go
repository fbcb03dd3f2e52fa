package scenario

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"

	"dynamokv/internal/message"
	"dynamokv/internal/quorum"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Step     int
	Action   string
	Client   int
	Attempts uint
	Feedback *message.Feedback
	Err      error
}

// LatencySummary describes the client-observed latency of one request kind.
type LatencySummary struct {
	Count   int
	Min     time.Duration
	Average time.Duration
	P50     time.Duration
	P99     time.Duration
	Max     time.Duration
}

// Report collects the results of a run.
type Report struct {
	Name     string
	Started  time.Time
	Finished time.Time

	mu        sync.Mutex
	results   []StepResult
	latencies map[quorum.Kind][]float64
}

func newReport(name string) *Report {
	return &Report{
		Name:      name,
		Started:   time.Now(),
		latencies: make(map[quorum.Kind][]float64),
	}
}

func (r *Report) add(res StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *Report) latency(kind quorum.Kind, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[kind] = append(r.latencies[kind], float64(d))
}

func (r *Report) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Finished = time.Now()
}

// Results returns the step results ordered by step.
func (r *Report) Results() []StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]StepResult(nil), r.results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, res := range r.Results() {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Latency summarizes the latency of every request kind that was issued.
func (r *Report) Latency() map[quorum.Kind]LatencySummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[quorum.Kind]LatencySummary, len(r.latencies))
	for kind, values := range r.latencies {
		if len(values) == 0 {
			continue
		}
		out[kind] = LatencySummary{
			Count:   len(values),
			Min:     must(stats.Min(values)),
			Average: must(stats.Mean(values)),
			P50:     must(stats.Percentile(values, 50)),
			P99:     must(stats.Percentile(values, 99)),
			Max:     must(stats.Max(values)),
		}
	}
	return out
}

// Render writes the step results and the latency summary as tables.
func (r *Report) Render(w io.Writer) {
	steps := table.NewWriter()
	steps.SetOutputMirror(w)
	steps.SetTitle(r.Name)
	steps.AppendHeader(table.Row{"#", "Action", "Client", "Attempts", "Result"})
	for _, res := range r.Results() {
		client := ""
		if res.Client > 0 {
			client = fmt.Sprint(res.Client)
		}
		attempts := ""
		if res.Attempts > 0 {
			attempts = fmt.Sprint(res.Attempts)
		}
		steps.AppendRow(table.Row{res.Step, res.Action, client, attempts, outcome(res)})
	}
	steps.AppendFooter(table.Row{"", "elapsed", "", "", r.Finished.Sub(r.Started).Round(time.Millisecond)})
	steps.SetStyle(table.StyleLight)
	steps.Render()

	latency := r.Latency()
	if len(latency) == 0 {
		return
	}
	kinds := make([]quorum.Kind, 0, len(latency))
	for k := range latency {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	lt := table.NewWriter()
	lt.SetOutputMirror(w)
	lt.AppendHeader(table.Row{"Request", "Count", "Min", "Avg", "P50", "P99", "Max"})
	for _, k := range kinds {
		s := latency[k]
		lt.AppendRow(table.Row{k, s.Count, round(s.Min), round(s.Average), round(s.P50), round(s.P99), round(s.Max)})
	}
	lt.SetStyle(table.StyleLight)
	lt.Render()
}

func outcome(res StepResult) string {
	switch {
	case res.Err != nil:
		return res.Err.Error()
	case res.Feedback != nil:
		return res.Feedback.String()
	default:
		return "done"
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Microsecond)
}

// must unwraps a statistic over a non-empty sample.
func must(v float64, err error) time.Duration {
	if err != nil {
		panic(err)
	}
	return time.Duration(v)
}
