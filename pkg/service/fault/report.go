package fault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/daniesso/chunkfault/pkg/service/probe"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Verdict summarises how the client behaved on the probes that followed the truncated stream.
type Verdict string

const (
	VerdictRecovered    Verdict = "recovered"
	VerdictPoisoned     Verdict = "poisoned"
	VerdictInconsistent Verdict = "inconsistent"
)

type ProbeRecord struct {
	Phase      string           `json:"phase" yaml:"phase"`
	Attempt    int              `json:"attempt" yaml:"attempt"`
	Healthy    bool             `json:"healthy" yaml:"healthy"`
	StatusCode int              `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Class      probe.ErrorClass `json:"class" yaml:"class"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed    time.Duration    `json:"elapsed" yaml:"elapsed"`
}

type StreamRecord struct {
	URL        string           `json:"url" yaml:"url"`
	StatusCode int              `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Bytes      int              `json:"bytes" yaml:"bytes"`
	Blocks     int              `json:"blocks" yaml:"blocks"`
	Body       string           `json:"body" yaml:"body"`
	Class      probe.ErrorClass `json:"class" yaml:"class"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed    time.Duration    `json:"elapsed" yaml:"elapsed"`
}

type ResponderRecord struct {
	Name     string `json:"name" yaml:"name"`
	Addr     string `json:"addr" yaml:"addr"`
	Accepted int64  `json:"accepted" yaml:"accepted"`
	Served   int64  `json:"served" yaml:"served"`
	Failed   int64  `json:"failed" yaml:"failed"`
	Closed   int64  `json:"closed" yaml:"closed"`
}

type Report struct {
	RunID      string            `json:"runId" yaml:"runId"`
	StartedAt  time.Time         `json:"startedAt" yaml:"startedAt"`
	Duration   time.Duration     `json:"duration" yaml:"duration"`
	GoodURL    string            `json:"goodUrl" yaml:"goodUrl"`
	BadURL     string            `json:"badUrl" yaml:"badUrl"`
	Before     ProbeRecord       `json:"before" yaml:"before"`
	Stream     StreamRecord      `json:"stream" yaml:"stream"`
	After      []ProbeRecord     `json:"after" yaml:"after"`
	Responders []ResponderRecord `json:"responders,omitempty" yaml:"responders,omitempty"`
	// FaultReproduced is set when the truncated stream ended in a short read.
	FaultReproduced bool    `json:"faultReproduced" yaml:"faultReproduced"`
	Verdict         Verdict `json:"verdict" yaml:"verdict"`
}

func newProbeRecord(phase string, attempt int, res probe.Result) ProbeRecord {
	rec := ProbeRecord{
		Phase:      phase,
		Attempt:    attempt,
		Healthy:    res.Healthy,
		StatusCode: res.StatusCode,
		Class:      res.Class,
		Elapsed:    res.Elapsed,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

func newStreamRecord(url string, res probe.StreamResult) StreamRecord {
	rec := StreamRecord{
		URL:        url,
		StatusCode: res.StatusCode,
		Bytes:      len(res.Body),
		Blocks:     res.Blocks,
		Body:       string(res.Body),
		Class:      res.Class,
		Elapsed:    res.Elapsed,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// Judge reports recovered when every probe is healthy and poisoned when every probe
// failed with the same error class. Anything else, including no probes at all, is inconsistent.
func Judge(after []ProbeRecord) Verdict {
	if len(after) == 0 {
		return VerdictInconsistent
	}

	healthy := 0
	classes := make(map[probe.ErrorClass]struct{})
	for _, rec := range after {
		if rec.Healthy {
			healthy++
			continue
		}
		classes[rec.Class] = struct{}{}
	}

	switch {
	case healthy == len(after):
		return VerdictRecovered
	case healthy == 0 && len(classes) == 1:
		return VerdictPoisoned
	default:
		return VerdictInconsistent
	}
}

// Render prints the probe sequence as a table followed by the verdict line.
func (r *Report) Render(w io.Writer, disableANSI bool) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	for _, c := range []*color.Color{green, red, yellow} {
		if disableANSI {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}

	health := func(ok bool) string {
		if ok {
			return green.Sprint("healthy")
		}
		return red.Sprint("unhealthy")
	}

	table := tablewriter.NewWriter(w)
	table.Header("Step", "Target", "Outcome", "Status", "Class", "Elapsed")

	rows := [][]string{
		{"before", r.GoodURL, health(r.Before.Healthy), status(r.Before.StatusCode), string(r.Before.Class), r.Before.Elapsed.Round(time.Millisecond).String()},
	}
	streamOutcome := green.Sprintf("%d bytes", r.Stream.Bytes)
	if r.Stream.Error != "" {
		streamOutcome = yellow.Sprintf("%d bytes, short read", r.Stream.Bytes)
	}
	rows = append(rows, []string{"stream", r.BadURL, streamOutcome, status(r.Stream.StatusCode), string(r.Stream.Class), r.Stream.Elapsed.Round(time.Millisecond).String()})
	for _, rec := range r.After {
		rows = append(rows, []string{
			fmt.Sprintf("after #%d", rec.Attempt),
			r.GoodURL,
			health(rec.Healthy),
			status(rec.StatusCode),
			string(rec.Class),
			rec.Elapsed.Round(time.Millisecond).String(),
		})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to add report row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	verdict := yellow.Sprint(r.Verdict)
	switch r.Verdict {
	case VerdictRecovered:
		verdict = green.Sprint(r.Verdict)
	case VerdictPoisoned:
		verdict = red.Sprint(r.Verdict)
	}
	_, err := fmt.Fprintf(w, "run %s: fault reproduced=%v, client %s\n", r.RunID, r.FaultReproduced, verdict)
	return err
}

// WriteYAML persists the report, creating the parent directory if needed.
func (r *Report) WriteYAML(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func status(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}
