// Package report summarizes the JSONL dispatch log.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/formrelay/formrelay/internal/logging"
)

const topN = 5

type Summary struct {
	Total       int            `json:"total"`
	Submissions int            `json:"submissions"`
	Sent        int            `json:"sent"`
	Failed      int            `json:"failed"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Outcomes    []CountItem    `json:"outcomes"`
	TopFailing  []CountItem    `json:"top_failing_routes"`
	TopStatus   []CountItem    `json:"top_status_codes"`
	TopHosts    []CountItem    `json:"top_hosts"`
	Latency     LatencySummary `json:"latency"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type LatencySummary struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]logging.Dispatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return r.Decode(file)
}

// Decode reads dispatch records from a JSONL stream, skipping records older
// than Since.
func (r *Reader) Decode(in io.Reader) ([]logging.Dispatch, error) {
	var records []logging.Dispatch
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var d logging.Dispatch
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !r.Since.IsZero() && d.Timestamp.Before(r.Since) {
			continue
		}
		records = append(records, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func Summarize(records []logging.Dispatch) Summary {
	var summary Summary
	if len(records) == 0 {
		return summary
	}

	summary.Start = records[0].Timestamp
	summary.End = records[0].Timestamp

	submissions := map[string]struct{}{}
	outcomeCounts := map[string]int{}
	failingCounts := map[string]int{}
	statusCounts := map[string]int{}
	hostCounts := map[string]int{}
	latencies := make([]int64, 0, len(records))

	for _, d := range records {
		summary.Total++
		if d.Timestamp.Before(summary.Start) {
			summary.Start = d.Timestamp
		}
		if d.Timestamp.After(summary.End) {
			summary.End = d.Timestamp
		}
		if d.SubmissionID != "" {
			submissions[d.SubmissionID] = struct{}{}
		}

		outcomeCounts[d.Outcome]++
		if d.Outcome == logging.OutcomeSent {
			summary.Sent++
		} else {
			summary.Failed++
			failingCounts[d.Route]++
		}
		if d.StatusCode != 0 {
			statusCounts[strconv.Itoa(d.StatusCode)]++
		}
		if d.Host != "" {
			hostCounts[d.Host]++
		}

		latencies = append(latencies, d.DurationMS)
	}

	summary.Submissions = len(submissions)
	summary.Outcomes = topCounts(outcomeCounts, len(outcomeCounts))
	summary.TopFailing = topCounts(failingCounts, topN)
	summary.TopStatus = topCounts(statusCounts, topN)
	summary.TopHosts = topCounts(hostCounts, topN)
	summary.Latency = latencySummary(latencies)

	return summary
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

func latencySummary(values []int64) LatencySummary {
	if len(values) == 0 {
		return LatencySummary{}
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencySummary{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

func percentile(values []int64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	idx := int(float64(len(values)-1) * p)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return float64(values[idx])
}

func RenderText(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dispatches: %d\n", summary.Total)
	fmt.Fprintf(&b, "Submissions: %d\n", summary.Submissions)
	fmt.Fprintf(&b, "Sent: %d\n", summary.Sent)
	fmt.Fprintf(&b, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "Latency p50/p95/p99 (ms): %.0f/%.0f/%.0f\n", summary.Latency.P50, summary.Latency.P95, summary.Latency.P99)

	writeCounts(&b, "Outcomes", summary.Outcomes)
	writeCounts(&b, "Top failing routes", summary.TopFailing)
	writeCounts(&b, "Top status codes", summary.TopStatus)
	writeCounts(&b, "Top hosts", summary.TopHosts)

	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# formrelay dispatch report\n\n")
	if !summary.Start.IsZero() {
		fmt.Fprintf(&b, "%s to %s\n\n", summary.Start.UTC().Format(time.RFC3339), summary.End.UTC().Format(time.RFC3339))
	}
	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Dispatches: %d\n", summary.Total)
	fmt.Fprintf(&b, "- Submissions: %d\n", summary.Submissions)
	fmt.Fprintf(&b, "- Sent: %d\n", summary.Sent)
	fmt.Fprintf(&b, "- Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "- Latency p50/p95/p99 (ms): %.0f/%.0f/%.0f\n\n", summary.Latency.P50, summary.Latency.P95, summary.Latency.P99)

	writeCountsMarkdown(&b, "Outcomes", summary.Outcomes)
	writeCountsMarkdown(&b, "Top failing routes", summary.TopFailing)
	writeCountsMarkdown(&b, "Top status codes", summary.TopStatus)
	writeCountsMarkdown(&b, "Top hosts", summary.TopHosts)

	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

// Render dispatches on format: text, md or json.
func Render(summary Summary, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return []byte(RenderText(summary)), nil
	case "md", "markdown":
		return []byte(RenderMarkdown(summary)), nil
	case "json":
		out, err := RenderJSON(summary)
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use: text|md|json)", format)
	}
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func writeCountsMarkdown(b *strings.Builder, title string, items []CountItem) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
	b.WriteString("\n")
}

func WriteOutput(w io.Writer, path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(w, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
