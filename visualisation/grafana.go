package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GrafanaDashboard represents a Grafana dashboard configuration
type GrafanaDashboard struct {
	Dashboard DashboardConfig `json:"dashboard"`
	FolderID  int             `json:"folderId"`
	Overwrite bool            `json:"overwrite"`
}

// DashboardConfig represents the dashboard configuration
type DashboardConfig struct {
	ID            interface{} `json:"id"`
	Title         string      `json:"title"`
	Tags          []string    `json:"tags"`
	Style         string      `json:"style"`
	Timezone      string      `json:"timezone"`
	Panels        []Panel     `json:"panels"`
	Time          TimeRange   `json:"time"`
	Refresh       string      `json:"refresh"`
	SchemaVersion int         `json:"schemaVersion"`
	Version       int         `json:"version"`
}

// Panel represents a Grafana panel
type Panel struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	Type        string      `json:"type"`
	GridPos     GridPos     `json:"gridPos"`
	Targets     []Target    `json:"targets"`
	FieldConfig FieldConfig `json:"fieldConfig"`
}

// GridPos represents panel grid position
type GridPos struct {
	H int `json:"h"`
	W int `json:"w"`
	X int `json:"x"`
	Y int `json:"y"`
}

// Target represents a query target
type Target struct {
	Expr         string `json:"expr"`
	LegendFormat string `json:"legendFormat,omitempty"`
	RefID        string `json:"refId"`
}

// FieldConfig represents field configuration
type FieldConfig struct {
	Defaults Defaults `json:"defaults"`
}

// Defaults represents default field settings
type Defaults struct {
	Unit string `json:"unit"`
}

func timeseriesPanel(id int, title, unit string, pos GridPos, targets ...Target) Panel {
	return Panel{
		ID:          id,
		Title:       title,
		Type:        "timeseries",
		GridPos:     pos,
		Targets:     targets,
		FieldConfig: FieldConfig{Defaults: Defaults{Unit: unit}},
	}
}

// CreateBenchmarkDashboard creates a Grafana dashboard for the transfer
// benchmark metrics
func CreateBenchmarkDashboard() *GrafanaDashboard {
	return &GrafanaDashboard{
		Dashboard: DashboardConfig{
			ID:            nil,
			Title:         "Transfer Benchmark Dashboard",
			Tags:          []string{"xfer-bench", "benchmark", "performance"},
			Style:         "dark",
			Timezone:      "browser",
			SchemaVersion: 30,
			Version:       1,
			Refresh:       "10s",
			Time:          TimeRange{From: "now-1h", To: "now"},
			Panels: []Panel{
				timeseriesPanel(1, "Bandwidth (MB/s)", "MBs", GridPos{H: 8, W: 12, X: 0, Y: 0},
					Target{
						Expr:         `xfer_bench_bandwidth_mbps`,
						LegendFormat: "{{phase}}",
						RefID:        "A",
					},
				),
				timeseriesPanel(2, "Trial Latency (ms)", "ms", GridPos{H: 8, W: 12, X: 12, Y: 0},
					Target{
						Expr:         `histogram_quantile(0.50, rate(xfer_bench_trial_latency_ms_bucket[5m]))`,
						LegendFormat: "P50 - {{phase}}",
						RefID:        "A",
					},
					Target{
						Expr:         `histogram_quantile(0.90, rate(xfer_bench_trial_latency_ms_bucket[5m]))`,
						LegendFormat: "P90 - {{phase}}",
						RefID:        "B",
					},
					Target{
						Expr:         `histogram_quantile(0.99, rate(xfer_bench_trial_latency_ms_bucket[5m]))`,
						LegendFormat: "P99 - {{phase}}",
						RefID:        "C",
					},
				),
				timeseriesPanel(3, "Trials per Second", "reqps", GridPos{H: 8, W: 12, X: 0, Y: 8},
					Target{
						Expr:         `rate(xfer_bench_trials_total[5m])`,
						LegendFormat: "{{phase}} - ok={{ok}}",
						RefID:        "A",
					},
				),
				timeseriesPanel(4, "Current Buffer Size", "bytes", GridPos{H: 8, W: 12, X: 12, Y: 8},
					Target{
						Expr:  `xfer_bench_current_size_bytes`,
						RefID: "A",
					},
				),
				timeseriesPanel(5, "CPU Utilization", "percent", GridPos{H: 4, W: 6, X: 0, Y: 16},
					Target{
						Expr:  `xfer_bench_cpu_utilization`,
						RefID: "A",
					},
				),
				timeseriesPanel(6, "Memory Usage", "percent", GridPos{H: 4, W: 6, X: 6, Y: 16},
					Target{
						Expr:  `xfer_bench_memory_usage`,
						RefID: "A",
					},
				),
				timeseriesPanel(7, "IRQ Rate", "hertz", GridPos{H: 4, W: 6, X: 12, Y: 16},
					Target{
						Expr:  `xfer_bench_irq_rate`,
						RefID: "A",
					},
				),
				timeseriesPanel(8, "Network Rate (MB/s)", "MBs", GridPos{H: 4, W: 6, X: 18, Y: 16},
					Target{
						Expr:         `xfer_bench_network_rate_mbps`,
						LegendFormat: "{{direction}}",
						RefID:        "A",
					},
				),
			},
		},
		FolderID:  0,
		Overwrite: true,
	}
}

// TimeRange represents time range
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SaveDashboard saves the dashboard configuration to a JSON file
func SaveDashboard(dashboard *GrafanaDashboard, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write dashboard file: %w", err)
	}

	fmt.Printf("Dashboard saved to %s\n", outputPath)
	return nil
}

func main() {
	dashboard := CreateBenchmarkDashboard()

	outputPath := "grafana/xfer-bench-dashboard.json"
	if err := SaveDashboard(dashboard, outputPath); err != nil {
		fmt.Printf("Error saving dashboard: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Grafana dashboard configuration created successfully!")
	fmt.Println("You can import this dashboard into Grafana using the JSON file.")
}
