// Command seed-data writes one day of sample telemetry documents into the
// local document tree so the service can be exercised without real exports.
// The generated day misses its SLA because of a database slowdown.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

func main() {
	var base, date string
	flag.StringVar(&base, "base", "data", "Base directory of the document tree")
	flag.StringVar(&date, "date", "2024-03-15", "Date to seed (YYYY-MM-DD)")
	flag.Parse()

	docs := map[string]map[string]any{
		"markerEvent/" + date + "_marker_event.json": {
			"product":               "derivatives_eod",
			"type":                  "marker",
			"expected_arrival_time": date + "T06:00:00",
			"actual_arrival_time":   date + "T06:05:00",
		},
		"dagDetails/" + date + "_dag_metrics.json": {
			"entries": []map[string]any{
				{
					"dag_id":     "eod_settlement",
					"run_id":     "scheduled__" + date + "T06:05:00",
					"start_date": date + "T06:10:00",
					"end_date":   date + "T10:20:00",
					"state":      "success",
				},
				{
					"dag_id":     "eod_reporting",
					"run_id":     "scheduled__" + date + "T06:05:00",
					"start_date": date + "T06:15:00",
					"end_date":   date + "T09:40:00",
					"state":      "success",
				},
			},
		},
		"eksMetrics/" + date + "_eks_metrics.json": {
			"pods": []map[string]any{
				{"timestamp": date + "T07:00:00", "pod_name": "settlement-worker-0", "cpu_usage_percentage": 62.0, "memory_usage_percentage": 55.0, "restart_count": 0.0},
				{"timestamp": date + "T08:00:00", "pod_name": "settlement-worker-0", "cpu_usage_percentage": 71.0, "memory_usage_percentage": 58.0, "restart_count": 0.0},
			},
		},
		"rdsMetrics/" + date + "_rds_metrics.json": {
			"database_metrics": []map[string]any{
				{"timestamp": date + "T07:30:00", "cpu_utilization": 88.0, "database_connections": 180.0, "commit_latency": 22.0, "select_latency": 48.0},
				{"timestamp": date + "T08:00:00", "cpu_utilization": 96.0, "database_connections": 260.0, "commit_latency": 55.0, "select_latency": 120.0},
				{"timestamp": date + "T08:10:00", "cpu_utilization": 97.0, "database_connections": 270.0, "commit_latency": 60.0, "select_latency": 130.0},
			},
		},
		"sqsMetrics/" + date + "_sqs_metrics.json": {
			"queue_metrics": []map[string]any{
				{"timestamp": date + "T08:20:00", "queue_name": "settlement-events", "approximate_age_of_oldest_message": 720.0, "approximate_number_of_messages_visible": 400.0, "number_of_messages_received": 900.0},
				{"timestamp": date + "T09:00:00", "queue_name": "settlement-events", "approximate_age_of_oldest_message": 240.0, "approximate_number_of_messages_visible": 120.0, "number_of_messages_received": 700.0},
			},
		},
	}

	for rel, doc := range docs {
		path := filepath.Join(base, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			log.Fatalf("encode %s: %v", rel, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		fmt.Println("wrote", path)
	}
}
