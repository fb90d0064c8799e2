package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pipelinesight/pipeline-rca/internal/models"
	"github.com/pipelinesight/pipeline-rca/internal/thresholds"
)

// ScanResult carries the scanner output for one invocation.
type ScanResult struct {
	// Breaches lie inside the processing window and feed attribution.
	Breaches []models.Breach
	// Background breaches fall outside the window; they are reported as
	// pre-existing noise and never folded into contribution percentages.
	Background []models.Breach
	// Deferred is set when the window is open and scanning was skipped.
	Deferred bool
}

// Scanner flags threshold crossings inside the processing window. One scan
// pass per domain; the three domains are scanned independently and in
// parallel, with the caller joining on the combined result.
type Scanner struct {
	table  *thresholds.Table
	logger *slog.Logger
}

// NewScanner constructs a Scanner bound to the immutable threshold table.
func NewScanner(table *thresholds.Table, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{table: table, logger: logger}
}

// Scan classifies every sample of every configured metric against the
// table. Consecutive crossing samples are not collapsed: each sample that
// crosses is one Breach, and temporal grouping belongs to the correlator.
// An open window yields zero breaches and the deferred marker.
func (s *Scanner) Scan(ctx context.Context, bundle *models.Bundle, window models.Window) (ScanResult, error) {
	if !window.Closed {
		return ScanResult{Deferred: true}, nil
	}

	perDomain := make([][2][]models.Breach, len(models.Domains))
	g, ctx := errgroup.WithContext(ctx)
	for i, domain := range models.Domains {
		i, domain := i, domain
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			inWindow, background := s.scanDomain(domain, bundle.Samples[domain], window)
			perDomain[i] = [2][]models.Breach{inWindow, background}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanResult{}, err
	}

	var result ScanResult
	for _, pair := range perDomain {
		result.Breaches = append(result.Breaches, pair[0]...)
		result.Background = append(result.Background, pair[1]...)
	}
	return result, nil
}

func (s *Scanner) scanDomain(domain models.Domain, samples []models.Sample, window models.Window) (inWindow, background []models.Breach) {
	for _, sample := range samples {
		severity, crossed := s.table.Classify(domain, sample.Metric, sample.Value)
		if !crossed {
			continue
		}
		breach := models.Breach{
			Timestamp: sample.Timestamp,
			Domain:    domain,
			Metric:    sample.Metric,
			Value:     sample.Value,
			Severity:  severity,
			Entity:    sample.Entity,
			Detail:    breachDetail(domain, sample, severity),
		}
		if window.Contains(sample.Timestamp) {
			inWindow = append(inWindow, breach)
		} else {
			breach.Background = true
			background = append(background, breach)
		}
	}
	return inWindow, background
}

func breachDetail(domain models.Domain, sample models.Sample, severity models.Severity) string {
	if sample.Entity != "" {
		return fmt.Sprintf("%s %s: %s=%g (%s)", domain.Label(), sample.Entity, sample.Metric, sample.Value, severity)
	}
	return fmt.Sprintf("%s: %s=%g (%s)", domain.Label(), sample.Metric, sample.Value, severity)
}
