// Package maintenance runs the background hygiene loops of the
// service: sweeping expired sessions on a schedule and scanning the
// object store for snapshot objects no live session references.
//
// Session expiry also happens lazily on access, so the janitor is not
// load-bearing for correctness. It exists so idle deployments reclaim
// memory and storage without waiting for the next request, and so
// snapshots orphaned by a crash between upload and commit eventually
// disappear.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tabletalk/tabletalk/internal/storage"
)

// Sessions is the slice of the session store the janitor needs.
type Sessions interface {
	Sweep(ctx context.Context) int
	SnapshotKeys(ctx context.Context) map[string]struct{}
}

type Config struct {
	// SweepInterval is how often expired sessions are evicted.
	SweepInterval time.Duration
	// ScanInterval is how often the snapshot prefix is scanned for
	// orphans.
	ScanInterval time.Duration
	// OrphanAge is how old an unreferenced object must be before it
	// is deleted. The grace period keeps the scan from collecting a
	// snapshot whose upload is still in flight.
	OrphanAge time.Duration
}

type Service struct {
	Sessions    Sessions
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type SweepSummary struct {
	SessionsEvicted int `json:"sessions_evicted"`
}

type ScanSummary struct {
	ObjectsScanned   int `json:"objects_scanned"`
	LiveSnapshots    int `json:"live_snapshots"`
	OrphansDeleted   int `json:"orphans_deleted"`
	MissingSnapshots int `json:"missing_snapshots"`
	Failures         int `json:"failures"`
}

// Run blocks until the context is canceled, executing sweep and scan
// cycles on their intervals.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	sweepTicker := time.NewTicker(s.Config.SweepInterval)
	defer sweepTicker.Stop()
	scanTicker := time.NewTicker(s.Config.ScanInterval)
	defer scanTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweepTicker.C:
			summary, err := s.RunSweepOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "session sweep failed", slog.Any("error", err))
				}
				continue
			}
			if summary.SessionsEvicted > 0 && s.Logger != nil {
				s.Logger.InfoContext(ctx, "session sweep completed", slog.Any("summary", summary))
			}
		case <-scanTicker.C:
			summary, err := s.RunScanOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "snapshot scan failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "snapshot scan completed", slog.Any("summary", summary))
			}
		}
	}
}

// RunSweepOnce evicts expired sessions together with their snapshots.
func (s *Service) RunSweepOnce(ctx context.Context) (SweepSummary, error) {
	s.ensureDefaults()
	if s.Sessions == nil {
		return SweepSummary{}, fmt.Errorf("session store is required")
	}

	evicted := s.Sessions.Sweep(ctx)
	sweepsTotal.Inc()
	if evicted > 0 {
		sessionsEvictedTotal.Add(float64(evicted))
	}
	return SweepSummary{SessionsEvicted: evicted}, nil
}

// RunScanOnce lists the snapshot prefix and reconciles it against the
// live sessions. Unreferenced objects older than OrphanAge are
// deleted; a live session whose snapshot is missing from the store is
// reported as an integrity failure.
func (s *Service) RunScanOnce(ctx context.Context) (ScanSummary, error) {
	s.ensureDefaults()
	if s.Sessions == nil {
		return ScanSummary{}, fmt.Errorf("session store is required")
	}
	if s.ObjectStore == nil {
		return ScanSummary{}, fmt.Errorf("object store is required")
	}

	live := s.Sessions.SnapshotKeys(ctx)
	objects, err := s.ObjectStore.List(ctx, storage.SnapshotPrefix)
	if err != nil {
		scansTotal.WithLabelValues("failed").Inc()
		return ScanSummary{LiveSnapshots: len(live)}, fmt.Errorf("list snapshot prefix: %w", err)
	}

	summary := ScanSummary{ObjectsScanned: len(objects), LiveSnapshots: len(live)}
	cutoff := s.Clock().Add(-s.Config.OrphanAge)
	const maxIssueSamples = 20
	issues := make([]string, 0, maxIssueSamples)
	issueCount := 0
	addIssue := func(message string) {
		issueCount++
		if len(issues) < maxIssueSamples {
			issues = append(issues, message)
		}
	}

	seen := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		if _, ok := live[obj.Key]; ok {
			seen[obj.Key] = struct{}{}
			continue
		}
		if obj.LastModified.After(cutoff) {
			// Could be an upload still being committed; next scan
			// gets it.
			continue
		}
		if err := s.ObjectStore.Delete(ctx, obj.Key); err != nil {
			summary.Failures++
			addIssue(fmt.Sprintf("delete orphan %s: %v", obj.Key, err))
			continue
		}
		summary.OrphansDeleted++
	}

	for key := range live {
		if _, ok := seen[key]; !ok {
			summary.MissingSnapshots++
			addIssue(fmt.Sprintf("live snapshot missing from store: %s", key))
		}
	}

	if summary.OrphansDeleted > 0 {
		orphansDeletedTotal.Add(float64(summary.OrphansDeleted))
	}
	if summary.MissingSnapshots > 0 {
		missingSnapshotsTotal.Add(float64(summary.MissingSnapshots))
	}
	if summary.Failures > 0 || summary.MissingSnapshots > 0 {
		scansTotal.WithLabelValues("failed").Inc()
		extra := issueCount - len(issues)
		if extra > 0 {
			return summary, fmt.Errorf("snapshot scan found %d issue(s): %s; ... plus %d more", issueCount, strings.Join(issues, "; "), extra)
		}
		return summary, fmt.Errorf("snapshot scan found %d issue(s): %s", issueCount, strings.Join(issues, "; "))
	}
	scansTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Config.SweepInterval <= 0 {
		s.Config.SweepInterval = time.Minute
	}
	if s.Config.ScanInterval <= 0 {
		s.Config.ScanInterval = 10 * time.Minute
	}
	if s.Config.OrphanAge <= 0 {
		s.Config.OrphanAge = 30 * time.Minute
	}
}
