package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Detector evaluates one project for one detector family and persists any
// positive detections. Routing the resulting actions (suspension,
// notification) is the orchestrator's job.
type Detector interface {
	Type() DetectorType
	EvaluateProject(ctx context.Context, projectID snowflake.ID) ([]DetectionResult, error)
}

// The three detector families are distinct types so dependency injection can
// tell them apart.
type SpikeDetector interface{ Detector }
type ErrorRateDetector interface{ Detector }
type PatternDetector interface{ Detector }

// SQLInjectionSource yields recent raw text samples to scan for injection
// signatures. Pluggable per deployment.
type SQLInjectionSource interface {
	Samples(ctx context.Context, projectID snowflake.ID, window time.Duration) ([]string, error)
}

// BruteForceSource counts failed authentication attempts in the window.
type BruteForceSource interface {
	FailedAttempts(ctx context.Context, projectID snowflake.ID, window time.Duration) (int64, error)
}

// KeyCreationSource counts API keys created in the window.
type KeyCreationSource interface {
	KeysCreated(ctx context.Context, projectID snowflake.ID, window time.Duration) (int64, error)
}

// ErrSkipped reports that a project-level config row disables this detector
// for the project.
var ErrSkipped = errors.New("detection_skipped")
