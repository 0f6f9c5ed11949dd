// Package domain defines the shared shape of all anomaly detections: a
// measurement is classified into a severity tier, the tier resolves to an
// action, and the detection is logged as a write-once row.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeveritySevere   Severity = "severe"
)

// Rank orders severities so tier selection can be proven monotonic.
func (s Severity) Rank() int {
	switch s {
	case SeveritySevere:
		return 3
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(raw) {
	case SeverityWarning, SeverityCritical, SeveritySevere:
		return Severity(raw), true
	default:
		return "", false
	}
}

type Action string

const (
	ActionNone        Action = "none"
	ActionWarning     Action = "warning"
	ActionInvestigate Action = "investigate"
	ActionSuspension  Action = "suspension"
)

func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionNone, ActionWarning, ActionInvestigate, ActionSuspension:
		return Action(raw), true
	default:
		return "", false
	}
}

type DetectorType string

const (
	DetectorSpike     DetectorType = "usage_spike"
	DetectorErrorRate DetectorType = "error_rate"
	DetectorPattern   DetectorType = "pattern"
)

// Pattern signature types, logged as the detection result type so each
// signature's flags are independently queryable.
const (
	SignatureSQLInjection     = "sql_injection"
	SignatureAuthBruteForce   = "auth_brute_force"
	SignatureRapidKeyCreation = "rapid_key_creation"
)

// DetectionResult is a write-once log row. ActionTaken records what the
// engine decided, not what eventually happened downstream.
type DetectionResult struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	ProjectID       snowflake.ID      `json:"project_id" gorm:"not null;index:ix_detections_project_time,priority:1"`
	Type            string            `json:"type" gorm:"type:text;not null;index"`
	Severity        Severity          `json:"severity" gorm:"type:text;not null"`
	Multiplier      float64           `json:"multiplier"`
	OccurrenceCount int64             `json:"occurrence_count"`
	WindowMS        int64             `json:"window_ms" gorm:"not null"`
	DetectedAt      time.Time         `json:"detected_at" gorm:"not null;index:ix_detections_project_time,priority:2"`
	Description     string            `json:"description" gorm:"type:text"`
	Evidence        datatypes.JSONMap `json:"evidence" gorm:"type:jsonb"`
	ActionTaken     Action            `json:"action_taken" gorm:"type:text;not null"`
}

// TableName sets the database table name.
func (DetectionResult) TableName() string { return "detection_results" }

// ProjectDetectionConfig overrides detector tuning for one project. A row
// with Enabled=false skips the project entirely for that detector.
type ProjectDetectionConfig struct {
	ID                    snowflake.ID `json:"id" gorm:"primaryKey"`
	ProjectID             snowflake.ID `json:"project_id" gorm:"not null;index:ux_detcfg_project_detector,unique,priority:1"`
	DetectorType          DetectorType `json:"detector_type" gorm:"type:text;not null;index:ux_detcfg_project_detector,unique,priority:2"`
	// No column default: gorm omits zero values for defaulted columns, which
	// would silently turn Enabled=false into true on insert.
	Enabled               bool         `json:"enabled" gorm:"not null"`
	ThresholdOverride     *float64     `json:"threshold_override"`
	MinSampleOverride     *float64     `json:"min_sample_override"`
	WindowMinutesOverride *int         `json:"window_minutes_override"`
	CreatedAt             time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProjectDetectionConfig) TableName() string { return "project_detection_configs" }

// PatternSample is a raw text sample (query or request fragment) captured by
// calling services for signature scanning. The capture pipeline is an
// integration point; the engine only reads these rows.
type PatternSample struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	ProjectID  snowflake.ID `json:"project_id" gorm:"not null;index:ix_samples_project_time,priority:1"`
	Source     string       `json:"source" gorm:"type:text;not null"`
	Sample     string       `json:"sample" gorm:"type:text;not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null;index:ix_samples_project_time,priority:2"`
}

func (PatternSample) TableName() string { return "pattern_samples" }
