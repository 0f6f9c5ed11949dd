package migration

import (
	"errors"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	notifdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	overridedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/override/domain"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	quotadomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/domain"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"gorm.io/gorm"
)

// This package keeps the engine usable out of the box for local and
// self-hosted deployments: every table it owns is created on startup.
func Run(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(
		&projectdomain.Project{},
		&quotadomain.Quota{},
		&usagedomain.UsageMetric{},
		&detectiondomain.DetectionResult{},
		&detectiondomain.ProjectDetectionConfig{},
		&detectiondomain.PatternSample{},
		&suspensiondomain.SuspensionRecord{},
		&overridedomain.OverrideRecord{},
		&notifdomain.Recipient{},
		&notifdomain.Preference{},
		&notifdomain.Delivery{},
		&auditdomain.AuditLog{},
	)
}
