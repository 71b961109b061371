package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Materializer is the only code path that writes auto-generated NonConformity rows.
type Materializer struct {
	DB                  *gorm.DB
	Logger              *logrus.Logger
	AdvisoryLockTimeout int
	Now                 func() time.Time
}

func NewMaterializer(db *gorm.DB, logger *logrus.Logger) *Materializer {
	return &Materializer{
		DB:                  db,
		Logger:              logger,
		AdvisoryLockTimeout: 30,
		Now:                 time.Now,
	}
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// MaterializeIfNeeded creates the OPEN auto record for a breaching indicator unless one exists.
// It returns the created record, or nil when nothing was created.
func (m *Materializer) MaterializeIfNeeded(ctx context.Context, ind models.Indicator, family models.IndicatorFamily, d BreachDecision) (*models.NonConformity, error) {
	if !d.IsBreach {
		return nil, nil
	}

	var created *models.NonConformity
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "mysql" {
			if err := AcquireIndicatorAdvisoryLock(tx, ind.Code, m.AdvisoryLockTimeout); err != nil {
				return err
			}
			defer ReleaseIndicatorAdvisoryLock(tx, ind.Code)
		}

		existing, err := models.FindOpenAutoNonConformity(ctx, tx, ind.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			materializations.WithLabelValues("existing").Inc()
			m.Logger.WithFields(logrus.Fields{
				"field":             "Materializer",
				"indicator_code":    ind.Code,
				"non_conformity_id": existing.ID,
			}).Info("open auto-generated non-conformity already exists; skipping")
			return nil
		}

		nc := models.NewAutoNonConformity(ind.Code, string(family), breachDescription(ind, d), m.now())
		if err := models.CreateNonConformity(ctx, tx, nc); err != nil {
			return err
		}
		created = nc
		return nil
	})
	if err != nil {
		if isDuplicateKeyErr(err) {
			materializations.WithLabelValues("race").Inc()
			m.Logger.WithFields(logrus.Fields{
				"field":          "Materializer",
				"indicator_code": ind.Code,
			}).Info(fmt.Errorf("%w: existing record wins", ErrDuplicateMaterialization).Error())
			return nil, nil
		}
		config.LogError(m.Logger, "Materializer", "MaterializeIfNeeded", "create open auto non-conformity", ind.Code, err)
		return nil, fmt.Errorf("%w: materialize %s: %w", ErrTransientStore, ind.Code, err)
	}
	if created != nil {
		materializations.WithLabelValues("created").Inc()
		m.Logger.WithFields(logrus.Fields{
			"field":             "Materializer",
			"indicator_code":    ind.Code,
			"non_conformity_id": created.ID,
		}).Info("created corrective action for indicator breach")
	}
	return created, nil
}

func (m *Materializer) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func breachDescription(ind models.Indicator, d BreachDecision) string {
	label := ind.Code
	if ind.Label != "" {
		label = fmt.Sprintf("%s (%s)", ind.Code, ind.Label)
	}
	return fmt.Sprintf("Indicator %s breached its target: current value %s%s %s target %s%s",
		label,
		utils.FormatNumber(d.Value), ind.Unit,
		d.Direction,
		utils.FormatNumber(d.Target), ind.Unit,
	)
}
