package jobs

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/ikanisa/ibimina/internal/config"
	"github.com/ikanisa/ibimina/internal/logger"
	"github.com/ikanisa/ibimina/internal/serviceiface"
)

type CronService struct {
	config map[string]interface{}
	db     *sql.DB
	cron   *cron.Cron
}

func NewCronService(cfg map[string]interface{}, db *sql.DB) serviceiface.Service {
	return &CronService{config: cfg, db: db}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	schedule := config.DefaultStagingSchedule
	retention := config.StagingRetentionDays
	if s.config != nil {
		if v, ok := s.config["staging_schedule"].(string); ok && v != "" {
			schedule = v
		}
		if v, ok := s.config["staging_retention_days"].(int); ok && v > 0 {
			retention = v
		}
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		if err := PurgeStaleStagingRows(s.db, retention); err != nil {
			log.Printf("[CRON] staging purge failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule staging purge: %w", err)
	}
	s.cron.Start()

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(fmt.Sprintf("Cron service started, staging purge at %q keeping %d days", schedule, retention))
	}
	return nil
}

func (s *CronService) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return nil
}
