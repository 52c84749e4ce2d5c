package cron

import (
	"context"
	"sync"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/fakturo/invoicestack/config"
	"github.com/fakturo/invoicestack/interfaces"
	cron_config "github.com/fakturo/invoicestack/internal/cron/config"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/tracing"
	"github.com/fakturo/invoicestack/internal/utils"
)

// CONSTANTS
const (
	// GroupInvoices is the group for inbox processing jobs
	GroupInvoices = "invoices"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupInvoices: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	stopCh   chan struct{}
	jobIDs   map[string]cronv3.EntryID
	pipeline interfaces.Pipeline
}

func NewCronManager(cfg *config.Config, log logger.Logger, pipeline interfaces.Pipeline) *CronManager {
	return &CronManager{
		cfg:      cfg,
		log:      log,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		pipeline: pipeline,
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Info("Cron heartbeat")
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Register inbox processing job
	if cronConfig.CronScheduleProcessInbox != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleProcessInbox, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupInvoices].Lock()
			defer jobLocks.locks[GroupInvoices].Unlock()
			cm.processInbox()
		})
		if err != nil {
			cm.log.Fatalf("Could not add inbox processing cron job: %v", err)
		}
		cm.jobIDs["process_inbox"] = id
		cm.log.Infof("Registered inbox processing job with schedule: %s", cronConfig.CronScheduleProcessInbox)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) processInbox() {
	cm.log.Info("Running scheduled inbox processing")

	ctx := context.Background()
	ctx = utils.WithRunContext(ctx, &utils.RunContext{Source: "cron"})

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.processInbox")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	summary, err := cm.pipeline.Run(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled run failed: %v", err)
		return
	}

	cm.log.Infof("Scheduled run complete: %s", summary.String())
}
