package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chartgpt66/hospital-management-system-v2/internal/config"
	"github.com/chartgpt66/hospital-management-system-v2/internal/db"
	"github.com/chartgpt66/hospital-management-system-v2/internal/jobs"
	redisclient "github.com/chartgpt66/hospital-management-system-v2/internal/redis"
	"github.com/chartgpt66/hospital-management-system-v2/internal/scheduling"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("job-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running job worker in env=%s reminder_cron=%q report_cron=%q",
		cfg.Env, cfg.ReminderCron, cfg.ReportCron)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	queue := jobs.NewRedisQueue(rdb)
	runner := jobs.NewRunner(queue, repo, jobs.LogSender{})

	// The beat schedule submits recurring batches through the same queue
	// as ad hoc API submissions.
	beat := cron.New()
	if _, err := beat.AddFunc(cfg.ReminderCron, func() {
		submit(rootCtx, queue, jobs.JobReminderBatch)
	}); err != nil {
		log.Fatalf("invalid reminder cron %q: %v", cfg.ReminderCron, err)
	}
	if _, err := beat.AddFunc(cfg.ReportCron, func() {
		submit(rootCtx, queue, jobs.JobMonthlyReport)
	}); err != nil {
		log.Fatalf("invalid report cron %q: %v", cfg.ReportCron, err)
	}
	beat.Start()
	defer beat.Stop()

	runner.Run(rootCtx)

	log.Println("job-worker stopped")
}

func submit(ctx context.Context, queue jobs.Queue, jobType jobs.JobType) {
	submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id, err := queue.Submit(submitCtx, jobType, nil)
	if err != nil {
		log.Printf("scheduled submit failed type=%s err=%v", jobType, err)
		return
	}
	log.Printf("scheduled job submitted type=%s id=%s", jobType, id)
}
