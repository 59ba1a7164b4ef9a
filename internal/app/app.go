// Package app wires configuration into the full service graph. Both the API
// server and the background worker build from the same graph so they never
// disagree on limits or stores.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach/internal/composer"
	"github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/discovery"
	"github.com/ignite/outreach/internal/dispatch"
	"github.com/ignite/outreach/internal/llm"
	"github.com/ignite/outreach/internal/mailer"
	"github.com/ignite/outreach/internal/pkg/distlock"
	"github.com/ignite/outreach/internal/pkg/httpretry"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/qualifier"
	"github.com/ignite/outreach/internal/replies"
	"github.com/ignite/outreach/internal/repository/postgres"
	"github.com/ignite/outreach/internal/scorer"
	"github.com/ignite/outreach/internal/service/lead"
)

// App holds every constructed service and its backing stores.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Leads     *lead.Service
	Messages  *postgres.MessageRepo
	Replies   *postgres.ReplyRepo
	Stats     *postgres.StatsRepo
	Knowledge *postgres.KnowledgeRepo
	Actions   *postgres.ActionRepo

	Qualifier  *qualifier.Service
	Composer   *composer.Service
	Dispatcher *dispatch.Service
	Discovery  *discovery.Service
	Planner    *replies.Planner

	// Monitor and Triage need a pollable mailbox; both are nil when only
	// a one-way transport (SES) is configured.
	Monitor *replies.Monitor
	Triage  *replies.Triage
}

// New builds the service graph. The config must already be validated.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := openDB(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	rdb, err := dialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	model, err := llm.New(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID)
	if err != nil {
		return nil, fmt.Errorf("bedrock client: %w", err)
	}

	leadRepo := postgres.NewLeadRepo(db)
	leads := lead.NewService(leadRepo)
	messages := postgres.NewMessageRepo(db)
	replyRepo := postgres.NewReplyRepo(db)
	stats := postgres.NewStatsRepo(db)
	knowledge := postgres.NewKnowledgeRepo(db)
	actions := postgres.NewActionRepo(db)

	fetchTimeout := time.Duration(cfg.Discovery.FetchTimeoutSecs) * time.Second
	retry := httpretry.NewRetryClient(&http.Client{Timeout: fetchTimeout}, 3)

	qual := qualifier.NewService(leads, model, retry, cfg.Discovery.UserAgent, cfg.Qualifier.ICPScoreThreshold)

	var assessor composer.Assessor
	if cfg.Scorer.Enabled {
		assessor = scorer.NewClient(retry, cfg.Scorer.BaseURL, cfg.Scorer.APIKey)
	}
	comp := composer.NewService(leads, model, messages, assessor,
		composer.Sender{Name: cfg.Sender.FromName, Product: cfg.Sender.Product},
		cfg.Qualifier.ICPScoreThreshold)

	var transport mailer.Transport
	var mailbox mailer.Mailbox
	if cfg.Gmail.Enabled {
		gm, err := mailer.NewGmailMailbox(ctx, cfg.Gmail)
		if err != nil {
			return nil, fmt.Errorf("gmail mailbox: %w", err)
		}
		transport = gm
		mailbox = gm
	} else if cfg.SES.Enabled {
		ses, err := mailer.NewSESTransport(ctx, cfg.SES)
		if err != nil {
			return nil, fmt.Errorf("ses transport: %w", err)
		}
		transport = ses
	}

	lock := distlock.NewLock(rdb, db, "outreach:dispatch", 10*time.Minute)
	disp := dispatch.NewService(messages, stats, leads, actions, transport, lock,
		cfg.Dispatch.DailySendLimit, cfg.Dispatch.MinSendInterval())

	robots := discovery.NewRobotsGate(retry, cfg.Discovery.UserAgent)
	crawler := discovery.NewCrawler(retry, robots, cfg.Discovery.UserAgent,
		cfg.Discovery.MaxDepth, cfg.Discovery.MaxLinksPerPage, cfg.Discovery.ConcurrentFetch)
	validator := discovery.NewValidator(cfg.Discovery.DenylistDomains)
	disc := discovery.NewService(crawler, validator, leads)

	a := &App{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Leads:      leads,
		Messages:   messages,
		Replies:    replyRepo,
		Stats:      stats,
		Knowledge:  knowledge,
		Actions:    actions,
		Qualifier:  qual,
		Composer:   comp,
		Dispatcher: disp,
		Discovery:  disc,
		Planner:    replies.NewPlanner(actions, leads, comp),
	}

	if mailbox != nil {
		a.Monitor = replies.NewMonitor(mailbox, messages, replyRepo, leads, actions, cfg.Gmail.SenderEmail)
		a.Triage = replies.NewTriage(replyRepo, messages, knowledge, leads, model, model, mailbox, replies.Sender{
			Name:    cfg.Sender.FromName,
			Email:   cfg.Sender.FromEmail,
			Product: cfg.Sender.Product,
		})
	} else {
		logger.Warn("no pollable mailbox configured, reply monitoring disabled")
	}

	return a, nil
}

// Close releases the backing connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// dialRedis returns nil when no URL is configured or the server is
// unreachable. Callers treat a nil client as "use the Postgres advisory
// lock instead"; a bad URL is a config error and fails startup.
func dialRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to pg advisory lock", "error", err)
		rdb.Close()
		return nil, nil
	}
	return rdb, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
