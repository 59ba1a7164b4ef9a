package replies

import (
	"context"

	"github.com/ignite/outreach/internal/composer"
	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// Planner executes due follow-up actions. A follow-up is only drafted, it
// goes through the same approval gate as every other outbound message.
type Planner struct {
	actions  ActionStore
	leads    *lead.Service
	composer *composer.Service
}

func NewPlanner(actions ActionStore, leads *lead.Service, comp *composer.Service) *Planner {
	return &Planner{actions: actions, leads: leads, composer: comp}
}

// PlannerReport summarizes one planner pass.
type PlannerReport struct {
	Drafted   int `json:"drafted"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// Run drafts follow-ups for actions whose due time has passed. An action
// whose lead has moved on (replied, bounced, opted out) is cancelled
// instead of drafted; the quiet-thread check runs again here because the
// reply may have arrived between scheduling and now.
func (p *Planner) Run(ctx context.Context, limit int) (*PlannerReport, error) {
	due, err := p.actions.ListDue(ctx, timeNow(), limit)
	if err != nil {
		return nil, err
	}

	rep := &PlannerReport{}
	for _, action := range due {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := p.runOne(ctx, action, rep); err != nil {
			logger.Warn("followup failed", "action_id", action.ID, "lead_id", action.LeadID, "error", err)
			rep.Failed++
		}
	}
	logger.Info("planner pass complete",
		"drafted", rep.Drafted, "cancelled", rep.Cancelled, "failed", rep.Failed)
	return rep, nil
}

func (p *Planner) runOne(ctx context.Context, action domain.NextAction, rep *PlannerReport) error {
	l, err := p.leads.Get(ctx, action.LeadID)
	if err != nil {
		return err
	}
	// Only a still-quiet thread gets a follow-up.
	if l.Status != domain.LeadSent {
		if _, err := p.actions.CancelPending(ctx, l.ID); err != nil {
			return err
		}
		rep.Cancelled++
		logger.Debug("followup cancelled, lead moved on", "lead_id", l.ID, "status", l.Status)
		return nil
	}

	if err := p.composer.ComposeFor(ctx, l, action.Action); err != nil {
		return err
	}
	if err := p.actions.MarkDone(ctx, action.ID); err != nil {
		return err
	}
	rep.Drafted++
	return nil
}
