/**
 * Copyright 2025-present VeraGuard Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package audit implements the metered-request orchestrator: the state
// machine that guards funds, consults the recall cache, runs pre-flight
// triage, submits to the metered engine, and interprets tier-escalation and
// insufficient-funds responses.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"veraguard-go/internal/engine"
	"veraguard-go/internal/history"
	"veraguard-go/internal/models"
	"veraguard-go/internal/triage"

	"go.uber.org/zap"
)

// State names one position in the audit machine.
type State string

const (
	StateIdle            State = "idle"
	StateRecallCheck     State = "recall_check"
	StateTriagePending   State = "triage_pending"
	StateSubmitting      State = "submitting"
	StateApprovalPending State = "approval_pending"
	StateAnalyzing       State = "analyzing"
	StateComplete        State = "complete"
)

// transitions is the legal move table.
var transitions = map[State][]State{
	StateIdle:            {StateRecallCheck},
	StateRecallCheck:     {StateTriagePending, StateSubmitting, StateComplete, StateIdle},
	StateTriagePending:   {StateSubmitting, StateIdle},
	StateSubmitting:      {StateAnalyzing, StateIdle},
	StateAnalyzing:       {StateApprovalPending, StateComplete, StateIdle},
	StateApprovalPending: {StateSubmitting, StateIdle},
	StateComplete:        {StateIdle},
}

var (
	// ErrNoTarget rejects a submission with no address unless it is an
	// escalation continuation carrying its own pending target.
	ErrNoTarget = errors.New("no target address")

	// ErrInvalidTransition rejects operations that do not fit the current
	// audit state.
	ErrInvalidTransition = errors.New("operation not valid in current audit state")

	// ErrEscalationLoop guards against the engine asking for approval again
	// on an already-approved resubmission; a request passes through
	// AwaitingApproval at most once per submission.
	ErrEscalationLoop = errors.New("engine requested approval twice for the same target")
)

// ResultKind tags what a submission produced.
type ResultKind string

const (
	// ResultReport: a completed analysis, fresh from the engine.
	ResultReport ResultKind = "report"
	// ResultRecalled: replayed from the local cache, nothing spent.
	ResultRecalled ResultKind = "recalled"
	// ResultProxyReaudit: a cached entry exists but the target is a proxy,
	// so the cached score cannot be trusted; an explicit re-audit is needed.
	ResultProxyReaudit ResultKind = "proxy_reaudit_required"
	// ResultTriageDeep: pre-flight triage recommends the deep tier; the user
	// decides before any credits are spent.
	ResultTriageDeep ResultKind = "triage_deep_recommended"
	// ResultApprovalPending: the engine escalated mid-flight and awaits the
	// user's upgrade decision.
	ResultApprovalPending ResultKind = "approval_pending"
)

// Result is the outcome of one Submit (or continuation) call.
type Result struct {
	Kind           ResultKind
	Report         *models.AuditReport
	Classification *triage.Classification
}

// Analyzer is the metered analysis collaborator.
type Analyzer interface {
	SubmitAudit(ctx context.Context, submission engine.AuditSubmission) (*engine.AuditOutcome, error)
}

// Recall is the local history cache consulted before spending.
type Recall interface {
	Lookup(ctx context.Context, address string) (*models.HistoryEntry, error)
	Insert(ctx context.Context, report *models.AuditReport) error
}

// Classifier produces the non-binding pre-flight tier hint. The engine's
// mid-flight escalation signal stays authoritative.
type Classifier interface {
	Classify(ctx context.Context, address string) (*triage.Classification, error)
}

// BalanceMirror is refreshed strictly after each spend response.
type BalanceMirror interface {
	Refresh(ctx context.Context, userId string)
}

// ActivityRecorder appends completed audits to the vault log. Optional.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, record history.ActivityRecord) error
}

// Config wires an audit flow.
type Config struct {
	Analyzer   Analyzer
	Recall     Recall
	Classifier Classifier // nil disables pre-flight triage
	Mirror     BalanceMirror
	Recorder   ActivityRecorder
	UserId     string

	StandardAnalysisFloor time.Duration
	DeepAnalysisFloor     time.Duration
}

// Flow is the audit request state machine.
type Flow struct {
	analyzer   Analyzer
	recall     Recall
	classifier Classifier
	mirror     BalanceMirror
	recorder   ActivityRecorder
	userId     string

	standardFloor time.Duration
	deepFloor     time.Duration

	// wait is replaceable in tests.
	wait func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	state   State
	pending *models.PendingAuditRequest
	report  *models.AuditReport
}

func NewFlow(cfg Config) *Flow {
	standardFloor := cfg.StandardAnalysisFloor
	if standardFloor <= 0 {
		standardFloor = 2500 * time.Millisecond
	}
	deepFloor := cfg.DeepAnalysisFloor
	if deepFloor <= 0 {
		deepFloor = 6 * time.Second
	}
	return &Flow{
		analyzer:      cfg.Analyzer,
		recall:        cfg.Recall,
		classifier:    cfg.Classifier,
		mirror:        cfg.Mirror,
		recorder:      cfg.Recorder,
		userId:        cfg.UserId,
		standardFloor: standardFloor,
		deepFloor:     deepFloor,
		wait:          waitFor,
		state:         StateIdle,
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current machine position.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pending returns a copy of the in-flight request, if any. Its target is the
// single source of truth during escalation; edits to the address input never
// touch it.
func (f *Flow) Pending() *models.PendingAuditRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return nil
	}
	pending := *f.pending
	return &pending
}

// LastReport returns the most recently completed report.
func (f *Flow) LastReport() *models.AuditReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

// to validates and performs a state transition. Callers hold f.mu.
func (f *Flow) to(next State) error {
	for _, allowed := range transitions[f.state] {
		if allowed == next {
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, next)
}

// reset returns the machine to Idle and destroys the pending request.
// Callers hold f.mu.
func (f *Flow) reset() {
	f.state = StateIdle
	f.pending = nil
}

// Submit runs a new audit request for the given address: recall check,
// optional pre-flight triage, then metered submission.
func (f *Flow) Submit(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNoTarget
	}

	f.mu.Lock()
	if err := f.to(StateRecallCheck); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.report = nil
	f.mu.Unlock()

	// Recall: an exact cached match short-circuits to a free replay, unless
	// the target is a proxy whose logic may have changed since the scan.
	entry, err := f.recall.Lookup(ctx, address)
	if err != nil {
		zap.L().Warn("Recall lookup failed, treating as miss",
			zap.String("address", address),
			zap.Error(err))
	}
	if entry != nil {
		if entry.IsProxy {
			f.mu.Lock()
			f.reset()
			f.mu.Unlock()

			zap.L().Info("Cached entry is a proxy, explicit re-audit required",
				zap.String("address", address))
			return &Result{Kind: ResultProxyReaudit}, nil
		}

		report := entry.Report()
		f.mu.Lock()
		if err := f.to(StateComplete); err != nil {
			f.mu.Unlock()
			return nil, err
		}
		f.report = report
		f.mu.Unlock()

		zap.L().Info("Audit replayed from recall cache, balance unspent",
			zap.String("address", address),
			zap.Int("score", report.Score))
		return &Result{Kind: ResultRecalled, Report: report}, nil
	}

	// Pre-flight triage: classify before spending wherever knowable.
	if f.classifier != nil {
		classification, err := f.classifier.Classify(ctx, address)
		if err != nil {
			f.mu.Lock()
			f.reset()
			f.mu.Unlock()
			return nil, err
		}
		if classification.Known && classification.Tier == models.TierDeep {
			f.mu.Lock()
			if err := f.to(StateTriagePending); err != nil {
				f.mu.Unlock()
				return nil, err
			}
			f.pending = &models.PendingAuditRequest{
				TargetAddress: address,
				Tier:          models.TierDeep,
				ApprovalState: models.ApprovalNone,
			}
			f.mu.Unlock()
			return &Result{Kind: ResultTriageDeep, Classification: classification}, nil
		}
	}

	f.mu.Lock()
	f.pending = &models.PendingAuditRequest{
		TargetAddress: address,
		Tier:          models.TierStandard,
		ApprovalState: models.ApprovalNone,
	}
	f.mu.Unlock()

	return f.submitPending(ctx, false, false)
}

// Reaudit re-runs a proxy-flagged target, bypassing the recall cache. The
// prior Submit surfaced the distinct re-audit affordance; this is the user
// acting on it.
func (f *Flow) Reaudit(ctx context.Context, address string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNoTarget
	}

	f.mu.Lock()
	if err := f.to(StateRecallCheck); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.report = nil
	f.pending = &models.PendingAuditRequest{
		TargetAddress: address,
		Tier:          models.TierStandard,
		ApprovalState: models.ApprovalNone,
	}
	f.mu.Unlock()

	return f.submitPending(ctx, false, false)
}

// ConfirmTriageDeep accepts the pre-flight deep recommendation and submits
// with the deep tier pre-approved.
func (f *Flow) ConfirmTriageDeep(ctx context.Context) (*Result, error) {
	if err := f.leaveTriage(models.ApprovalApproved); err != nil {
		return nil, err
	}
	return f.submitPending(ctx, true, false)
}

// BypassTriage declines the pre-flight deep recommendation and runs the
// standard tier, accepting the false-negative risk.
func (f *Flow) BypassTriage(ctx context.Context) (*Result, error) {
	if err := f.leaveTriage(models.ApprovalBypassed); err != nil {
		return nil, err
	}
	return f.submitPending(ctx, false, true)
}

func (f *Flow) leaveTriage(approval models.ApprovalState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateTriagePending || f.pending == nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	f.pending.ApprovalState = approval
	if approval == models.ApprovalBypassed {
		f.pending.Tier = models.TierStandard
	}
	return nil
}

// ApproveDeepDive resumes a mid-flight escalation with the upgrade approved.
// The pending target is used, never the address input, which may have been
// edited while the approval dialog was open.
func (f *Flow) ApproveDeepDive(ctx context.Context) (*Result, error) {
	f.mu.Lock()
	if f.state != StateApprovalPending || f.pending == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	f.pending.ApprovalState = models.ApprovalApproved
	f.pending.Tier = models.TierDeep
	f.mu.Unlock()

	return f.submitPending(ctx, true, false)
}

// DeclineDeepDive resumes a mid-flight escalation on the standard tier.
func (f *Flow) DeclineDeepDive(ctx context.Context) (*Result, error) {
	f.mu.Lock()
	if f.state != StateApprovalPending || f.pending == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	f.pending.ApprovalState = models.ApprovalBypassed
	f.pending.Tier = models.TierStandard
	f.mu.Unlock()

	return f.submitPending(ctx, false, true)
}

// Cancel is a pure local reset, valid only before submission-level spend:
// there is no network call to rescind at this stage.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateApprovalPending, StateTriagePending, StateComplete:
		f.reset()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
}

// submitPending sends the pending request to the metered engine and
// interprets the three response classes.
func (f *Flow) submitPending(ctx context.Context, confirmDeepDive, bypassDeepDive bool) (*Result, error) {
	f.mu.Lock()
	if f.pending == nil {
		f.mu.Unlock()
		return nil, ErrNoTarget
	}
	if err := f.to(StateSubmitting); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	target := f.pending.TargetAddress
	tier := f.pending.Tier
	if err := f.to(StateAnalyzing); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	floor := f.standardFloor
	if tier == models.TierDeep {
		floor = f.deepFloor
	}
	started := time.Now()

	outcome, err := f.analyzer.SubmitAudit(ctx, engine.AuditSubmission{
		Address:         target,
		UserId:          f.userId,
		ConfirmDeepDive: confirmDeepDive,
		BypassDeepDive:  bypassDeepDive,
	})
	if err != nil {
		return nil, f.fail(target, err)
	}

	if outcome.RequiresApproval {
		// The approval pause happens at most once per submission. A
		// resubmission already carries the user's decision, so a second
		// requires_approval is a server fault either way.
		if confirmDeepDive || bypassDeepDive {
			return nil, f.fail(target, ErrEscalationLoop)
		}
		f.mu.Lock()
		if err := f.to(StateApprovalPending); err != nil {
			f.mu.Unlock()
			return nil, err
		}
		f.pending.Tier = models.TierDeep
		f.pending.ApprovalState = models.ApprovalAwaiting
		f.mu.Unlock()

		zap.L().Info("Engine escalated to deep tier, awaiting approval",
			zap.String("address", target))
		return &Result{Kind: ResultApprovalPending}, nil
	}

	// Hold the analyzing display for the tier's floor so perceived work
	// matches the tier paid for: the transition happens at
	// max(network latency, floor).
	if remaining := floor - time.Since(started); remaining > 0 {
		if err := f.wait(ctx, remaining); err != nil {
			return nil, f.fail(target, err)
		}
	}

	report := outcome.Report

	// Refresh strictly after the spend response; the mirror adopts the
	// server's balance, never a local computation.
	f.mirror.Refresh(ctx, f.userId)

	if err := f.recall.Insert(ctx, report); err != nil {
		zap.L().Warn("Failed to cache completed audit",
			zap.String("address", target),
			zap.Error(err))
	}
	f.recordAudit(ctx, report)

	f.mu.Lock()
	if err := f.to(StateComplete); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.pending = nil
	f.report = report
	f.mu.Unlock()

	zap.L().Info("Audit complete",
		zap.String("address", target),
		zap.Int("score", report.Score),
		zap.Int("cost_deducted", report.CostDeducted),
		zap.Bool("is_proxy", report.IsProxy))

	return &Result{Kind: ResultReport, Report: report}, nil
}

// fail maps the failure taxonomy: domain-coded rejections keep their
// sentinel identity for specific messaging; everything else surfaces as the
// generic error path. Either way the request returns to Idle and is never
// retried automatically.
func (f *Flow) fail(target string, cause error) error {
	f.mu.Lock()
	f.reset()
	f.mu.Unlock()

	switch {
	case errors.Is(cause, engine.ErrInsufficientCredits):
		zap.L().Info("Audit rejected, insufficient credits", zap.String("address", target))
		return cause
	case errors.Is(cause, engine.ErrVaultHalted):
		zap.L().Warn("Audit halted, vault insolvent", zap.String("address", target))
		return cause
	default:
		zap.L().Error("Audit failed", zap.String("address", target), zap.Error(cause))
		return fmt.Errorf("audit failed: %w", cause)
	}
}

// Acknowledge returns the machine to Idle after a completed report has been
// viewed.
func (f *Flow) Acknowledge() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateComplete {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	f.reset()
	return nil
}

func (f *Flow) recordAudit(ctx context.Context, report *models.AuditReport) {
	if f.recorder == nil {
		return
	}
	score := report.Score
	err := f.recorder.RecordActivity(ctx, history.ActivityRecord{
		Type:        history.ActivityAudit,
		Description: fmt.Sprintf("Audited %s", report.Address),
		Credits:     -report.CostDeducted,
		Address:     report.Address,
		Score:       &score,
		ReportHash:  report.ReportHash,
	})
	if err != nil {
		zap.L().Warn("Failed to record audit in vault log", zap.Error(err))
	}
}
