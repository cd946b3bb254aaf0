package eval

import (
	"context"
	"fmt"

	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/runner"
	"github.com/silfenpath/adk/session"
)

// Evaluator replays EvalSets against a bound Runner. It uses the same
// SessionService the Runner was constructed with, so the sessions it
// opens for a case are ordinary sessions the Runner can drive.
type Evaluator struct {
	runner   *runner.Runner
	sessions session.Service
	appName  string
}

// New builds an Evaluator. sessions must be the same SessionService r was
// configured with.
func New(r *runner.Runner, sessions session.Service, appName string) *Evaluator {
	return &Evaluator{runner: r, sessions: sessions, appName: appName}
}

// Run replays every case in set, scores each turn against its Expected
// (where present), and aggregates per-metric averages against criteria.
func (e *Evaluator) Run(ctx context.Context, set EvalSet, criteria Criteria) (*SetResult, error) {
	result := &SetResult{EvalSetID: set.EvalSetID, Metrics: map[string]float64{}}

	var sumResponse, sumTrajectory, sumSafety float64
	var nResponse, nTrajectory, nSafety int

	for _, ec := range set.EvalCases {
		caseResult, err := e.runCase(ctx, ec)
		caseResult.CaseID = ec.ID
		if err != nil {
			caseResult.Err = err
		}
		for _, t := range caseResult.Turns {
			if !t.Scored {
				continue
			}
			nSafety++
			sumSafety += t.Safety
			if t.Expected.ResponseMatch != nil {
				nResponse++
				sumResponse += t.ResponseMatch
			}
			if len(t.Expected.ToolUses) > 0 {
				nTrajectory++
				sumTrajectory += t.ToolTrajectory
			}
		}
		result.Cases = append(result.Cases, caseResult)
	}

	if nResponse > 0 {
		result.Metrics[MetricResponseMatch] = sumResponse / float64(nResponse)
	}
	if nTrajectory > 0 {
		result.Metrics[MetricToolTrajectory] = sumTrajectory / float64(nTrajectory)
	}
	if nSafety > 0 {
		result.Metrics[MetricSafety] = sumSafety / float64(nSafety)
	}

	result.Verdict = Pass
	for metric, threshold := range criteria {
		avg, ok := result.Metrics[metric]
		if !ok {
			continue
		}
		if avg < threshold {
			result.Verdict = Fail
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %.3f < %.3f", metric, avg, threshold))
		}
	}
	return result, nil
}

// runCase replays one case turn-by-turn in a fresh session, scoring each
// turn that carries an Expected.
func (e *Evaluator) runCase(ctx context.Context, ec EvalCase) (CaseResult, error) {
	sess, err := e.sessions.CreateSession(ctx, e.appName, "eval-"+ec.ID, nil)
	if err != nil {
		return CaseResult{}, err
	}

	result := CaseResult{CaseID: ec.ID}
	for _, turn := range ec.Conversation {
		content := event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart(turn.UserContent)}}
		ch, err := e.runner.RunAsync(ctx, sess, content)
		if err != nil {
			return result, err
		}

		var calls []ExpectedToolUse
		var text string
		var turnErr error
		for ev := range ch {
			if ev.ErrorCode != "" {
				turnErr = fmt.Errorf("turn failed: %s", ev.ErrorCode)
				continue
			}
			if ev.Content == nil || ev.IsUser() {
				continue
			}
			for _, fc := range ev.Content.FunctionCalls() {
				calls = append(calls, ExpectedToolUse{Name: fc.Name, Args: fc.Args})
			}
			if ev.TurnComplete {
				if t := ev.Content.Text(); t != "" {
					text = t
				}
			}
		}
		if turnErr != nil {
			return result, turnErr
		}

		tr := TurnResult{Expected: turn.Expected, ActualText: text, ActualCalls: calls}
		if turn.Expected != nil {
			tr.Scored = true
			if turn.Expected.ResponseMatch != nil {
				tr.ResponseMatch = responseMatchScore(*turn.Expected.ResponseMatch, text)
			}
			if len(turn.Expected.ToolUses) > 0 {
				tr.ToolTrajectory = toolTrajectoryScore(turn.Expected.ToolUses, calls)
			}
			tr.Safety = safetyScore(text)
		}
		result.Turns = append(result.Turns, tr)
	}
	return result, nil
}
