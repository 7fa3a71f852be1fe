package provision

import (
	"context"
	"fmt"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/event"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

// RegisterList registers untracked accounts one after another. Nothing is
// written to the tracker: a successful registration ends as registered,
// a refused domain is blacklisted, and every other verdict ends as failed.
// Shutdown and the inter-account delay apply as in ProcessTeam.
func (m *Machine) RegisterList(ctx context.Context, reqs []Request) []Outcome {
	var outcomes []Outcome
	for i, req := range reqs {
		if m.ShutdownRequested() {
			m.logger.Info("shutdown requested, stopping before next account", "remaining", len(reqs)-i)
			m.bus.Publish(event.NewShutdownEvent(req.Team, len(reqs)-i))
			break
		}
		if i > 0 {
			if err := m.pause(ctx); err != nil {
				break
			}
		}

		out := m.registerOne(ctx, req)
		outcomes = append(outcomes, out)
		m.bus.Publish(event.NewAccountFinishedEvent(req.Team, out.Email, string(out.Status), out.Err))
	}
	return outcomes
}

func (m *Machine) registerOne(ctx context.Context, req Request) Outcome {
	log := m.logger.WithAccount(req.Email)
	out := Outcome{Team: req.Team, Email: req.Email, Password: req.Password, Status: tracker.StatusFailed}

	if m.blacklist != nil && m.blacklist.IsBlacklisted(req.Email) {
		log.Warn("email domain is blacklisted, skipped")
		out.Status = tracker.StatusDomainBlacklisted
		out.Err = fmt.Errorf("%s: %w", domainOf(req.Email), errors.ErrDomainBlacklisted)
		return out
	}

	if req.Mode == "" {
		req.Mode = ModeRegister
	}
	resp, err := m.registrar.RegisterAndAuthorize(ctx, req)
	if err != nil {
		log.Error("registrar call failed", "error", err.Error())
		out.Err = fmt.Errorf("%w: %w", errors.ErrRegistrationFailed, err)
		return out
	}

	switch resp.Status {
	case RegisterSuccess:
		log.Info("registered")
		out.Status = tracker.StatusRegistered
	case RegisterDomainUnsupported:
		m.blacklistDomain(log, req.Email)
		out.Status = tracker.StatusDomainBlacklisted
		out.Err = fmt.Errorf("%s: %w", domainOf(req.Email), errors.ErrDomainBlacklisted)
	case RegisterRejected:
		log.Error("registration rejected", "message", resp.Message)
		out.Err = fmt.Errorf("%w: %s", errors.ErrRegistrationRejected, resp.Message)
	default:
		log.Error("registration failed", "status", string(resp.Status), "message", resp.Message)
		out.Err = fmt.Errorf("%w: %s", errors.ErrRegistrationFailed, resp.Message)
	}
	return out
}
