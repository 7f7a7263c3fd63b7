package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
)

const DefaultTimeout = 60 * time.Second

// Gateway sends a prompt to the providers of a chain one at a time, in
// order, and returns the first non-empty answer.
type Gateway struct {
	chains       map[domain.ArtifactKind][]Member
	defaultChain []Member
	log          *logger.Logger
	now          func() time.Time
}

// NewGateway creates a gateway. Kinds without an entry in chains use
// defaultChain.
func NewGateway(defaultChain []Member, chains map[domain.ArtifactKind][]Member, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	deduped := make(map[domain.ArtifactKind][]Member, len(chains))
	for kind, chain := range chains {
		deduped[kind] = dedupe(chain, string(kind), log)
	}
	return &Gateway{
		chains:       deduped,
		defaultChain: dedupe(defaultChain, DefaultChainKey, log),
		log:          log,
		now:          time.Now,
	}
}

// dedupe keeps the first occurrence of each provider so a failed provider is
// never called twice within one Generate.
func dedupe(chain []Member, key string, log *logger.Logger) []Member {
	seen := make(map[string]bool, len(chain))
	out := make([]Member, 0, len(chain))
	for _, m := range chain {
		name := m.Provider.Name()
		if seen[name] {
			log.Warn("provider listed twice in chain, ignoring repeat", "chain", key, "provider", name)
			continue
		}
		seen[name] = true
		out = append(out, m)
	}
	return out
}

// Chain returns the provider names tried for kind, in order.
func (g *Gateway) Chain(kind domain.ArtifactKind) []string {
	members := g.chainFor(kind)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Provider.Name())
	}
	return names
}

func (g *Gateway) chainFor(kind domain.ArtifactKind) []Member {
	if chain, ok := g.chains[kind]; ok && len(chain) > 0 {
		return chain
	}
	return g.defaultChain
}

// Generate tries each provider of kind's chain until one returns non-empty
// text. Calls are strictly sequential and each runs under the member's
// timeout. When ctx ends first the error is a *domain.DeadlineError; when
// every provider failed it is a *domain.ExhaustedError. Both carry the
// attempts made so far.
func (g *Gateway) Generate(ctx context.Context, kind domain.ArtifactKind, prompt string, opts Options) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "Gateway.Generate", telemetry.SpanAttributes{
		ArtifactKind: string(kind),
		Operation:    "generate",
	})
	defer span.End()

	chain := g.chainFor(kind)
	req := Request{
		System:      opts.System,
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
		Schema:      opts.ResponseSchema,
	}

	var attempts []domain.ProviderAttempt
	for _, member := range chain {
		if err := ctx.Err(); err != nil {
			return nil, &domain.DeadlineError{Attempts: attempts, Err: err}
		}

		name := member.Provider.Name()
		timeout := member.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}

		start := g.now()
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := member.Provider.Complete(callCtx, req)
		cancel()
		elapsed := g.now().Sub(start)

		if err == nil && strings.TrimSpace(text) != "" {
			attempts = append(attempts, domain.ProviderAttempt{
				Provider: name,
				Outcome:  domain.AttemptOutcomeSuccess,
				Elapsed:  elapsed,
			})
			span.SetData("provider", name)
			g.log.Debug("provider answered", "kind", kind, "provider", name, "elapsed", elapsed)
			return &Result{
				Text:     text,
				Provider: name,
				Model:    member.Provider.Model(),
				Attempts: attempts,
			}, nil
		}

		attempt := domain.ProviderAttempt{Provider: name, Elapsed: elapsed}
		switch {
		case err == nil:
			attempt.Outcome = domain.AttemptOutcomeInvalidOutput
			attempt.Error = "empty response"
		default:
			attempt.Outcome = classify(err)
			attempt.Error = err.Error()
		}
		attempts = append(attempts, attempt)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.DeadlineError{Attempts: attempts, Err: ctxErr}
		}

		telemetry.AddBreadcrumb(ctx, "provider", fmt.Sprintf("%s %s: %s", name, attempt.Outcome, attempt.Error))
		g.log.Warn("provider failed, trying next",
			"kind", kind,
			"provider", name,
			"outcome", attempt.Outcome,
			"error", attempt.Error,
		)
	}

	err := &domain.ExhaustedError{Kind: kind, Attempts: attempts}
	span.SetError(err)
	return nil, err
}

func classify(err error) domain.AttemptOutcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.AttemptOutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.AttemptOutcomeTimeout
	}
	return domain.AttemptOutcomeRejected
}
