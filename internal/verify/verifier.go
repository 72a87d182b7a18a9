// Package verify is the grounding core: it decides whether generated
// claims are supported by the chunks they cite, and whether a fact sheet
// is complete enough to generate from.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ppiankov/veridica/internal/model"
)

// ChunkStore is the retrieval contract the verifier depends on. Ids must
// stay stable for the lifetime of the project so citations never dangle
// because a chunk moved.
type ChunkStore interface {
	Get(projectID, chunkID string) (model.Chunk, error)
	Exists(projectID, chunkID string) (bool, error)
}

// Verifier checks claims against their cited chunks.
type Verifier struct {
	chunks  ChunkStore
	judge   Judge
	workers int
	limiter *rate.Limiter
}

// New creates a verifier. workers bounds concurrent judge calls; rps/burst
// bound the reasoning-call rate (0 disables rate limiting).
func New(chunks ChunkStore, judge Judge, workers int, rps float64, burst int) *Verifier {
	if workers <= 0 {
		workers = 4
	}
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Verifier{chunks: chunks, judge: judge, workers: workers, limiter: limiter}
}

// VerifyClaim checks one claim. The policy lives here; only the per-chunk
// entailment judgment is delegated:
//
//  1. non-factual claims short-circuit to SUPPORTED
//  2. a factual claim with no citations is UNSUPPORTED
//  3. a citation that does not resolve is UNSUPPORTED (dangling)
//  4. per-chunk judgments aggregate with contradiction dominance: one
//     contradicting chunk makes the claim UNSUPPORTED regardless of
//     other support; otherwise any entailing chunk makes it SUPPORTED;
//     otherwise AMBIGUOUS.
//
// Bad claims produce verdicts, never errors; only infrastructure
// failures (store, judge transport) propagate.
func (v *Verifier) VerifyClaim(ctx context.Context, projectID string, claim model.Claim, pass string) (model.VerificationResult, error) {
	result := model.VerificationResult{
		ClaimID:   claim.ID,
		ClaimText: claim.Text,
		Pass:      pass,
		CreatedAt: time.Now().UTC(),
	}

	if !claim.IsFactual {
		result.Verdict = model.VerdictSupported
		result.Rationale = "non-factual claim, exempt from grounding"
		return result, nil
	}

	if len(claim.CitedChunkIDs) == 0 {
		result.Verdict = model.VerdictUnsupported
		result.Rationale = "factual claim cites no chunks"
		return result, nil
	}

	var resolved []model.Chunk
	for _, id := range claim.CitedChunkIDs {
		chunk, err := v.chunks.Get(projectID, id)
		if errors.Is(err, model.ErrChunkNotFound) {
			result.Verdict = model.VerdictUnsupported
			result.Rationale = fmt.Sprintf("dangling citation: chunk %q does not exist", id)
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("resolving citation %s: %w", id, err)
		}
		resolved = append(resolved, chunk)
	}

	entailedBy := []string{}
	contradictedBy := []string{}
	var rationale string
	for _, chunk := range resolved {
		if v.limiter != nil {
			if err := v.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}
		judgment, why, err := v.judge.Judge(ctx, claim.Text, chunk)
		if err != nil {
			return result, fmt.Errorf("judging against %s: %w", chunk.ID, err)
		}
		switch judgment {
		case JudgmentEntailed:
			entailedBy = append(entailedBy, chunk.ID)
		case JudgmentContradicted:
			contradictedBy = append(contradictedBy, chunk.ID)
			if rationale == "" {
				rationale = fmt.Sprintf("contradicted by %s: %s", chunk.ID, why)
			}
		}
	}

	switch {
	case len(contradictedBy) > 0:
		// Contradiction dominates: a false claim must not slip through
		// because one of several citations happens to support it.
		result.Verdict = model.VerdictUnsupported
		result.MatchedChunkIDs = contradictedBy
		result.Rationale = rationale
	case len(entailedBy) > 0:
		result.Verdict = model.VerdictSupported
		result.MatchedChunkIDs = entailedBy
		result.Rationale = fmt.Sprintf("entailed by %d of %d cited chunks", len(entailedBy), len(resolved))
	default:
		result.Verdict = model.VerdictAmbiguous
		result.Rationale = "no cited chunk entails or contradicts the claim"
	}
	return result, nil
}

// VerifyAll checks claims concurrently, bounded by the worker count.
// Claims are independent, so results keep input order by index. The
// first infrastructure error cancels the batch.
func (v *Verifier) VerifyAll(ctx context.Context, projectID string, claims []model.Claim, pass string) ([]model.VerificationResult, error) {
	if len(claims) == 0 {
		return []model.VerificationResult{}, nil
	}

	results := make([]model.VerificationResult, len(claims))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	for i, claim := range claims {
		g.Go(func() error {
			res, err := v.VerifyClaim(ctx, projectID, claim, pass)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Offending returns the results that block release: factual claims whose
// verdict is not SUPPORTED.
func Offending(results []model.VerificationResult) []model.VerificationResult {
	var out []model.VerificationResult
	for _, r := range results {
		if r.Verdict != model.VerdictSupported {
			out = append(out, r)
		}
	}
	return out
}
