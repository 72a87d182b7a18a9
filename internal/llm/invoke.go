package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/veridica/internal/model"
)

// invokeSleepFunc is the sleep function used between retries (injectable for tests)
var invokeSleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// invokeBaseDelay is the base duration for exponential backoff on
// transport and rate-limit errors: 2s, 4s, 8s, ...
var invokeBaseDelay = 2 * time.Second

const correctivePrompt = "\n\nYour previous response was not valid JSON for the required schema. " +
	"Respond again with ONLY the JSON object, no commentary, no code fences."

// InvokeJSON performs a reasoning call and unmarshals the response into
// out. Transport and rate-limit errors are retried with exponential
// backoff up to maxAttempts; a schema mismatch gets exactly one
// corrective re-prompt before escalating as *model.MalformedResponseError.
// The corrective turn only restates the format contract; rejected
// content is never silently resubmitted with altered inputs.
func InvokeJSON(ctx context.Context, p Provider, spec PromptSpec, out any, maxAttempts int) (*Result, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	res, err := invokeWithBackoff(ctx, p, spec, maxAttempts)
	if err != nil {
		return nil, err
	}

	if parseErr := unmarshalResponse(res.Raw, out); parseErr != nil {
		// One corrective re-prompt, then escalate.
		corrective := spec
		corrective.Prompt = spec.Prompt + correctivePrompt
		res2, err := invokeWithBackoff(ctx, p, corrective, maxAttempts)
		if err != nil {
			return nil, err
		}
		if parseErr2 := unmarshalResponse(res2.Raw, out); parseErr2 != nil {
			return nil, &model.MalformedResponseError{Op: p.Name() + " invoke", Raw: res2.Raw, Err: parseErr2}
		}
		return res2, nil
	}
	return res, nil
}

func invokeWithBackoff(ctx context.Context, p Provider, spec PromptSpec, maxAttempts int) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := invokeBaseDelay << (attempt - 1)
			if err := invokeSleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}
		res, err := p.Invoke(ctx, spec)
		if err == nil {
			return res, nil
		}
		if !model.Retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("reasoning call failed after %d attempts: %w", maxAttempts, lastErr)
}

var codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\n?(.*?)\n?```\\s*$")

// unmarshalResponse strips code fences the model may add despite
// instructions, then unmarshals.
func unmarshalResponse(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return errors.New("empty response")
	}
	return json.Unmarshal([]byte(s), out)
}
