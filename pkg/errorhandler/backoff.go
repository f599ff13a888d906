package errorhandler

import (
	"math"
	"time"
)

type backoffCalculator func(base time.Duration, retryCount int) time.Duration

var backoffCalculators = map[BackoffType]backoffCalculator{
	BackoffConstant: func(base time.Duration, _ int) time.Duration {
		return base
	},
	BackoffLinear: func(base time.Duration, count int) time.Duration {
		return saturate(float64(base) * float64(count+1))
	},
	BackoffExponential: func(base time.Duration, count int) time.Duration {
		return saturate(float64(base) * math.Pow(2, float64(count)))
	},
}

const jitterRatio = 0.1

// BaseDelay is the delay before the given retry (0-based) without jitter,
// capped at MaxDelay.
func BaseDelay(policy Policy, retryCount int) time.Duration {
	calculator, ok := backoffCalculators[policy.Backoff]
	if !ok {
		calculator = backoffCalculators[BackoffExponential]
	}

	delay := calculator(policy.BaseDelay, max(retryCount, 0))

	return capDelay(delay, policy.MaxDelay)
}

// ComputeDelay applies ±10% jitter to the base delay when enabled. random
// must return a value in [0, 1).
func ComputeDelay(policy Policy, retryCount int, random func() float64) time.Duration {
	delay := BaseDelay(policy, retryCount)
	if !policy.Jitter || random == nil || delay <= 0 {
		return delay
	}

	factor := 1 + (random()*2-1)*jitterRatio

	return capDelay(saturate(float64(delay)*factor), policy.MaxDelay)
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}

	return delay
}

func saturate(value float64) time.Duration {
	if value >= math.MaxInt64 || math.IsInf(value, 1) {
		return time.Duration(math.MaxInt64)
	}

	if value < 0 {
		return 0
	}

	return time.Duration(value)
}
