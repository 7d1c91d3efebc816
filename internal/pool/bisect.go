package pool

import (
	"context"
	"fmt"
	"sync"
)

// oracleFunc answers a single condition string with a boolean verdict.
type oracleFunc func(ctx context.Context, cond string) (bool, error)

// lessThan renders the "(cdt) < cmp" condition the forge package's
// ForgeCdt builds, kept local here so pool has no dependency on forge.
func lessThan(cdt string, cmp int) string {
	return fmt.Sprintf("(%s) < %d", cdt, cmp)
}

// bisectClassic performs one-probe-per-round binary search over (min,
// max], terminating when the interval narrows to a single value.
func bisectClassic(ctx context.Context, oracle oracleFunc, cdt string, min, max int) (int, error) {
	for max-min > 1 {
		mid := (max + min) / 2
		lt, err := oracle(ctx, lessThan(cdt, mid))
		if err != nil {
			return 0, err
		}
		if lt {
			max = mid
		} else {
			min = mid
		}
	}
	return min, nil
}

// bisectOptimized performs the 3-probe-per-round variant: each round
// dispatches three concurrent oracle calls at mid_l, mid, mid_r and
// narrows the interval by a factor of ~4 using the distilled spec's
// decision table.
func bisectOptimized(ctx context.Context, oracle oracleFunc, cdt string, min, max int) (int, error) {
	for max-min > 1 {
		mid := (max + min) / 2
		midL := (mid + min) / 2
		midR := (max + mid) / 2

		// mid_l == mid or mid_r == mid can occur on narrow intervals;
		// fall back to classic bisection rather than probe a degenerate
		// condition whose result can't narrow the interval.
		if midL == mid || midR == mid {
			return bisectClassic(ctx, oracle, cdt, min, max)
		}

		var (
			wg             sync.WaitGroup
			aL, a, aR      bool
			errL, err, errR error
		)
		wg.Add(3)
		go func() { defer wg.Done(); aL, errL = oracle(ctx, lessThan(cdt, midL)) }()
		go func() { defer wg.Done(); a, err = oracle(ctx, lessThan(cdt, mid)) }()
		go func() { defer wg.Done(); aR, errR = oracle(ctx, lessThan(cdt, midR)) }()
		wg.Wait()

		if errL != nil {
			return 0, errL
		}
		if err != nil {
			return 0, err
		}
		if errR != nil {
			return 0, errR
		}

		switch {
		case a && aL:
			max = midL
		case a && !aL:
			min, max = midL, mid
		case !a && aR:
			min, max = mid, midR
		default: // !a && !aR
			min = midR
		}
	}
	return min, nil
}
