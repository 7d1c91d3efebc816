// Package sqlictx holds the immutable description of a single SQL
// injection attack: which parameter is vulnerable, how it must be quoted,
// which transport flags apply, and which extraction method (blind or
// in-band) the rest of the engine should use.
package sqlictx

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// Method selects the extraction strategy: blind (oracle returns only a
// boolean) or in-band (the extracted value rides inside the response
// body, framed by UnionTag).
type Method int

const (
	MethodBlind Method = iota
	MethodInband
)

// String returns a human-readable name for the method.
func (m Method) String() string {
	switch m {
	case MethodBlind:
		return "blind"
	case MethodInband:
		return "in-band"
	default:
		return "unknown"
	}
}

// FieldType indicates whether the vulnerable parameter is interpreted by
// the original query as a quoted string or a bare integer.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
)

// String returns a human-readable name for the field type.
func (f FieldType) String() string {
	switch f {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	default:
		return "unknown"
	}
}

// ErrInvalidTarget is returned when Target does not name a parameter
// actually present in Params.
var ErrInvalidTarget = errors.New("sqlictx: target not present in params")

// ErrInvalidUnion is returned when an in-band context is missing its
// union column declaration or points the target column out of range.
var ErrInvalidUnion = errors.New("sqlictx: invalid union_fields/union_target")

// Params is the tagged variant resolving the distilled spec's
// dict-or-list parameter polymorphism: a request's parameters are either
// a named mapping or a positional sequence, with Target identifying the
// vulnerable one by key or index respectively.
type Params interface {
	// tamper returns a copy of the parameter collection with the target
	// slot replaced (or, in Smooth mode, substituted into its
	// placeholder) by sql. It is the single tampering routine mentioned
	// in the distilled spec's design notes — one implementation per
	// variant instead of a runtime type switch at each call site.
	tamper(sql string, smooth bool) (Params, error)
	hasTarget() bool
}

// MappingParams is a named parameter collection, e.g. query-string or
// form-body parameters addressed by name.
type MappingParams struct {
	Values map[string]string
	Target string
}

// placeholderMapping is the substitution token recognized in Smooth mode
// for mapping-shaped parameters.
const placeholderMapping = "SQLHERE"

// placeholderSequence is the substitution token recognized in Smooth mode
// for sequence-shaped parameters.
const placeholderSequence = "*"

func (p MappingParams) hasTarget() bool {
	_, ok := p.Values[p.Target]
	return ok
}

func (p MappingParams) tamper(sql string, smooth bool) (Params, error) {
	out := make(map[string]string, len(p.Values))
	for k, v := range p.Values {
		out[k] = v
	}
	cur, ok := out[p.Target]
	if !ok {
		return nil, ErrInvalidTarget
	}
	if smooth {
		out[p.Target] = substitutePlaceholder(cur, placeholderMapping, sql)
	} else {
		out[p.Target] = sql
	}
	return MappingParams{Values: out, Target: p.Target}, nil
}

// SequenceParams is a positional parameter collection, e.g. CLI argv or a
// JSON array body, addressed by 0-based index.
type SequenceParams struct {
	Values []string
	Target int
}

func (p SequenceParams) hasTarget() bool {
	return p.Target >= 0 && p.Target < len(p.Values)
}

func (p SequenceParams) tamper(sql string, smooth bool) (Params, error) {
	if !p.hasTarget() {
		return nil, ErrInvalidTarget
	}
	out := make([]string, len(p.Values))
	copy(out, p.Values)
	if smooth {
		out[p.Target] = substitutePlaceholder(out[p.Target], placeholderSequence, sql)
	} else {
		out[p.Target] = sql
	}
	return SequenceParams{Values: out, Target: p.Target}, nil
}

// substitutePlaceholder replaces the first occurrence of placeholder in s
// with sql. If the placeholder is absent, s is returned unchanged (the
// distilled spec's "pass through as-is" fallback).
func substitutePlaceholder(s, placeholder, sql string) string {
	idx := indexOf(s, placeholder)
	if idx < 0 {
		return s
	}
	return s[:idx] + sql + s[idx+len(placeholder):]
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

// Tamper replaces the Target parameter's value with sql (or substitutes
// it into the Smooth placeholder) and returns the resulting collection.
func Tamper(p Params, sql string, smooth bool) (Params, error) {
	return p.tamper(sql, smooth)
}

const unionTagLength = 32

// Context is the immutable description of a single injection attack.
// Construct it with New; use the With* mutators to derive a modified
// copy (Context is never mutated in place after construction).
type Context struct {
	Method    Method
	FieldType FieldType

	URL    string
	Params Params

	Comment     string
	StringDelim byte
	Default     string

	UseSSL  bool
	Headers map[string]string
	Cookie  map[string]string
	Smooth  bool

	Multithread bool
	Truncate    bool
	EncodeStr   bool

	UnionFields string
	UnionTarget int
	UnionTag    string
}

// Option configures a Context at construction time.
type Option func(*Context)

func WithComment(c string) Option      { return func(ctx *Context) { ctx.Comment = c } }
func WithStringDelim(d byte) Option    { return func(ctx *Context) { ctx.StringDelim = d } }
func WithDefault(v string) Option      { return func(ctx *Context) { ctx.Default = v } }
func WithUseSSL(v bool) Option         { return func(ctx *Context) { ctx.UseSSL = v } }
func WithHeaders(h map[string]string) Option {
	return func(ctx *Context) { ctx.Headers = h }
}
func WithCookie(c map[string]string) Option { return func(ctx *Context) { ctx.Cookie = c } }
func WithSmooth(v bool) Option               { return func(ctx *Context) { ctx.Smooth = v } }
func WithMultithread(v bool) Option           { return func(ctx *Context) { ctx.Multithread = v } }
func WithTruncate(v bool) Option               { return func(ctx *Context) { ctx.Truncate = v } }
func WithEncodeStr(v bool) Option               { return func(ctx *Context) { ctx.EncodeStr = v } }

// WithUnion configures in-band extraction: fields is the column-type
// alphabet (e.g. "sis"), target is the 0-based index of the column that
// will carry the extracted, tag-framed payload.
func WithUnion(fields string, target int) Option {
	return func(ctx *Context) {
		ctx.UnionFields = fields
		ctx.UnionTarget = target
	}
}

// New constructs a Context, validating the invariants from the data
// model: Target must be present in Params, and an in-band context must
// declare a non-empty union column alphabet with a valid target index.
// The union tag is generated automatically unless overridden by a later
// mutator.
func New(method Method, fieldType FieldType, url string, params Params, opts ...Option) (*Context, error) {
	if !params.hasTarget() {
		return nil, ErrInvalidTarget
	}

	ctx := &Context{
		Method:      method,
		FieldType:   fieldType,
		URL:         url,
		Params:      params,
		StringDelim: '\'',
		Default:     "1",
		Truncate:    true,
	}
	for _, opt := range opts {
		opt(ctx)
	}

	if ctx.Method == MethodInband {
		if ctx.UnionFields == "" || ctx.UnionTarget < 0 || ctx.UnionTarget >= len(ctx.UnionFields) {
			return nil, ErrInvalidUnion
		}
		if ctx.UnionTag == "" {
			tag, err := generateUnionTag()
			if err != nil {
				return nil, fmt.Errorf("sqlictx: generating union tag: %w", err)
			}
			ctx.UnionTag = tag
		}
	}

	return ctx, nil
}

// generateUnionTag returns a 32-character uppercase-alphabetic tag,
// derived from crypto/rand so concurrent sessions never collide.
func generateUnionTag() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, unionTagLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// TargetKey returns the parameter name the target slot is addressed by,
// when Params is a MappingParams. ok is false for SequenceParams or any
// other Params implementation, since there is no name to report.
func (c *Context) TargetKey() (key string, ok bool) {
	if m, isMapping := c.Params.(MappingParams); isMapping {
		return m.Target, true
	}
	return "", false
}

// TargetValue returns the current value held in the target slot,
// regardless of whether Params is a MappingParams or SequenceParams.
func (c *Context) TargetValue() (string, error) {
	switch p := c.Params.(type) {
	case MappingParams:
		v, ok := p.Values[p.Target]
		if !ok {
			return "", ErrInvalidTarget
		}
		return v, nil
	case SequenceParams:
		if !p.hasTarget() {
			return "", ErrInvalidTarget
		}
		return p.Values[p.Target], nil
	default:
		return "", ErrInvalidTarget
	}
}

// WithTargetSQL returns a shallow copy of ctx whose Params has the target
// parameter replaced by sql, honoring Smooth placeholder substitution.
func (c *Context) WithTargetSQL(sql string) (*Context, error) {
	p, err := Tamper(c.Params, sql, c.Smooth)
	if err != nil {
		return nil, err
	}
	clone := *c
	clone.Params = p
	return &clone, nil
}
