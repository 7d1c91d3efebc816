package extract

import (
	"context"
	"regexp"
	"strconv"
	"testing"

	"github.com/0x6d61/sqleech/internal/forge"
	"github.com/0x6d61/sqleech/internal/injector"
	"github.com/0x6d61/sqleech/internal/oracle"
	"github.com/0x6d61/sqleech/internal/sqlictx"
)

// simulatedVersion is the default fake scalar value the mock injector
// bisects against.
const simulatedVersion = "8.0.32"

var (
	lengthLtRe  = regexp.MustCompile(`\(LENGTH\((.+?)\)\)\s*<\s*(\d+)`)
	asciiLtRe   = regexp.MustCompile(`\(ASCII\(SUBSTRING\((.+?),(\d+),1\)\)\)\s*<\s*(\d+)`)
	literalLtRe = regexp.MustCompile(`\((\d+)\)\s*<\s*(\d+)`)
)

// fakeOracleInjector evaluates the wrapped MySQL WrapBisec payload
// against value, the way boolean_test.go's evaluateCondition evaluates a
// mock server's injected condition -- here done in-process since extract
// talks to injector.Injector, not an HTTP server directly.
type fakeOracleInjector struct {
	ctx   *sqlictx.Context
	value string
}

func (f *fakeOracleInjector) Context() *sqlictx.Context { return f.ctx }

func (f *fakeOracleInjector) Trigger() *oracle.Trigger    { return nil }
func (f *fakeOracleInjector) SetTrigger(t *oracle.Trigger) {}

func (f *fakeOracleInjector) Inject(ctx context.Context, payload string) (injector.Result, error) {
	b := f.evaluate(payload)
	return injector.Result{Bool: &b}, nil
}

func (f *fakeOracleInjector) evaluate(payload string) bool {
	if m := lengthLtRe.FindStringSubmatch(payload); m != nil {
		n, _ := strconv.Atoi(m[2])
		return len(f.value) < n
	}
	if m := asciiLtRe.FindStringSubmatch(payload); m != nil {
		pos, _ := strconv.Atoi(m[2])
		threshold, _ := strconv.Atoi(m[3])
		if pos < 1 || pos > len(f.value) {
			return false
		}
		return int(f.value[pos-1]) < threshold
	}
	if m := literalLtRe.FindStringSubmatch(payload); m != nil {
		v, _ := strconv.Atoi(m[1])
		n, _ := strconv.Atoi(m[2])
		return v < n
	}
	return false
}

func newEngine(t *testing.T, multithread bool, value string) *Engine {
	t.Helper()
	params := sqlictx.MappingParams{Values: map[string]string{"id": "1"}, Target: "id"}
	ctx, err := sqlictx.New(sqlictx.MethodBlind, sqlictx.FieldInt, "http://x/", params,
		sqlictx.WithComment(""), sqlictx.WithMultithread(multithread))
	if err != nil {
		t.Fatal(err)
	}
	f := forge.NewMySQL(ctx)
	inj := &fakeOracleInjector{ctx: ctx, value: value}
	return New(f, inj)
}

func TestGetBlindIntClassic(t *testing.T) {
	e := newEngine(t, false, simulatedVersion)
	got, err := e.GetBlindInt(context.Background(), "5")
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("got %d want 5", got)
	}
}

func TestGetBlindStrClassicMatchesSimulatedVersion(t *testing.T) {
	e := newEngine(t, false, simulatedVersion)
	got, err := e.GetBlindStr(context.Background(), "version_expr")
	if err != nil {
		t.Fatal(err)
	}
	if got != simulatedVersion {
		t.Fatalf("got %q want %q", got, simulatedVersion)
	}
}

func TestGetBlindStrOptimizedMatchesSimulatedVersion(t *testing.T) {
	e := newEngine(t, true, simulatedVersion)
	got, err := e.GetBlindStr(context.Background(), "version_expr")
	if err != nil {
		t.Fatal(err)
	}
	if got != simulatedVersion {
		t.Fatalf("got %q want %q", got, simulatedVersion)
	}
}

func TestGetBlindStrEmpty(t *testing.T) {
	e := newEngine(t, false, "")
	got, err := e.GetBlindStr(context.Background(), "empty_expr_length_zero")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("expected empty string for zero length, got %q", got)
	}
}

func TestOverflowedDefaultPolicy(t *testing.T) {
	e := newEngine(t, false, simulatedVersion)
	e.LimitCountMax = 10
	if !e.overflowed(9) {
		t.Fatal("expected length==cap-1 to be flagged as overflow by default")
	}
	if e.overflowed(8) {
		t.Fatal("expected length<cap-1 to not be flagged as overflow")
	}
}

func TestOverflowedStrictPolicy(t *testing.T) {
	e := newEngine(t, false, simulatedVersion)
	e.Strict = true
	e.LimitCountMax = 10
	if !e.overflowed(10) {
		t.Fatal("expected length>=cap-1 to be flagged as overflow under Strict")
	}
	if e.overflowed(8) {
		t.Fatal("expected length<cap-1 to not be flagged as overflow under Strict")
	}
}

func TestGetInbandStr(t *testing.T) {
	params := sqlictx.MappingParams{Values: map[string]string{"id": "1"}, Target: "id"}
	ctx, err := sqlictx.New(sqlictx.MethodInband, sqlictx.FieldInt, "http://x/", params,
		sqlictx.WithUnion("is", 1))
	if err != nil {
		t.Fatal(err)
	}
	f := forge.NewMySQL(ctx)

	captured := "leaked-value"
	inj := inbandStubInjector{ctx: ctx, str: captured}
	e := New(f, &inj)

	got, err := e.GetInbandStr(context.Background(), "@@version")
	if err != nil {
		t.Fatal(err)
	}
	if got != captured {
		t.Fatalf("got %q want %q", got, captured)
	}
}

type inbandStubInjector struct {
	ctx *sqlictx.Context
	str string
}

func (s *inbandStubInjector) Context() *sqlictx.Context { return s.ctx }

func (s *inbandStubInjector) Trigger() *oracle.Trigger    { return nil }
func (s *inbandStubInjector) SetTrigger(t *oracle.Trigger) {}

func (s *inbandStubInjector) Inject(ctx context.Context, payload string) (injector.Result, error) {
	v := s.str
	return injector.Result{Str: &v}, nil
}
