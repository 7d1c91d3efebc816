package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sqleech",
	Short: "Blind and in-band SQL injection extraction tool",
	Long: `sqleech - blind and in-band SQL injection extraction tool

Given a URL with a known-vulnerable parameter, sqleech bisects its way to
the backing DBMS's identity, schema, and data over HTTP.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Target flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "Target URL (e.g., http://target.com/page?id=1)")
	rootCmd.PersistentFlags().String("method", "GET", "HTTP method (GET or POST)")
	rootCmd.PersistentFlags().StringP("data", "d", "", "POST data (e.g., id=1&name=test)")
	rootCmd.PersistentFlags().String("cookie", "", "Cookie string (e.g., PHPSESSID=abc123)")
	rootCmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra header (repeatable, e.g., -H 'X-Custom: value')")

	// Connection flags
	rootCmd.PersistentFlags().String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	rootCmd.PersistentFlags().Int("threads", 5, "Concurrent bisection workers per extracted string")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Request timeout")

	// Output flags
	rootCmd.PersistentFlags().IntP("verbose", "v", 0, "Verbosity level (0-3)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format (text, json)")

	// Injection options
	rootCmd.PersistentFlags().String("dbms", "", "Force the DBMS dialect (mysql, postgresql, mssql, oracle); auto-sniffed when omitted")
	rootCmd.PersistentFlags().String("tamper", "", "Comma-separated tamper chain applied to every payload (e.g. space2comment,charencode)")
	rootCmd.PersistentFlags().Bool("force-ssl", false, "Force HTTPS")
	rootCmd.PersistentFlags().Bool("random-agent", false, "Use random User-Agent")
	rootCmd.PersistentFlags().String("cache", "", "SQLite cache file; resolved values are reused and persisted across runs")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqleech %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
