// Command ipocket-connect runs inventory connectors from the command line,
// either writing a bundle.json for later import or feeding the bundle
// straight into a local ipocket database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/connectors"
	"github.com/ipocket/ipocket/internal/imports"
	"github.com/ipocket/ipocket/internal/inventory"
	"github.com/ipocket/ipocket/internal/store"
	"github.com/ipocket/ipocket/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "elasticsearch":
		err = runElasticsearch(os.Args[2:])
	case "prometheus":
		err = runPrometheus(os.Args[2:])
	case "vcenter":
		err = runVCenter(os.Args[2:])
	case "version":
		fmt.Println(version.Info())
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: ipocket-connect <elasticsearch|prometheus|vcenter|version> [flags]

Run 'ipocket-connect <connector> -h' for connector-specific flags.`)
}

// commonFlags are shared by every connector subcommand.
type commonFlags struct {
	mode    string
	output  string
	dbPath  string
	timeout time.Duration
}

func registerCommonFlags(fs *flag.FlagSet, cf *commonFlags, defaultTimeout time.Duration) {
	fs.StringVar(&cf.mode, "mode", "file", "file=write bundle only, dry-run/apply=run local import pipeline")
	fs.StringVar(&cf.output, "output", "", "path to save bundle.json (required in file mode)")
	fs.StringVar(&cf.dbPath, "db-path", "", "path to local ipocket DB (required in dry-run/apply mode)")
	fs.DurationVar(&cf.timeout, "timeout", defaultTimeout, "HTTP timeout for connector calls")
}

func (cf *commonFlags) validate() error {
	switch cf.mode {
	case "file":
		if cf.output == "" {
			return fmt.Errorf("-output is required when -mode=file")
		}
	case "dry-run", "apply":
		if cf.dbPath == "" {
			return fmt.Errorf("-db-path is required when -mode is dry-run/apply")
		}
	default:
		return fmt.Errorf("invalid -mode %q: must be file, dry-run, or apply", cf.mode)
	}
	if cf.timeout <= 0 {
		return fmt.Errorf("-timeout must be positive")
	}
	return nil
}

func runElasticsearch(args []string) error {
	fs := flag.NewFlagSet("elasticsearch", flag.ExitOnError)
	var cf commonFlags
	registerCommonFlags(fs, &cf, 30*time.Second)
	url := fs.String("elasticsearch-url", "", "Elasticsearch base URL (required)")
	username := fs.String("username", "", "Elasticsearch username")
	password := fs.String("password", "", "Elasticsearch password")
	apiKey := fs.String("api-key", "", "Elasticsearch API key in Base64 or id:key form")
	assetType := fs.String("asset-type", "OTHER", "asset type for imported IPs")
	projectName := fs.String("project-name", "", "optional project name")
	tags := fs.String("tags", "", "optional comma-separated tags (example: elasticsearch,nodes)")
	note := fs.String("note", "", "optional fixed note to apply to imported IP assets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cf.validate(); err != nil {
		return err
	}
	if *url == "" {
		return fmt.Errorf("-elasticsearch-url is required")
	}
	if *apiKey == "" && *username == "" {
		return fmt.Errorf("authentication is required: use -api-key or -username/-password")
	}
	if *apiKey != "" && *username != "" {
		return fmt.Errorf("provide either -api-key or -username/-password, not both")
	}

	connector := connectors.NewElasticsearchConnector(connectors.ElasticsearchConfig{
		URL:         *url,
		Username:    *username,
		Password:    *password,
		APIKey:      *apiKey,
		Timeout:     cf.timeout,
		AssetType:   *assetType,
		ProjectName: *projectName,
		Tags:        inventory.SplitTagString(*tags),
		Note:        *note,
	})
	return execute(connector, cf)
}

func runPrometheus(args []string) error {
	fs := flag.NewFlagSet("prometheus", flag.ExitOnError)
	var cf commonFlags
	registerCommonFlags(fs, &cf, 30*time.Second)
	url := fs.String("prometheus-url", "", "Prometheus base URL (required)")
	query := fs.String("query", "", "PromQL query (required)")
	ipLabel := fs.String("ip-label", "instance", "metric label containing IP or host:port")
	token := fs.String("token", "", "Prometheus auth: bearer token or username:password")
	assetType := fs.String("asset-type", "OTHER", "asset type for imported IPs")
	projectName := fs.String("project-name", "", "optional project name")
	tags := fs.String("tags", "", "optional comma-separated tags (example: monitoring,node-exporter)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cf.validate(); err != nil {
		return err
	}
	if *url == "" {
		return fmt.Errorf("-prometheus-url is required")
	}
	if *query == "" {
		return fmt.Errorf("-query is required")
	}

	connector := connectors.NewPrometheusConnector(connectors.PrometheusConfig{
		URL:         *url,
		Query:       *query,
		IPLabel:     *ipLabel,
		Token:       *token,
		Timeout:     cf.timeout,
		AssetType:   *assetType,
		ProjectName: *projectName,
		Tags:        inventory.SplitTagString(*tags),
	})
	return execute(connector, cf)
}

func runVCenter(args []string) error {
	fs := flag.NewFlagSet("vcenter", flag.ExitOnError)
	var cf commonFlags
	registerCommonFlags(fs, &cf, 60*time.Second)
	url := fs.String("vcenter-url", "", "vCenter base URL (required)")
	username := fs.String("username", "", "vCenter username (required)")
	password := fs.String("password", "", "vCenter password (required)")
	insecure := fs.Bool("insecure", false, "disable TLS certificate verification")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cf.validate(); err != nil {
		return err
	}
	if *url == "" || *username == "" || *password == "" {
		return fmt.Errorf("-vcenter-url, -username, and -password are required")
	}

	connector := connectors.NewVCenterConnector(connectors.VCenterConfig{
		URL:      *url,
		Username: *username,
		Password: *password,
		Timeout:  cf.timeout,
		Insecure: *insecure,
	})
	return execute(connector, cf)
}

// execute fetches from the connector and either writes the bundle to disk
// or runs it through the import pipeline against a local database.
func execute(connector connectors.Connector, cf commonFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout+30*time.Second)
	defer cancel()

	bundle, warnings, err := connector.Fetch(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Prepared %d IP assets and %d host records from %s\n",
		len(bundle.Data.IPAssets), len(bundle.Data.Hosts), connector.Name())
	printWarnings(warnings)

	if cf.output != "" {
		if err := connectors.WriteBundleFile(bundle, cf.output); err != nil {
			return err
		}
		fmt.Printf("Bundle written to %s\n", cf.output)
	}
	if cf.mode == "file" {
		return nil
	}

	db, err := store.New(cf.dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, "inventory", inventory.Migrations()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	runner := connectors.NewRunner(inventory.NewStore(db.DB()), zap.NewNop())
	result, err := runner.ImportBundle(ctx, connector.Name(), bundle, warnings, cf.mode == "dry-run", "")
	if err != nil {
		return err
	}

	fmt.Printf("ipocket import mode: %s\n", result.Mode)
	printImportResult(result.Import)
	return nil
}

func printWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Println("Warnings:")
	for _, warning := range warnings {
		fmt.Printf("- %s\n", warning)
	}
}

func printImportResult(result *imports.ApplyResult) {
	if result == nil {
		return
	}
	total := result.Summary.Total()
	fmt.Printf("Import summary: create=%d, update=%d, skip=%d\n",
		total.WouldCreate, total.WouldUpdate, total.WouldSkip)

	if len(result.Errors) > 0 {
		fmt.Println("Import errors:")
		for _, issue := range result.Errors {
			fmt.Printf("- %s: %s\n", issue.Location, issue.Message)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Println("Import warnings:")
		for _, issue := range result.Warnings {
			fmt.Printf("- %s: %s\n", issue.Location, issue.Message)
		}
	}
}
