// cmd/salesvault/main.go
//
// Entry point for the salesvault CLI. The first argument selects a
// subcommand; everything after it is parsed by that subcommand's flag set.
// `salesvault board` launches the terminal dashboard.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/peb7268/salesvault/internal/board"
	"github.com/peb7268/salesvault/internal/bridge"
	"github.com/peb7268/salesvault/internal/config"
	"github.com/peb7268/salesvault/internal/logbook"
	"github.com/peb7268/salesvault/internal/pipeline"
	"github.com/peb7268/salesvault/internal/schema"
	"github.com/peb7268/salesvault/internal/store"
	"github.com/peb7268/salesvault/internal/tui"
)

const usage = `salesvault manages a sales pipeline as plain files in a vault.

Usage:
  salesvault <command> [flags]

Commands:
  init             create the vault structure in the target directory
  create-prospect  add a new prospect
  list             list prospects (optionally by stage)
  move             move a prospect to another pipeline stage
  sync             rebuild the Kanban board file
  metrics          show count and average score per stage
  serve            run the webhook bridge for call automation
  board            open the terminal dashboard

Use "salesvault <command> -h" for command flags.
`

func main() {
	// Local .env files may carry SALESVAULT_BRIDGE_* overrides.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "create-prospect":
		err = runCreateProspect(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "move":
		err = runMove(os.Args[2:])
	case "sync":
		err = runSync(os.Args[2:])
	case "metrics":
		err = runMetrics(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "board":
		err = runBoard(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "salesvault: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "salesvault: %v\n", err)
		os.Exit(1)
	}
}

// vaultRoot resolves the vault directory: an explicit flag wins, then
// SALESVAULT_ROOT, then the working directory.
func vaultRoot(flagValue string) (string, error) {
	root := strings.TrimSpace(flagValue)
	if root == "" {
		root = strings.TrimSpace(os.Getenv("SALESVAULT_ROOT"))
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		root = cwd
	}
	return filepath.Abs(root)
}

func openStore(root string) (*store.Store, *logbook.Logbook, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}
	lb, _ := logbook.ForVault(root)
	st := store.New(cfg, store.WithLogger(lb))
	if err := st.Initialize(); err != nil {
		return nil, nil, err
	}
	return st, lb, nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory (default: cwd or SALESVAULT_ROOT)")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, lb, err := openStore(dir)
	if err != nil {
		return err
	}
	if lb != nil {
		lb.Info("Vault initialized at %s", dir)
	}
	fmt.Printf("Initialized vault at %s\n", dir)
	fmt.Printf("  prospects:  %s\n", st.Config().ProspectsDir())
	fmt.Printf("  campaigns:  %s\n", st.Config().CampaignsDir())
	fmt.Printf("  activities: %s\n", st.Config().ActivitiesDir())
	fmt.Printf("  board:      %s\n", st.Config().DashboardFile())
	return nil
}

func runCreateProspect(args []string) error {
	fs := flag.NewFlagSet("create-prospect", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	name := fs.String("name", "", "business name (required)")
	industry := fs.String("industry", "", "industry (required)")
	city := fs.String("city", "", "city (required)")
	state := fs.String("state", "", "state (required)")
	phone := fs.String("phone", "", "phone number")
	email := fs.String("email", "", "email address")
	website := fs.String("website", "", "website URL")
	notes := fs.String("notes", "", "freeform notes for the file body")
	fromJSON := fs.String("json", "", "read the full input as JSON from a file ('-' for stdin)")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, _, err := openStore(dir)
	if err != nil {
		return err
	}

	var in schema.ProspectInput
	if *fromJSON != "" {
		if err := readJSONInput(*fromJSON, &in); err != nil {
			return err
		}
	} else {
		in = schema.ProspectInput{
			BusinessName: *name,
			Industry:     *industry,
			City:         *city,
			State:        *state,
			Phone:        *phone,
			Email:        *email,
			Website:      *website,
			Notes:        *notes,
		}
	}

	p, err := st.CreateProspect(in)
	if err != nil {
		return describeValidation(err)
	}
	fmt.Printf("Created %s (%s)\n", p.ID, p.FilePath)
	return nil
}

// readJSONInput decodes a strict JSON payload from a file or stdin.
func readJSONInput(source string, target any) error {
	if source == "-" {
		return schema.StrictDecodeJSON(os.Stdin, target)
	}
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()
	return schema.StrictDecodeJSON(file, target)
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	stageFilter := fs.String("stage", "", "only show prospects in this stage")
	asJSON := fs.Bool("json", false, "emit JSON instead of a table")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, _, err := openStore(dir)
	if err != nil {
		return err
	}

	var pred func(*schema.Prospect) bool
	if *stageFilter != "" {
		stage, ok := pipeline.ParseStage(*stageFilter)
		if !ok {
			return fmt.Errorf("unknown stage %q", *stageFilter)
		}
		pred = func(p *schema.Prospect) bool { return p.PipelineStage == stage }
	}
	prospects, err := st.ListProspects(pred)
	if err != nil {
		return err
	}

	if *asJSON {
		// Emit the frontmatter shape so field names match the files.
		out := make([]map[string]any, 0, len(prospects))
		for _, p := range prospects {
			meta, err := p.Metadata()
			if err != nil {
				return err
			}
			out = append(out, meta)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	bands := st.Config().Bands()
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Business", "Stage", "Score", "Level", "Location"})
	for _, p := range prospects {
		tw.AppendRow(table.Row{
			p.ID,
			p.Business.Name,
			p.PipelineStage,
			fmt.Sprintf("%.0f", p.QualificationScore.Total),
			bands.Level(p.QualificationScore.Total),
			fmt.Sprintf("%s, %s", p.Business.Location.City, p.Business.Location.State),
		})
	}
	tw.Render()
	return nil
}

func runMove(args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	id := fs.String("id", "", "prospect id (required)")
	to := fs.String("to", "", "target stage (required)")
	_ = fs.Parse(args)

	if *id == "" || *to == "" {
		return fmt.Errorf("move requires -id and -to")
	}
	stage, ok := pipeline.ParseStage(*to)
	if !ok {
		return fmt.Errorf("unknown stage %q", *to)
	}

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, lb, err := openStore(dir)
	if err != nil {
		return err
	}
	sync := board.New(st, board.WithLogger(lb))

	applied, err := sync.HandleStageTransition(*id, "", stage, time.Now().UTC(), "cli")
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("prospect %q not found", *id)
	}
	if err := sync.SyncAll(); err != nil {
		return err
	}
	fmt.Printf("Moved %s to %s\n", *id, stage)
	return nil
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, lb, err := openStore(dir)
	if err != nil {
		return err
	}
	sync := board.New(st, board.WithLogger(lb))
	if err := sync.SyncAll(); err != nil {
		return err
	}
	fmt.Printf("Board written to %s\n", st.Config().DashboardFile())
	return nil
}

func runMetrics(args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, _, err := openStore(dir)
	if err != nil {
		return err
	}
	m, err := board.New(st).ComputeMetrics()
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Stage", "Prospects", "Avg Score"})
	for _, stage := range pipeline.Stages() {
		count := m.CountByStage[stage]
		if count == 0 {
			continue
		}
		tw.AppendRow(table.Row{stage, count, fmt.Sprintf("%.1f", m.AvgScoreByStage[stage])})
	}
	tw.AppendFooter(table.Row{"total", m.Total, ""})
	tw.Render()
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	st, lb, err := openStore(dir)
	if err != nil {
		return err
	}
	sync := board.New(st, board.WithLogger(lb))

	settings := bridge.SettingsFromConfig(st.Config())
	// `serve` is an explicit request to run; config only picks the address.
	settings.Enabled = true
	processor := bridge.NewProcessor(st, sync, bridge.WithProcessorLogger(lb))
	srv := bridge.NewServer(settings,
		bridge.WithProcessor(processor),
		bridge.WithLogger(lb),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Bridge listening on %s (ctrl+c to stop)\n", srv.Addr())
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runBoard(args []string) error {
	fs := flag.NewFlagSet("board", flag.ExitOnError)
	root := fs.String("vault", "", "vault directory")
	_ = fs.Parse(args)

	dir, err := vaultRoot(*root)
	if err != nil {
		return err
	}
	return tui.Run(dir)
}

// describeValidation expands a validation error into one line per field so
// shell users see every violation, not just the first.
func describeValidation(err error) error {
	verr, ok := err.(*schema.ValidationError)
	if !ok {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s:", verr.Kind)
	for _, fe := range verr.Result.Errors {
		fmt.Fprintf(&b, "\n  %s: %s", fe.Field, fe.Message)
	}
	return fmt.Errorf("%s", b.String())
}
