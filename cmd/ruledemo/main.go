// ruledemo - command-line driver for the retecore engine
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/smilemakc/retecore"
	"github.com/smilemakc/retecore/internal/backward"
	"github.com/smilemakc/retecore/internal/config"
	"github.com/smilemakc/retecore/internal/forward"
	"github.com/smilemakc/retecore/internal/parallel"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

const (
	version = "0.1.0"
	usage   = `ruledemo - retecore engine command-line driver

USAGE:
    ruledemo <command> [options]

COMMANDS:
    run         Run the bundled bulk-discount rule forward to completion
    prove       Prove a goal against the bundled customer rule backward
    parallel    Fire the bundled disjoint rule set across parallel batches
    version     Show version information
    help        Show this help message

RUN OPTIONS:
    -config <file>       Optional YAML config overlay
    -max-cycles <n>       Override max forward cycles (default: from config)
    -debug                Enable debug-level logging

PROVE OPTIONS:
    -config <file>        Optional YAML config overlay
    -goal <expr>          Goal expression, e.g. "?c.Preferred == true"

PARALLEL OPTIONS:
    -config <file>        Optional YAML config overlay
    -threads <n>           Max worker threads (default: 4)

EXAMPLES:
    ruledemo run -debug
    ruledemo prove -goal "?c.Preferred == true"
    ruledemo parallel -threads 2
`
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "prove":
		cmdProve(os.Args[2:])
	case "parallel":
		cmdParallel(os.Args[2:])
	case "version":
		fmt.Printf("ruledemo v%s\n", version)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func loadConfig(configPath string, debug bool) config.Config {
	cfg := config.Load()
	if configPath != "" {
		var err error
		cfg, err = config.LoadYAML(cfg, configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load config file '%s': %v\n", configPath, err)
			os.Exit(1)
		}
	}
	if debug {
		cfg.DebugMode = true
	}
	return cfg
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional YAML config overlay")
	maxCycles := fs.Int("max-cycles", 0, "Override max forward cycles")
	debug := fs.Bool("debug", false, "Enable debug-level logging")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath, *debug)
	engine := retecore.New(cfg)
	if *debug {
		engine.Forward.Logger = engine.Forward.Logger.Level(zerolog.DebugLevel)
	}

	if err := engine.AddRule(&rule.Rule{
		Name: "applyBulkDiscount",
		Condition: rule.And(
			rule.Atom("o", "Total", rule.OpGte, rule.LiteralOperand("100")),
			rule.Atom("o", "Discounted", rule.OpEq, rule.LiteralOperand("false")),
		),
		Actions: []rule.Action{
			rule.SetAction("o.Discounted", "true"),
			rule.SetAction("o.Total", "o.Total * 0.9"),
		},
		Bindings: map[string]string{"o": "Order"},
		NoLoop:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to register rule: %v\n", err)
		os.Exit(1)
	}

	order := engine.Insert("Order", map[string]value.Value{
		"Total":      value.Float(150),
		"Discounted": value.Bool(false),
	})

	opts := forward.Options{}
	if *maxCycles > 0 {
		opts.MaxCycles = *maxCycles
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := engine.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: forward execution failed: %v\n", err)
		os.Exit(1)
	}

	total, _ := engine.Store.Get(order, "Total")
	fmt.Printf("cycles=%d fired=%d final total=%.2f halt=%s\n", result.Cycles, result.RulesFired, total.Float(), result.HaltReason)
}

func cmdProve(args []string) {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional YAML config overlay")
	goal := fs.String("goal", `?c.Preferred == true`, "Goal expression")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath, false)
	engine := retecore.New(cfg)

	if err := engine.AddRule(&rule.Rule{
		Name:      "markPreferred",
		Condition: rule.Atom("c", "LifetimeSpend", rule.OpGte, rule.LiteralOperand("1000")),
		Actions:   []rule.Action{rule.SetAction("c.Preferred", "true")},
		Bindings:  map[string]string{"c": "Customer"},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to register rule: %v\n", err)
		os.Exit(1)
	}

	engine.Insert("Customer", map[string]value.Value{
		"LifetimeSpend": value.Float(4200),
		"Preferred":     value.Bool(false),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := engine.Prove(ctx, *goal, map[string]string{"c": "Customer"}, backward.Options{Strategy: backward.DFS})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: goal proof failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("proved=%v depth=%d rulesUsed=%v solutions=%d\n", result.Proved, result.Depth, result.RulesUsed, len(result.Bindings))
	fmt.Printf("proofTrace=%v missingFacts=%v stats=%+v\n", result.ProofTrace, result.MissingFacts, result.Stats)
}

func cmdParallel(args []string) {
	fs := flag.NewFlagSet("parallel", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional YAML config overlay")
	threads := fs.Int("threads", 4, "Max worker threads")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath, false)
	cfg.Parallel.DependencyAnalysis = true
	engine := retecore.New(cfg)

	if err := engine.AddRule(&rule.Rule{
		Name:      "flagAdultsX",
		Condition: rule.Atom("x", "Age", rule.OpGte, rule.LiteralOperand("18")),
		Actions:   []rule.Action{rule.SetAction("x.Adult", "true")},
		Bindings:  map[string]string{"x": "Person"},
		NoLoop:    true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to register rule: %v\n", err)
		os.Exit(1)
	}
	if err := engine.AddRule(&rule.Rule{
		Name:      "flagAdultsY",
		Condition: rule.Atom("y", "Age", rule.OpGte, rule.LiteralOperand("18")),
		Actions:   []rule.Action{rule.SetAction("y.Adult", "true")},
		Bindings:  map[string]string{"y": "Visitor"},
		NoLoop:    true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to register rule: %v\n", err)
		os.Exit(1)
	}

	engine.Insert("Person", map[string]value.Value{"Age": value.Int(40), "Adult": value.Bool(false)})
	engine.Insert("Visitor", map[string]value.Value{"Age": value.Int(50), "Adult": value.Bool(false)})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := engine.RunParallel(ctx, parallel.Options{MaxThreads: *threads})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: parallel execution failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("batches=%d speedup=%.2fx\n", len(report.Batches), report.SpeedupEstimate)
	for i, b := range report.Batches {
		fmt.Printf("  batch %d: %d rule(s) in %s\n", i, b.RuleCount, b.Elapsed)
	}
}
