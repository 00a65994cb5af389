// Command rubycore is the embedding host for the rubycore runtime: it
// boots a Heap/Collector/GlobalEnv, runs a top-level body, and prints an
// uncaught exception's class, message, and backtrace the way a real Ruby
// interpreter's top level does (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/tliron/commonlog/simple" // registers the default log backend, as the teacher's LSP host does

	"github.com/rubycore/rubycore/lib/runtime"
)

var (
	configPath string
	debug      bool
	colorMode  string
)

var rootCmd = &cobra.Command{
	Use:   "rubycore",
	Short: "rubycore runtime host",
	Long:  `rubycore embeds the shared Ruby-language runtime: value representation, heap, collector, dispatch, and blocks.`,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "boot the runtime and run a small self-check program",
	RunE:  runDemo,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "boot the runtime, force a collection, and print heap stats",
	RunE:  runStats,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "set the config's debug flag (does not change the log level)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	cfg.Debug = cfg.Debug || debug
	cfg.ProgramName = "rubycore"
	cfg.Argv = os.Args
	if configPath != "" {
		if err := runtime.LoadConfigFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", configPath, err)
		}
	}
	return cfg, nil
}

func applyColorMode() {
	switch colorMode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	}
}

// runDemo exercises the value/class/dispatch/block/exception machinery
// end to end: define a class with a method, call it, raise and rescue,
// and report success. It stands in for the source-language front end
// this core deliberately omits (spec §1).
func runDemo(cmd *cobra.Command, args []string) error {
	applyColorMode()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	exitCode, uncaught, backtrace := rt.RunTopLevel(func(top *runtime.Frame) {
		greeter := rt.Heap.NewClass("Greeter", rt.Env.Classes.Object)
		greeter.DefineMethod("hello", func(g *runtime.GlobalEnv, self runtime.Value, args []runtime.Value, block *runtime.Block) (runtime.Value, error) {
			fmt.Println("hello from a rubycore-defined method")
			return runtime.NilValue, nil
		}, 0, runtime.Public)

		recv := rt.Heap.NewInstance(greeter)
		if _, err := rt.Env.Send(recv, "hello", nil, nil, top, runtime.SendPublicOnly); err != nil {
			rt.Env.Raise(err)
		}

		runtime.Rescue(func() {
			rt.Env.Raise(&runtime.ArgumentError{Message: "demonstration error"})
		}, nil, func(exc *runtime.ExceptionObject) {
			fmt.Printf("rescued: %s: %s\n", exc.Class().Name, exc.Message)
		})
	})

	printOutcome(uncaught, backtrace)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	applyColorMode()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}
	rt.Collect()
	stats := rt.Stats()
	fmt.Printf("cells: live=%d total=%d blocks=%d\ngc cycles: %d\n",
		stats.Heap.LiveCells, stats.Heap.TotalCells, stats.Heap.Blocks, stats.Cycles)
	return nil
}

// printOutcome prints an uncaught exception's class, message, and
// backtrace exactly as spec §6 describes. The class/message line is
// colorized when stdout is a terminal (or --color=on); the backtrace lines
// are printed without color.
func printOutcome(uncaught *runtime.ExceptionObject, backtrace []string) {
	if uncaught == nil {
		return
	}
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(os.Stderr, "%s: %s\n", uncaught.Class().Name, uncaught.Message)
	for _, line := range backtrace {
		fmt.Fprintf(os.Stderr, "\tfrom %s\n", line)
	}
}
