package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/orbeon/orbeon-forms-sub002/cmd/xfapply/commands"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "apply":
		err = commands.Apply(args, os.Stdout, os.Stderr)
	case "check":
		err = commands.Check(args, os.Stdout)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("xfapply version %s\n", version)
	if commit != "unknown" {
		fmt.Printf("commit: %s\n", commit)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Printf("go: %s\n", info.GoVersion)
	}
}

func printUsage() {
	fmt.Println("xfapply replays form server responses against a rendered page")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  xfapply apply <page.html> <response.xml>...   Apply responses in order and print the page")
	fmt.Println("      --config <file>    YAML engine configuration")
	fmt.Println("      --out <file>       Write the page to a file instead of stdout")
	fmt.Println("      --constrained      Replay with a constrained viewport (dialogs are deferred)")
	fmt.Println("      --minify           Minify the resulting page")
	fmt.Println("      --verbose          Include engine logs in the report")
	fmt.Println("  xfapply check <response.xml>...               Parse responses and list their records")
	fmt.Println("  xfapply version                               Show version information")
}
