package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/feature-pipeline/internal/app"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorBold   = "\033[1m"
)

var titleCaser = cases.Title(language.English)

// quiet suppresses progress output while formatted results go to stdout
var quiet bool

func machineOutput() bool {
	return viper.GetString("output.format") != "table" && viper.GetString("output.file") == ""
}

// PerformanceTimer records named event durations
type PerformanceTimer struct {
	start  time.Time
	starts map[string]time.Time
	events map[string]time.Duration
}

// NewPerformanceTimer creates a timer that starts now
func NewPerformanceTimer() *PerformanceTimer {
	return &PerformanceTimer{
		start:  time.Now(),
		starts: make(map[string]time.Time),
		events: make(map[string]time.Duration),
	}
}

func (pt *PerformanceTimer) StartEvent(name string) {
	pt.starts[name] = time.Now()
}

func (pt *PerformanceTimer) EndEvent(name string) {
	if started, ok := pt.starts[name]; ok {
		pt.events[name] = time.Since(started)
		delete(pt.starts, name)
	}
}

func (pt *PerformanceTimer) GetDuration(name string) time.Duration {
	return pt.events[name]
}

func (pt *PerformanceTimer) GetTotalDuration() time.Duration {
	return time.Since(pt.start)
}

func printHeader(title, subject string) {
	if quiet {
		return
	}
	fmt.Printf("%s%s%s%s: %s%s%s\n", ColorBold, ColorBlue, title, ColorReset, ColorCyan, subject, ColorReset)
	fmt.Printf("%s%s%s\n\n", ColorBlue, strings.Repeat("═", 80), ColorReset)
}

func printStep(num int, title string) {
	if quiet {
		return
	}
	fmt.Printf("%s%s%d%s %s%s%s\n", ColorBold, ColorPurple, num, ColorReset, ColorWhite, title, ColorReset)
}

func printSectionHeader(title string) {
	if quiet {
		return
	}
	fmt.Printf("\n%s%s%s%s\n", ColorBold, ColorBlue, titleCaser.String(title), ColorReset)
}

func printSuccess(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Printf("   %s✓%s %s\n", ColorGreen, ColorReset, fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Printf("   %s⚠%s %s\n", ColorYellow, ColorReset, fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Printf("   %s✗%s %s\n", ColorRed, ColorReset, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Printf("   %s•%s %s\n", ColorCyan, ColorReset, fmt.Sprintf(format, args...))
}

func printKeyValue(key string, value any) {
	if quiet {
		return
	}
	fmt.Printf("   %-18s %v\n", key+":", value)
}

// printRunSummary shows cluster membership grouped by cluster id
func printRunSummary(result *app.Result, timer *PerformanceTimer) {
	if quiet {
		return
	}
	printSectionHeader("run summary")
	printKeyValue("Run ID", result.RunID)
	printKeyValue("Stages", strings.Join(result.Stages, " -> "))
	printKeyValue("Clips", result.Clips)
	printKeyValue("Features", result.Features)
	printKeyValue("Iterations", result.Iterations)
	printKeyValue("Inertia", fmt.Sprintf("%.3f", result.Inertia))
	if result.Purity > 0 {
		printKeyValue("Label purity", fmt.Sprintf("%.1f%%", 100*result.Purity))
	}

	members := make(map[int][]string)
	for _, a := range result.Assignments {
		name := a.Clip
		if a.Label != "" {
			name += " (" + a.Label + ")"
		}
		members[a.Cluster] = append(members[a.Cluster], name)
	}
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	printSectionHeader("clusters")
	for _, id := range ids {
		fmt.Printf("   %sCluster %d%s [%d]: %s\n", ColorBold, id, ColorReset, len(members[id]), strings.Join(members[id], ", "))
	}

	fmt.Printf("\n%sTotal Duration: %v%s\n", ColorBold, timer.GetTotalDuration(), ColorReset)
}
