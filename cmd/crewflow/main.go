// =============================================================================
// CrewFlow 主入口
// =============================================================================
// 命令行入口点：提交请求、查看历史、检查 Provider 健康状态
//
// 使用方法:
//
//	crewflow run "build a login endpoint"       # 运行一次编排
//	crewflow run --config config.yaml --tree "..."
//	crewflow history                            # 查看最近的运行
//	crewflow history --run <run_id>             # 查看单次运行明细
//	crewflow version                            # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BaSui01/crewflow"
	"github.com/BaSui01/crewflow/config"
	"github.com/BaSui01/crewflow/persistence"
	"github.com/BaSui01/crewflow/tasktree"
	"github.com/BaSui01/crewflow/types"
)

// 构建时注入
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRequest(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "version":
		fmt.Printf("CrewFlow %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ run 命令
// =============================================================================

func runRequest(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	showTree := fs.Bool("tree", false, "Print the task tree after the run")
	dot := fs.Bool("dot", false, "Print the task tree in Graphviz DOT format")
	fs.Parse(args)

	request := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if request == "" {
		// 无参数时从 stdin 读取请求
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read request from stdin: %v\n", err)
			os.Exit(1)
		}
		request = strings.TrimSpace(string(data))
	}
	if request == "" {
		fmt.Fprintln(os.Stderr, "run requires a request, e.g. crewflow run \"build a login endpoint\"")
		os.Exit(1)
	}

	var opts []crewflow.Option
	if *configPath != "" {
		opts = append(opts, crewflow.WithConfigFile(*configPath))
	}
	sys, err := crewflow.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build system: %v\n", err)
		os.Exit(1)
	}
	defer sys.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := sys.HandleRequest(ctx, request)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode outcome: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *showTree || *dot {
		printTree(request, outcome.Tasks, *dot)
	}
}

// printTree 用任务终态重建任务树并打印
func printTree(request string, snapshots []types.TaskSnapshot, dot bool) {
	tasks := make([]*types.Task, 0, len(snapshots))
	for _, snap := range snapshots {
		task := types.NewTask(snap.ID, snap.Agent, snap.Description, snap.Dependencies)
		task.Status = snap.Status
		tasks = append(tasks, task)
	}
	tree, err := tasktree.FromPlan(request, tasks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build task tree: %v\n", err)
		return
	}
	if dot {
		fmt.Println(tree.DOT())
	} else {
		fmt.Println(tree.ASCII())
	}
}

// =============================================================================
// 📜 history 命令
// =============================================================================

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	runID := fs.String("run", "", "Show a single run by ID")
	limit := fs.Int("limit", 20, "Number of runs to list")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := persistence.NewRunStore(persistence.StoreConfig{Path: cfg.Database.Path}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *runID != "" {
		record, err := store.GetRun(ctx, *runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load run: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(out))
		return
	}

	records, err := store.ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		os.Exit(1)
	}
	for _, r := range records {
		fmt.Printf("%s  %s  tasks=%d  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.RunID, r.TaskCount, truncate(r.Request, 60))
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// =============================================================================
// 📋 帮助
// =============================================================================

func printUsage() {
	fmt.Println(`CrewFlow - Multi-Agent Orchestration

Usage:
  crewflow <command> [options]

Commands:
  run       Run one request through the orchestrator
  history   List or inspect persisted runs
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>   Path to configuration file (YAML)
  --tree            Print the task dependency tree after the run
  --dot             Print the task tree in Graphviz DOT format

Options for 'history':
  --config <path>   Path to configuration file (YAML)
  --run <id>        Show a single run with task details
  --limit <n>       Number of runs to list (default 20)`)
}
