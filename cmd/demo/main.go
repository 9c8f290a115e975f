// Command demo runs an autonomous file-editing agent against a workspace
// directory.
//
// The agent gets read_file, write_file, and list_files tools scoped to the
// workspace, plus a request_user_input tool that pauses the run and hands
// the question back to the terminal. Progress streams to stdout as it
// happens: assistant text, tool calls the moment their arguments finish,
// and results as batches settle.
//
// Usage:
//
//	go run ./cmd/demo [-dir workspace] [-max-iterations 10] "task prompt"
//
// Set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY (a .env file
// works too).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/strandworks/strand"
	"github.com/strandworks/strand/agent"
	"github.com/strandworks/strand/client"
	"github.com/strandworks/strand/event"
	"github.com/strandworks/strand/model"
	"github.com/strandworks/strand/provider/anthropic"
	"github.com/strandworks/strand/provider/google"
	"github.com/strandworks/strand/provider/openai"
	"github.com/strandworks/strand/tool"
)

var reader = bufio.NewReader(os.Stdin)

const systemPrompt = `You are a careful coding agent working inside a sandboxed workspace directory.
Use the provided tools to inspect and modify files. When you need a decision
only the user can make, call request_user_input. When the task is finished,
say TASK COMPLETE.`

func main() {
	godotenv.Load()

	dir := flag.String("dir", ".", "workspace directory the file tools may touch")
	maxIterations := flag.Int("max-iterations", 10, "hard bound on tool-exchange cycles")
	model := flag.String("model", "", "model identifier (provider default when empty)")
	flag.Parse()

	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Println("║       strand - Agent Runtime Demo      ║")
	fmt.Println("╚════════════════════════════════════════╝")
	fmt.Println()

	c, label, defaultModel, err := pickClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return
	}
	if c == nil {
		fmt.Println("✗ No API keys found. Set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY.")
		return
	}
	if *model == "" {
		*model = defaultModel
	}
	fmt.Printf("Using %s (%s)\n", label, *model)
	fmt.Printf("Workspace: %s\n\n", *dir)

	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		fmt.Print("Task: ")
		line, _ := reader.ReadString('\n')
		prompt = strings.TrimSpace(line)
	}
	if prompt == "" {
		fmt.Println("Nothing to do.")
		return
	}

	registry := tool.NewRegistry().Add(
		tool.ReadFileTool(tool.WithBasePath(*dir)),
		tool.WriteFileTool(tool.WithBasePath(*dir)),
		tool.ListFilesTool(tool.WithBasePath(*dir)),
	)
	if err := registry.RegisterClientTool(tool.UserInputTool("request_user_input")); err != nil {
		fmt.Fprintf(os.Stderr, "register tool: %v\n", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events := event.NewChannel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(events)
	}()

	loop := agent.New(c, registry)
	opts := []agent.Option{
		agent.WithSystem(systemPrompt),
		agent.WithModel(*model),
		agent.WithCompletionPhrase("TASK COMPLETE"),
		agent.WithMaxIterations(*maxIterations),
		agent.WithEvents(events),
	}

	turns := []strand.Turn{strand.NewUserTurn(prompt)}
	for {
		result, err := loop.RunTurns(ctx, turns, opts...)
		if err != nil {
			close(events)
			<-done
			fmt.Fprintf(os.Stderr, "\nrun failed: %v\n", err)
			return
		}

		if result.Signal.Kind != agent.SignalAwaitingInput {
			close(events)
			<-done
			printSummary(result, *model)
			return
		}

		// The model asked the user something. Answer every pending call
		// and resume the conversation where it paused.
		turns = append(result.State.History, answerPending(result.PendingCalls, result.PendingResults))
	}
}

// pickClient selects a provider from the available API keys, asking when
// more than one is configured. It returns the provider's default model.
func pickClient() (client.StreamClient, string, string, error) {
	type choice struct {
		label string
		model string
		build func() (client.StreamClient, error)
	}

	var available []choice
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		available = append(available, choice{"Anthropic (Claude)", anthropic.DefaultModel,
			func() (client.StreamClient, error) { return anthropic.New(), nil }})
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		available = append(available, choice{"OpenAI (GPT)", openai.DefaultModel,
			func() (client.StreamClient, error) { return openai.New(), nil }})
	}
	if os.Getenv("GOOGLE_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") != "" {
		available = append(available, choice{"Google (Gemini)", google.DefaultModel,
			func() (client.StreamClient, error) { return google.New(context.Background()) }})
	}

	if len(available) == 0 {
		return nil, "", "", nil
	}

	selected := 0
	if len(available) > 1 {
		fmt.Println("Available providers:")
		for i, p := range available {
			fmt.Printf("  [%d] %s\n", i+1, p.label)
		}
		fmt.Printf("Select provider [1-%d]: ", len(available))
		answer, _ := reader.ReadString('\n')

		fmt.Sscanf(strings.TrimSpace(answer), "%d", &selected)
		selected--
		if selected < 0 || selected >= len(available) {
			selected = 0
		}
	}

	c, err := available[selected].build()
	if err != nil {
		return nil, "", "", err
	}
	return c, available[selected].label, available[selected].model, nil
}

// answerPending collects a terminal answer for each client-side tool call
// and packages them, together with results the run already produced, as
// the single tool-result turn the loop expects next.
func answerPending(calls []strand.ToolCall, done []strand.ToolResult) strand.Turn {
	results := make([]strand.ToolResult, 0, len(done)+len(calls))
	results = append(results, done...)
	for _, call := range calls {
		var args struct {
			Prompt string `json:"prompt"`
		}
		json.Unmarshal([]byte(call.Arguments), &args)
		if args.Prompt == "" {
			args.Prompt = "The agent is waiting for input."
		}

		fmt.Printf("\n? %s\n> ", args.Prompt)
		answer, _ := reader.ReadString('\n')
		results = append(results, strand.ToolResult{
			ToolCallID: call.ID,
			Content:    strings.TrimSpace(answer),
		})
	}
	return strand.NewToolResultTurn(results...)
}

func printEvents(events <-chan event.Event) {
	for e := range events {
		switch e.Type {
		case event.IterationStart:
			fmt.Printf("\n[iteration %d]\n", e.Iteration)

		case event.MessageDelta:
			fmt.Print(e.Delta)

		case event.ToolCallReady:
			fmt.Printf("\n  -> %s(%s)\n", e.ToolCall.Name, truncate(e.ToolCall.Arguments, 80))

		case event.ToolCallResult:
			status := "ok"
			if e.ToolResult.IsError {
				status = "error"
			}
			fmt.Printf("  <- %s [%s] %s\n", e.ToolCall.Name, status, truncate(e.ToolResult.Content, 80))

		case event.RunError:
			fmt.Printf("\n  ✗ %v\n", e.Error)
		}
	}
}

func printSummary(result *agent.Result, modelID string) {
	fmt.Println("\n┌─────────────────────────────────────────┐")
	fmt.Println("│               Run Summary               │")
	fmt.Println("└─────────────────────────────────────────┘")
	fmt.Printf("Signal:     %s\n", result.Signal)
	fmt.Printf("Iterations: %d\n", result.State.Iteration)
	fmt.Printf("Tokens:     %d in / %d out\n", result.State.Usage.InputTokens, result.State.Usage.OutputTokens)
	if cost := model.Cost(modelID, result.State.Usage); cost > 0 {
		fmt.Printf("Cost:       $%.4f\n", cost)
	}
	if len(result.State.Artifacts) > 0 {
		fmt.Printf("Artifacts:  %s\n", strings.Join(result.State.Artifacts, ", "))
	}
	if result.FinalText != "" {
		fmt.Printf("\n%s\n", result.FinalText)
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
