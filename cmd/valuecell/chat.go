package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

var (
	chatUser         string
	chatConversation string
	chatAgent        string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive analysis session",
	Long: `Start an interactive chat with the analyst team.

Each message is planned into tasks for the analyst agents, streamed
back live, and persisted as conversation items. When the planner needs
clarification it asks inline; your next message is treated as the
answer. Recurring requests keep running in the background and surface
their results as summary cards.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "local", "User id for this session")
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "Resume an existing conversation id")
	chatCmd.Flags().StringVar(&chatAgent, "agent", "", "Address a specific agent instead of auto-selection")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.orchestrator.StartCleanupLoop(ctx, a.cfg.Orchestrator.CleanupInterval)

	conversationID := chatConversation
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	// One renderer for everything: turn responses and detached
	// scheduled-run output both arrive on the broadcast channel.
	go func() {
		for r := range a.emitter.Events() {
			a.metrics.CountResponse(r)
			renderResponse(r)
		}
	}()

	color.New(color.FgCyan, color.Bold).Println("ValueCell analyst team")
	fmt.Printf("conversation %s (user %s)\n", conversationID, chatUser)
	fmt.Println("Type a request, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgGreen, color.Bold)

	for {
		prompt.Print("\nyou> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		input := models.UserInput{
			Query:          line,
			ConversationID: conversationID,
			UserID:         chatUser,
			AgentName:      chatAgent,
		}

		stream, err := a.orchestrator.ProcessMessage(ctx, input, nil)
		if err != nil {
			color.Red("error: %v", err)
			continue
		}

		// Rendering happens on the broadcast drain; here we only wait
		// for the turn to finish or pause on a clarification.
		for range stream {
		}
	}

	return scanner.Err()
}

// renderResponse prints one response in a terminal-friendly form.
func renderResponse(r response.Response) {
	switch r.Event {
	case response.EventMessageChunk:
		fmt.Print(r.Content)

	case response.EventReasoning:
		color.New(color.Faint).Print(r.Content)

	case response.EventToolCallStarted:
		color.Yellow("\n[tool] %s running...", r.ToolName)

	case response.EventToolCallCompleted:
		color.Yellow("\n[tool] %s done", r.ToolName)

	case response.EventComponentGenerator:
		renderComponent(r)

	case response.EventNotifyMessage:
		color.Magenta("\n[notice] %s", r.Content)

	case response.EventTaskStarted:
		color.Cyan("\n[task] %s started (%s)", r.Metadata["title"], r.Metadata["agent_name"])

	case response.EventTaskCompleted:
		color.Green("\n[task] %s completed", r.Metadata["title"])

	case response.EventTaskFailed:
		color.Red("\n[task] %s failed: %s", r.Metadata["title"], r.Content)

	case response.EventThreadStarted:
		// Internal marker, not rendered.

	case response.EventPlanRequireUserInput:
		color.New(color.FgBlue, color.Bold).Printf("\n[question] %s\n", r.Content)

	case response.EventPlanFailed:
		color.Red("\n[plan failed] %s", r.Content)

	case response.EventDone:
		fmt.Println()
	}
}

func renderComponent(r response.Response) {
	header := color.New(color.FgCyan, color.Bold)
	switch r.ComponentType {
	case "scheduled_task_result":
		var payload struct {
			Result     string `json:"result"`
			CreateTime string `json:"create_time"`
		}
		if err := json.Unmarshal([]byte(r.Content), &payload); err == nil {
			header.Printf("\n┌─ %s (%s)\n", r.Metadata["title"], payload.CreateTime)
			fmt.Printf("│ %s\n", strings.ReplaceAll(payload.Result, "\n", "\n│ "))
			header.Println("└─")
			return
		}
		header.Printf("\n[%s] %s\n", r.ComponentType, r.Content)

	case "schedule_controller":
		header.Printf("\n[recurring] %s is now scheduled\n", r.Metadata["title"])

	case "subagent_conversation":
		// Correlation card for the UI; nothing to show in a terminal.

	default:
		header.Printf("\n[%s] %s\n", r.ComponentType, r.Content)
	}
}
