package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/config"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/service"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/state"
)

var (
	conversationsUser string
	conversationsShow string
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations and their tasks",
	RunE:  runConversations,
}

func init() {
	conversationsCmd.Flags().StringVar(&conversationsUser, "user", "local", "User id to list conversations for")
	conversationsCmd.Flags().StringVar(&conversationsShow, "show", "", "Show the items of one conversation id")
}

func openStore() (*state.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no conversation store yet, start a chat first")
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runConversations(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	conversations := service.NewConversationService(db)
	tasks := service.NewTaskService(db)

	if conversationsShow != "" {
		return showConversation(conversations, tasks, conversationsShow)
	}

	list, err := conversations.List(conversationsUser, 50)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	id := color.New(color.FgCyan)
	for _, c := range list {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		id.Printf("%s", c.ID)
		fmt.Printf("  %s  [%s]  updated %s\n", title, c.Status, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func showConversation(conversations *service.ConversationService, tasks *service.TaskService, conversationID string) error {
	c, err := conversations.Get(conversationID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	fmt.Printf("conversation %s (status %s)\n\n", c.ID, c.Status)

	items, err := conversations.Items(conversationID)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Printf("[%s] %s: %s\n", item.Event, item.Role, item.Payload)
	}

	taskList, err := tasks.ListByConversation(conversationID)
	if err != nil {
		return err
	}
	if len(taskList) > 0 {
		fmt.Println("\ntasks:")
		for _, t := range taskList {
			fmt.Printf("  %s  %s  [%s/%s]  agent=%s\n", t.ID, t.Title, t.Status, t.Pattern, t.AgentName)
		}
	}
	return nil
}
