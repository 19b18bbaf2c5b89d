package main

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docspace/internal/config"
)

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session <name> <email>",
	Short: "Submit your identity to start a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/session", map[string]string{
			"name":  args[0],
			"email": args[1],
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Session started for %s", args[1])
		return nil
	},
}

// --- space ---

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Manage document spaces",
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a space from PDF files and make it active",
	Long: `Create a space from PDF files and make it active.

File names decide the category: names containing "interview", "financial",
or "interior" are indexed; anything else is skipped.

Example:
  docspace space create "Interview Prep" --file interview_questions.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringArray("file")
		if len(paths) == 0 {
			return fmt.Errorf("at least one --file is required")
		}

		type fileUpload struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		}
		files := make([]fileUpload, 0, len(paths))
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			files = append(files, fileUpload{
				Name:    filepath.Base(p),
				Content: base64.StdEncoding.EncodeToString(data),
			})
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/spaces", map[string]any{
			"description": args[0],
			"files":       files,
		})
		if err != nil {
			return err
		}

		var sp struct {
			Description string            `json:"description"`
			Files       map[string]string `json:"files"`
		}
		if err := decodeJSON(resp, &sp); err != nil {
			return err
		}

		printSuccess("Created space %q with %d indexed file(s)", sp.Description, len(sp.Files))
		for name, cat := range sp.Files {
			fmt.Printf("  %s  %s\n", colorize(colorCyan, cat), name)
		}
		return nil
	},
}

var spaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces in the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/spaces"
		if email != "" {
			path += "?email=" + url.QueryEscape(email)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var spaces []struct {
			Description     string    `json:"description"`
			PrimaryCategory string    `json:"primary_category"`
			CreatedAt       time.Time `json:"created_at"`
			Active          bool      `json:"active"`
		}
		if err := decodeJSON(resp, &spaces); err != nil {
			return err
		}

		if len(spaces) == 0 {
			fmt.Println("No spaces found.")
			return nil
		}
		for _, sp := range spaces {
			marker := "  "
			if sp.Active {
				marker = colorize(colorGreen, "* ")
			}
			fmt.Printf("%s%s  [%s]  %s\n", marker,
				colorize(colorBold, sp.Description),
				sp.PrimaryCategory,
				sp.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var spaceSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Activate an existing space and restore its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/spaces/"+url.PathEscape(args[0])+"/activate", nil)
		if err != nil {
			return err
		}

		var sp struct {
			Description string `json:"description"`
		}
		if err := decodeJSON(resp, &sp); err != nil {
			return err
		}

		printSuccess("Switched to space %q", sp.Description)
		return nil
	},
}

var spaceDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a space, its index, and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/spaces/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted space %q", args[0])
		return nil
	},
}

func init() {
	spaceCreateCmd.Flags().StringArray("file", nil, "PDF file to upload (repeatable)")
	spaceListCmd.Flags().String("email", "", "list another user's spaces straight from disk")
	spaceCmd.AddCommand(spaceCreateCmd)
	spaceCmd.AddCommand(spaceListCmd)
	spaceCmd.AddCommand(spaceSwitchCmd)
	spaceCmd.AddCommand(spaceDeleteCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a chat message to the active space",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat", map[string]string{"message": message})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["answer"])
		return nil
	},
}

// --- transcript ---

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Show the transcript of the active space",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/transcript")
		if err != nil {
			return err
		}

		var turns []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		if err := decodeJSON(resp, &turns); err != nil {
			return err
		}

		if len(turns) == 0 {
			fmt.Println("Transcript is empty.")
			return nil
		}
		for _, t := range turns {
			label := colorize(colorCyan, t.Role)
			if t.Role == "user" {
				label = colorize(colorBold, t.Role)
			}
			fmt.Printf("%s: %s\n", label, t.Content)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
