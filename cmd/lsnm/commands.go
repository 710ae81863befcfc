package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/lonesomenomore/lsnm/internal/api"
	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/config"
	"github.com/lonesomenomore/lsnm/internal/profile"
)

// --- prompt ---

var promptCmd = &cobra.Command{
	Use:   "prompt <lovedOneId>",
	Short: "Print the system prompt synthesized for a loved one",
	Long: `Print the companion system prompt built from a profile.

The profile is read from the local store, or from a YAML document when
--file is given.

Examples:
  lsnm prompt loved_789xyz
  lsnm prompt --file ./mary.yaml --sections`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		sectionsOnly, _ := cmd.Flags().GetBool("sections")

		var p profile.Profile
		switch {
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading profile file: %w", err)
			}
			if p, err = profile.DecodeProfile(data); err != nil {
				return err
			}
		case len(args) == 1:
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, profiles, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if p, err = profiles.Get(args[0]); err != nil {
				return err
			}
		default:
			return errors.New("a loved one id or --file is required")
		}

		return writePrompt(cmd.OutOrStdout(), p, sectionsOnly)
	},
}

func writePrompt(w io.Writer, p profile.Profile, sectionsOnly bool) error {
	if !sectionsOnly {
		_, err := fmt.Fprintln(w, composer.Synthesize(p))
		return err
	}
	for _, s := range composer.Sections(p) {
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", s.Level-1), s.Title); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	promptCmd.Flags().String("file", "", "YAML profile document to synthesize instead of the store")
	promptCmd.Flags().Bool("sections", false, "list section titles only")
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo or file profiles into the local store",
	Long: `Insert loved-one profiles into the local store. Profiles whose id is
already stored are skipped.

Examples:
  lsnm seed
  lsnm seed --file ./family.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var (
			f   profile.SeedFile
			err error
		)
		if file != "" {
			fh, openErr := os.Open(file)
			if openErr != nil {
				return fmt.Errorf("opening seed file: %w", openErr)
			}
			defer fh.Close()
			f, err = profile.DecodeSeed(fh)
		} else {
			f, err = profile.DemoSeed()
		}
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Storage.SeedDemo = false
		store, profiles, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := profiles.Seed(f)
		if err != nil {
			return err
		}
		printSuccess("Seeded %d profile(s) for %s", n, f.User.ID)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "", "YAML seed file (default: built-in demo profiles)")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or enrich loved-one profiles via the running server",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <lovedOneId>",
	Short: "Show a profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result struct {
			Profile json.RawMessage `json:"profile"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result.Profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <lovedOneId> <field> <value>",
	Short: "Set or append to a profile field",
	Long: `Update one profile field. Text fields take plain text. List fields
take a JSON array; a plain value is treated as a single item.

Examples:
  lsnm profile set loved_789xyz currentSituation "Recovering from a cold"
  lsnm profile set loved_789xyz interests "Baking" --append`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, field, value := args[0], args[1], args[2]
		appendValue, _ := cmd.Flags().GetBool("append")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := profile.Enrichment{Field: field, Value: fieldValue(value), Append: appendValue}
		resp, err := client.patch(cmd.Context(), "/profile/"+url.PathEscape(id)+"/enrich", body)
		if err != nil {
			return err
		}

		var result struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if appendValue {
			printSuccess("Appended to %s: %s", field, value)
		} else {
			printSuccess("Set %s = %s", field, value)
		}
		return nil
	},
}

// fieldValue passes JSON arrays and objects through and sends anything else
// as a JSON string.
func fieldValue(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if (strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")) && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(raw)
	return b
}

func init() {
	profileSetCmd.Flags().Bool("append", false, "append to a list field instead of replacing it")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Browse recorded conversations via the running server",
}

type conversationRow struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Duration  int    `json:"duration"`
	Summary   string `json:"summary"`
	Sentiment string `json:"sentiment"`
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		lovedOne, _ := cmd.Flags().GetString("loved-one")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), conversationsPath(lovedOne, page, limit))
		if err != nil {
			return err
		}

		var result struct {
			Conversations []conversationRow `json:"conversations"`
			Pagination    struct {
				CurrentPage int `json:"currentPage"`
				TotalPages  int `json:"totalPages"`
				TotalItems  int `json:"totalItems"`
			} `json:"pagination"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(result.Conversations) == 0 {
			fmt.Fprintln(out, "No conversations found.")
			return nil
		}
		for _, c := range result.Conversations {
			fmt.Fprintf(out, "%s  %s  %-8s  %s\n",
				colorize(colorCyan, c.ID),
				c.Date,
				c.Sentiment,
				truncate(c.Summary, 80),
			)
		}
		p := result.Pagination
		fmt.Fprintf(out, "\npage %d of %d (%d total)\n", p.CurrentPage, p.TotalPages, p.TotalItems)
		return nil
	},
}

func conversationsPath(lovedOne string, page, limit int) string {
	q := url.Values{}
	if lovedOne != "" {
		q.Set("lovedOneId", lovedOne)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return "/conversations"
	}
	return "/conversations?" + q.Encode()
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation with its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result struct {
			Conversation json.RawMessage `json:"conversation"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result.Conversation)
	},
}

func init() {
	conversationsListCmd.Flags().String("loved-one", "", "loved one id (default from server config)")
	conversationsListCmd.Flags().Int("page", 1, "page number")
	conversationsListCmd.Flags().Int("limit", 20, "conversations per page")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve profile tools over the MCP stdio transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg.Log)

		store, profiles, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Profiles: profiles}, version)
		logger.Info("MCP server started (stdio transport)")
		err = server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
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
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", config.FilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
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
