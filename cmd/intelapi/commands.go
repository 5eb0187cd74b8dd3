package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/spf13/cobra"

	"github.com/kalambet/intelapi/internal/api"
	"github.com/kalambet/intelapi/internal/config"
	"github.com/kalambet/intelapi/internal/protocol"
	"github.com/kalambet/intelapi/internal/storage"
)

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models served by the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listModels(cmd.Context(), client, os.Stdout)
	},
}

func listModels(ctx context.Context, client *apiClient, w io.Writer) error {
	resp, err := client.get(ctx, "/api/v1/models")
	if err != nil {
		return err
	}
	var list protocol.ModelList
	if err := decodeJSON(resp, &list); err != nil {
		return err
	}
	for _, m := range list.Data {
		fmt.Fprintln(w, m.ID)
	}
	return nil
}

// --- chat ---

type chatOptions struct {
	model       string
	system      string
	stream      bool
	temperature float64
	seed        int64
	schema      map[string]any
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with a model through the running server",
	Long: `Chat with a model through the running server.

With a prompt argument a single reply is printed. Without one an interactive
session reads prompts from stdin until EOF or "/exit".

Examples:
  intelapi chat "Summarize the plot of Hamlet in one line"
  intelapi chat --model permissive --stream
  intelapi chat --schema weather.json "Weather in Paris as JSON"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := chatOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		oc := client.openAI()

		if len(args) == 1 {
			_, err := chatTurn(cmd.Context(), oc, opts, initialHistory(opts), args[0], os.Stdout)
			return err
		}
		return chatREPL(cmd.Context(), oc, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	chatCmd.Flags().String("model", "base", "model to use (base or permissive)")
	chatCmd.Flags().String("system", "", "system instructions")
	chatCmd.Flags().Bool("stream", false, "stream the reply as it is generated")
	chatCmd.Flags().Float64("temperature", -1, "sampling temperature (unset by default)")
	chatCmd.Flags().Int64("seed", -1, "sampling seed (unset by default)")
	chatCmd.Flags().String("schema", "", "path to a JSON schema file the reply must conform to")
}

func chatOptionsFromFlags(cmd *cobra.Command) (chatOptions, error) {
	var opts chatOptions
	opts.model, _ = cmd.Flags().GetString("model")
	opts.system, _ = cmd.Flags().GetString("system")
	opts.stream, _ = cmd.Flags().GetBool("stream")
	opts.temperature, _ = cmd.Flags().GetFloat64("temperature")
	opts.seed, _ = cmd.Flags().GetInt64("seed")

	if path, _ := cmd.Flags().GetString("schema"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("reading schema: %w", err)
		}
		if err := json.Unmarshal(data, &opts.schema); err != nil {
			return opts, fmt.Errorf("parsing schema %s: %w", path, err)
		}
	}
	return opts, nil
}

func initialHistory(opts chatOptions) []openai.ChatCompletionMessageParamUnion {
	if opts.system == "" {
		return nil
	}
	return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(opts.system)}
}

func chatParams(opts chatOptions, messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    opts.model,
		Messages: messages,
	}
	if opts.temperature >= 0 {
		params.Temperature = openai.Float(opts.temperature)
	}
	if opts.seed >= 0 {
		params.Seed = openai.Int(opts.seed)
	}
	if opts.schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: opts.schema,
				},
			},
		}
	}
	return params
}

// chatTurn sends history plus prompt and writes the reply to w. It returns
// the history extended with the exchange.
func chatTurn(ctx context.Context, client openai.Client, opts chatOptions, history []openai.ChatCompletionMessageParamUnion, prompt string, w io.Writer) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := append(history, openai.UserMessage(prompt))
	params := chatParams(opts, messages)

	var reply, finish string
	if opts.stream {
		stream := client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var b strings.Builder
		for stream.Next() {
			for _, choice := range stream.Current().Choices {
				if choice.Delta.Content != "" {
					fmt.Fprint(w, choice.Delta.Content)
					b.WriteString(choice.Delta.Content)
				}
				if choice.FinishReason != "" {
					finish = choice.FinishReason
				}
			}
		}
		if err := stream.Err(); err != nil {
			return history, fmt.Errorf("chat stream: %w", err)
		}
		reply = b.String()
		fmt.Fprintln(w)
	} else {
		completion, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return history, fmt.Errorf("chat: %w", err)
		}
		if len(completion.Choices) == 0 {
			return history, fmt.Errorf("chat: empty response")
		}
		choice := completion.Choices[0]
		reply, finish = choice.Message.Content, choice.FinishReason
		fmt.Fprintln(w, reply)
	}

	if finish != "" && finish != "stop" {
		fmt.Fprintln(w, finishNote(finish))
	}
	return append(messages, openai.AssistantMessage(reply)), nil
}

func chatREPL(ctx context.Context, client openai.Client, opts chatOptions, in io.Reader, w io.Writer) error {
	history := initialHistory(opts)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, colorize(colorCyan, "> "))
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		next, err := chatTurn(ctx, client, opts, history, line, w)
		if err != nil {
			printError("%v", err)
			continue
		}
		history = next
	}
}

// --- generations ---

var generationsCmd = &cobra.Command{
	Use:   "generations [id]",
	Short: "List recent generations, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		summary, _ := cmd.Flags().GetBool("summary")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		switch {
		case len(args) == 1:
			return showGeneration(cmd.Context(), client, args[0], os.Stdout)
		case summary:
			return showGenerationSummary(cmd.Context(), client, asJSON, os.Stdout)
		default:
			return listGenerations(cmd.Context(), client, limit, asJSON, os.Stdout)
		}
	},
}

func init() {
	generationsCmd.Flags().Int("limit", 20, "number of generations to show")
	generationsCmd.Flags().Bool("json", false, "print raw JSON")
	generationsCmd.Flags().Bool("summary", false, "count generations by finish reason")
}

func showGeneration(ctx context.Context, client *apiClient, id string, w io.Writer) error {
	resp, err := client.get(ctx, "/api/v1/generations/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var g storage.Generation
	if err := decodeJSON(resp, &g); err != nil {
		return err
	}
	return printJSON(w, g)
}

func showGenerationSummary(ctx context.Context, client *apiClient, asJSON bool, w io.Writer) error {
	resp, err := client.get(ctx, "/api/v1/generations/summary")
	if err != nil {
		return err
	}
	var summary api.GenerationSummary
	if err := decodeJSON(resp, &summary); err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, summary)
	}

	reasons := make([]string, 0, len(summary.FinishReasons))
	for r := range summary.FinishReasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	tw := newTable(w)
	fmt.Fprintln(tw, "FINISH\tCOUNT")
	for _, r := range reasons {
		fmt.Fprintf(tw, "%s\t%d\n", r, summary.FinishReasons[r])
	}
	fmt.Fprintf(tw, "total\t%d\n", summary.Total)
	return tw.Flush()
}

func listGenerations(ctx context.Context, client *apiClient, limit int, asJSON bool, w io.Writer) error {
	resp, err := client.get(ctx, fmt.Sprintf("/api/v1/generations?limit=%d", limit))
	if err != nil {
		return err
	}
	var gens []storage.Generation
	if err := decodeJSON(resp, &gens); err != nil {
		return err
	}

	if asJSON {
		return printJSON(w, gens)
	}
	if len(gens) == 0 {
		fmt.Fprintln(w, "No generations yet.")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCREATED\tMODEL\tMODE\tSTREAM\tFINISH\tDURATION")
	for _, g := range gens {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			g.ID,
			g.CreatedAt.Local().Format(time.DateTime),
			g.Model,
			g.Mode,
			g.Stream,
			g.FinishReason,
			time.Duration(g.DurationMs)*time.Millisecond,
		)
	}
	return tw.Flush()
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

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "("+k.EnvVar+")"))
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

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
