// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "gwctl",
		Short: "Capability Gateway CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("GWCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set GWCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gwctl version %s\n", version)
		},
	}
}

// toolsCmd はツールカタログの一覧コマンド。
func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog exposed by the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set GWCTL_API_URL)")
			}

			body, err := doGet(apiURL + "/v1/tools")
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(body))
				return nil
			}

			var resp struct {
				Tools []struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				} `json:"tools"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			for _, t := range resp.Tools {
				fmt.Printf("%-32s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

// callCmd はツール呼び出しコマンド。
func callCmd() *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool with JSON arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set GWCTL_API_URL)")
			}
			if argsJSON != "" && !json.Valid([]byte(argsJSON)) {
				return fmt.Errorf("--args must be a valid JSON object")
			}
			if argsJSON == "" {
				argsJSON = "{}"
			}

			resp, err := httpClient.Post(
				apiURL+"/v1/tools/"+cmdArgs[0],
				"application/json",
				bytes.NewReader([]byte(argsJSON)),
			)
			if err != nil {
				return fmt.Errorf("calling gateway: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			if output == "json" {
				fmt.Println(string(body))
				return nil
			}

			var invoke struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
				IsError bool `json:"is_error"`
			}
			if err := json.Unmarshal(body, &invoke); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			for _, c := range invoke.Content {
				fmt.Println(c.Text)
			}
			if invoke.IsError {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "Tool arguments as a JSON object")
	return cmd
}

func doGet(url string) ([]byte, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
