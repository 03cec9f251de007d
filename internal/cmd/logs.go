package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/campus/internal/ux"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show or tail the client log",
	Long: `Show the campus client log.

Commands and the portal log to ~/.campus/logs/campus.log (see logging.file),
so records never mix with command output. JSON records are shown as one
compact line each.

Examples:
  # Show the last 20 records
  campus logs

  # Show the last 50 records
  campus logs --lines 50

  # Follow the log while the portal runs in another terminal
  campus logs --follow`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntP("lines", "n", 20, "number of recent lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "follow log output in real time")

	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}
	cfg, err := cmdCtx.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	home, err := cmdCtx.HomeDir()
	if err != nil {
		return err
	}
	lines, _ := cmd.Flags().GetInt("lines")
	follow, _ := cmd.Flags().GetBool("follow")

	path := cfg.LogFile(home)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No log at %s yet.\n", path)
		return nil
	}

	if err := tailFile(cmd.OutOrStdout(), path, lines); err != nil {
		return err
	}
	if follow {
		return followFile(cmd, path)
	}
	return nil
}

func tailFile(w io.Writer, path string, numLines int) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log: %w", err)
	}

	start := 0
	if numLines >= 0 && len(lines) > numLines {
		start = len(lines) - numLines
	}
	for _, line := range lines[start:] {
		if strings.TrimSpace(line) != "" {
			fmt.Fprintln(w, formatLogLine(line))
		}
	}
	return nil
}

// followFile prints lines appended to path until the command is cancelled.
func followFile(cmd *cobra.Command, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	ctx := cmd.Context()
	reader := bufio.NewReader(file)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		line, err := reader.ReadString('\n')
		partial += line
		switch {
		case err == nil:
			if s := strings.TrimRight(partial, "\n"); strings.TrimSpace(s) != "" {
				fmt.Fprintln(cmd.OutOrStdout(), formatLogLine(s))
			}
			partial = ""
			continue
		case err != io.EOF:
			return fmt.Errorf("error reading log: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// formatLogLine condenses a JSON record to "time LEVEL msg key=value ...".
// Text records are returned as they are.
func formatLogLine(line string) string {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return line
	}

	var b strings.Builder
	if ts, ok := record["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ts = t.Format("2006-01-02 15:04:05")
		}
		b.WriteString(ts)
		b.WriteByte(' ')
	}
	if level, ok := record["level"].(string); ok {
		fmt.Fprintf(&b, "%-5s ", level)
	}
	b.WriteString(extractField(record, "msg"))

	for _, key := range slices.Sorted(maps.Keys(record)) {
		switch key {
		case "time", "level", "msg":
			continue
		}
		fmt.Fprintf(&b, " %s=%s", key, extractField(record, key))
	}
	return b.String()
}

func extractField(record map[string]any, field string) string {
	val, ok := record[field]
	if !ok {
		return ""
	}
	if m, ok := val.(map[string]any); ok {
		data, _ := json.Marshal(m)
		return string(data)
	}
	return fmt.Sprintf("%v", val)
}
