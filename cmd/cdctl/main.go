package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codedojo/codedojo/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cdctl",
	Short: "CodeDojo CLI",
	Long: `cdctl is the command-line interface for CodeDojo.

It logs you in with your Codeforces handle, lists and joins contests,
and prints live leaderboards.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".cdctl"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("CDCTL")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server")
		}
		if serverURL == "" {
			serverURL = "http://localhost:5001"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.cdctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "CodeDojo server URL (default http://localhost:5001)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(contestsCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(upcomingCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient(opts ...client.Option) (*client.Client, error) {
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(serverURL, opts...)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginTimeout time.Duration

var loginCmd = &cobra.Command{
	Use:   "login <handle>",
	Short: "Log in by proving you control a Codeforces handle",
	Long: `login asks the server for a challenge problem, waits while you submit
to it from your Codeforces account, then verifies the submission.

Any verdict counts, so a deliberate compilation error is the quickest way
through. The session token is saved to the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to keep retrying verification")
}

func runLogin(cmd *cobra.Command, args []string) error {
	handle := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ch, err := c.CreateChallenge(ctx, handle)
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}

	fmt.Println()
	fmt.Println("┌─────────────────────────────────────────────────────────────┐")
	fmt.Println("│  Submit anything (a compile error is fine) to:              │")
	fmt.Println("│                                                             │")
	fmt.Printf("│  %-59s│\n", ch.ProblemName)
	fmt.Printf("│  %-59s│\n", ch.ProblemURL)
	fmt.Println("│                                                             │")
	fmt.Println("│  Press Enter once submitted (the challenge lasts 10 min)    │")
	fmt.Println("└─────────────────────────────────────────────────────────────┘")
	fmt.Println()

	bufio.NewReader(os.Stdin).ReadString('\n') //nolint:errcheck

	login, err := verifyWithRetry(ctx, c, handle, loginTimeout, 5*time.Second)
	if err != nil {
		return err
	}

	viper.Set("server", serverURL)
	viper.Set("token", login.Token)
	if err := writeConfig(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	fmt.Printf("✓ Logged in as %s\n", login.Handle)
	if login.Rating != nil {
		fmt.Printf("  Rating: %d\n", *login.Rating)
	}
	return nil
}

// verifyWithRetry retries while the server reports a 400 (no submission yet,
// or not the expected problem), since Codeforces takes a moment to list a
// fresh submission.
func verifyWithRetry(ctx context.Context, c *client.Client, handle string, timeout, every time.Duration) (*client.Login, error) {
	deadline := time.Now().Add(timeout)
	for {
		login, err := c.VerifyChallenge(ctx, handle)
		if err == nil {
			return login, nil
		}

		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || time.Now().Add(every).After(deadline) {
			return nil, fmt.Errorf("verify challenge: %w", err)
		}
		fmt.Printf("  %s, retrying in %s...\n", apiErr.Message, every)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(every):
		}
	}
}

func writeConfig() error {
	if cfgFile != "" {
		return viper.WriteConfigAs(cfgFile)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".cdctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

// ── contests ─────────────────────────────────────────────────────────────────

var (
	contestsPage  int
	contestsLimit int
)

var contestsCmd = &cobra.Command{
	Use:   "contests",
	Short: "List hosted contests, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		page, err := c.ListContests(context.Background(), contestsPage, contestsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tNAME\tHOST\tSTART\tEND\tPROBLEMS\tPARTICIPANTS")
		for _, ct := range page.Contests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
				ct.Slug, ct.Name, ct.Host,
				ct.StartTime.Local().Format(time.DateTime), ct.EndTime.Local().Format(time.DateTime),
				len(ct.Problems), len(ct.Participants))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\npage %d of %d\n", page.CurrentPage, page.TotalPages)
		return nil
	},
}

func init() {
	contestsCmd.Flags().IntVar(&contestsPage, "page", 1, "Page number")
	contestsCmd.Flags().IntVar(&contestsLimit, "limit", 10, "Contests per page")
}

// ── join ─────────────────────────────────────────────────────────────────────

var joinCmd = &cobra.Command{
	Use:   "join <slug>",
	Short: "Join a contest (requires login)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.JoinContest(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Joined %s\n", args[0])
		return nil
	},
}

// ── leaderboard ──────────────────────────────────────────────────────────────

var (
	leaderboardFormat string
	leaderboardWatch  time.Duration
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <slug>",
	Short: "Print a contest's standings",
	Long: `leaderboard prints the ranked standings of a contest.

With --watch it refreshes on the given interval until interrupted:

  cdctl leaderboard weekly-practice --watch 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardFormat, "format", "text", "Output format: text or json")
	leaderboardCmd.Flags().DurationVar(&leaderboardWatch, "watch", 0, "Refresh interval; 0 prints once")
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	var opts []client.Option
	if leaderboardWatch > 0 {
		opts = append(opts, client.WithCacheTTL(leaderboardWatch/2))
	}
	c, err := newClient(opts...)
	if err != nil {
		return err
	}

	for {
		rows, err := c.Leaderboard(context.Background(), args[0])
		if err != nil {
			return err
		}
		if leaderboardFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rows); err != nil {
				return err
			}
		} else if err := printStandings(rows); err != nil {
			return err
		}

		if leaderboardWatch <= 0 {
			return nil
		}
		time.Sleep(leaderboardWatch)
		fmt.Println()
	}
}

func printStandings(rows []client.Standing) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tHANDLE\tRATING\tSOLVED\tPENALTY\t")
	for i, r := range rows {
		rating := "-"
		if r.Rating != nil {
			rating = fmt.Sprint(*r.Rating)
		}
		note := ""
		if r.Error {
			note = "(submissions unavailable)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n", i+1, r.Handle, rating, r.Score, r.Penalty, note)
	}
	return w.Flush()
}

// ── upcoming ─────────────────────────────────────────────────────────────────

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List upcoming Codeforces rounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		list, err := c.UpcomingContests(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTARTS\tLENGTH\tLINK")
		for _, ct := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				ct.ID, strings.TrimSpace(ct.Name),
				ct.StartTime.Local().Format(time.DateTime), ct.EndTime.Sub(ct.StartTime), ct.Link)
		}
		return w.Flush()
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cdctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cdctl %s\n", version)
	},
}
