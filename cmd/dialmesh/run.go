package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialmesh"
	"github.com/hupe1980/dialmesh/analytics"
	"github.com/hupe1980/dialmesh/bridge"
	"github.com/hupe1980/dialmesh/bridge/sim"
	"github.com/hupe1980/dialmesh/bridge/twilio"
	"github.com/hupe1980/dialmesh/core"
	"github.com/hupe1980/dialmesh/decide"
	decideanthropic "github.com/hupe1980/dialmesh/decide/anthropic"
	decideopenai "github.com/hupe1980/dialmesh/decide/openai"
	"github.com/hupe1980/dialmesh/dialog"
)

var (
	flagCampaign    string
	flagContacts    string
	flagBehaviors   string
	flagScript      string
	flagDB          string
	flagBridge      string
	flagTwilioFrom  string
	flagTwilioVoice string
	flagTick        time.Duration
	flagTimeout     time.Duration
	flagConcurrency int64
	flagDecide      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a campaign to completion",
	Long: `Loads a campaign and its contacts from YAML, dials every contact through
the selected bridge and prints the outcome summary once the campaign
completes. The simulated bridge answers with scripted callee behaviors; the
twilio bridge places real calls.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagCampaign, "campaign", "", "campaign YAML file (required)")
	runCmd.Flags().StringVar(&flagContacts, "contacts", "", "contacts YAML file (required)")
	runCmd.Flags().StringVar(&flagBehaviors, "behaviors", "", "simulated callee behaviors YAML file (sim bridge only)")
	runCmd.Flags().StringVar(&flagScript, "script", "", "dialogue graph YAML file overriding the built-in script")
	runCmd.Flags().StringVar(&flagDB, "db", "", "SQLite analytics database path (defaults to in-memory)")
	runCmd.Flags().StringVar(&flagBridge, "bridge", "sim", "telephony bridge (sim, twilio)")
	runCmd.Flags().StringVar(&flagTwilioFrom, "twilio-from", "", "caller ID for the twilio bridge")
	runCmd.Flags().StringVar(&flagTwilioVoice, "twilio-voice-url", "", "TwiML webhook URL for the twilio bridge")
	runCmd.Flags().DurationVar(&flagTick, "tick", 100*time.Millisecond, "scheduler tick interval")
	runCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Minute, "abort the run after this long")
	runCmd.Flags().Int64Var(&flagConcurrency, "concurrency", 10, "global concurrent call cap")
	runCmd.Flags().StringVar(&flagDecide, "decide", "rule", "intent fallback backend (rule, openai, anthropic)")

	_ = runCmd.MarkFlagRequired("campaign")
	_ = runCmd.MarkFlagRequired("contacts")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	campaign, err := loadCampaign(flagCampaign)
	if err != nil {
		return err
	}
	contacts, err := loadContacts(flagContacts, campaign.ID)
	if err != nil {
		return err
	}

	var telephony bridge.Bridge
	switch flagBridge {
	case "sim":
		simBridge := sim.New(func(o *sim.Options) {
			o.Logger = logger
		})
		if flagBehaviors != "" {
			if err := loadBehaviors(flagBehaviors, simBridge); err != nil {
				return err
			}
		}
		telephony = simBridge
	case "twilio":
		sid := os.Getenv("TWILIO_ACCOUNT_SID")
		token := os.Getenv("TWILIO_AUTH_TOKEN")
		if sid == "" || token == "" {
			return fmt.Errorf("twilio bridge needs TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN")
		}
		if flagTwilioFrom == "" || flagTwilioVoice == "" {
			return fmt.Errorf("twilio bridge needs --twilio-from and --twilio-voice-url")
		}
		telephony = twilio.New(sid, token, func(o *twilio.Options) {
			o.Logger = logger
			o.From = flagTwilioFrom
			o.VoiceURL = flagTwilioVoice
		})
	default:
		return fmt.Errorf("unknown bridge %q", flagBridge)
	}

	backend, err := newBackend(flagDecide)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(flagDB)
	if err != nil {
		return err
	}
	defer closeStore()

	scripts, err := loadScripts(campaign)
	if err != nil {
		return err
	}

	dm := dialmesh.New(func(o *dialmesh.Options) {
		o.Logger = logger
		o.Bridge = telephony
		o.Backend = backend
		o.Analytics = store
		o.Scripts = scripts
		o.GlobalConcurrency = flagConcurrency
		o.TickInterval = flagTick
	})

	if err := dm.StartCampaign(campaign, contacts...); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()
	go dm.Run(ctx)

	ticker := time.NewTicker(flagTick)
	defer ticker.Stop()
	for campaign.State() != core.CampaignCompleted {
		select {
		case <-ctx.Done():
			return fmt.Errorf("campaign %s did not complete within %s", campaign.ID, flagTimeout)
		case <-ticker.C:
		}
	}

	return printSummary(cmd, campaign, store)
}

// newBackend picks the decision backend that resolves utterances the keyword
// classifier marked ambiguous. The model clients read their API keys from
// the environment.
func newBackend(name string) (decide.Backend, error) {
	switch name {
	case "rule":
		return decide.NewRuleBackend(), nil
	case "openai":
		return decideopenai.New(), nil
	case "anthropic":
		return decideanthropic.New(), nil
	default:
		return nil, fmt.Errorf("unknown decide backend %q", name)
	}
}

// openStore returns the analytics store and its close func.
func openStore(path string) (analytics.Store, func(), error) {
	if path == "" {
		return analytics.NewInMemoryStore(), func() {}, nil
	}
	store, err := analytics.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// loadScripts parses the optional dialogue graph override, keyed by the
// campaign's script name.
func loadScripts(campaign *core.Campaign) (map[string]*dialog.Graph, error) {
	if flagScript == "" {
		return nil, nil
	}
	data, err := os.ReadFile(flagScript)
	if err != nil {
		return nil, err
	}
	graph, err := dialog.ParseGraph(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flagScript, err)
	}
	if campaign.Script == "" {
		campaign.Script = flagScript
	}
	return map[string]*dialog.Graph{campaign.Script: graph}, nil
}

func printSummary(cmd *cobra.Command, campaign *core.Campaign, store analytics.Store) error {
	summary := map[core.Outcome]int{}
	switch s := store.(type) {
	case *analytics.InMemoryStore:
		summary = s.Summary(campaign.ID)
	case *analytics.SQLiteStore:
		var err error
		summary, err = s.Summary(campaign.ID)
		if err != nil {
			return err
		}
	}

	outcomes := make([]string, 0, len(summary))
	for outcome := range summary {
		outcomes = append(outcomes, string(outcome))
	}
	sort.Strings(outcomes)

	cmd.Printf("campaign %s (%s) completed\n", campaign.Name, campaign.ID)
	for _, outcome := range outcomes {
		cmd.Printf("  %-16s %d\n", outcome, summary[core.Outcome(outcome)])
	}
	return nil
}
