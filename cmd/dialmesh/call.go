package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialmesh"
	"github.com/hupe1980/dialmesh/bridge/sim"
	"github.com/hupe1980/dialmesh/core"
)

var (
	flagCallPhone   string
	flagCallName    string
	flagCallReplies string
	flagCallTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place a single simulated test call",
	Long: `Places one call through the simulated bridge and prints the outcome and
transcript. The callee's replies are scripted with --replies; useful for
trying out dialogue scripts without a campaign file.`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&flagCallPhone, "phone", "+15550100", "callee phone number")
	callCmd.Flags().StringVar(&flagCallName, "name", "", "callee name")
	callCmd.Flags().StringVar(&flagCallReplies, "replies", "2 kg rice please,yes,no,yes", "comma-separated scripted callee replies")
	callCmd.Flags().DurationVar(&flagCallTimeout, "timeout", 30*time.Second, "abort the call after this long")
}

func runCall(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	simBridge := sim.New(func(o *sim.Options) {
		o.Logger = logger
	})
	simBridge.SetBehavior(flagCallPhone, sim.Behavior{
		Disposition: sim.DispositionAnswer,
		Replies:     strings.Split(flagCallReplies, ","),
	})

	dm := dialmesh.New(func(o *dialmesh.Options) {
		o.Logger = logger
		o.Bridge = simBridge
	})

	campaign := dm.CreateCampaign("test-call")
	if err := campaign.Transition(core.CampaignRunning); err != nil {
		return err
	}
	contact := core.NewContact(campaign.ID, flagCallPhone, flagCallName)

	ctx, cancel := context.WithTimeout(cmd.Context(), flagCallTimeout)
	defer cancel()

	session, outcome, err := dm.CallSync(ctx, campaign, contact)
	if err != nil {
		return err
	}

	cmd.Printf("outcome: %s\n", outcome)
	for _, turn := range session.Transcript() {
		cmd.Printf("  %-6s %s\n", turn.Speaker, turn.Text)
	}
	return nil
}
