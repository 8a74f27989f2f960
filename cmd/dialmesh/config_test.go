package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialmesh/bridge/sim"
	"github.com/hupe1980/dialmesh/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCampaign(t *testing.T) {
	path := writeFile(t, "campaign.yaml", `
name: spring-promo
concurrency: 3
script: orders
window:
  start: "09:00"
  end: "18:00"
retry:
  max_attempts: 4
  backoff: ["30s", "2m"]
  jitter: 0.1
  retryable: ["no_answer", "busy"]
`)

	campaign, err := loadCampaign(path)
	require.NoError(t, err)

	assert.Equal(t, "spring-promo", campaign.Name)
	assert.Equal(t, 3, campaign.Concurrency)
	assert.Equal(t, "orders", campaign.Script)
	assert.Equal(t, 4, campaign.Retry.MaxAttempts)
	assert.Equal(t, []time.Duration{30 * time.Second, 2 * time.Minute}, campaign.Retry.Backoff)
	assert.InDelta(t, 0.1, campaign.Retry.Jitter, 1e-9)
	assert.Equal(t, []core.Outcome{core.OutcomeNoAnswer, core.OutcomeBusy}, campaign.Retry.Retryable)
	assert.Equal(t, core.CampaignDraft, campaign.State())
}

func TestLoadCampaign_Invalid(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		path := writeFile(t, "campaign.yaml", "concurrency: 2\n")
		_, err := loadCampaign(path)
		assert.ErrorContains(t, err, "name is required")
	})

	t.Run("bad backoff", func(t *testing.T) {
		path := writeFile(t, "campaign.yaml", "name: x\nretry:\n  backoff: [\"soon\"]\n")
		_, err := loadCampaign(path)
		assert.ErrorContains(t, err, "backoff")
	})

	t.Run("bad window", func(t *testing.T) {
		path := writeFile(t, "campaign.yaml", "name: x\nwindow:\n  start: \"25:00\"\n  end: \"18:00\"\n")
		_, err := loadCampaign(path)
		assert.ErrorContains(t, err, "calling window")
	})
}

func TestLoadContacts(t *testing.T) {
	path := writeFile(t, "contacts.yaml", `
- phone: "+15550001"
  name: Ada
  context:
    language: en
- phone: "+15550002"
`)

	contacts, err := loadContacts(path, "camp-1")
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	assert.Equal(t, "+15550001", contacts[0].Phone)
	assert.Equal(t, "Ada", contacts[0].Name)
	assert.Equal(t, "camp-1", contacts[0].CampaignID)
	assert.Equal(t, "en", contacts[0].Context["language"])
	assert.NotEmpty(t, contacts[1].ID)
}

func TestLoadContacts_MissingPhone(t *testing.T) {
	path := writeFile(t, "contacts.yaml", "- name: Ada\n")
	_, err := loadContacts(path, "camp-1")
	assert.ErrorContains(t, err, "no phone")
}

func TestLoadBehaviors(t *testing.T) {
	path := writeFile(t, "behaviors.yaml", `
- phone: "+15550001"
  replies: ["2 kg rice", "yes", "no", "yes"]
- phone: "+15550002"
  disposition: busy
- phone: "+15550003"
  disposition: answer
  hangup_after: 2
`)

	bridge := sim.New()
	require.NoError(t, loadBehaviors(path, bridge))
}

func TestLoadBehaviors_UnknownDisposition(t *testing.T) {
	path := writeFile(t, "behaviors.yaml", "- phone: \"+1\"\n  disposition: voicemail\n")
	err := loadBehaviors(path, sim.New())
	assert.ErrorContains(t, err, "unknown disposition")
}
