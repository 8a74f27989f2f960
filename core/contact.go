package core

// Contact is one callable party in a campaign. The scheduler owns contact
// records; only the scheduler and the retry engine mutate them. The attempt
// count never exceeds the campaign's max-attempts policy.
type Contact struct {
	ID         string            `json:"id" yaml:"id"`
	Phone      string            `json:"phone" yaml:"phone"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	CampaignID string            `json:"campaign_id" yaml:"campaign_id"`
	Context    map[string]string `json:"context,omitempty" yaml:"context,omitempty"`

	// AttemptCount is incremented exactly once per created call session,
	// never on mere scheduling.
	AttemptCount int `json:"attempt_count" yaml:"attempt_count"`
}

// NewContact constructs a contact with a fresh ID bound to a campaign.
func NewContact(campaignID, phone, name string) Contact {
	return Contact{
		ID:         NewID(),
		Phone:      phone,
		Name:       name,
		CampaignID: campaignID,
		Context:    map[string]string{},
	}
}
