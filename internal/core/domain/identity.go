package domain

// Identity is a configured account the system logs in as and votes for.
type Identity struct {
	ID              string `json:"accountName" yaml:"accountName"`
	DisplayName     string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Email           string `json:"email" yaml:"email"`
	Password        string `json:"password" yaml:"password"`
	TwoFactorSecret string `json:"twoFactorSecret,omitempty" yaml:"twoFactorSecret,omitempty"`
	UserDataDir     string `json:"userDataDir,omitempty" yaml:"userDataDir,omitempty"`
	// Handle is the name the remote lists this identity under in respondent
	// sets. Identities without one cannot be checked and are skipped.
	Handle        string `json:"username,omitempty" yaml:"username,omitempty"`
	NotifyAddress string `json:"whatsappNumber,omitempty" yaml:"whatsappNumber,omitempty"`
	Credential    string `json:"authToken,omitempty" yaml:"authToken,omitempty"`
}

// Name returns the label used in logs and summaries.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.ID
}
