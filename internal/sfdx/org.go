package sfdx

// OrgList is the result of `sf org list --json`.
type OrgList struct {
	ScratchOrgs    []Org `json:"scratchOrgs"`
	NonScratchOrgs []Org `json:"nonScratchOrgs"`
}

type Org struct {
	Alias          string `json:"alias,omitempty"`
	Username       string `json:"username"`
	OrgID          string `json:"orgId,omitempty"`
	InstanceURL    string `json:"instanceUrl,omitempty"`
	ExpirationDate string `json:"expirationDate,omitempty"`
	IsDevHub       bool   `json:"isDevHub,omitempty"`
}

// HasScratchAlias reports whether a scratch org is known under alias.
func (l OrgList) HasScratchAlias(alias string) bool {
	for _, o := range l.ScratchOrgs {
		if o.Alias == alias {
			return true
		}
	}
	return false
}

// OrgOpen is the result of `sf org open -r --json`.
type OrgOpen struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	OrgID    string `json:"orgId,omitempty"`
}

// OrgDisplay is the result of `sf org display --json --verbose`.
type OrgDisplay struct {
	ID          string `json:"id,omitempty"`
	Alias       string `json:"alias,omitempty"`
	Username    string `json:"username"`
	InstanceURL string `json:"instanceUrl,omitempty"`
	SfdxAuthURL string `json:"sfdxAuthUrl,omitempty"`
	Status      string `json:"status,omitempty"`
}

// IsDevHub is true when the org carries no auth url, the CLI only prints
// one for orgs it authenticated through a hub.
func (d OrgDisplay) IsDevHub() bool {
	return d.SfdxAuthURL == ""
}
