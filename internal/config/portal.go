package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PortalProfile describes where the portal keeps the controls the exporter
// drives. Every field has a default, so a profile file only lists overrides.
type PortalProfile struct {
	BaseURL string `yaml:"base_url"`

	CookieTitle string `yaml:"cookie_title"`
	LoginTitle  string `yaml:"login_title"`

	Selectors PortalSelectors `yaml:"selectors"`
}

// PortalSelectors holds the DOM addresses used by the portal client. XPath
// entries are marked as such; the rest are CSS selectors.
type PortalSelectors struct {
	CookieAccept    string `yaml:"cookie_accept"`
	AccountField    string `yaml:"account_field"`
	UsernameField   string `yaml:"username_field"`
	PasswordField   string `yaml:"password_field"`
	TabContainer    string `yaml:"tab_container"`
	HistoryTabXPath string `yaml:"history_tab_xpath"`
	HistoryFrame    string `yaml:"history_frame"`
	PingList        string `yaml:"ping_list"`
	VehicleSelect   string `yaml:"vehicle_select"`
	RunHistory      string `yaml:"run_history"`
}

// DefaultPortalProfile returns the Dennis Connect layout.
func DefaultPortalProfile() *PortalProfile {
	return &PortalProfile{
		BaseURL:     "https://www.dennisconnect.co.uk",
		CookieTitle: "Cookie Usage",
		LoginTitle:  "Login",
		Selectors: PortalSelectors{
			CookieAccept:    "#btnAccept",
			AccountField:    "#txtAccountNumber",
			UsernameField:   "#txtUserName",
			PasswordField:   "#txtPassword",
			TabContainer:    "#tabContainer",
			HistoryTabXPath: `//*[@id="tabContainer"]/li[3]`,
			HistoryFrame:    `iframe[name="tab4frame"], iframe#tab4frame`,
			PingList:        "#ctl00_cphcontent_htPingList",
			VehicleSelect:   "#ctl00_cphcontent_ddlVehicle",
			RunHistory:      "#ctl00_cphcontent_btnRunHistory",
		},
	}
}

// LoadPortalProfile returns the default profile when path is empty, and
// otherwise the defaults overlaid with the YAML file at path.
func LoadPortalProfile(path string) (*PortalProfile, error) {
	profile := DefaultPortalProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("portal profile: %w", err)
	}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("portal profile: %w", err)
	}
	if profile.BaseURL == "" {
		return nil, fmt.Errorf("portal profile: base_url must not be empty")
	}
	if profile.Selectors.VehicleSelect == "" || profile.Selectors.HistoryFrame == "" {
		return nil, fmt.Errorf("portal profile: vehicle_select and history_frame are required")
	}
	return profile, nil
}
