package docuware

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/hashicorp-forge/dwclient/pkg/wire"
)

// Organization is a tenant of the service.
type Organization struct {
	ID    string     `mapstructure:"Id"`
	Name  string     `mapstructure:"Name"`
	Links wire.Links `mapstructure:"Links"`

	client *Client
}

// OrganizationInfo is the contact information of an organization.
type OrganizationInfo struct {
	CompanyNames []string
	AddressLines []string
	// Additional holds every other entry of the service's info block.
	Additional map[string]interface{}
}

// Info loads the organization's contact information. Blank lines are
// dropped; without company names the organization name is used.
func (o *Organization) Info(ctx context.Context) (*OrganizationInfo, error) {
	href, err := link(o.Links, "self", "organization")
	if err != nil {
		return nil, err
	}

	var raw struct {
		AdditionalInfo map[string]interface{} `mapstructure:"AdditionalInfo"`
	}
	if err := o.client.getJSON(ctx, href, &raw); err != nil {
		return nil, fmt.Errorf("failed to load organization info: %w", err)
	}

	info := &OrganizationInfo{Additional: map[string]interface{}{}}
	for k, v := range raw.AdditionalInfo {
		switch strings.ToLower(k) {
		case "companynames":
			info.CompanyNames = nonBlank(cast.ToStringSlice(v))
		case "addresslines":
			info.AddressLines = nonBlank(cast.ToStringSlice(v))
		default:
			info.Additional[k] = v
		}
	}
	if len(info.CompanyNames) == 0 {
		info.CompanyNames = []string{o.Name}
	}
	return info, nil
}

// FileCabinets lists the file cabinets of the organization.
func (o *Organization) FileCabinets(ctx context.Context) ([]*FileCabinet, error) {
	href, err := link(o.Links, "filecabinets", "organization")
	if err != nil {
		return nil, err
	}

	var list struct {
		FileCabinet []*FileCabinet `mapstructure:"FileCabinet"`
	}
	if err := o.client.getJSON(ctx, href, &list); err != nil {
		return nil, fmt.Errorf("failed to list file cabinets: %w", err)
	}
	for _, fc := range list.FileCabinet {
		fc.org = o
	}
	return list.FileCabinet, nil
}

// FileCabinet finds a file cabinet by id or name.
func (o *Organization) FileCabinet(ctx context.Context, key string) (*FileCabinet, error) {
	cabinets, err := o.FileCabinets(ctx)
	if err != nil {
		return nil, err
	}
	for _, fc := range cabinets {
		if matches(fc.ID, fc.Name, key) {
			return fc, nil
		}
	}
	return nil, &NotFoundError{Kind: "file cabinet", Key: key}
}

// Dialogs lists the dialogs of every file cabinet of the organization.
func (o *Organization) Dialogs(ctx context.Context) ([]*Dialog, error) {
	cabinets, err := o.FileCabinets(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*FileCabinet, len(cabinets))
	for _, fc := range cabinets {
		byID[fc.ID] = fc
	}

	href, err := link(o.Links, "dialogs", "organization")
	if err != nil {
		return nil, err
	}

	var list dialogList
	if err := o.client.getJSON(ctx, href, &list); err != nil {
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}

	var out []*Dialog
	for _, d := range list.Dialog {
		fc, ok := byID[d.FileCabinetID]
		if !ok || d.InfoType != dialogInfoType {
			continue
		}
		d.fc = fc
		out = append(out, d)
	}
	return out, nil
}

// FileCabinet is a document repository.
type FileCabinet struct {
	ID       string     `mapstructure:"Id"`
	Name     string     `mapstructure:"Name"`
	Color    string     `mapstructure:"Color"`
	IsBasket bool       `mapstructure:"IsBasket"`
	Links    wire.Links `mapstructure:"Links"`

	org *Organization
}

// Organization returns the owning organization.
func (fc *FileCabinet) Organization() *Organization {
	return fc.org
}

// Dialogs lists the dialogs of the file cabinet.
func (fc *FileCabinet) Dialogs(ctx context.Context) ([]*Dialog, error) {
	href, err := link(fc.Links, "dialogs", "file cabinet")
	if err != nil {
		return nil, err
	}

	var list dialogList
	if err := fc.org.client.getJSON(ctx, href, &list); err != nil {
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}

	var out []*Dialog
	for _, d := range list.Dialog {
		// Ids with an underscore are the service's internal variants.
		if d.InfoType != dialogInfoType || strings.Contains(d.ID, "_") {
			continue
		}
		d.fc = fc
		out = append(out, d)
	}
	return out, nil
}

// Dialog finds a dialog by id or name.
func (fc *FileCabinet) Dialog(ctx context.Context, key string) (*Dialog, error) {
	dialogs, err := fc.Dialogs(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range dialogs {
		if matches(d.ID, d.Name, key) {
			return d, nil
		}
	}
	return nil, &NotFoundError{Kind: "dialog", Key: key}
}

// SearchDialog finds a search dialog by id or name. An empty key selects
// the first search dialog of the file cabinet.
func (fc *FileCabinet) SearchDialog(ctx context.Context, key string) (*SearchDialog, error) {
	dialogs, err := fc.Dialogs(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range dialogs {
		if d.Type != DialogTypeSearch {
			continue
		}
		if key == "" || matches(d.ID, d.Name, key) {
			return &SearchDialog{Dialog: d}, nil
		}
	}
	return nil, &NotFoundError{Kind: "search dialog", Key: key}
}

const dialogInfoType = "DialogInfo"

// Dialog types.
const (
	DialogTypeSearch     = "Search"
	DialogTypeStore      = "Store"
	DialogTypeResultList = "ResultList"
	DialogTypeTaskList   = "TaskList"
)

// Dialog is a form defined on a file cabinet.
type Dialog struct {
	ID            string     `mapstructure:"Id"`
	Name          string     `mapstructure:"DisplayName"`
	Type          string     `mapstructure:"Type"`
	FileCabinetID string     `mapstructure:"FileCabinetId"`
	InfoType      string     `mapstructure:"$type"`
	Links         wire.Links `mapstructure:"Links"`

	fc *FileCabinet
}

// FileCabinet returns the owning file cabinet.
func (d *Dialog) FileCabinet() *FileCabinet {
	return d.fc
}

type dialogList struct {
	Dialog []*Dialog `mapstructure:"Dialog"`
}

func nonBlank(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
