package client

import (
	"fmt"
	"strings"

	"github.com/potooio/herald/internal/strategies/base"
	"github.com/potooio/herald/internal/types"
)

// Strategy handles client updates.
type Strategy struct{}

// New creates the client strategy.
func New() *Strategy {
	return &Strategy{}
}

// Kind implements types.Strategy.
func (s *Strategy) Kind() types.EntityKind { return types.EntityKindClient }

// Detect implements types.Strategy. Contact name, email and phone collapse into
// a single contact change listing the touched sub-fields.
func (s *Strategy) Detect(before *types.Entity, patch types.Patch) (types.ChangeSet, error) {
	if patch.Kind != "" && patch.Kind != types.EntityKindClient {
		return nil, fmt.Errorf("%w: patch kind %q", types.ErrKindMismatch, patch.Kind)
	}
	cs := types.ChangeSet{}
	if before == nil {
		cs[types.FieldCreated] = types.Change{}
		return cs, nil
	}
	if before.Kind != types.EntityKindClient || before.Client == nil {
		return nil, fmt.Errorf("%w: before kind %q", types.ErrKindMismatch, before.Kind)
	}
	p := patch.Client
	if p == nil {
		return cs, nil
	}
	b := before.Client

	base.DiffString(cs, types.FieldStatus, b.Status, p.Status)

	contact := types.ChangeSet{}
	base.DiffString(contact, types.FieldContactName, b.ContactName, p.ContactName)
	base.DiffString(contact, types.FieldContactEmail, b.ContactEmail, p.ContactEmail)
	base.DiffString(contact, types.FieldPhone, b.Phone, p.Phone)
	if !contact.Empty() {
		cs[types.FieldContact] = types.Change{Fields: contact.Fields()}
	}
	return cs, nil
}

// Resolve implements types.Strategy.
func (s *Strategy) Resolve(cs types.ChangeSet, snap types.Snapshot) []types.NotificationEvent {
	c := snap.Entity.Client
	if c == nil || cs.Empty() {
		return nil
	}

	common := types.Params{
		"clientId":     c.ID,
		"clientName":   c.Name,
		"ownerName":    snap.UserName(c.OwnerID),
		"actorName":    snap.ActorName(),
		"status":       c.Status,
		"contactName":  c.ContactName,
		"contactEmail": c.ContactEmail,
		types.ParamURL: base.EntityURL(snap.BaseURL, types.EntityKindClient, c.ID),
	}
	newEvent := func(t types.EventType, rule types.RecipientRule, extra types.Params) types.NotificationEvent {
		return base.NewEvent(t, rule, types.EntityKindClient, c.ID, base.Clone(common, extra))
	}

	var events []types.NotificationEvent

	if cs.Has(types.FieldCreated) {
		events = append(events, newEvent(types.EventClientCreated, types.RuleClientOwner, types.Params{
			types.ParamTitle:       fmt.Sprintf("New client: %s", c.Name),
			types.ParamDescription: fmt.Sprintf("%s created client %s", snap.ActorName(), c.Name),
		}))
	}

	if ch, ok := cs[types.FieldStatus]; ok {
		events = append(events, newEvent(types.EventClientStatusChanged, types.RuleClientStakeholders, types.Params{
			"oldValue":             base.FormatAny(ch.Old),
			"newValue":             base.FormatAny(ch.New),
			types.ParamTitle:       fmt.Sprintf("Client status changed: %s", c.Name),
			types.ParamDescription: fmt.Sprintf("%s moved from %s to %s", c.Name, base.FormatAny(ch.Old), base.FormatAny(ch.New)),
		}))
	}

	if ch, ok := cs[types.FieldContact]; ok {
		names := make([]string, len(ch.Fields))
		for i, f := range ch.Fields {
			names[i] = string(f)
		}
		changed := strings.Join(names, ", ")
		events = append(events, newEvent(types.EventClientContactUpdated, types.RuleClientOwner, types.Params{
			"changedFields":        changed,
			types.ParamTitle:       fmt.Sprintf("Contact updated: %s", c.Name),
			types.ParamDescription: fmt.Sprintf("%s updated %s", snap.ActorName(), changed),
		}))
	}

	return events
}
