package directory

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/accountops/dirops/dirops/domainerr"
)

// Group is one directory group and its member usernames. Member order is
// not significant.
type Group struct {
	Name    string   `json:"-"`
	Members []string `json:"members"`
}

// ListGroups returns all groups keyed by name, re-queried from the external
// source of truth on every call.
func (d *Directory) ListGroups(ctx context.Context) (map[string]Group, error) {
	raw, err := d.runQuery(ctx, d.scripts.Groups, "")
	if err != nil {
		return nil, err
	}
	return parseGroupDoc(raw)
}

// GetGroupMembers queries one group's member list. An absent group resolves
// to an empty list; only transport and parse failures are errors.
func (d *Directory) GetGroupMembers(ctx context.Context, name string) ([]string, error) {
	raw, err := d.runQuery(ctx, d.scripts.Groups, name)
	if err != nil {
		return nil, err
	}

	doc, err := parseGroupDoc(raw)
	if err != nil {
		return nil, err
	}

	group, ok := doc[name]
	if !ok {
		return []string{}, nil
	}
	return group.Members, nil
}

// AddGroup requests a new group. Rejects with NotValid when the name is
// already taken; no signal is emitted in that case.
func (d *Directory) AddGroup(ctx context.Context, group Group) error {
	groups, err := d.ListGroups(ctx)
	if err != nil {
		return err
	}
	if _, exists := groups[group.Name]; exists {
		return domainerr.New(errIDGroupExists, domainerr.NotValid, "name",
			fmt.Sprintf("group %q already exists", group.Name))
	}

	return d.emit(ctx, SignalGroupCreate, groupParams(group))
}

// EditGroup requests changes to an existing group. Rejects with NotFound
// when the name has no record.
func (d *Directory) EditGroup(ctx context.Context, group Group) error {
	groups, err := d.ListGroups(ctx)
	if err != nil {
		return err
	}
	if _, exists := groups[group.Name]; !exists {
		return domainerr.New(errIDEditGroupMissing, domainerr.NotFound, "name",
			fmt.Sprintf("group %q does not exist", group.Name))
	}

	return d.emit(ctx, SignalGroupModify, groupParams(group))
}

// DeleteGroup requests removal of a group. Rejects with NotFound when the
// name has no record.
func (d *Directory) DeleteGroup(ctx context.Context, name string) error {
	groups, err := d.ListGroups(ctx)
	if err != nil {
		return err
	}
	if _, exists := groups[name]; !exists {
		return domainerr.New(errIDDeleteGroupMissing, domainerr.NotFound, "name",
			fmt.Sprintf("group %q does not exist", name))
	}

	return d.emit(ctx, SignalGroupDelete, []string{name})
}

// groupParams flattens a group request into the positional list the
// mutation subsystem expects: key first, then the member usernames.
func groupParams(g Group) []string {
	return append([]string{g.Name}, g.Members...)
}

func parseGroupDoc(raw string) (map[string]Group, error) {
	var doc map[string]Group
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	groups := make(map[string]Group, len(doc))
	for name, group := range doc {
		group.Name = name
		groups[name] = group
	}
	return groups, nil
}
