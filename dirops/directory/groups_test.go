package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountops/dirops/dirops/domainerr"
)

const groupListing = `{"sales": {"members": ["bob", "carol"]}}`

func TestListGroups(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	d := newTestDirectory(runner, &recordingSignaler{}, &recordingValidator{})

	groups, err := d.ListGroups(context.Background())

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "sales", groups["sales"].Name)
	assert.ElementsMatch(t, []string{"bob", "carol"}, groups["sales"].Members)
}

func TestGetGroupMembers(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s sales": groupListing,
	}}
	d := newTestDirectory(runner, &recordingSignaler{}, &recordingValidator{})

	members, err := d.GetGroupMembers(context.Background(), "sales")

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, members)
}

func TestGetGroupMembersMissingGroup(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s ghosts": `{}`,
	}}
	d := newTestDirectory(runner, &recordingSignaler{}, &recordingValidator{})

	members, err := d.GetGroupMembers(context.Background(), "ghosts")

	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestAddGroupDuplicate(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	err := d.AddGroup(context.Background(), Group{Name: "sales", Members: []string{"bob"}})

	var domainErr *domainerr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, int64(1150823484726), domainErr.ID)
	assert.Equal(t, domainerr.NotValid, domainErr.Kind)
	assert.Empty(t, signaler.emitted(), "no signal may be emitted on a duplicate")
}

func TestAddGroup(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	err := d.AddGroup(context.Background(), Group{Name: "ops", Members: []string{"bob", "amy"}})

	require.NoError(t, err)
	signals := signaler.emitted()
	require.Len(t, signals, 1)
	assert.Equal(t, SignalGroupCreate, signals[0].event)
	assert.Equal(t, []string{"ops", "bob", "amy"}, signals[0].params)
}

func TestEditGroupMissing(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	err := d.EditGroup(context.Background(), Group{Name: "ops", Members: []string{"amy"}})

	var domainErr *domainerr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, int64(1150823501843), domainErr.ID)
	assert.Equal(t, domainerr.NotFound, domainErr.Kind)
	assert.Empty(t, signaler.emitted())
}

func TestEditGroup(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	err := d.EditGroup(context.Background(), Group{Name: "sales", Members: []string{"bob"}})

	require.NoError(t, err)
	signals := signaler.emitted()
	require.Len(t, signals, 1)
	assert.Equal(t, SignalGroupModify, signals[0].event)
	assert.Equal(t, "sales", signals[0].params[0])
}

func TestDeleteGroupMissing(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	err := d.DeleteGroup(context.Background(), "ops")

	var domainErr *domainerr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, int64(1150823512095), domainErr.ID)
	assert.Equal(t, domainerr.NotFound, domainErr.Kind)
	assert.Empty(t, signaler.emitted())
}

func TestDeleteGroup(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	err := d.DeleteGroup(context.Background(), "sales")

	require.NoError(t, err)
	signals := signaler.emitted()
	require.Len(t, signals, 1)
	assert.Equal(t, SignalGroupDelete, signals[0].event)
	assert.Equal(t, []string{"sales"}, signals[0].params)
}

// Two creates racing between the precondition read and the emission can
// both pass the duplicate check. The facade accepts this; the mutation
// subsystem is the single arbiter of uniqueness.
func TestAddGroupConcurrentDuplicate(t *testing.T) {
	runner := &scriptRunner{outputs: map[string]string{
		groupsScript + " -t 5 -s": groupListing,
	}}
	signaler := &recordingSignaler{}
	d := newTestDirectory(runner, signaler, &recordingValidator{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = d.AddGroup(context.Background(), Group{Name: "ops", Members: []string{"amy"}})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, signaler.emitted(), 2)
}
