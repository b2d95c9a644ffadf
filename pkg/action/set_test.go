package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

// recorder collects the names of everything that ran, in order.
type recorder struct {
	calls []string
}

func (r *recorder) action(name string, err error) Action {
	return ActionFunc(func(context.Context, string, *schema.RunOptions, *schema.Configuration) error {
		r.calls = append(r.calls, name)
		return err
	})
}

func (r *recorder) builtIns() map[string]Action {
	m := make(map[string]Action, len(BuiltIns))
	for _, name := range BuiltIns {
		m[name] = r.action(name, nil)
	}
	return m
}

type fakePeer struct {
	name string
	rec  *recorder
	err  error
	full []bool
}

func (p *fakePeer) PeerName() string { return p.name }

func (p *fakePeer) ExecuteManagedAction(_ context.Context, action string, full bool) error {
	p.rec.calls = append(p.rec.calls, p.name+":"+action)
	p.full = append(p.full, full)
	return p.err
}

type fakeResolver map[string]Action

func (f fakeResolver) Resolve(module, function string) (Action, error) {
	a, ok := f[module+"."+function]
	if !ok {
		return nil, errUtils.ErrUnknownExtensionFunction
	}
	return a, nil
}

func peerFactory(rec *recorder, failing map[string]error, created map[string]schema.RemotePeer) PeerFactory {
	return func(cfg schema.RemotePeer, _ string) ManagedPeer {
		if created != nil {
			created[cfg.Name] = cfg
		}
		return &fakePeer{name: cfg.Name, rec: rec, err: failing[cfg.Name]}
	}
}

func TestNewSet_Validation(t *testing.T) {
	tests := []struct {
		name    string
		actions []string
		wantErr error
	}{
		{"no actions", nil, errUtils.ErrNoActions},
		{"unknown action", []string{"collect", "backup"}, errUtils.ErrInvalidAction},
		{"rebuild combined", []string{"rebuild", "collect"}, errUtils.ErrNonCombinableAction},
		{"validate combined", []string{"stage", "validate"}, errUtils.ErrNonCombinableAction},
		{"initialize combined", []string{"initialize", "purge"}, errUtils.ErrNonCombinableAction},
		{"all combined", []string{"all", "collect"}, errUtils.ErrNonCombinableAction},
		{"all twice", []string{"all", "all"}, errUtils.ErrNonCombinableAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, err := NewSet(SetParams{Actions: tt.actions, Local: true, BuiltIns: rec.builtIns()})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, rec.calls, "nothing may run when validation fails")
		})
	}
}

func TestNewSet_SingleNonCombinableActionsAreValid(t *testing.T) {
	for _, name := range []string{Rebuild, Validate, Initialize} {
		rec := &recorder{}
		set, err := NewSet(SetParams{Actions: []string{name}, Local: true, BuiltIns: rec.builtIns()})
		require.NoError(t, err)
		assert.Equal(t, []string{name}, set.Names())
	}
}

func TestNewSet_AllExpandsToPipeline(t *testing.T) {
	rec := &recorder{}
	set, err := NewSet(SetParams{Actions: []string{All}, Local: true, BuiltIns: rec.builtIns()})
	require.NoError(t, err)
	assert.Equal(t, []string{Collect, Stage, Store, Purge}, set.Names())

	require.NoError(t, set.Execute(context.Background(), "/etc/cback.yaml", &schema.RunOptions{}, &schema.Configuration{}))
	assert.Equal(t, []string{Collect, Stage, Store, Purge}, rec.calls)
}

func TestNewSet_OrdersByIndex(t *testing.T) {
	rec := &recorder{}
	set, err := NewSet(SetParams{Actions: []string{Purge, Stage, Collect}, Local: true, BuiltIns: rec.builtIns()})
	require.NoError(t, err)
	assert.Equal(t, []string{Collect, Stage, Purge}, set.Names())
}

func TestNewSet_ExtensionsInIndexMode(t *testing.T) {
	rec := &recorder{}
	cfg := &schema.Configuration{
		Extensions: &schema.ExtensionsConfig{
			Actions: []schema.ExtendedAction{
				{Name: "mysql", Module: "mysql", Function: "execute", Index: intPtr(99)},
				{Name: "amazons3", Module: "amazons3", Function: "execute", Index: intPtr(301)},
			},
		},
	}
	resolver := fakeResolver{
		"mysql.execute":    rec.action("mysql", nil),
		"amazons3.execute": rec.action("amazons3", nil),
	}

	set, err := NewSet(SetParams{
		Actions:    []string{"amazons3", Store, Collect, "mysql"},
		Config:     cfg,
		Local:      true,
		BuiltIns:   rec.builtIns(),
		Extensions: resolver,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mysql", Collect, Store, "amazons3"}, set.Names())

	// "all" never includes extensions.
	set, err = NewSet(SetParams{Actions: []string{All}, Config: cfg, Local: true, BuiltIns: rec.builtIns(), Extensions: resolver})
	require.NoError(t, err)
	assert.Equal(t, []string{Collect, Stage, Store, Purge}, set.Names())
}

func TestNewSet_ExtensionsInDependencyMode(t *testing.T) {
	rec := &recorder{}
	cfg := &schema.Configuration{
		Extensions: &schema.ExtensionsConfig{
			OrderMode: OrderModeDependency,
			Actions: []schema.ExtendedAction{{
				Name: "encrypt", Module: "encrypt", Function: "execute",
				Depends: &schema.ActionDependencies{RunAfter: []string{Stage}, RunBefore: []string{Store}},
			}},
		},
	}

	set, err := NewSet(SetParams{
		Actions:    []string{Store, "encrypt", Stage},
		Config:     cfg,
		Local:      true,
		BuiltIns:   rec.builtIns(),
		Extensions: fakeResolver{"encrypt.execute": rec.action("encrypt", nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{Stage, "encrypt", Store}, set.Names())
}

func TestNewSet_BuildErrors(t *testing.T) {
	rec := &recorder{}

	t.Run("unknown extension function", func(t *testing.T) {
		_, err := NewSet(SetParams{
			Actions:    []string{Collect},
			Config:     &schema.Configuration{Extensions: &schema.ExtensionsConfig{Actions: []schema.ExtendedAction{{Name: "x", Module: "nope", Function: "run", Index: intPtr(1)}}}},
			Local:      true,
			BuiltIns:   rec.builtIns(),
			Extensions: fakeResolver{},
		})
		assert.ErrorIs(t, err, errUtils.ErrUnknownExtensionFunction)
	})

	t.Run("dependency recursion", func(t *testing.T) {
		_, err := NewSet(SetParams{
			Actions: []string{Collect},
			Config: &schema.Configuration{Extensions: &schema.ExtensionsConfig{
				OrderMode: OrderModeDependency,
				Actions: []schema.ExtendedAction{{
					Name: "loop", Module: "loop", Function: "run",
					Depends: &schema.ActionDependencies{RunBefore: []string{Collect}, RunAfter: []string{Purge}},
				}},
			}},
			Local:      true,
			BuiltIns:   rec.builtIns(),
			Extensions: fakeResolver{"loop.run": rec.action("loop", nil)},
		})
		assert.ErrorIs(t, err, errUtils.ErrDependencyRecursion)
	})

	t.Run("invalid hook type", func(t *testing.T) {
		_, err := NewSet(SetParams{
			Actions:  []string{Collect},
			Config:   &schema.Configuration{Options: &schema.OptionsConfig{Hooks: []schema.ActionHook{{Action: Collect, Type: "sometime"}}}},
			Local:    true,
			BuiltIns: rec.builtIns(),
		})
		assert.ErrorIs(t, err, errUtils.ErrInvalidHookType)
	})

	assert.Empty(t, rec.calls)
}

func managedConfig() *schema.Configuration {
	return &schema.Configuration{
		Options: &schema.OptionsConfig{
			BackupUser:     "backup",
			RshCommand:     "/usr/bin/ssh -q",
			ManagedActions: []string{Collect, Purge},
		},
		Peers: &schema.PeersConfig{
			Remote: []schema.RemotePeer{
				{Name: "alpha", Managed: true},
				{Name: "beta", Managed: true, RemoteUser: "root", ManagedActions: []string{Collect, Stage}},
				{Name: "gamma", Managed: false},
			},
		},
	}
}

func TestNewSet_ManagedItems(t *testing.T) {
	rec := &recorder{}
	created := make(map[string]schema.RemotePeer)

	set, err := NewSet(SetParams{
		Actions:  []string{All},
		Config:   managedConfig(),
		Local:    true,
		Managed:  true,
		BuiltIns: rec.builtIns(),
		NewPeer:  peerFactory(rec, nil, created),
	})
	require.NoError(t, err)

	items := set.Items()
	require.Len(t, items, 7)
	got := make([]string, 0, len(items))
	for _, item := range items {
		label := item.Name()
		if item.Managed() {
			label += "(managed)"
		}
		got = append(got, label)
	}
	assert.Equal(t, []string{
		"collect", "collect(managed)",
		"stage", "stage(managed)",
		"store",
		"purge", "purge(managed)",
	}, got)

	assert.Len(t, created, 2, "only managed peers are created")
	assert.Equal(t, "backup", created["alpha"].RemoteUser)
	assert.Equal(t, "root", created["beta"].RemoteUser)
	assert.Equal(t, "/usr/bin/ssh -q", created["beta"].RshCommand)

	require.NoError(t, set.Execute(context.Background(), "", &schema.RunOptions{Full: true}, managedConfig()))
	assert.Equal(t, []string{
		"collect", "alpha:collect", "beta:collect",
		"stage", "beta:stage",
		"store",
		"purge", "alpha:purge",
	}, rec.calls)
}

func TestNewSet_ManagedOnly(t *testing.T) {
	rec := &recorder{}
	set, err := NewSet(SetParams{
		Actions:  []string{Collect, Store},
		Config:   managedConfig(),
		Managed:  true,
		BuiltIns: rec.builtIns(),
		NewPeer:  peerFactory(rec, nil, nil),
	})
	require.NoError(t, err)

	// Store has no managed peers and local execution is off.
	require.Len(t, set.Items(), 1)
	item, ok := set.Items()[0].(*ManagedItem)
	require.True(t, ok)
	assert.Equal(t, Collect, item.Name())
	assert.Equal(t, CollectIndex, item.Index())
	assert.Len(t, item.Peers(), 2)
}

func TestManagedItem_PeerFailureIsSwallowed(t *testing.T) {
	rec := &recorder{}
	set, err := NewSet(SetParams{
		Actions:  []string{Collect},
		Config:   managedConfig(),
		Local:    true,
		Managed:  true,
		BuiltIns: rec.builtIns(),
		NewPeer:  peerFactory(rec, map[string]error{"alpha": errors.New("connection refused")}, nil),
	})
	require.NoError(t, err)

	err = set.Execute(context.Background(), "", &schema.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"collect", "alpha:collect", "beta:collect"}, rec.calls)
}

func TestManagedItem_PassesFullFlag(t *testing.T) {
	rec := &recorder{}
	peer := &fakePeer{name: "alpha", rec: rec}
	item := NewManagedItem(CollectIndex, Collect, []ManagedPeer{peer})

	require.NoError(t, item.Execute(context.Background(), "", &schema.RunOptions{Full: true}, nil))
	require.NoError(t, item.Execute(context.Background(), "", nil, nil))
	assert.Equal(t, []bool{true, false}, peer.full)
}

func TestLocalItem_Hooks(t *testing.T) {
	cfg := &schema.Configuration{
		Options: &schema.OptionsConfig{
			Hooks: []schema.ActionHook{
				{Action: Collect, Type: schema.HookTypePre, Command: "mount /backup"},
				{Action: Collect, Type: schema.HookTypePost, Command: "umount /backup"},
			},
		},
	}

	t.Run("hooks wrap the action", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRunner := runner.NewMockCommandRunner(ctrl)
		rec := &recorder{}

		gomock.InOrder(
			mockRunner.EXPECT().Run(gomock.Any(), "mount", []string{"/backup"}).
				DoAndReturn(func(context.Context, string, []string) (*runner.CommandResult, error) {
					rec.calls = append(rec.calls, "pre")
					return &runner.CommandResult{}, nil
				}),
			mockRunner.EXPECT().Run(gomock.Any(), "umount", []string{"/backup"}).
				DoAndReturn(func(context.Context, string, []string) (*runner.CommandResult, error) {
					rec.calls = append(rec.calls, "post")
					return &runner.CommandResult{}, nil
				}),
		)

		set, err := NewSet(SetParams{Actions: []string{Collect}, Config: cfg, Local: true, BuiltIns: rec.builtIns(), Runner: mockRunner})
		require.NoError(t, err)
		require.NoError(t, set.Execute(context.Background(), "", &schema.RunOptions{}, cfg))
		assert.Equal(t, []string{"pre", Collect, "post"}, rec.calls)
	})

	t.Run("failing pre hook skips the action and the rest of the run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRunner := runner.NewMockCommandRunner(ctrl)
		rec := &recorder{}

		mockRunner.EXPECT().Run(gomock.Any(), "mount", gomock.Any()).
			Return(&runner.CommandResult{ExitCode: 32, Output: []string{"mount: no such device"}}, nil)

		set, err := NewSet(SetParams{Actions: []string{All}, Config: cfg, Local: true, BuiltIns: rec.builtIns(), Runner: mockRunner})
		require.NoError(t, err)

		err = set.Execute(context.Background(), "", &schema.RunOptions{}, cfg)
		assert.ErrorIs(t, err, errUtils.ErrHookFailed)
		assert.Empty(t, rec.calls)
	})

	t.Run("failing post hook stops the run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockRunner := runner.NewMockCommandRunner(ctrl)
		rec := &recorder{}

		mockRunner.EXPECT().Run(gomock.Any(), "mount", gomock.Any()).Return(&runner.CommandResult{}, nil)
		mockRunner.EXPECT().Run(gomock.Any(), "umount", gomock.Any()).Return(&runner.CommandResult{ExitCode: 1}, nil)

		set, err := NewSet(SetParams{Actions: []string{All}, Config: cfg, Local: true, BuiltIns: rec.builtIns(), Runner: mockRunner})
		require.NoError(t, err)

		err = set.Execute(context.Background(), "", &schema.RunOptions{}, cfg)
		assert.ErrorIs(t, err, errUtils.ErrHookFailed)
		assert.Equal(t, []string{Collect}, rec.calls)
	})
}

func TestSet_ExecuteStopsAtFirstError(t *testing.T) {
	rec := &recorder{}
	builtIns := rec.builtIns()
	boom := errors.New("tar failed")
	builtIns[Stage] = rec.action(Stage, boom)

	set, err := NewSet(SetParams{Actions: []string{All}, Local: true, BuiltIns: builtIns})
	require.NoError(t, err)

	err = set.Execute(context.Background(), "", &schema.RunOptions{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{Collect, Stage}, rec.calls)
}

func TestSet_ExecuteHonoursCancellation(t *testing.T) {
	rec := &recorder{}
	set, err := NewSet(SetParams{Actions: []string{All}, Local: true, BuiltIns: rec.builtIns()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, set.Execute(ctx, "", &schema.RunOptions{}, nil), context.Canceled)
	assert.Empty(t, rec.calls)
}

func TestLocalItem_MissingFunction(t *testing.T) {
	item := NewLocalItem(CollectIndex, Collect, nil, nil, nil, nil)
	err := item.Execute(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, errUtils.ErrMissingActionFunction)
}
