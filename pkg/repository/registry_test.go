package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	qhttp "github.com/glorpus-work/qpkg/pkg/http"
	httpmocks "github.com/glorpus-work/qpkg/pkg/http/mocks"
	"github.com/glorpus-work/qpkg/pkg/semver"
	"github.com/glorpus-work/qpkg/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRegistry(t *testing.T, srv *testutil.RegistryServer) *Registry {
	t.Helper()
	reg, err := NewRegistry(srv.URL+"/", qhttp.NewHTTPClient(5*time.Second), nil)
	require.NoError(t, err)
	return reg
}

func TestRegistry_ListVersions(t *testing.T) {
	srv := testutil.NewRegistryServer(t,
		testutil.Package("libx", "1.0.0"),
		testutil.Package("libx", "1.2.0"),
	)
	reg := newRegistry(t, srv)

	got, err := reg.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.2.0"}, strs(got))

	missing, err := reg.ListVersions(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRegistry_Fetch(t *testing.T) {
	srv := testutil.NewRegistryServer(t,
		testutil.Package("libx", "1.2.0", testutil.Dep("liby", "^0.3.0")),
	)
	reg := newRegistry(t, srv)

	pkg, err := reg.Fetch(context.Background(), "libx", semver.MustParse("1.2.0"))
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "libx", pkg.ID())
	require.Len(t, pkg.Config.Dependencies, 1)
	assert.Equal(t, "^0.3.0", pkg.Config.Dependencies[0].VersionRange.String())

	absent, err := reg.Fetch(context.Background(), "libx", semver.MustParse("9.9.9"))
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestRegistry_ServerErrorIsFatal(t *testing.T) {
	srv := testutil.NewRegistryServer(t, testutil.Package("libx", "1.0.0"))
	srv.FailIDs["libx"] = true
	reg := newRegistry(t, srv)

	_, err := reg.ListVersions(context.Background(), "libx")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	_, err = reg.Fetch(context.Background(), "libx", semver.MustParse("1.0.0"))
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestRegistry_MemoizesByURL(t *testing.T) {
	srv := testutil.NewRegistryServer(t, testutil.Package("libx", "1.0.0"))
	reg := newRegistry(t, srv)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := reg.ListVersions(ctx, "libx")
		require.NoError(t, err)
		_, err = reg.Fetch(ctx, "libx", semver.MustParse("1.0.0"))
		require.NoError(t, err)
		_, err = reg.ListVersions(ctx, "ghost")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, srv.Requests("/libx"))
	assert.Equal(t, 1, srv.Requests("/libx/1.0.0"))
	assert.Equal(t, 1, srv.Requests("/ghost"), "not-found answers are memoized too")
}

func TestRegistry_SharedCache(t *testing.T) {
	srv := testutil.NewRegistryServer(t, testutil.Package("libx", "1.0.0"))
	cache := NewRegistryCache()
	client := qhttp.NewHTTPClient(5 * time.Second)

	first, err := NewRegistry(srv.URL, client, cache)
	require.NoError(t, err)
	second, err := NewRegistry(srv.URL, client, cache)
	require.NoError(t, err)

	_, err = first.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	_, err = second.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Requests("/libx"))
	assert.Equal(t, 1, cache.Versions.Len())
}

func TestRegistry_TransportErrorNotMemoized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	boom := errors.New("connection reset")
	client := httpmocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetJSON(gomock.Any(), "https://registry.test/libx?limit=0", gomock.Any()).Return(false, boom),
		client.EXPECT().GetJSON(gomock.Any(), "https://registry.test/libx?limit=0", gomock.Any()).Return(false, nil),
	)

	reg, err := NewRegistry("https://registry.test", client, nil)
	require.NoError(t, err)

	_, err = reg.ListVersions(context.Background(), "libx")
	assert.ErrorIs(t, err, boom)

	got, err := reg.ListVersions(context.Background(), "libx")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry("  ", qhttp.NewHTTPClient(time.Second), nil)
	assert.ErrorIs(t, err, ErrRegistryURLMissing)

	reg, err := NewRegistry(DefaultRegistryURL, qhttp.NewHTTPClient(time.Second), nil)
	require.NoError(t, err)
	_, err = reg.ListVersions(context.Background(), "")
	assert.ErrorIs(t, err, ErrPackageIDEmpty)
}
