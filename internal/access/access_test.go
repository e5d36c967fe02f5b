package access_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataworks/sampleflow/internal/access"
	"github.com/strataworks/sampleflow/internal/recordstore"
)

func TestMerge(t *testing.T) {
	perms := map[string]string{
		"owner1": "a",
		"alice":  "a",
		"bob":    "w",
		"carol":  "r",
		"dave":   "n",
		"*":      "r",
	}

	acls := access.Merge(recordstore.ACLs{}, perms, "owner1")

	t.Run("owner is skipped", func(t *testing.T) {
		assert.NotContains(t, acls.Admin, "owner1")
	})
	t.Run("letters map to lists", func(t *testing.T) {
		assert.Equal(t, []string{"alice"}, acls.Admin)
		assert.Equal(t, []string{"bob"}, acls.Write)
		assert.Equal(t, []string{"carol"}, acls.Read)
	})
	t.Run("star grants public read", func(t *testing.T) {
		assert.Equal(t, 1, acls.PublicRead)
		assert.NotContains(t, acls.Read, "*")
	})
	t.Run("none grants nothing", func(t *testing.T) {
		for _, list := range [][]string{acls.Admin, acls.Write, acls.Read} {
			assert.NotContains(t, list, "dave")
		}
	})
}

func TestMergeSortsLists(t *testing.T) {
	perms := map[string]string{"zed": "w", "amy": "w", "mia": "w"}
	acls := access.Merge(recordstore.ACLs{}, perms, "owner1")
	assert.Equal(t, []string{"amy", "mia", "zed"}, acls.Write)
}

// fakeUpdater records ACL replacements.
type fakeUpdater struct {
	calls map[string]recordstore.ACLs
}

func (f *fakeUpdater) ReplaceACLs(_ context.Context, id string, acls recordstore.ACLs) error {
	f.calls[id] = acls
	return nil
}

type fakeSource map[string]string

func (f fakeSource) Permissions(context.Context, int) (map[string]string, error) {
	return f, nil
}

func TestPropagate(t *testing.T) {
	updater := &fakeUpdater{calls: map[string]recordstore.ACLs{}}
	src := fakeSource{"alice": "a", "owner1": "a"}

	err := access.Propagate(context.Background(), src, updater, 42, "owner1", []string{"id-1", "id-2"})
	require.NoError(t, err)

	require.Len(t, updater.calls, 2)
	assert.Equal(t, []string{"alice"}, updater.calls["id-1"].Admin)
	assert.Equal(t, updater.calls["id-1"], updater.calls["id-2"])
}

func TestWorkspacePermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"perms":[{"alice":"a","bob":"w"}]}]}`))
	}))
	defer srv.Close()

	perms, err := access.NewWorkspaceClient(srv.URL, "tok").Permissions(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "a", "bob": "w"}, perms)
}
