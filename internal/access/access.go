// Package access propagates workspace sharing to sample records: it queries
// workspace permissions and merges them into a sample ACL update.
package access

import (
	"context"
	"sort"

	"github.com/strataworks/sampleflow/internal/recordstore"
)

// PermissionSource yields the user→permission map of a workspace.
// Permissions are the workspace letters: "a" (admin), "w" (write), "r"
// (read), "n" (none); the "*" user marks public access.
type PermissionSource interface {
	Permissions(ctx context.Context, workspaceID int) (map[string]string, error)
}

// Merge folds workspace permissions into an ACL update. The owner is skipped
// (the record store refuses owner changes); "*" sets the public read flag;
// "n" grants nothing. User lists come out sorted.
func Merge(base recordstore.ACLs, perms map[string]string, owner string) recordstore.ACLs {
	out := base
	for user, perm := range perms {
		if user == owner {
			continue
		}
		if user == "*" {
			out.PublicRead = 1
			continue
		}
		switch perm {
		case "a":
			out.Admin = append(out.Admin, user)
		case "w":
			out.Write = append(out.Write, user)
		case "r":
			out.Read = append(out.Read, user)
		}
	}
	sort.Strings(out.Admin)
	sort.Strings(out.Write)
	sort.Strings(out.Read)
	return out
}

// ACLUpdater applies an ACL update to a set of sample records.
type ACLUpdater interface {
	ReplaceACLs(ctx context.Context, id string, acls recordstore.ACLs) error
}

// Propagate queries the workspace's permissions and replaces the ACLs of
// every given sample record with the merged result.
func Propagate(ctx context.Context, src PermissionSource, updater ACLUpdater,
	workspaceID int, owner string, sampleIDs []string) error {

	perms, err := src.Permissions(ctx, workspaceID)
	if err != nil {
		return err
	}
	acls := Merge(recordstore.ACLs{
		Admin: []string{},
		Write: []string{},
		Read:  []string{},
	}, perms, owner)

	for _, id := range sampleIDs {
		if err := updater.ReplaceACLs(ctx, id, acls); err != nil {
			return err
		}
	}
	return nil
}
