// Package nav projects the role-specific navigation menu. Visibility is a
// strict subset of authorization: every prunable entry is kept or dropped by
// the access resolver alone.
package nav

import "github.com/aegis-portal/aegis-portal/internal/identity"

// Item is a menu tree node. Pinned items are landing pages that sit outside
// the page registry and are never pruned; everything else is.
type Item struct {
	Label    string
	Path     string
	Icon     string
	Pinned   bool
	Children []Item
}

// MenuForRole returns the full (unpruned) menu tree for a role.
func MenuForRole(role identity.Role) []Item {
	if role == identity.RoleAdmin {
		return []Item{
			{Label: "dashboard", Path: "/admin/dashboard", Icon: "home", Pinned: true},
			{Label: "service requests", Icon: "inbox", Children: []Item{
				{Label: "all requests", Path: "/requests"},
				{Label: "new request", Path: "/requests/new"},
			}},
			{Label: "background checks", Icon: "shield", Children: []Item{
				{Label: "all checks", Path: "/background"},
				{Label: "pending review", Path: "/background/pending"},
			}},
			{Label: "reports", Path: "/reports", Icon: "chart"},
			{Label: "administration", Icon: "settings", Children: []Item{
				{Label: "users", Path: "/users"},
				{Label: "page permissions", Path: "/admin/permissions"},
			}},
		}
	}
	return []Item{
		{Label: "dashboard", Path: "/dashboard", Icon: "home", Pinned: true},
		{Label: "service requests", Icon: "inbox", Children: []Item{
			{Label: "all requests", Path: "/requests"},
			{Label: "new request", Path: "/requests/new"},
		}},
		{Label: "background checks", Icon: "shield", Children: []Item{
			{Label: "all checks", Path: "/background"},
			{Label: "pending review", Path: "/background/pending"},
		}},
		{Label: "reports", Path: "/reports", Icon: "chart"},
	}
}

// leafPaths collects every prunable destination in the tree.
func leafPaths(items []Item) []string {
	var paths []string
	for _, item := range items {
		if item.Path != "" && !item.Pinned {
			paths = append(paths, item.Path)
		}
		paths = append(paths, leafPaths(item.Children)...)
	}
	return paths
}
