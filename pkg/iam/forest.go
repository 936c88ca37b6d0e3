package iam

import "sort"

// BuildMenuForest arranges menus into trees. Roots are menus without a parent.
// A menu whose parent is not in the set is dropped together with its
// descendants, and so is every menu on a parent cycle, since neither can be
// reached from a root. Siblings are ordered by Orden, then by ID.
func BuildMenuForest(menus []Menu) []*MenuNode {
	byID := make(map[int64]*Menu, len(menus))
	for i := range menus {
		if _, dup := byID[menus[i].ID]; !dup {
			byID[menus[i].ID] = &menus[i]
		}
	}

	children := make(map[int64][]*Menu)
	var roots []*Menu
	for _, m := range byID {
		if m.Padre == nil {
			roots = append(roots, m)
			continue
		}
		if _, ok := byID[*m.Padre]; ok {
			children[*m.Padre] = append(children[*m.Padre], m)
		}
	}

	visited := make(map[int64]bool, len(byID))
	var render func(level []*Menu) []*MenuNode
	render = func(level []*Menu) []*MenuNode {
		sortMenus(level)
		nodes := make([]*MenuNode, 0, len(level))
		for _, m := range level {
			if visited[m.ID] {
				continue
			}
			visited[m.ID] = true
			node := newMenuNode(m)
			node.Children = render(children[m.ID])
			nodes = append(nodes, node)
		}
		return nodes
	}
	return render(roots)
}

func newMenuNode(m *Menu) *MenuNode {
	icon := DefaultMenuIcon
	if m.Icono != nil && *m.Icono != "" {
		icon = *m.Icono
	}
	return &MenuNode{
		ID:        m.ID,
		Nombre:    m.Nombre,
		UrlMenu:   m.UrlMenu,
		RutaFront: m.RutaFront,
		Icono:     icon,
		Padre:     m.Padre,
		Orden:     m.Orden,
	}
}

func sortMenus(menus []*Menu) {
	sort.Slice(menus, func(i, j int) bool {
		if menus[i].Orden != menus[j].Orden {
			return menus[i].Orden < menus[j].Orden
		}
		return menus[i].ID < menus[j].ID
	})
}

// flattenMenus returns distinct menus in Orden, ID order.
func flattenMenus(menus []Menu) []MenuEntry {
	seen := make(map[int64]bool, len(menus))
	ordered := make([]*Menu, 0, len(menus))
	for i := range menus {
		if seen[menus[i].ID] {
			continue
		}
		seen[menus[i].ID] = true
		ordered = append(ordered, &menus[i])
	}
	sortMenus(ordered)

	entries := make([]MenuEntry, 0, len(ordered))
	for _, m := range ordered {
		entries = append(entries, MenuEntry{
			IDMenu:    m.ID,
			Nombre:    m.Nombre,
			UrlMenu:   m.UrlMenu,
			RutaFront: m.RutaFront,
			Padre:     m.Padre,
		})
	}
	return entries
}
