package notify

// Reduce returns the list that results from applying ev to list. It never
// modifies list; when ev changes nothing the input is returned as is.
//
//   - created: items with unknown ids are appended, known ids replaced in place
//   - updated: items are replaced by id, unknown ids appended
//   - deleted: items with matching ids are removed
//
// Unsuccessful events and other actions leave the list unchanged.
func Reduce(list []Item, ev Event) []Item {
	if !ev.Success || len(ev.Data) == 0 {
		return list
	}

	switch ev.Action {
	case ActionCreated, ActionUpdated:
		out := make([]Item, len(list), len(list)+len(ev.Data))
		copy(out, list)
		for _, it := range ev.Data {
			id := it.ID()
			if i := indexOf(out, id); id != "" && i >= 0 {
				out[i] = it
				continue
			}
			if id == "" && ev.Action == ActionUpdated {
				continue
			}
			out = append(out, it)
		}
		return out

	case ActionDeleted:
		drop := make(map[string]struct{}, len(ev.Data))
		for _, it := range ev.Data {
			if id := it.ID(); id != "" {
				drop[id] = struct{}{}
			}
		}
		out := make([]Item, 0, len(list))
		for _, it := range list {
			if _, ok := drop[it.ID()]; !ok {
				out = append(out, it)
			}
		}
		return out
	}
	return list
}

func indexOf(list []Item, id string) int {
	if id == "" {
		return -1
	}
	for i, it := range list {
		if it.ID() == id {
			return i
		}
	}
	return -1
}
