package ldap

import "context"

// GetValueList returns every value of attr on dn in server order. The
// result is nil, without error, when the entry or the attribute is missing.
func (d *Directory) GetValueList(ctx context.Context, dn, attr string) ([][]byte, error) {
	lists, err := d.GetValuesLists(ctx, dn, []string{attr})
	if err != nil || lists == nil {
		return nil, err
	}
	return lists[0], nil
}

// GetValue returns the first value of attr on dn, or nil.
func (d *Directory) GetValue(ctx context.Context, dn, attr string) ([]byte, error) {
	values, err := d.GetValueList(ctx, dn, attr)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// GetValues returns the first value of each of attrs on dn, positionally.
// Missing attributes are nil; a missing entry yields a nil slice.
func (d *Directory) GetValues(ctx context.Context, dn string, attrs []string) ([][]byte, error) {
	lists, err := d.GetValuesLists(ctx, dn, attrs)
	if err != nil || lists == nil {
		return nil, err
	}

	values := make([][]byte, len(lists))
	for i, list := range lists {
		if len(list) > 0 {
			values[i] = list[0]
		}
	}
	return values, nil
}

// GetValuesLists returns all values of each of attrs on dn, positionally.
// Missing attributes are nil; a missing entry yields a nil slice.
func (d *Directory) GetValuesLists(ctx context.Context, dn string, attrs []string) ([][][]byte, error) {
	entries, err := d.Search(ctx, SearchRequest{BaseDN: dn, Attributes: attrs})
	if err != nil || len(entries) == 0 {
		return nil, err
	}

	entry := entries[0]
	lists := make([][][]byte, len(attrs))
	for i, attr := range attrs {
		lists[i] = entry.Attributes.Get(attr)
	}
	return lists, nil
}
