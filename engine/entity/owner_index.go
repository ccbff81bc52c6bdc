package entity

import "github.com/petar/GoLLRB/llrb"

// ownerIndex keeps Multi entity keys ordered by (type, owner, instance)
type ownerIndex struct {
	tree *llrb.LLRB
}

type ownerIndexItem Key

func (it ownerIndexItem) Less(_other llrb.Item) bool {
	other := _other.(ownerIndexItem)
	if it.TypeName != other.TypeName {
		return it.TypeName < other.TypeName
	}
	if it.Owner != other.Owner {
		return it.Owner < other.Owner
	}
	return it.Instance < other.Instance
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{
		tree: llrb.New(),
	}
}

func (idx *ownerIndex) add(key Key) {
	idx.tree.ReplaceOrInsert(ownerIndexItem(key))
}

func (idx *ownerIndex) remove(key Key) {
	idx.tree.Delete(ownerIndexItem(key))
}

func (idx *ownerIndex) len() int {
	return idx.tree.Len()
}

// instances visits instance keys of the owner in ascending order
func (idx *ownerIndex) instances(typeName string, owner string) []string {
	var res []string
	pivot := ownerIndexItem{TypeName: typeName, Owner: owner}
	idx.tree.AscendGreaterOrEqual(pivot, func(_item llrb.Item) bool {
		item := _item.(ownerIndexItem)
		if item.TypeName != typeName || item.Owner != owner {
			return false
		}
		res = append(res, item.Instance)
		return true
	})
	return res
}
