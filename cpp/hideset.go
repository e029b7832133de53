package cpp

// The hideset of a token is the set of macro names whose expansion
// produced the token. A name in the hideset is not expanded again, which
// stops recursive macros from looping.
//
// It is an immutable singly linked list, hidesets are small in practice.
type hideset struct {
	r   *hideset
	val string
}

var emptyHS *hideset = nil

func (hs *hideset) rest() *hideset {
	if hs == emptyHS {
		return emptyHS
	}
	return hs.r
}

func (hs *hideset) len() int {
	if hs == emptyHS {
		return 0
	}
	return 1 + hs.rest().len()
}

func (hs *hideset) contains(s string) bool {
	if hs == emptyHS {
		return false
	}
	if s == hs.val {
		return true
	}
	return hs.rest().contains(s)
}

func (hs *hideset) add(s string) *hideset {
	if hs.contains(s) {
		return hs
	}
	return &hideset{
		r:   hs,
		val: s,
	}
}

// union returns the names in either hs or b.
func (hs *hideset) union(b *hideset) *hideset {
	for ; hs != emptyHS; hs = hs.rest() {
		b = b.add(hs.val)
	}
	return b
}

// intersection returns the names in both hs and b.
func (hs *hideset) intersection(b *hideset) *hideset {
	ret := emptyHS
	for ; hs != emptyHS; hs = hs.rest() {
		if b.contains(hs.val) {
			ret = ret.add(hs.val)
		}
	}
	return ret
}
