package filter

import "strings"

const (
	chainSeparator    = "#"
	fragmentSeparator = "="
)

// FromIDChain parses "k1=v1#k2=v2" into an AND group of IDString leaves.
// Fragments without '=' are skipped.
func FromIDChain(chain string) Element {
	var children []Element
	for _, fragment := range strings.Split(chain, chainSeparator) {
		key, value, ok := strings.Cut(fragment, fragmentSeparator)
		if !ok {
			continue
		}
		children = append(children, IDString(key, value))
	}
	return Element{Value: structuralValue(CategoryCollection, children)}
}

// FromIDChainCollection addresses a set of alternative composite identifiers:
// every chain becomes an OR-directed group under one ROOT.
func FromIDChainCollection(chains []string) Element {
	root := Root()
	for _, chain := range chains {
		root = root.Push(FromIDChain(chain).AsOr())
	}
	return root
}

// IDChain renders identifier pairs back into chain notation.
func IDChain(pairs ...[2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+fragmentSeparator+p[1])
	}
	return strings.Join(parts, chainSeparator)
}
