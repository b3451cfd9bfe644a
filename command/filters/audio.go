package filters

import "strings"

// AudioFilters is the -af chain: custom fragments first, then the gain,
// then loudnorm.
type AudioFilters struct {
	Custom   []string
	Gain     string // volume=<n>dB
	Loudnorm string
}

// Add appends a custom fragment; empty fragments are ignored.
func (f *AudioFilters) Add(fragment string) {
	if fragment = strings.TrimSpace(fragment); fragment != "" {
		f.Custom = append(f.Custom, fragment)
	}
}

// Fragments returns the non-empty fragments in chain order.
func (f AudioFilters) Fragments() []string {
	out := make([]string, 0, len(f.Custom)+2)
	for _, frag := range f.Custom {
		if frag = strings.TrimSpace(frag); frag != "" {
			out = append(out, frag)
		}
	}
	for _, frag := range []string{f.Gain, f.Loudnorm} {
		if frag = strings.TrimSpace(frag); frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

// Chain joins the fragments with commas.
func (f AudioFilters) Chain() string {
	return strings.Join(f.Fragments(), ",")
}

// Args returns ["-af", chain], or nil when the chain is empty.
func (f AudioFilters) Args() []string {
	if c := f.Chain(); c != "" {
		return []string{"-af", c}
	}
	return nil
}
