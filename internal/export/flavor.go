package export

import (
	"slices"

	"model-release/internal/convert"
	"model-release/internal/release"
)

// exportable lists the flavors with an exporter, in preference order.
var exportable = []convert.Flavor{convert.FlavorSklearn, convert.FlavorPyTorch}

// DetectFlavor picks exactly one exportable flavor from the flavors recorded
// for an artifact.
func DetectFlavor(present []string) (convert.Flavor, error) {
	for _, f := range exportable {
		if slices.Contains(present, string(f)) {
			return f, nil
		}
	}

	sorted := slices.Clone(present)
	slices.Sort(sorted)
	return "", &release.UnsupportedFlavorError{Present: sorted}
}

func ForFlavor(f convert.Flavor) (Exporter, error) {
	switch f {
	case convert.FlavorSklearn:
		return SklearnExporter{}, nil
	case convert.FlavorPyTorch:
		return PyTorchExporter{}, nil
	default:
		return nil, &release.UnsupportedFlavorError{Present: []string{string(f)}}
	}
}
