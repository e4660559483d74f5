package comparison

import (
	"fmt"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

var querySets = map[string][]string{
	"api": {
		"wool shoes", "natural white shoes", "merino blend hoodie",
		"crew sock natural", "ankle sock grey", "women shoes navy",
		"rugged beige hoodie", "natural grey heather", "blizzard sole shoes",
		"deep navy shoes", "premium quality shoes", "comfortable running shoes",
		"durable outdoor apparel", "sustainable fashion items",
		"breathable fabric clothing", "stony beige lux liberty",
		"natural white blizzard sole", "medium grey deep navy",
		"casual everyday footwear", "outdoor adventure gear",
	},
	"social": {
		"amazing product", "worth it", "highly recommend",
		"best purchase", "incredible gadget", "fantastic tool",
		"love this", "game changer", "must have", "perfect",
		"excellent quality", "great value", "top rated",
		"customer favorite", "bestseller", "premium",
		"outstanding", "exceptional", "outstanding quality",
		"highly rated", "customer choice",
	},
}

// QuerySet returns a copy of the built-in evaluation queries for a dataset.
func QuerySet(dataset string) ([]string, error) {
	qs, ok := querySets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: no query set for dataset %q", pkgerrors.ErrDatasetNotFound, dataset)
	}
	return append([]string(nil), qs...), nil
}
